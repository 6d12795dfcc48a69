package federation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrNotConfigured is returned when the client has no base URL.
var ErrNotConfigured = errors.New("federation backend not configured")

// APIError is a non-2xx response from the federation backend.
// Error returns the backend's own message so it can be shown verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// newAPIError extracts the operator-facing message from an error body.
// PRE: body is the full response body (may be empty or non-JSON)
// POST: Message is detail, message or error from a JSON object, else the trimmed text, else the status text
func newAPIError(status int, body []byte) *APIError {
	var fields struct {
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &fields) == nil {
		for _, raw := range []json.RawMessage{fields.Detail, fields.Message, fields.Error} {
			if msg := messageText(raw); msg != "" {
				return &APIError{StatusCode: status, Message: msg}
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: text}
}

// messageText accepts a JSON string, or a list of strings joined with a space.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.TrimSpace(strings.Join(list, " "))
	}
	return ""
}
