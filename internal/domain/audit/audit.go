package audit

import (
	"errors"
	"time"
)

// Category groups audit events by the part of the desk they concern.
type Category string

const (
	CategorySelection    Category = "selection"
	CategoryLicenseOrder Category = "license_order"
	CategoryOutbox       Category = "outbox"
)

// Action is what the desk owner or the desk did.
type Action string

const (
	ActionHandOver Action = "hand_over"
	ActionSubmit   Action = "submit"
	ActionReject   Action = "reject"
	ActionExport   Action = "export"
	ActionRetry    Action = "retry"
	ActionAbandon  Action = "abandon"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Domain errors.
var (
	ErrEmptyID       = errors.New("audit event id is required")
	ErrEmptyCategory = errors.New("audit category is required")
	ErrEmptyAction   = errors.New("audit action is required")
	ErrMissingTime   = errors.New("audit timestamp must be set")
)

// Event is one entry in the desk's audit trail.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	Owner        string    `json:"owner"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Description  string    `json:"description"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	Metadata     string    `json:"metadata"`
}

// NewEvent starts an info-level event; the recorder stamps ID and Timestamp.
// PRE: category and action are non-empty
// POST: Severity is info
func NewEvent(owner string, category Category, action Action) Event {
	return Event{
		Category: category,
		Action:   action,
		Severity: SeverityInfo,
		Owner:    owner,
	}
}

// WithSeverity sets the severity level.
func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithResource sets resource information.
// PRE: resourceType and resourceID are non-empty
// POST: Event resource fields are populated
func (e Event) WithResource(resourceType, resourceID string) Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithDescription sets the event description.
func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}

// WithRequest sets IP address and user agent from HTTP request.
func (e Event) WithRequest(ipAddress, userAgent string) Event {
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

// WithMetadata sets optional JSON metadata.
// PRE: metadata is valid JSON or empty
func (e Event) WithMetadata(metadata string) Event {
	e.Metadata = metadata
	return e
}

// Validate checks that the event can be stored.
func (e Event) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Category == "" {
		return ErrEmptyCategory
	}
	if e.Action == "" {
		return ErrEmptyAction
	}
	if e.Timestamp.IsZero() {
		return ErrMissingTime
	}
	return nil
}
