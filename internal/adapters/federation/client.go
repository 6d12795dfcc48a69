package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"licensedesk/internal/domain/licensing"
	"licensedesk/internal/domain/member"
)

const (
	eligibilityPath = "/api/license-orders/eligibility/"
	batchPath       = "/api/license-orders/batch/"
	membersPath     = "/api/members/"
	clubsPath       = "/api/clubs/"

	// maxRosterPages stops a misbehaving backend from paging forever.
	maxRosterPages = 100
	maxBodyBytes   = 4 << 20
)

// Club is the subset of club data the desk needs.
type Club struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
}

// Client talks to the federation REST backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	tracer  trace.Tracer
}

// NewClient builds a backend client.
// PRE: baseURL is an absolute URL; tokens may be nil for an unauthenticated backend
// POST: A nil httpClient is replaced with one using timeout
func NewClient(baseURL string, tokens TokenSource, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
		tracer:  otel.Tracer("licensedesk/federation"),
	}
}

// QueryEligibility asks the backend which license types each member may order.
// PRE: req has a club, a year and at least one member id
// POST: Returns the backend partition; lists are never nil
func (c *Client) QueryEligibility(ctx context.Context, req licensing.EligibilityRequest) (licensing.EligibilityResult, error) {
	q := url.Values{}
	q.Set("club", strconv.Itoa(req.Club))
	q.Set("member_ids", joinIDs(req.MemberIDs))
	q.Set("year", strconv.Itoa(req.Year))

	var res licensing.EligibilityResult
	if err := c.do(ctx, "federation.eligibility", http.MethodGet, eligibilityPath+"?"+q.Encode(), nil, &res); err != nil {
		return licensing.EligibilityResult{}, err
	}
	if res.Eligible == nil {
		res.Eligible = []licensing.EligibleLicenseType{}
	}
	if res.Ineligible == nil {
		res.Ineligible = []licensing.IneligibleLicenseType{}
	}
	return res, nil
}

// CreateBatchOrder submits one atomic batch order.
// PRE: req passed the reconciler's submission preconditions
// POST: On non-2xx returns *APIError carrying the backend message
func (c *Client) CreateBatchOrder(ctx context.Context, req licensing.BatchOrderRequest) (licensing.BatchOrderResult, error) {
	var res licensing.BatchOrderResult
	if err := c.do(ctx, "federation.batch_order", http.MethodPost, batchPath, req, &res); err != nil {
		return licensing.BatchOrderResult{}, err
	}
	return res, nil
}

// ListClubMembers returns the full roster of a club.
// POST: Accepts a bare JSON array or a paginated {results, next} envelope
func (c *Client) ListClubMembers(ctx context.Context, clubID int) ([]member.Member, error) {
	next := membersPath + "?club=" + strconv.Itoa(clubID)
	var roster []member.Member
	for page := 0; next != "" && page < maxRosterPages; page++ {
		var raw json.RawMessage
		if err := c.do(ctx, "federation.members", http.MethodGet, next, nil, &raw); err != nil {
			return nil, err
		}
		members, nextURL, err := decodeRosterPage(raw)
		if err != nil {
			return nil, fmt.Errorf("decode roster page: %w", err)
		}
		roster = append(roster, members...)
		next = c.relative(nextURL)
	}
	if roster == nil {
		roster = []member.Member{}
	}
	return roster, nil
}

// GetClub fetches a club's name and contact address.
func (c *Client) GetClub(ctx context.Context, clubID int) (Club, error) {
	var club Club
	if err := c.do(ctx, "federation.club", http.MethodGet, clubsPath+strconv.Itoa(clubID)+"/", nil, &club); err != nil {
		return Club{}, err
	}
	return club, nil
}

func (c *Client) do(ctx context.Context, spanName, method, path string, body, out any) (err error) {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	ctx, span := c.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		data, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("marshal request: %w", mErr)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, tErr := c.tokens.Token()
		if tErr != nil {
			return fmt.Errorf("service token: %w", tErr)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("federation_request_failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	slog.Debug("federation_request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// relative turns an absolute next link on the same backend into a path.
func (c *Client) relative(next string) string {
	if next == "" {
		return ""
	}
	if strings.HasPrefix(next, c.baseURL) {
		return strings.TrimPrefix(next, c.baseURL)
	}
	if u, err := url.Parse(next); err == nil && u.IsAbs() {
		return u.RequestURI()
	}
	return next
}

func decodeRosterPage(raw json.RawMessage) ([]member.Member, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var members []member.Member
		if err := json.Unmarshal(trimmed, &members); err != nil {
			return nil, "", err
		}
		return members, "", nil
	}
	var page struct {
		Results []member.Member `json:"results"`
		Next    *string         `json:"next"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, "", err
	}
	next := ""
	if page.Next != nil {
		next = *page.Next
	}
	return page.Results, next, nil
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
