package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"licensedesk/internal/adapters/http/middleware"
	"licensedesk/internal/application/orchestrators"
	"licensedesk/internal/domain/audit"
)

// Deps holds everything the HTTP layer needs.
type Deps struct {
	Selection orchestrators.SelectionPayloadDeps
	Clubs     orchestrators.ClubDirectory
	Workflows *orchestrators.WorkflowRegistry
	Workflow  orchestrators.WorkflowDeps
	// Outbox is optional; nil disables the outbox admin endpoints.
	Outbox *orchestrators.OutboxProcessor
	// OutboxStore backs the outbox listing.
	OutboxStore OutboxLister
	// Audit is optional; nil disables recording and GET /api/audit.
	Audit *orchestrators.AuditTrail
	// Ping reports storage health for /healthz.
	Ping func(ctx context.Context) error

	CSRFKey        []byte
	TrustedOrigins []string
	SecureCookies  bool
	SlowRequest    time.Duration
}

// Global dependencies (set by NewMux)
var app *Deps

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 20

// timeNow is a variable for testability.
var timeNow = time.Now

// NewMux wires HTTP handlers for the desk.
// PRE: d.CSRFKey is 32 bytes
func NewMux(d Deps) http.Handler {
	if d.Workflow.Audit == nil {
		d.Workflow.Audit = d.Audit
	}
	app = &d
	middleware.SecureCookies = d.SecureCookies

	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Applied inside out: Timing -> RateLimit -> DeskOwner -> CSRF -> SecurityHeaders -> mux
	return middleware.Chain(newRouter(),
		middleware.SecurityHeaders,
		middleware.CSRF(d.CSRFKey, d.TrustedOrigins),
		middleware.DeskOwner,
		middleware.RateLimit(limiter),
		middleware.Timing(d.SlowRequest),
	)
}

func newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	registerRoutes(mux)
	return mux
}

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireOwner returns the desk owner or writes a 400.
func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		http.Error(w, "missing desk identity", http.StatusBadRequest)
		return "", false
	}
	return owner, true
}

// lookupWorkflow resolves {id} for the current owner or writes a 404.
func lookupWorkflow(w http.ResponseWriter, r *http.Request) (*orchestrators.Workflow, bool) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return nil, false
	}
	wf, ok := app.Workflows.Get(r.PathValue("id"), owner)
	if !ok {
		http.Error(w, "license order not found or expired", http.StatusNotFound)
		return nil, false
	}
	return wf, true
}

// recordAudit stamps e with the request origin and stores it.
func recordAudit(r *http.Request, e audit.Event) {
	app.Audit.Record(r.Context(), e.WithRequest(clientIP(r), r.UserAgent()))
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func openDeps() orchestrators.OpenLicenseOrderDeps {
	return orchestrators.OpenLicenseOrderDeps{
		Clubs:      app.Clubs,
		Registry:   app.Workflows,
		Workflow:   app.Workflow,
		GenerateID: generateID,
		Now:        timeNow,
	}
}
