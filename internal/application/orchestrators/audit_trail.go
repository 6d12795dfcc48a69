package orchestrators

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	auditStore "licensedesk/internal/adapters/storage/audit"
	"licensedesk/internal/domain/audit"
)

// AuditTrail stamps and stores audit events.
// A nil *AuditTrail records nothing.
type AuditTrail struct {
	Store      auditStore.Store
	GenerateID func() string
	Now        func() time.Time
}

// Record stores e with a fresh id and timestamp.
// POST: Storage failures are logged, never returned; the audited action already happened
func (a *AuditTrail) Record(ctx context.Context, e audit.Event) {
	if a == nil || a.Store == nil {
		return
	}
	e.ID = a.GenerateID()
	e.Timestamp = a.Now()
	if err := a.Store.Save(context.WithoutCancel(ctx), e); err != nil {
		slog.Error("audit_event", "event", "save_failed", "category", e.Category, "action", e.Action, "error", err)
	}
}

// auditMetadata renders v as JSON metadata, or "" when it cannot be encoded.
func auditMetadata(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
