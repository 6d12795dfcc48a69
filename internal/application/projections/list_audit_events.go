package projections

import (
	"context"

	auditStore "licensedesk/internal/adapters/storage/audit"
	"licensedesk/internal/domain/audit"
)

// DefaultAuditLimit applies when a listing asks for no or too many events.
const DefaultAuditLimit = 100

// QueryListAuditEvents returns the newest matching audit events.
// PRE: limit outside 1..1000 falls back to DefaultAuditLimit
// POST: Returns an empty, non-nil slice when nothing matches
func QueryListAuditEvents(ctx context.Context, store auditStore.Store, filter auditStore.Filter, limit int) ([]audit.Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = DefaultAuditLimit
	}
	events, err := store.List(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}
