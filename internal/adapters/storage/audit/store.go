package audit

import (
	"context"
	"time"

	domain "licensedesk/internal/domain/audit"
)

// Store persists the desk's audit trail.
type Store interface {
	// Save appends one event.
	// PRE: event passes Validate
	Save(ctx context.Context, event domain.Event) error

	// List returns the newest events matching filter.
	// PRE: limit > 0
	// POST: Events are ordered newest first; ties break on id
	List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error)
}

// Filter narrows List. Nil fields match everything.
type Filter struct {
	Category   *domain.Category
	Action     *domain.Action
	Owner      *string
	ResourceID *string
	// Since keeps events at or after this instant.
	Since *time.Time
}

var _ Store = (*SQLiteStore)(nil)
