package outbox

import (
	"context"
	"time"

	domain "licensedesk/internal/domain/outbox"
)

// Store persists outbox entries between delivery attempts.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or an error if not found
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry (insert or update).
	// PRE: entry has been validated
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns entries still awaiting delivery (pending or retrying).
	// PRE: limit > 0
	// POST: Returns up to limit entries, oldest first
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListDue returns pending or retrying entries whose next attempt is at or before now.
	// PRE: limit > 0
	// POST: Returns up to limit entries, oldest first; entries still backing off are skipped
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)

	// ListFailed returns entries that exhausted their attempts, newest attempt first.
	ListFailed(ctx context.Context, limit int) ([]domain.Entry, error)

	// PurgeSettled deletes done and abandoned entries created before cutoff.
	// POST: Returns the number of deleted entries; pending and failed entries are kept
	PurgeSettled(ctx context.Context, cutoff time.Time) (int64, error)
}
