package transfer

import "context"

// Store persists short-lived cross-page transfer slots, scoped per desk owner.
// Slots live until explicitly deleted; they are not tied to a server session.
type Store interface {
	// Get returns the slot value and whether the slot exists.
	// PRE: owner and key are non-empty
	// POST: Returns ("", false, nil) when the slot is absent
	Get(ctx context.Context, owner, key string) (string, bool, error)

	// Put creates or replaces a slot value.
	// PRE: owner and key are non-empty
	// POST: The slot holds value
	Put(ctx context.Context, owner, key, value string) error

	// Delete removes a slot.
	// PRE: owner and key are non-empty
	// POST: The slot is absent; deleting an absent slot is not an error
	Delete(ctx context.Context, owner, key string) error
}
