package selectioncache

import "context"

// Store holds the member ids an originating screen last selected for a club.
// The license order workflow deletes an entry once its batch is ordered, which
// tells the originating screen to drop its stale selection.
type Store interface {
	Get(ctx context.Context, owner string, clubID int) ([]int, error)
	Put(ctx context.Context, owner string, clubID int, memberIDs []int) error
	Delete(ctx context.Context, owner string, clubID int) error
}
