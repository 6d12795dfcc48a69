package selectioncache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"licensedesk/internal/adapters/storage"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new selection cache store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the cached ids for a club.
// POST: Returns an empty slice when nothing is cached
func (s *SQLiteStore) Get(ctx context.Context, owner string, clubID int) ([]int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT member_ids FROM selection_cache WHERE owner = ? AND club_id = ?", owner, clubID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get selection cache for club %d: %w", clubID, err)
	}
	var ids []int
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return []int{}, nil
	}
	return ids, nil
}

// Put replaces the cached ids for a club.
func (s *SQLiteStore) Put(ctx context.Context, owner string, clubID int, memberIDs []int) error {
	if memberIDs == nil {
		memberIDs = []int{}
	}
	raw, err := json.Marshal(memberIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO selection_cache (owner, club_id, member_ids, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner, club_id) DO UPDATE SET member_ids=excluded.member_ids, updated_at=excluded.updated_at`,
		owner, clubID, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put selection cache for club %d: %w", clubID, err)
	}
	return nil
}

// Delete removes the cached ids for a club; absent entries are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, owner string, clubID int) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM selection_cache WHERE owner = ? AND club_id = ?", owner, clubID); err != nil {
		return fmt.Errorf("delete selection cache for club %d: %w", clubID, err)
	}
	return nil
}
