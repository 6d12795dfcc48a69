package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"licensedesk/internal/adapters/storage"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  storage.SQLDB
	now func() time.Time
}

// NewSQLiteStore creates a new transfer slot store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Get retrieves a slot value.
func (s *SQLiteStore) Get(ctx context.Context, owner, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM transfer_slot WHERE owner = ? AND slot_key = ?", owner, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get transfer slot %s: %w", key, err)
	}
	return value, true, nil
}

// Put upserts a slot value.
func (s *SQLiteStore) Put(ctx context.Context, owner, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfer_slot (owner, slot_key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner, slot_key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		owner, key, value, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put transfer slot %s: %w", key, err)
	}
	return nil
}

// Delete removes a slot; absent slots are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, owner, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM transfer_slot WHERE owner = ? AND slot_key = ?", owner, key); err != nil {
		return fmt.Errorf("delete transfer slot %s: %w", key, err)
	}
	return nil
}
