package audit

import (
	"context"
	"fmt"
	"time"

	"licensedesk/internal/adapters/storage"
	domain "licensedesk/internal/domain/audit"
)

const (
	// dateLayout is fixed width so timestamps sort as text.
	dateLayout    = "2006-01-02T15:04:05.000000000Z07:00"
	selectColumns = `SELECT id, timestamp, category, action, severity, owner, resource_type, resource_id, description, ip_address, user_agent, metadata FROM audit_event`
)

// SQLiteStore implements the audit Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new audit event store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists an audit event.
func (s *SQLiteStore) Save(ctx context.Context, event domain.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_event (id, timestamp, category, action, severity, owner, resource_type, resource_id, description, ip_address, user_agent, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UTC().Format(dateLayout), string(event.Category), string(event.Action),
		string(event.Severity), event.Owner, event.ResourceType, event.ResourceID,
		event.Description, event.IPAddress, event.UserAgent, event.Metadata)
	if err != nil {
		return fmt.Errorf("save audit event %s: %w", event.ID, err)
	}
	return nil
}

// List returns audit events with optional filtering, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error) {
	query := selectColumns + " WHERE 1=1"
	args := []any{}

	if filter.Category != nil {
		query += " AND category = ?"
		args = append(args, string(*filter.Category))
	}
	if filter.Action != nil {
		query += " AND action = ?"
		args = append(args, string(*filter.Action))
	}
	if filter.Owner != nil {
		query += " AND owner = ?"
		args = append(args, *filter.Owner)
	}
	if filter.ResourceID != nil {
		query += " AND resource_id = ?"
		args = append(args, *filter.ResourceID)
	}
	if filter.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC().Format(dateLayout))
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var timestamp string
		if err := rows.Scan(&e.ID, &timestamp, &e.Category, &e.Action, &e.Severity, &e.Owner,
			&e.ResourceType, &e.ResourceID, &e.Description, &e.IPAddress, &e.UserAgent, &e.Metadata); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(dateLayout, timestamp)
		events = append(events, e)
	}
	return events, rows.Err()
}
