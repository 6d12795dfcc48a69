package outbox

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"licensedesk/internal/adapters/storage"
	domain "licensedesk/internal/domain/outbox"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return NewSQLiteStore(db)
}

// TestSQLiteStore_SaveAndList verifies entries move between pending and failed listings.
func TestSQLiteStore_SaveAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	a := domain.NewEntry("a", domain.ActionOrderConfirmationEmail, `{"club":1}`, created)
	b := domain.NewEntry("b", domain.ActionOrderConfirmationEmail, `{"club":2}`, created.Add(time.Minute))
	for _, e := range []domain.Entry{b, a} {
		if err := s.Save(ctx, e); err != nil {
			t.Fatalf("Save(%s): %v", e.ID, err)
		}
	}

	pending, err := s.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "a" {
		t.Fatalf("ListPending = %+v, want a then b", pending)
	}

	a.MaxAttempts = 1
	a.MarkAttempt(created.Add(time.Hour))
	a.MarkFailed(errors.New("rejected"))
	if err := s.Save(ctx, a); err != nil {
		t.Fatalf("Save(a failed): %v", err)
	}

	failed, err := s.ListFailed(ctx, 10)
	if err != nil {
		t.Fatalf("ListFailed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "a" || failed[0].ErrorMessage != "rejected" {
		t.Fatalf("ListFailed = %+v", failed)
	}
	if !failed[0].LastAttemptedAt.Equal(created.Add(time.Hour)) {
		t.Errorf("LastAttemptedAt = %v", failed[0].LastAttemptedAt)
	}

	got, err := s.GetByID(ctx, "b")
	if err != nil || got.Payload != `{"club":2}` || !got.CreatedAt.Equal(created.Add(time.Minute)) {
		t.Errorf("GetByID(b) = %+v, %v", got, err)
	}
	if _, err := s.GetByID(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_PurgeSettled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	cutoff := old.Add(24 * time.Hour)

	done := domain.NewEntry("done", domain.ActionOrderConfirmationEmail, "{}", old)
	done.MarkSuccess("msg-1")
	abandoned := domain.NewEntry("abandoned", domain.ActionOrderConfirmationEmail, "{}", old)
	abandoned.MarkAbandoned()
	failed := domain.NewEntry("failed", domain.ActionOrderConfirmationEmail, "{}", old)
	failed.MaxAttempts = 1
	failed.MarkAttempt(old)
	failed.MarkFailed(errors.New("bounced"))
	pending := domain.NewEntry("pending", domain.ActionOrderConfirmationEmail, "{}", old)
	recent := domain.NewEntry("recent", domain.ActionOrderConfirmationEmail, "{}", cutoff.Add(time.Hour))
	recent.MarkSuccess("msg-2")

	for _, e := range []domain.Entry{done, abandoned, failed, pending, recent} {
		if err := s.Save(ctx, e); err != nil {
			t.Fatalf("Save(%s): %v", e.ID, err)
		}
	}

	n, err := s.PurgeSettled(ctx, cutoff)
	if err != nil || n != 2 {
		t.Fatalf("PurgeSettled = %d, %v; want 2", n, err)
	}
	for _, id := range []string{"failed", "pending", "recent"} {
		if _, err := s.GetByID(ctx, id); err != nil {
			t.Errorf("%s purged: %v", id, err)
		}
	}
	if _, err := s.GetByID(ctx, "done"); !errors.Is(err, ErrNotFound) {
		t.Errorf("done entry kept: %v", err)
	}
}

func TestSQLiteStore_ListDueSkipsBackingOffEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		e := domain.NewEntry(string(rune('a'+i)), domain.ActionOrderConfirmationEmail, "{}", now.Add(time.Duration(i)*time.Second))
		e.MarkAttempt(now)
		e.MarkFailed(errors.New("bounced"))
		e.ScheduleRetry(now, 30*time.Second, time.Hour)
		if err := s.Save(ctx, e); err != nil {
			t.Fatalf("Save(%s): %v", e.ID, err)
		}
		ids = append(ids, e.ID)
	}
	fresh := domain.NewEntry("fresh", domain.ActionOrderConfirmationEmail, "{}", now.Add(time.Minute))
	if err := s.Save(ctx, fresh); err != nil {
		t.Fatalf("Save(fresh): %v", err)
	}

	due, err := s.ListDue(ctx, now.Add(10*time.Second), 2)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 1 || due[0].ID != "fresh" {
		t.Fatalf("ListDue inside backoff = %+v, want only fresh", due)
	}

	due, err = s.ListDue(ctx, now.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 4 || due[0].ID != ids[0] || due[3].ID != "fresh" {
		t.Fatalf("ListDue after backoff = %+v, want a b c fresh", due)
	}
	if !due[0].NextAttemptAt.Equal(now.Add(time.Minute)) {
		t.Errorf("NextAttemptAt = %v, want %v", due[0].NextAttemptAt, now.Add(time.Minute))
	}

	pending, _ := s.ListPending(ctx, 10)
	if len(pending) != 4 {
		t.Errorf("ListPending = %d entries, want all 4", len(pending))
	}
}

func TestInitDB_AddsNextAttemptColumnToOldOutbox(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE outbox (
		id TEXT PRIMARY KEY, action_type TEXT NOT NULL, payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending', attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5, last_attempted_at TEXT, created_at TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '', error_message TEXT NOT NULL DEFAULT '')`)
	if err != nil {
		t.Fatalf("create old table: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := storage.InitDB(db); err != nil {
			t.Fatalf("InitDB run %d: %v", i+1, err)
		}
	}
	s := NewSQLiteStore(db)
	ctx := context.Background()
	if err := s.Save(ctx, domain.NewEntry("a", domain.ActionOrderConfirmationEmail, "{}", time.Now())); err != nil {
		t.Fatalf("Save after migration: %v", err)
	}
	if due, err := s.ListDue(ctx, time.Now().Add(time.Second), 10); err != nil || len(due) != 1 {
		t.Errorf("ListDue = %d, %v", len(due), err)
	}
}
