package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	outboxStore "licensedesk/internal/adapters/storage/outbox"
	domain "licensedesk/internal/domain/outbox"
)

// ActionExecutor executes a specific type of external action.
type ActionExecutor interface {
	// Execute runs the external action with the given payload.
	// Returns the external ID (e.g., provider message id) and any error.
	Execute(ctx context.Context, payload string) (string, error)
}

// OutboxProcessor delivers pending outbox entries with exponential backoff.
type OutboxProcessor struct {
	store     outboxStore.Store
	executors map[string]ActionExecutor
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	retention time.Duration
	now       func() time.Time
}

// NewOutboxProcessor creates a new outbox processor.
func NewOutboxProcessor(store outboxStore.Store, executors map[string]ActionExecutor) *OutboxProcessor {
	return &OutboxProcessor{
		store:     store,
		executors: executors,
		baseDelay: 30 * time.Second,
		maxDelay:  time.Hour,
		batchSize: 10,
		now:       time.Now,
	}
}

// WithRetention makes PurgeSettled drop settled entries older than d.
// Zero keeps them forever.
func (p *OutboxProcessor) WithRetention(d time.Duration) *OutboxProcessor {
	p.retention = d
	return p
}

// ProcessPending attempts the oldest entries whose backoff has elapsed.
// PRE: Context is valid
// POST: Attempted entries are saved with their new status
// POST: Entries still backing off never take a batch slot from due ones
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	entries, err := p.store.ListDue(ctx, p.now(), p.batchSize)
	if err != nil {
		return fmt.Errorf("list pending outbox entries: %w", err)
	}
	for _, entry := range entries {
		if err := p.processEntry(ctx, entry); err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err)
		}
	}
	return nil
}

func (p *OutboxProcessor) processEntry(ctx context.Context, entry domain.Entry) error {
	now := p.now()
	if !entry.Due(now, p.baseDelay, p.maxDelay) {
		return nil
	}

	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.MarkAbandoned()
		entry.ErrorMessage = "no executor registered for action type: " + entry.ActionType
		return p.store.Save(ctx, entry)
	}

	entry.MarkAttempt(now)
	externalID, err := executor.Execute(ctx, entry.Payload)
	if err != nil {
		entry.MarkFailed(err)
		entry.ScheduleRetry(now, p.baseDelay, p.maxDelay)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "status", entry.Status, "error", err)
	} else {
		entry.MarkSuccess(externalID)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	}
	return p.store.Save(ctx, entry)
}

// ErrEntryTerminal is returned when retrying an entry that is done or abandoned.
var ErrEntryTerminal = errors.New("outbox entry is in a terminal state")

// ProcessSingle attempts one entry immediately, ignoring backoff.
// PRE: entryID is non-empty
// POST: Entry is attempted and saved; failed entries get one more attempt, done and abandoned ones are rejected
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.Status == domain.StatusDone || entry.Status == domain.StatusAbandoned {
		return entry, fmt.Errorf("%w: %s", ErrEntryTerminal, entryID)
	}
	executor, ok := p.executors[entry.ActionType]
	if !ok {
		return entry, fmt.Errorf("no executor registered for action type: %s", entry.ActionType)
	}

	now := p.now()
	entry.MarkAttempt(now)
	externalID, err := executor.Execute(ctx, entry.Payload)
	if err != nil {
		entry.MarkFailed(err)
		entry.ScheduleRetry(now, p.baseDelay, p.maxDelay)
	} else {
		entry.MarkSuccess(externalID)
	}
	if err := p.store.Save(ctx, entry); err != nil {
		return entry, err
	}
	slog.Info("outbox_manual_retry", "entry_id", entry.ID, "status", entry.Status, "attempt", entry.Attempts)
	return entry, nil
}

// AbandonEntry marks an entry as abandoned.
// PRE: entryID is non-empty
// POST: Entry status set to abandoned
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get outbox entry: %w", err)
	}
	entry.MarkAbandoned()
	if err := p.store.Save(ctx, entry); err != nil {
		return entry, err
	}
	slog.Info("outbox_abandoned", "entry_id", entry.ID)
	return entry, nil
}

// PurgeSettled deletes done and abandoned entries past the retention window.
// POST: Failed entries stay until an operator retries or abandons them
func (p *OutboxProcessor) PurgeSettled(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	n, err := p.store.PurgeSettled(ctx, p.now().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("outbox_purged", "entries", n, "retention", p.retention)
	}
	return n, nil
}

// StartBackgroundWorker periodically delivers pending entries and purges settled ones until ctx is done.
func StartBackgroundWorker(ctx context.Context, processor *OutboxProcessor, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				if err := processor.ProcessPending(runCtx); err != nil {
					slog.Error("outbox_background_process_failed", "error", err)
				}
				if _, err := processor.PurgeSettled(runCtx); err != nil {
					slog.Error("outbox_purge_failed", "error", err)
				}
				cancel()
			case <-ctx.Done():
				slog.Info("outbox_background_worker_stopped")
				return
			}
		}
	}()
}
