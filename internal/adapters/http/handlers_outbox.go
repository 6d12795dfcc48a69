package web

import (
	"context"
	"errors"
	"net/http"

	outboxStore "licensedesk/internal/adapters/storage/outbox"
	"licensedesk/internal/application/listutil"
	"licensedesk/internal/application/orchestrators"
	"licensedesk/internal/domain/audit"
	"licensedesk/internal/domain/outbox"
)

// OutboxLister is the read side the outbox endpoints need.
type OutboxLister interface {
	ListPending(ctx context.Context, limit int) ([]outbox.Entry, error)
	ListFailed(ctx context.Context, limit int) ([]outbox.Entry, error)
}

// handleOutboxList lists failed entries, or pending ones with ?status=all.
func handleOutboxList(w http.ResponseWriter, r *http.Request) {
	if app.OutboxStore == nil {
		http.NotFound(w, r)
		return
	}
	limit := listutil.ParseLimit(r.URL.Query(), 50, 100)

	var entries []outbox.Entry
	var err error
	if r.URL.Query().Get("status") == "all" {
		entries, err = app.OutboxStore.ListPending(r.Context(), limit)
	} else {
		entries, err = app.OutboxStore.ListFailed(r.Context(), limit)
	}
	if err != nil {
		internalError(w, err)
		return
	}
	if entries == nil {
		entries = []outbox.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleOutboxAction handles POST /api/outbox/{id}/retry and /abandon.
func handleOutboxAction(w http.ResponseWriter, r *http.Request) {
	if app.Outbox == nil {
		http.NotFound(w, r)
		return
	}
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var entry outbox.Entry
	var err error
	var action audit.Action
	switch r.PathValue("action") {
	case "retry":
		action = audit.ActionRetry
		entry, err = app.Outbox.ProcessSingle(r.Context(), id)
	case "abandon":
		action = audit.ActionAbandon
		entry, err = app.Outbox.AbandonEntry(r.Context(), id)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown action")
		return
	}
	switch {
	case errors.Is(err, outboxStore.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrators.ErrEntryTerminal):
		writeJSONError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		recordAudit(r, audit.NewEvent(owner, audit.CategoryOutbox, action).
			WithResource("outbox_entry", entry.ID).
			WithDescription("Entry is now "+string(entry.Status)))
		writeJSON(w, http.StatusOK, entry)
	}
}
