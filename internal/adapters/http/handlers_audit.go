package web

import (
	"net/http"
	"time"

	auditStore "licensedesk/internal/adapters/storage/audit"
	"licensedesk/internal/application/listutil"
	"licensedesk/internal/application/projections"
	"licensedesk/internal/domain/audit"
)

// handleAuditList returns recent audit events.
// Query params: category, action, owner, resource_id, since, limit
func handleAuditList(w http.ResponseWriter, r *http.Request) {
	if app.Audit == nil || app.Audit.Store == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	var filter auditStore.Filter
	if v := q.Get("category"); v != "" {
		c := audit.Category(v)
		filter.Category = &c
	}
	if v := q.Get("action"); v != "" {
		a := audit.Action(v)
		filter.Action = &a
	}
	filter.Owner = listutil.OptionalString(q, "owner")
	filter.ResourceID = listutil.OptionalString(q, "resource_id")
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}
	limit := listutil.ParseLimit(q, projections.DefaultAuditLimit, 1000)

	events, err := projections.QueryListAuditEvents(r.Context(), app.Audit.Store, filter, limit)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
