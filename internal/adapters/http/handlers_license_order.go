package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"licensedesk/internal/application/orchestrators"
	"licensedesk/internal/application/projections"
	"licensedesk/internal/domain/audit"
	"licensedesk/internal/domain/licenseorder"
	"licensedesk/internal/domain/selection"
)

// maxSelectionBody bounds the hand-over request body.
const maxSelectionBody = 1 << 20

// errUnknownAction is returned for action segments the workflow does not have.
var errUnknownAction = errors.New("unknown license order action")

// actionInput carries the optional values some workflow actions take.
type actionInput struct {
	Year        string `json:"year"`
	LicenseType string `json:"license_type"`
}

// applyAction runs one named workflow action.
// PRE: wf is registered for the requesting owner
// POST: Returns errUnknownAction, a reconciler error, or the submission error
func applyAction(ctx context.Context, wf *orchestrators.Workflow, action string, in actionInput) error {
	switch action {
	case "year":
		wf.SetYear(ctx, in.Year)
	case "license-type":
		return wf.SelectLicenseType(in.LicenseType)
	case "remove-blocked":
		wf.RemoveBlocked(ctx)
	case "remove-duplicates":
		wf.RemoveDuplicates(ctx)
	case "reset":
		wf.Reset(ctx)
	case "retry":
		wf.Retry(ctx)
	case "dismiss":
		wf.Dismiss()
	case "submit":
		_, err := wf.Submit(ctx)
		return err
	default:
		return errUnknownAction
	}
	return nil
}

// actionStatus maps an action error to the JSON status code.
func actionStatus(err error) int {
	switch {
	case errors.Is(err, errUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, licenseorder.ErrUnknownLicenseType):
		return http.StatusBadRequest
	case errors.Is(err, orchestrators.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, licenseorder.ErrNoMembersRemain),
		errors.Is(err, licenseorder.ErrLicenseTypeRequired),
		errors.Is(err, licenseorder.ErrLicenseTypeBlocked),
		errors.Is(err, licenseorder.ErrYearRequired):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// handleLicenseOrderNew opens a workflow from the owner's transfer slot.
func handleLicenseOrderNew(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	wf, err := orchestrators.ExecuteOpenLicenseOrder(r.Context(), orchestrators.OpenLicenseOrderInput{Owner: owner}, openDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/license-orders/"+wf.ID, http.StatusSeeOther)
}

func handleLicenseOrderPage(w http.ResponseWriter, r *http.Request) {
	wf, ok := lookupWorkflow(w, r)
	if !ok {
		return
	}
	renderTemplate(w, r, "license_order.html", projections.QueryGetLicenseOrderView(wf.Snapshot()))
}

// handleLicenseOrderAction applies a form action and redirects back to the page.
// Errors other than an unknown action surface through the workflow notice.
func handleLicenseOrderAction(w http.ResponseWriter, r *http.Request) {
	wf, ok := lookupWorkflow(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := actionInput{Year: r.FormValue("year"), LicenseType: r.FormValue("license_type")}
	err := applyAction(r.Context(), wf, r.PathValue("action"), in)
	switch {
	case errors.Is(err, errUnknownAction):
		http.NotFound(w, r)
		return
	case errors.Is(err, licenseorder.ErrUnknownLicenseType):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/license-orders/"+wf.ID, http.StatusSeeOther)
}

// handleSelectionHandover stores a selection an originating screen hands over.
// Body: {"selectedIds": [...], "selectedClubId": n, "year": n}; values are coerced like the slot.
func handleSelectionHandover(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSelectionBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	p, err := orchestrators.ExecuteWriteSelectionPayload(r.Context(), orchestrators.WriteSelectionPayloadInput{
		Owner:   owner,
		Payload: selection.ParsePayload(string(body)),
	}, app.Selection)
	if errors.Is(err, orchestrators.ErrEmptySelection) {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	recordAudit(r, audit.NewEvent(owner, audit.CategorySelection, audit.ActionHandOver).
		WithResource("club", strconv.Itoa(p.ClubID())).
		WithDescription(fmt.Sprintf("Handed over %d members", len(p.SelectedIDs))))
	writeJSON(w, http.StatusCreated, map[string]any{
		"selectedIds":    p.SelectedIDs,
		"selectedClubId": p.SelectedClubID,
		"year":           p.Year,
		"next":           "/license-orders/new",
	})
}

func handleAPILicenseOrderOpen(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	wf, err := orchestrators.ExecuteOpenLicenseOrder(r.Context(), orchestrators.OpenLicenseOrderInput{Owner: owner}, openDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projections.QueryGetLicenseOrderView(wf.Snapshot()))
}

func handleAPILicenseOrderGet(w http.ResponseWriter, r *http.Request) {
	wf, ok := lookupWorkflow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projections.QueryGetLicenseOrderView(wf.Snapshot()))
}

// handleAPILicenseOrderAction is the JSON mirror of handleLicenseOrderAction.
// POST: 200 with the view on success; on failure the error text and the view
func handleAPILicenseOrderAction(w http.ResponseWriter, r *http.Request) {
	wf, ok := lookupWorkflow(w, r)
	if !ok {
		return
	}
	var in actionInput
	if err := strictDecode(r, &in); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	action := r.PathValue("action")
	if err := applyAction(r.Context(), wf, action, in); err != nil {
		status := actionStatus(err)
		if status == http.StatusBadGateway {
			slog.Warn("license_order_event", "event", "api_action_failed", "workflow", wf.ID, "action", action, "error", err)
		}
		writeJSON(w, status, map[string]any{
			"error": err.Error(),
			"view":  projections.QueryGetLicenseOrderView(wf.Snapshot()),
		})
		return
	}
	writeJSON(w, http.StatusOK, projections.QueryGetLicenseOrderView(wf.Snapshot()))
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if app.Ping != nil {
		if err := app.Ping(r.Context()); err != nil {
			slog.Error("healthz_failed", "error", err)
			writeJSONError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
