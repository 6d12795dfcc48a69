package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"licensedesk/internal/adapters/federation"
	"licensedesk/internal/domain/audit"
	"licensedesk/internal/domain/licenseorder"
	"licensedesk/internal/domain/licensing"
	"licensedesk/internal/domain/member"
)

// EligibilityErrorText is the generic notice shown when the eligibility query fails.
const EligibilityErrorText = "Could not load license eligibility. Try again."

// ErrSubmissionInFlight is returned when a batch order is already being submitted.
var ErrSubmissionInFlight = errors.New("a batch order submission is already in progress")

// EligibilityQuerier asks the backend which license types a selection may order.
type EligibilityQuerier interface {
	QueryEligibility(ctx context.Context, req licensing.EligibilityRequest) (licensing.EligibilityResult, error)
}

// BatchOrderCreator creates one atomic batch order.
type BatchOrderCreator interface {
	CreateBatchOrder(ctx context.Context, req licensing.BatchOrderRequest) (licensing.BatchOrderResult, error)
}

// WorkflowDeps holds what a license order workflow needs after it is opened.
type WorkflowDeps struct {
	Eligibility EligibilityQuerier
	Orders      BatchOrderCreator
	Selection   SelectionPayloadDeps
	// Clubs reloads the roster on Retry; nil keeps the roster seeded at open.
	Clubs ClubDirectory
	// Confirmations is optional; nil skips the confirmation email.
	Confirmations *ConfirmationQueue
	// Audit is optional; nil records nothing.
	Audit *AuditTrail
	Now   func() time.Time
}

// Workflow is one open license order page: a reconciler, its eligibility poller
// and the submission guard.
// INVARIANT: mu is never held across a backend call
type Workflow struct {
	ID    string
	Owner string

	mu           sync.Mutex
	rec          *licenseorder.Reconciler
	poller       *licenseorder.Poller
	club         federation.Club
	submitting   bool
	rosterFailed bool // last roster load failed
	lastOrder    *licensing.BatchOrderResult
	touched      time.Time

	deps    WorkflowDeps
	printer *message.Printer
}

// NewWorkflow wraps a seeded reconciler.
// PRE: rec came from licenseorder.NewReconciler with the roster already set
// POST: The poller is idle and has observed no key, so the first Refresh queries
func NewWorkflow(id, owner string, rec *licenseorder.Reconciler, club federation.Club, deps WorkflowDeps) *Workflow {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Workflow{
		ID:      id,
		Owner:   owner,
		rec:     rec,
		poller:  licenseorder.NewPoller(),
		club:    club,
		touched: deps.Now(),
		deps:    deps,
		printer: message.NewPrinter(language.English),
	}
}

// WorkflowSnapshot is a consistent copy of a workflow's derived state.
type WorkflowSnapshot struct {
	ID                 string
	Club               federation.Club
	ClubID             int
	YearInput          string
	Original           []int
	Working            []int
	ValidIDs           []int
	Roster             []member.Member
	Eligible           []licensing.EligibleLicenseType
	Ineligible         []licensing.IneligibleLicenseType
	SelectedTypeKey    string
	SelectedIsEligible bool
	Blocked            licenseorder.BlockedIndex
	DuplicateIDs       []int
	Notice             licenseorder.Notice
	PollState          licenseorder.PollState
	RosterFailed       bool
	Submitting         bool
	LastOrder          *licensing.BatchOrderResult
}

// Snapshot recomputes every derived view under the lock.
func (w *Workflow) Snapshot() WorkflowSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	var last *licensing.BatchOrderResult
	if w.lastOrder != nil {
		cp := *w.lastOrder
		last = &cp
	}
	return WorkflowSnapshot{
		ID:                 w.ID,
		Club:               w.club,
		ClubID:             w.rec.ClubID(),
		YearInput:          w.rec.YearInput(),
		Original:           w.rec.Original(),
		Working:            w.rec.Working(),
		ValidIDs:           w.rec.ValidSelectedIDs(),
		Roster:             w.rec.Roster(),
		Eligible:           w.rec.Eligible(),
		Ineligible:         w.rec.Ineligible(),
		SelectedTypeKey:    w.rec.SelectedTypeKey(),
		SelectedIsEligible: w.rec.SelectedIsEligible(),
		Blocked:            w.rec.BlockedIndex(),
		DuplicateIDs:       w.rec.DuplicateIDs(),
		Notice:             w.rec.Notice(),
		PollState:          w.poller.State(),
		RosterFailed:       w.rosterFailed,
		Submitting:         w.submitting,
		LastOrder:          last,
	}
}

// Refresh re-queries eligibility when the query key changed since the last call.
// A roster that failed to load is fetched again first.
// POST: A key that cannot be queried clears both lists and idles the poller
// POST: A response is applied only if no newer query or idle happened meanwhile
func (w *Workflow) Refresh(ctx context.Context) {
	w.mu.Lock()
	failed := w.rosterFailed
	w.mu.Unlock()
	if failed {
		w.reloadRoster(ctx)
	}
	w.refreshEligibility(ctx)
}

func (w *Workflow) refreshEligibility(ctx context.Context) {
	w.mu.Lock()
	key := w.rec.QueryKey()
	if !w.poller.Changed(key) {
		w.mu.Unlock()
		return
	}
	if !key.Ready() {
		w.poller.Idle(key)
		w.rec.ClearEligibility()
		w.mu.Unlock()
		return
	}
	token := w.poller.Begin(key)
	w.mu.Unlock()

	res, err := w.deps.Eligibility.QueryEligibility(context.WithoutCancel(ctx), key.Request())

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.poller.Settle(token, err) {
		slog.Debug("eligibility_event", "event", "stale_response_dropped", "workflow", w.ID, "token", token)
		return
	}
	if err != nil {
		w.rec.ClearEligibility()
		w.rec.SetNotice(licenseorder.NoticeError, EligibilityErrorText)
		slog.Warn("eligibility_event", "event", "query_failed", "workflow", w.ID, "club", key.Club, "error", err)
		return
	}
	w.rec.SetEligibility(res)
	if n := w.rec.Notice(); n.Kind == licenseorder.NoticeError && n.Text == EligibilityErrorText {
		w.rec.ClearNotice()
	}
	slog.Info("eligibility_event", "event", "query_settled", "workflow", w.ID, "club", key.Club,
		"members", len(key.MemberIDs), "eligible", len(res.Eligible), "ineligible", len(res.Ineligible))
}

// Retry reloads the club roster and re-issues the eligibility query.
// POST: Roster drift since the last load is reflected in ValidSelectedIDs
// POST: A roster that still fails keeps RosterErrorText as the notice
func (w *Workflow) Retry(ctx context.Context) {
	w.mu.Lock()
	w.poller.Forget()
	w.rec.ClearNotice()
	w.mu.Unlock()
	w.reloadRoster(ctx)
	w.refreshEligibility(ctx)
}

// markRosterFailed flags a roster load failure seen before the workflow was shared.
func (w *Workflow) markRosterFailed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rosterFailed = true
	w.rec.SetNotice(licenseorder.NoticeError, RosterErrorText)
}

// reloadRoster fetches the roster for the payload club outside the lock.
// A failed load keeps the previous roster.
func (w *Workflow) reloadRoster(ctx context.Context) {
	w.mu.Lock()
	clubID := w.rec.ClubID()
	w.mu.Unlock()
	if clubID <= 0 || w.deps.Clubs == nil {
		return
	}

	roster, err := w.deps.Clubs.ListClubMembers(context.WithoutCancel(ctx), clubID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.rosterFailed = true
		w.rec.SetNotice(licenseorder.NoticeError, RosterErrorText)
		slog.Warn("license_order_event", "event", "roster_failed", "workflow", w.ID, "club", clubID, "error", err)
		return
	}
	w.rosterFailed = false
	w.rec.SetRoster(roster)
	if n := w.rec.Notice(); n.Kind == licenseorder.NoticeError && n.Text == RosterErrorText {
		w.rec.ClearNotice()
	}
	slog.Info("license_order_event", "event", "roster_loaded", "workflow", w.ID, "club", clubID, "members", len(roster))
}

// SetYear stores a new year entry and refreshes eligibility.
func (w *Workflow) SetYear(ctx context.Context, year string) {
	w.mu.Lock()
	w.rec.SetYearInput(year)
	w.touch()
	w.mu.Unlock()
	w.Refresh(ctx)
}

// SelectLicenseType changes the selected license type.
// POST: Does not query; the eligibility key does not depend on the type
func (w *Workflow) SelectLicenseType(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.rec.SelectLicenseType(key)
}

// RemoveBlocked drops every member blocked for the selected type and refreshes.
func (w *Workflow) RemoveBlocked(ctx context.Context) int {
	w.mu.Lock()
	n := w.rec.RemoveBlockedMembers()
	w.touch()
	w.mu.Unlock()
	slog.Info("selection_event", "event", "blocked_removed", "workflow", w.ID, "removed", n)
	w.Refresh(ctx)
	return n
}

// RemoveDuplicates drops members with a pending or active duplicate and refreshes.
func (w *Workflow) RemoveDuplicates(ctx context.Context) int {
	w.mu.Lock()
	n := w.rec.RemoveDuplicateMembers()
	w.touch()
	w.mu.Unlock()
	slog.Info("selection_event", "event", "duplicates_removed", "workflow", w.ID, "removed", n)
	w.Refresh(ctx)
	return n
}

// Reset restores the original selection and refreshes.
func (w *Workflow) Reset(ctx context.Context) {
	w.mu.Lock()
	w.rec.ResetSelection()
	w.touch()
	w.mu.Unlock()
	w.Refresh(ctx)
}

// Dismiss clears the current notice.
func (w *Workflow) Dismiss() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rec.ClearNotice()
}

// Submit creates the batch order for the reconciled selection.
// PRE: none; failing preconditions are returned without calling the backend
// POST: On success the selection, transfer slot and club cache entry are gone
// POST: On failure the selection is unchanged and the notice holds the error text
func (w *Workflow) Submit(ctx context.Context) (licensing.BatchOrderResult, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return licensing.BatchOrderResult{}, ErrSubmissionInFlight
	}
	req, err := w.rec.PrepareBatchOrder()
	if err != nil {
		w.rec.SetNotice(licenseorder.NoticeError, err.Error())
		w.mu.Unlock()
		return licensing.BatchOrderResult{}, err
	}
	typeName := ""
	if lt, ok := licensing.FindEligible(w.rec.Eligible(), w.rec.SelectedTypeKey()); ok {
		typeName = lt.Name
	}
	roster := member.Index(w.rec.Roster())
	club := w.club
	w.submitting = true
	w.touch()
	w.mu.Unlock()

	res, err := w.deps.Orders.CreateBatchOrder(context.WithoutCancel(ctx), req)

	w.mu.Lock()
	w.submitting = false
	if err != nil {
		w.rec.SetNotice(licenseorder.NoticeError, err.Error())
		w.mu.Unlock()
		slog.Warn("license_order_event", "event", "batch_rejected", "workflow", w.ID, "club", req.Club, "error", err)
		w.deps.Audit.Record(ctx, audit.NewEvent(w.Owner, audit.CategoryLicenseOrder, audit.ActionReject).
			WithSeverity(audit.SeverityWarning).
			WithResource("workflow", w.ID).
			WithDescription(err.Error()).
			WithMetadata(auditMetadata(req)))
		return licensing.BatchOrderResult{}, err
	}
	w.rec.MarkSubmitted()
	w.rec.SetNotice(licenseorder.NoticeSuccess,
		w.printer.Sprintf("Created license orders for %d members.", len(req.MemberIDs)))
	w.lastOrder = &res
	w.mu.Unlock()

	slog.Info("license_order_event", "event", "batch_submitted", "workflow", w.ID, "club", req.Club,
		"license_type", req.LicenseType, "members", len(req.MemberIDs), "year", req.Year, "order_id", res.ID)

	w.deps.Audit.Record(ctx, audit.NewEvent(w.Owner, audit.CategoryLicenseOrder, audit.ActionSubmit).
		WithResource("workflow", w.ID).
		WithDescription(fmt.Sprintf("Batch order %d for club %d", res.ID, req.Club)).
		WithMetadata(auditMetadata(struct {
			licensing.BatchOrderRequest
			OrderID int64  `json:"order_id"`
			BatchID string `json:"batch_id,omitempty"`
		}{req, res.ID, res.BatchID})))

	w.cleanupAfterSubmit(ctx, req.Club)
	if w.deps.Confirmations != nil {
		names := make([]string, 0, len(req.MemberIDs))
		for _, id := range req.MemberIDs {
			m := roster[id]
			name := m.FullName()
			if name == "" {
				name = "#" + strconv.Itoa(id)
			}
			names = append(names, name)
		}
		if err := w.deps.Confirmations.Enqueue(ctx, ConfirmationInput{
			Club:        club,
			Order:       res,
			LicenseType: typeName,
			Year:        req.Year,
			Members:     names,
		}); err != nil {
			slog.Error("license_order_event", "event", "confirmation_enqueue_failed", "workflow", w.ID, "error", err)
		}
	}
	w.Refresh(ctx)
	return res, nil
}

// cleanupAfterSubmit drops the hand-over state the originating screen left behind.
// Failures are logged only; the order already exists.
func (w *Workflow) cleanupAfterSubmit(ctx context.Context, clubID int) {
	if w.deps.Selection.Cache != nil {
		if err := w.deps.Selection.Cache.Delete(ctx, w.Owner, clubID); err != nil {
			slog.Error("license_order_event", "event", "selection_cache_delete_failed", "workflow", w.ID, "error", err)
		}
	}
	if w.deps.Selection.Slots != nil {
		if err := ExecuteClearSelectionPayload(ctx, w.Owner, w.deps.Selection); err != nil {
			slog.Error("license_order_event", "event", "selection_slot_delete_failed", "workflow", w.ID, "error", err)
		}
	}
}

// LastTouched returns when the operator last changed the workflow.
func (w *Workflow) LastTouched() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.touched
}

// touch must be called with mu held.
func (w *Workflow) touch() {
	w.touched = w.deps.Now()
}
