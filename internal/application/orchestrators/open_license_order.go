package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"licensedesk/internal/adapters/federation"
	"licensedesk/internal/domain/licenseorder"
	"licensedesk/internal/domain/member"
)

// RosterErrorText is the notice shown when the club roster cannot be loaded.
const RosterErrorText = "Could not load the club roster. Try again."

// ClubDirectory reads club data from the backend.
type ClubDirectory interface {
	ListClubMembers(ctx context.Context, clubID int) ([]member.Member, error)
	GetClub(ctx context.Context, clubID int) (federation.Club, error)
}

// OpenLicenseOrderInput identifies who opens the workflow.
type OpenLicenseOrderInput struct {
	Owner string
}

// OpenLicenseOrderDeps holds dependencies for OpenLicenseOrder.
type OpenLicenseOrderDeps struct {
	Clubs      ClubDirectory
	Registry   *WorkflowRegistry
	Workflow   WorkflowDeps
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteOpenLicenseOrder hydrates a workflow from the owner's transfer slot.
// PRE: Owner is non-empty
// POST: The workflow is registered and has run its first eligibility refresh
// POST: A missing club or empty slot yields a workflow in the "no valid selection" state
func ExecuteOpenLicenseOrder(ctx context.Context, input OpenLicenseOrderInput, deps OpenLicenseOrderDeps) (*Workflow, error) {
	if input.Owner == "" {
		return nil, ErrOwnerRequired
	}
	payload, err := ExecuteReadSelectionPayload(ctx, input.Owner, deps.Workflow.Selection)
	if err != nil {
		return nil, err
	}

	rec := licenseorder.NewReconciler(payload, deps.Now().Year())
	var club federation.Club
	var rosterErr error
	if clubID := payload.ClubID(); clubID > 0 {
		club.ID = clubID
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			roster, err := deps.Clubs.ListClubMembers(gctx, clubID)
			if err != nil {
				return fmt.Errorf("list club members: %w", err)
			}
			rec.SetRoster(roster)
			return nil
		})
		g.Go(func() error {
			c, err := deps.Clubs.GetClub(gctx, clubID)
			if err != nil {
				// The club name only decorates the page and the email.
				slog.Warn("license_order_event", "event", "club_lookup_failed", "club", clubID, "error", err)
				return nil
			}
			club = c
			return nil
		})
		rosterErr = g.Wait()
		if errors.Is(rosterErr, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	wdeps := deps.Workflow
	if wdeps.Clubs == nil {
		wdeps.Clubs = deps.Clubs
	}
	w := NewWorkflow(deps.GenerateID(), input.Owner, rec, club, wdeps)
	if rosterErr != nil {
		w.markRosterFailed()
		slog.Warn("license_order_event", "event", "roster_failed", "workflow", w.ID, "club", club.ID, "error", rosterErr)
	}
	w.refreshEligibility(ctx)
	deps.Registry.Put(w)

	slog.Info("license_order_event", "event", "workflow_opened", "workflow", w.ID, "owner", input.Owner,
		"club", payload.ClubID(), "members", len(payload.SelectedIDs))
	return w, nil
}
