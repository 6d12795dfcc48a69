package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"licensedesk/internal/adapters/storage/selectioncache"
	"licensedesk/internal/adapters/storage/transfer"
	"licensedesk/internal/domain/selection"
)

// ErrOwnerRequired is returned when a slot operation has no desk owner.
var ErrOwnerRequired = errors.New("desk owner is required")

// ErrEmptySelection is returned when a hand-over carries no member ids.
var ErrEmptySelection = errors.New("selection has no member ids")

// SelectionPayloadDeps holds the stores behind the selection hand-over.
type SelectionPayloadDeps struct {
	Slots transfer.Store
	Cache selectioncache.Store
}

// ExecuteReadSelectionPayload reads the license batch slot for owner.
// PRE: owner is non-empty
// POST: Returns an empty payload when the slot is absent or unreadable as JSON
func ExecuteReadSelectionPayload(ctx context.Context, owner string, deps SelectionPayloadDeps) (selection.Payload, error) {
	if owner == "" {
		return selection.Payload{}, ErrOwnerRequired
	}
	raw, ok, err := deps.Slots.Get(ctx, owner, selection.SlotLicenseBatchOrder)
	if err != nil {
		return selection.Payload{}, fmt.Errorf("read selection slot: %w", err)
	}
	if !ok {
		return selection.ParsePayload(""), nil
	}
	p := selection.ParsePayload(raw)
	slog.Info("selection_event", "event", "selection_read", "owner", owner, "members", len(p.SelectedIDs), "club", p.ClubID())
	return p, nil
}

// ExecuteClearSelectionPayload deletes the license batch slot for owner.
// POST: The slot is absent; clearing an absent slot is not an error
func ExecuteClearSelectionPayload(ctx context.Context, owner string, deps SelectionPayloadDeps) error {
	if owner == "" {
		return ErrOwnerRequired
	}
	if err := deps.Slots.Delete(ctx, owner, selection.SlotLicenseBatchOrder); err != nil {
		return fmt.Errorf("clear selection slot: %w", err)
	}
	return nil
}

// WriteSelectionPayloadInput is a selection handed over by an originating screen.
type WriteSelectionPayloadInput struct {
	Owner   string
	Payload selection.Payload
}

// ExecuteWriteSelectionPayload stores a hand-over in the slot and the club cache.
// PRE: Owner is non-empty; Payload has at least one positive id
// POST: Slot holds the normalized payload; the club cache holds its ids when a club is set
func ExecuteWriteSelectionPayload(ctx context.Context, input WriteSelectionPayloadInput, deps SelectionPayloadDeps) (selection.Payload, error) {
	if input.Owner == "" {
		return selection.Payload{}, ErrOwnerRequired
	}
	p := input.Payload
	p.SelectedIDs = selection.NormalizeIDs(p.SelectedIDs)
	if len(p.SelectedIDs) == 0 {
		return selection.Payload{}, ErrEmptySelection
	}
	if p.SelectedClubID != nil && *p.SelectedClubID <= 0 {
		p.SelectedClubID = nil
	}
	if p.Year != nil && *p.Year <= selection.MinYear {
		p.Year = nil
	}

	raw, err := p.Encode()
	if err != nil {
		return selection.Payload{}, fmt.Errorf("encode selection: %w", err)
	}
	if err := deps.Slots.Put(ctx, input.Owner, selection.SlotLicenseBatchOrder, raw); err != nil {
		return selection.Payload{}, fmt.Errorf("write selection slot: %w", err)
	}
	if club := p.ClubID(); club > 0 && deps.Cache != nil {
		if err := deps.Cache.Put(ctx, input.Owner, club, p.SelectedIDs); err != nil {
			return selection.Payload{}, fmt.Errorf("write selection cache: %w", err)
		}
	}

	slog.Info("selection_event", "event", "selection_written", "owner", input.Owner, "members", len(p.SelectedIDs), "club", p.ClubID())
	return p, nil
}
