package licenseorder

import (
	"errors"
	"strconv"
	"strings"

	"licensedesk/internal/domain/licensing"
	"licensedesk/internal/domain/member"
	"licensedesk/internal/domain/selection"
)

// Notice kinds shown above the workflow.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// ErrUnknownLicenseType is returned when selecting a type that is in neither list.
var ErrUnknownLicenseType = errors.New("license type is not offered for this selection")

// Notice is the single dismissible message the workflow shows.
type Notice struct {
	Kind string
	Text string
}

// IsZero reports whether no notice is set.
func (n Notice) IsZero() bool {
	return n.Text == ""
}

// Reconciler owns the working selection for one license order workflow and
// recomputes every derived view from its source state on demand.
// INVARIANT: working is always a subset of original
// INVARIANT: no method performs I/O
type Reconciler struct {
	original   []int
	working    []int
	clubID     int
	yearInput  string
	roster     []member.Member
	eligible   []licensing.EligibleLicenseType
	ineligible []licensing.IneligibleLicenseType
	typeKey    string
	notice     Notice
}

// NewReconciler seeds a reconciler from a parsed payload.
// PRE: p came from selection.ParsePayload; defaultYear is used when p has no year
// POST: working equals the payload ids
func NewReconciler(p selection.Payload, defaultYear int) *Reconciler {
	year := defaultYear
	if p.Year != nil {
		year = *p.Year
	}
	r := &Reconciler{
		original: append([]int(nil), p.SelectedIDs...),
		working:  append([]int(nil), p.SelectedIDs...),
		clubID:   p.ClubID(),
	}
	if year > 0 {
		r.yearInput = strconv.Itoa(year)
	}
	return r
}

// ClubID returns the club the selection was made for (0 when none).
func (r *Reconciler) ClubID() int { return r.clubID }

// Original returns a copy of the ids the workflow was opened with.
func (r *Reconciler) Original() []int { return append([]int(nil), r.original...) }

// Working returns a copy of the current working ids.
func (r *Reconciler) Working() []int { return append([]int(nil), r.working...) }

// Roster returns the members last loaded for the club.
func (r *Reconciler) Roster() []member.Member { return r.roster }

// SetRoster replaces the club roster used to validate the working set.
func (r *Reconciler) SetRoster(roster []member.Member) {
	r.roster = append([]member.Member(nil), roster...)
}

// ValidSelectedIDs returns working ids that are still on the selected club's roster.
// POST: Result keeps working order; ids dropped from the roster disappear silently
func (r *Reconciler) ValidSelectedIDs() []int {
	inClub := member.IDsInClub(r.roster, r.clubID)
	valid := make([]int, 0, len(r.working))
	for _, id := range r.working {
		if inClub[id] {
			valid = append(valid, id)
		}
	}
	return valid
}

// YearInput returns the year exactly as last entered.
func (r *Reconciler) YearInput() string { return r.yearInput }

// SetYearInput stores the operator's year entry without validating it.
func (r *Reconciler) SetYearInput(s string) {
	r.yearInput = strings.TrimSpace(s)
}

// Year parses the year entry.
func (r *Reconciler) Year() (int, bool) {
	y, err := strconv.Atoi(r.yearInput)
	if err != nil {
		return 0, false
	}
	return y, true
}

// Eligible returns the current eligible license types.
func (r *Reconciler) Eligible() []licensing.EligibleLicenseType { return r.eligible }

// Ineligible returns the current ineligible license types.
func (r *Reconciler) Ineligible() []licensing.IneligibleLicenseType { return r.ineligible }

// SetEligibility replaces both lists and repairs the selected type.
// POST: SelectedTypeKey names a listed type, or is "" when both lists are empty
func (r *Reconciler) SetEligibility(res licensing.EligibilityResult) {
	r.eligible = res.Eligible
	r.ineligible = res.Ineligible
	r.typeKey = licensing.RepairTypeKey(r.typeKey, r.eligible, r.ineligible)
}

// ClearEligibility empties both lists and the selected type.
func (r *Reconciler) ClearEligibility() {
	r.SetEligibility(licensing.EligibilityResult{})
}

// SelectedTypeKey returns the operator's current license type choice.
func (r *Reconciler) SelectedTypeKey() string { return r.typeKey }

// SelectLicenseType changes the selected type.
// PRE: key names a type in the eligible or ineligible list
// POST: Blocked index now reflects the new type
func (r *Reconciler) SelectLicenseType(key string) error {
	key = strings.TrimSpace(key)
	if _, ok := licensing.FindEligible(r.eligible, key); ok {
		r.typeKey = key
		return nil
	}
	if _, ok := licensing.FindIneligible(r.ineligible, key); ok {
		r.typeKey = key
		return nil
	}
	return ErrUnknownLicenseType
}

// SelectedIsEligible reports whether the selected type can be ordered.
func (r *Reconciler) SelectedIsEligible() bool {
	if r.typeKey == "" {
		return false
	}
	_, ok := licensing.FindEligible(r.eligible, r.typeKey)
	return ok
}

// BlockedIndex is built from the selected type only; an eligible or empty
// selection yields an empty index.
func (r *Reconciler) BlockedIndex() BlockedIndex {
	t, ok := licensing.FindIneligible(r.ineligible, r.typeKey)
	if !ok {
		return BlockedIndex{}
	}
	return BuildBlockedIndex(t)
}

// DuplicateIDs returns blocked ids whose reasons include a pending or active duplicate.
func (r *Reconciler) DuplicateIDs() []int {
	return r.BlockedIndex().WithReason(licensing.ReasonDuplicatePendingOrActive)
}

// RemoveBlockedMembers drops every id in the blocked index from the working set.
// POST: Returns how many working ids were removed; 0 when the index is empty
func (r *Reconciler) RemoveBlockedMembers() int {
	idx := r.BlockedIndex()
	if len(idx) == 0 {
		return 0
	}
	return r.removeWhere(func(id int) bool {
		_, blocked := idx[id]
		return blocked
	})
}

// RemoveDuplicateMembers drops only ids blocked for a pending or active duplicate.
// POST: Never removes an id RemoveBlockedMembers would keep
func (r *Reconciler) RemoveDuplicateMembers() int {
	dups := r.DuplicateIDs()
	if len(dups) == 0 {
		return 0
	}
	set := make(map[int]bool, len(dups))
	for _, id := range dups {
		set[id] = true
	}
	return r.removeWhere(func(id int) bool { return set[id] })
}

// ResetSelection restores the working set to the original ids and clears the notice.
// POST: Working equals Original; after a successful submission both are empty
func (r *Reconciler) ResetSelection() {
	r.working = append([]int(nil), r.original...)
	r.notice = Notice{}
}

// MarkSubmitted ends the workflow's selection after a successful order.
// POST: Original and working are empty, so a reset cannot revive submitted ids
func (r *Reconciler) MarkSubmitted() {
	r.original = nil
	r.working = nil
}

// Notice returns the current notice.
func (r *Reconciler) Notice() Notice { return r.notice }

// SetNotice replaces the current notice.
func (r *Reconciler) SetNotice(kind, text string) {
	r.notice = Notice{Kind: kind, Text: text}
}

// ClearNotice dismisses the current notice.
func (r *Reconciler) ClearNotice() { r.notice = Notice{} }

func (r *Reconciler) removeWhere(drop func(id int) bool) int {
	kept := r.working[:0:0]
	removed := 0
	for _, id := range r.working {
		if drop(id) {
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.working = kept
	return removed
}
