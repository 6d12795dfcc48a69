package projections

import (
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"licensedesk/internal/application/orchestrators"
	"licensedesk/internal/domain/licenseorder"
	"licensedesk/internal/domain/licensing"
	"licensedesk/internal/domain/member"
)

// LicenseTypeOption is one selectable license type.
type LicenseTypeOption struct {
	Key          string
	Name         string
	Price        string
	Eligible     bool
	Selected     bool
	ReasonCounts []licensing.ReasonCount
}

// MemberRow is one member of the valid selection.
type MemberRow struct {
	ID        int
	Name      string
	Active    bool
	Reasons   []string
	Duplicate bool
}

// LicenseOrderView is everything the license order page renders.
type LicenseOrderView struct {
	ID            string
	ClubID        int
	ClubName      string
	Year          string
	OriginalCount int
	ValidCount    int
	// DroppedCount counts working ids no longer on the club roster.
	DroppedCount int

	LicenseTypes []LicenseTypeOption
	SelectedType *LicenseTypeOption

	ReadyMembers   []MemberRow
	BlockedMembers []MemberRow
	DuplicateCount int

	Notice     licenseorder.Notice
	State      licenseorder.PollState
	Submitting bool
	LastOrder  *licensing.BatchOrderResult

	Summary string

	// CanRetry offers a reload after an eligibility or roster failure.
	CanRetry            bool
	CanRemoveBlocked    bool
	CanRemoveDuplicates bool
	CanReset            bool
	CanSubmit           bool
}

// HasSelection reports whether any valid member remains.
func (v LicenseOrderView) HasSelection() bool { return v.ValidCount > 0 }

// QueryGetLicenseOrderView projects a workflow snapshot into the page model.
// PRE: snap came from Workflow.Snapshot
// POST: Members keep working-set order, split into ready and blocked for the selected type
func QueryGetLicenseOrderView(snap orchestrators.WorkflowSnapshot) LicenseOrderView {
	pr := message.NewPrinter(language.English)
	v := LicenseOrderView{
		ID:            snap.ID,
		ClubID:        snap.ClubID,
		ClubName:      snap.Club.Name,
		Year:          snap.YearInput,
		OriginalCount: len(snap.Original),
		ValidCount:    len(snap.ValidIDs),
		DroppedCount:  len(snap.Working) - len(snap.ValidIDs),
		Notice:        snap.Notice,
		State:         snap.PollState,
		Submitting:    snap.Submitting,
		LastOrder:     snap.LastOrder,
		CanRetry:      snap.PollState == licenseorder.PollErrored || snap.RosterFailed,
	}
	if v.ClubName == "" && v.ClubID > 0 {
		v.ClubName = "Club " + strconv.Itoa(v.ClubID)
	}

	for _, lt := range snap.Eligible {
		key := licensing.TypeKey(lt.ID)
		v.LicenseTypes = append(v.LicenseTypes, LicenseTypeOption{
			Key:      key,
			Name:     lt.Name,
			Price:    FormatPrice(pr, lt.ActivePrice),
			Eligible: true,
			Selected: key == snap.SelectedTypeKey,
		})
	}
	for _, lt := range snap.Ineligible {
		key := licensing.TypeKey(lt.ID)
		v.LicenseTypes = append(v.LicenseTypes, LicenseTypeOption{
			Key:          key,
			Name:         lt.Name,
			Selected:     key == snap.SelectedTypeKey,
			ReasonCounts: lt.ReasonCounts,
		})
	}
	for i := range v.LicenseTypes {
		if v.LicenseTypes[i].Selected {
			v.SelectedType = &v.LicenseTypes[i]
		}
	}

	roster := member.Index(snap.Roster)
	dups := make(map[int]bool, len(snap.DuplicateIDs))
	for _, id := range snap.DuplicateIDs {
		dups[id] = true
	}
	for _, id := range snap.ValidIDs {
		m := roster[id]
		row := MemberRow{ID: id, Name: m.FullName(), Active: m.Active}
		if row.Name == "" {
			row.Name = "#" + strconv.Itoa(id)
		}
		entry, blocked := snap.Blocked[id]
		if !blocked {
			v.ReadyMembers = append(v.ReadyMembers, row)
			continue
		}
		row.Reasons = entry.Messages
		row.Duplicate = dups[id]
		if row.Duplicate {
			v.DuplicateCount++
		}
		v.BlockedMembers = append(v.BlockedMembers, row)
	}

	_, yearOK := parseYear(snap.YearInput)
	busy := snap.Submitting || snap.PollState == licenseorder.PollQuerying
	v.CanRemoveBlocked = len(v.BlockedMembers) > 0 && !busy
	v.CanRemoveDuplicates = v.DuplicateCount > 0 && !busy
	v.CanReset = !busy && !sameIDs(snap.Working, snap.Original)
	v.CanSubmit = !busy && v.ValidCount > 0 && snap.SelectedIsEligible && yearOK

	v.Summary = summaryLine(pr, v)
	return v
}

// FormatPrice renders a backend price with its currency symbol.
// POST: Unknown currencies or amounts fall back to "amount CODE"
func FormatPrice(pr *message.Printer, p *licensing.Price) string {
	if p == nil || p.Amount == "" {
		return ""
	}
	unit, err := currency.ParseISO(p.Currency)
	amount, aerr := strconv.ParseFloat(p.Amount, 64)
	if err != nil || aerr != nil {
		return strings.TrimSpace(p.Amount + " " + p.Currency)
	}
	return pr.Sprint(currency.Symbol(unit.Amount(amount)))
}

func summaryLine(pr *message.Printer, v LicenseOrderView) string {
	if v.ValidCount == 0 {
		return "No valid selection."
	}
	s := pr.Sprintf("%d of %d selected members ready", len(v.ReadyMembers), v.ValidCount)
	if n := len(v.BlockedMembers); n > 0 {
		s += pr.Sprintf(", %d blocked", n)
	}
	if v.DroppedCount > 0 {
		s += pr.Sprintf(", %d no longer in the club", v.DroppedCount)
	}
	return s + "."
}

func parseYear(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	return y, err == nil
}

func sameIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
