package projections

import (
	"sort"
	"strings"

	"licensedesk/internal/application/orchestrators"
	"licensedesk/internal/domain/licensing"
	"licensedesk/internal/domain/member"
)

// BlockedReportRow is one blocked member in the export.
type BlockedReportRow struct {
	MemberID    int
	Name        string
	ReasonCodes string
	Messages    string
}

// BlockedReport lists the members blocked for the selected license type.
type BlockedReport struct {
	LicenseType string
	Year        string
	ClubName    string
	Rows        []BlockedReportRow
}

// QueryGetBlockedReport builds the export for the selected ineligible type.
// POST: Rows are ordered by member id; empty when the selected type is eligible or unset
func QueryGetBlockedReport(snap orchestrators.WorkflowSnapshot) BlockedReport {
	report := BlockedReport{Year: snap.YearInput, ClubName: snap.Club.Name}
	if lt, ok := licensing.FindIneligible(snap.Ineligible, snap.SelectedTypeKey); ok {
		report.LicenseType = lt.Name
	}
	roster := member.Index(snap.Roster)
	ids := make([]int, 0, len(snap.Blocked))
	for id := range snap.Blocked {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		entry := snap.Blocked[id]
		m := roster[id]
		report.Rows = append(report.Rows, BlockedReportRow{
			MemberID:    id,
			Name:        m.FullName(),
			ReasonCodes: strings.Join(entry.ReasonCodes, ", "),
			Messages:    strings.Join(entry.Messages, "; "),
		})
	}
	return report
}
