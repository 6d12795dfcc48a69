package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"

	"licensedesk/internal/application/projections"
	"licensedesk/internal/domain/audit"
)

const (
	blockedSheet = "Blocked members"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// handleBlockedExport downloads the blocked members of the selected license type.
func handleBlockedExport(w http.ResponseWriter, r *http.Request) {
	wf, ok := lookupWorkflow(w, r)
	if !ok {
		return
	}
	report := projections.QueryGetBlockedReport(wf.Snapshot())

	f, err := buildBlockedWorkbook(report)
	if err != nil {
		internalError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, blockedFilename(report)))
	if err := f.Write(w); err != nil {
		internalError(w, err)
		return
	}
	recordAudit(r, audit.NewEvent(wf.Owner, audit.CategoryLicenseOrder, audit.ActionExport).
		WithResource("workflow", wf.ID).
		WithDescription(fmt.Sprintf("Exported %d blocked members for %s", len(report.Rows), report.LicenseType)))
}

// buildBlockedWorkbook lays the report out as one sheet with a bold header row.
func buildBlockedWorkbook(report projections.BlockedReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", blockedSheet); err != nil {
		f.Close()
		return nil, err
	}
	header := []any{"Member ID", "Name", "Reason codes", "Messages"}
	if err := f.SetSheetRow(blockedSheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(blockedSheet, "A1", "D1", bold); err != nil {
		f.Close()
		return nil, err
	}
	for i, row := range report.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := []any{row.MemberID, row.Name, row.ReasonCodes, row.Messages}
		if err := f.SetSheetRow(blockedSheet, cell, &values); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetColWidth(blockedSheet, "B", "B", 28)
	f.SetColWidth(blockedSheet, "C", "D", 48)
	return f, nil
}

func blockedFilename(report projections.BlockedReport) string {
	name := "blocked-members"
	if report.LicenseType != "" {
		name += "-" + slug(report.LicenseType)
	}
	if report.Year != "" {
		name += "-" + slug(report.Year)
	}
	return name + ".xlsx"
}

// slug keeps ASCII letters and digits, joining runs of anything else with "-".
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
