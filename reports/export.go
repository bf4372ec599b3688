// ABOUTME: Spreadsheet exports of timesheet aggregations using excelize
// ABOUTME: Each export writes one sheet with a bold header row and a totals row
package reports

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/harperreed/fitout/models"
	"github.com/xuri/excelize/v2"
)

const timeLayout = "2006-01-02 15:04"

type sheet struct {
	name   string
	header []string
	rows   [][]interface{}
	totals []interface{}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func writeWorkbook(w io.Writer, sheets ...sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for i, s := range sheets {
		idx, err := f.NewSheet(s.name)
		if err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeSheet(f, s, bold); err != nil {
			return err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet, bold int) error {
	header := make([]interface{}, len(s.header))
	for i, h := range s.header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(s.header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", lastCol+"1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(s.name, "A", lastCol, 18); err != nil {
		return err
	}

	row := 2
	for _, r := range s.rows {
		r := r
		if err := f.SetSheetRow(s.name, fmt.Sprintf("A%d", row), &r); err != nil {
			return err
		}
		row++
	}

	if s.totals != nil {
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(s.name, cell, &s.totals); err != nil {
			return err
		}
		if err := f.SetCellStyle(s.name, cell, fmt.Sprintf("%s%d", lastCol, row), bold); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(timeLayout)
}

// ExportTimesheet writes one row per entry. Running entries are listed with no
// clock-out and count zero hours.
func ExportTimesheet(w io.Writer, entries []models.TimeEntry, loc *time.Location) error {
	s := sheet{
		name:   "Timesheet",
		header: []string{"Date", "User", "Project", "Case", "Description", "Clock In", "Clock Out", "Hours"},
	}
	total := 0.0
	for _, e := range entries {
		out := ""
		if e.ClockOut != nil {
			out = formatTime(*e.ClockOut, loc)
		}
		hours := round2(e.Duration().Hours())
		total += e.Duration().Hours()
		s.rows = append(s.rows, []interface{}{
			dayOf(e.ClockIn, loc), userLabel(e.UserName, e.UserID), e.ProjectName, e.CaseID,
			e.Description, formatTime(e.ClockIn, loc), out, hours,
		})
	}
	s.totals = []interface{}{"Total", "", "", "", "", "", "", round2(total)}
	return writeWorkbook(w, s)
}

// ExportOvertime writes the per-day overtime split.
func ExportOvertime(w io.Writer, rows []OvertimeRow) error {
	s := sheet{
		name:   "Overtime",
		header: []string{"Date", "User", "Hours", "Regular", "Overtime", "Weighted Overtime"},
	}
	var hours, regular, extra, weighted float64
	for _, r := range rows {
		s.rows = append(s.rows, []interface{}{
			r.Day, userLabel(r.UserName, r.UserID), round2(r.Hours),
			round2(r.RegularHours), round2(r.OvertimeHours), round2(r.WeightedHours),
		})
		hours += r.Hours
		regular += r.RegularHours
		extra += r.OvertimeHours
		weighted += r.WeightedHours
	}
	s.totals = []interface{}{"Total", "", round2(hours), round2(regular), round2(extra), round2(weighted)}
	return writeWorkbook(w, s)
}

// ExportUntracked writes derived sessions and the untracked gaps between them.
func ExportUntracked(w io.Writer, sessions []Session, gaps []Gap, loc *time.Location) error {
	gapSheet := sheet{
		name:   "Untracked",
		header: []string{"Date", "User", "From", "To", "Minutes"},
	}
	minutes := 0.0
	for _, g := range gaps {
		m := g.Duration().Minutes()
		gapSheet.rows = append(gapSheet.rows, []interface{}{
			g.Day, userLabel(g.UserName, g.UserID), formatTime(g.Start, loc), formatTime(g.End, loc), round2(m),
		})
		minutes += m
	}
	gapSheet.totals = []interface{}{"Total", "", "", "", round2(minutes)}

	sessionSheet := sheet{
		name:   "Sessions",
		header: []string{"Date", "User", "Start", "End", "Entries", "Hours"},
	}
	hours := 0.0
	for _, s := range sessions {
		sessionSheet.rows = append(sessionSheet.rows, []interface{}{
			s.Day, userLabel(s.UserName, s.UserID), formatTime(s.Start, loc), formatTime(s.End, loc),
			s.Entries, round2(s.Duration().Hours()),
		})
		hours += s.Duration().Hours()
	}
	sessionSheet.totals = []interface{}{"Total", "", "", "", "", round2(hours)}

	return writeWorkbook(w, gapSheet, sessionSheet)
}

// ExportProjects writes hours per case.
func ExportProjects(w io.Writer, totals []ProjectTotal) error {
	s := sheet{
		name:   "Projects",
		header: []string{"Case", "Project", "Hours", "Entries", "People"},
	}
	hours := 0.0
	entries := 0
	for _, p := range totals {
		s.rows = append(s.rows, []interface{}{p.CaseID, p.ProjectName, round2(p.Hours), p.Entries, p.Users})
		hours += p.Hours
		entries += p.Entries
	}
	s.totals = []interface{}{"Total", "", round2(hours), entries, ""}
	return writeWorkbook(w, s)
}

func userLabel(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
