// ABOUTME: Tests for xlsx exports and the report service
// ABOUTME: Reopens generated workbooks with excelize and checks headers, rows and totals
package reports

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readRows(t *testing.T, data []byte, sheetName string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	return rows
}

func sheetNames(t *testing.T, data []byte) []string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	return f.GetSheetList()
}

func TestExportTimesheet(t *testing.T) {
	entries := []models.TimeEntry{
		entry("a", "u1", "c1", at(9, 0), 90*time.Minute),
		{ID: "open", UserID: "u2", UserName: "Ravi", CaseID: "c1", ClockIn: at(10, 0)},
	}
	var buf bytes.Buffer
	require.NoError(t, ExportTimesheet(&buf, entries, time.UTC))

	assert.Equal(t, []string{"Timesheet"}, sheetNames(t, buf.Bytes()))
	rows := readRows(t, buf.Bytes(), "Timesheet")
	require.Len(t, rows, 4)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "Hours", rows[0][7])
	assert.Equal(t, "Name u1", rows[1][1])
	assert.Equal(t, "2025-03-03 09:00", rows[1][5])
	assert.Equal(t, "1.5", rows[1][7])
	assert.Equal(t, "", rows[2][6])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "1.5", rows[3][7])
}

func TestExportOvertime(t *testing.T) {
	entries := []models.TimeEntry{entry("a", "u1", "c1", at(8, 0), 10*time.Hour)}
	var buf bytes.Buffer
	require.NoError(t, ExportOvertime(&buf, Overtime(DailyTotals(entries, time.UTC))))

	rows := readRows(t, buf.Bytes(), "Overtime")
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2025-03-03", "Name u1", "10", "8", "2", "3"}, rows[1])
	assert.Equal(t, "Total", rows[2][0])
	assert.Equal(t, "3", rows[2][5])
}

func TestExportUntracked(t *testing.T) {
	entries := []models.TimeEntry{
		entry("a", "u1", "c1", at(9, 0), time.Hour),
		entry("b", "u1", "c1", at(10, 20), time.Hour),
	}
	sessions := DeriveSessions(entries, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, ExportUntracked(&buf, sessions, UntrackedGaps(sessions), time.UTC))

	assert.Equal(t, []string{"Untracked", "Sessions"}, sheetNames(t, buf.Bytes()))
	gaps := readRows(t, buf.Bytes(), "Untracked")
	require.Len(t, gaps, 3)
	assert.Equal(t, "20", gaps[1][4])

	sess := readRows(t, buf.Bytes(), "Sessions")
	require.Len(t, sess, 4)
	assert.Equal(t, "2", sess[3][5])
}

func TestExportProjects(t *testing.T) {
	totals := []ProjectTotal{{CaseID: "c1", ProjectName: "Whitefield", Hours: 5, Entries: 2, Users: 2}}
	var buf bytes.Buffer
	require.NoError(t, ExportProjects(&buf, totals))

	rows := readRows(t, buf.Bytes(), "Projects")
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Case", "Project", "Hours", "Entries", "People"}, rows[0])
	assert.Equal(t, "Whitefield", rows[1][1])
	assert.Equal(t, "5", rows[2][2])
}

func TestExportHeaderIsBold(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportProjects(&buf, nil))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	styleID, err := f.GetCellStyle("Projects", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("payroll")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestService(t *testing.T) {
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	defer func() { _ = database.Close() }()
	ctx := context.Background()

	for i, e := range []models.TimeEntry{
		entry("", "u1", "c1", at(8, 0), 5*time.Hour),
		entry("", "u1", "c1", at(13, 30), 5*time.Hour),
		entry("", "u2", "c2", at(9, 0), 4*time.Hour),
	} {
		e := e
		require.NoError(t, db.CreateTimeEntry(ctx, database, &e), "entry %d", i)
	}
	require.NoError(t, db.CreateTimeEntry(ctx, database, &models.TimeEntry{UserID: "u3", ClockIn: at(9, 0)}))

	svc := NewService(database, WithPageSize(2))

	all, err := svc.Entries(ctx, models.TimeEntryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	sum, err := svc.Summarize(ctx, models.TimeEntryFilter{From: monday, To: monday.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Entries)
	assert.Equal(t, 1, sum.OpenEntries)
	assert.Equal(t, 3, sum.People)
	assert.Equal(t, 14.0, sum.TotalHours)
	assert.Equal(t, 2.0, sum.OvertimeHours)
	assert.Equal(t, 3.0, sum.WeightedHours)
	assert.Equal(t, 0.5, sum.UntrackedHours)
	require.Len(t, sum.Projects, 2)
	assert.Equal(t, "c1", sum.Projects[0].CaseID)

	for _, k := range Kinds() {
		var buf bytes.Buffer
		require.NoError(t, svc.Write(ctx, k, models.TimeEntryFilter{}, &buf), "kind %s", k)
		assert.NotZero(t, buf.Len())
	}
	assert.ErrorIs(t, svc.Write(ctx, "payroll", models.TimeEntryFilter{}, &bytes.Buffer{}), ErrUnknownKind)
}
