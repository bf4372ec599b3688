// ABOUTME: Timesheet MCP tool handlers
// ABOUTME: Implements clock_in, clock_out, and summarize_timesheet tools
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/models"
	"github.com/harperreed/fitout/reports"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type TimesheetHandlers struct {
	db      *sql.DB
	reports *reports.Service
}

func NewTimesheetHandlers(database *sql.DB, svc *reports.Service) *TimesheetHandlers {
	return &TimesheetHandlers{db: database, reports: svc}
}

type ClockInInput struct {
	UserID         string `json:"user_id" jsonschema:"User ID (required)"`
	UserName       string `json:"user_name,omitempty" jsonschema:"Display name"`
	OrganizationID string `json:"organization_id,omitempty" jsonschema:"Organization ID"`
	CaseID         string `json:"case_id,omitempty" jsonschema:"Case the work is for"`
	ProjectName    string `json:"project_name,omitempty" jsonschema:"Project name shown in reports"`
	Description    string `json:"description,omitempty" jsonschema:"What is being worked on"`
	At             string `json:"at,omitempty" jsonschema:"Clock-in time (default now)"`
}

type TimeEntryOutput struct {
	ID       string  `json:"id"`
	UserID   string  `json:"user_id"`
	CaseID   string  `json:"case_id,omitempty"`
	ClockIn  string  `json:"clock_in"`
	ClockOut string  `json:"clock_out,omitempty"`
	Hours    float64 `json:"hours"`
}

func timeEntryToOutput(e *models.TimeEntry) TimeEntryOutput {
	out := TimeEntryOutput{
		ID:      e.ID,
		UserID:  e.UserID,
		CaseID:  e.CaseID,
		ClockIn: e.ClockIn.Format(time.RFC3339),
		Hours:   float64(int(e.Duration().Hours()*100+0.5)) / 100,
	}
	if e.ClockOut != nil {
		out.ClockOut = e.ClockOut.Format(time.RFC3339)
	}
	return out
}

func (h *TimesheetHandlers) ClockIn(ctx context.Context, request *mcp.CallToolRequest, input ClockInInput) (*mcp.CallToolResult, TimeEntryOutput, error) {
	if input.UserID == "" {
		return nil, TimeEntryOutput{}, fmt.Errorf("user_id is required")
	}
	at, err := parseOptionalTime("at", input.At)
	if err != nil {
		return nil, TimeEntryOutput{}, err
	}
	if at.IsZero() {
		at = time.Now()
	}

	entry := &models.TimeEntry{
		UserID:         input.UserID,
		UserName:       input.UserName,
		OrganizationID: input.OrganizationID,
		CaseID:         input.CaseID,
		ProjectName:    input.ProjectName,
		Description:    input.Description,
		ClockIn:        at,
	}
	if err := db.CreateTimeEntry(ctx, h.db, entry); err != nil {
		return nil, TimeEntryOutput{}, fmt.Errorf("failed to clock in: %w", err)
	}
	return nil, timeEntryToOutput(entry), nil
}

type ClockOutInput struct {
	UserID string `json:"user_id" jsonschema:"User ID (required)"`
	At     string `json:"at,omitempty" jsonschema:"Clock-out time (default now)"`
}

func (h *TimesheetHandlers) ClockOut(ctx context.Context, request *mcp.CallToolRequest, input ClockOutInput) (*mcp.CallToolResult, TimeEntryOutput, error) {
	if input.UserID == "" {
		return nil, TimeEntryOutput{}, fmt.Errorf("user_id is required")
	}
	at, err := parseOptionalTime("at", input.At)
	if err != nil {
		return nil, TimeEntryOutput{}, err
	}
	if at.IsZero() {
		at = time.Now()
	}

	open, err := db.FindOpenTimeEntry(ctx, h.db, input.UserID)
	if err != nil {
		return nil, TimeEntryOutput{}, fmt.Errorf("failed to find open entry: %w", err)
	}
	if open == nil {
		return nil, TimeEntryOutput{}, fmt.Errorf("user %s is not clocked in", input.UserID)
	}

	stopped, err := db.StopTimeEntry(ctx, h.db, open.ID, at)
	if err != nil {
		return nil, TimeEntryOutput{}, fmt.Errorf("failed to clock out: %w", err)
	}
	return nil, timeEntryToOutput(stopped), nil
}

type SummarizeTimesheetInput struct {
	From           string `json:"from,omitempty" jsonschema:"Range start, inclusive (YYYY-MM-DD or RFC3339)"`
	To             string `json:"to,omitempty" jsonschema:"Range end, exclusive (YYYY-MM-DD or RFC3339)"`
	UserID         string `json:"user_id,omitempty" jsonschema:"Only this user"`
	OrganizationID string `json:"organization_id,omitempty" jsonschema:"Only this organization"`
	CaseID         string `json:"case_id,omitempty" jsonschema:"Only this case"`
}

type ProjectHoursOutput struct {
	CaseID      string  `json:"case_id"`
	ProjectName string  `json:"project_name"`
	Hours       float64 `json:"hours"`
	Entries     int     `json:"entries"`
	Users       int     `json:"people"`
}

type SummarizeTimesheetOutput struct {
	Entries        int                  `json:"entries"`
	OpenEntries    int                  `json:"open_entries"`
	People         int                  `json:"people"`
	TotalHours     float64              `json:"total_hours"`
	OvertimeHours  float64              `json:"overtime_hours"`
	WeightedHours  float64              `json:"weighted_overtime_hours"`
	UntrackedHours float64              `json:"untracked_hours"`
	Projects       []ProjectHoursOutput `json:"projects"`
}

func (h *TimesheetHandlers) SummarizeTimesheet(ctx context.Context, request *mcp.CallToolRequest, input SummarizeTimesheetInput) (*mcp.CallToolResult, SummarizeTimesheetOutput, error) {
	filter, err := filterFromInput(input, h.reports.Location())
	if err != nil {
		return nil, SummarizeTimesheetOutput{}, err
	}

	sum, err := h.reports.Summarize(ctx, filter)
	if err != nil {
		return nil, SummarizeTimesheetOutput{}, fmt.Errorf("failed to summarize timesheet: %w", err)
	}

	out := SummarizeTimesheetOutput{
		Entries:        sum.Entries,
		OpenEntries:    sum.OpenEntries,
		People:         sum.People,
		TotalHours:     sum.TotalHours,
		OvertimeHours:  sum.OvertimeHours,
		WeightedHours:  sum.WeightedHours,
		UntrackedHours: sum.UntrackedHours,
		Projects:       make([]ProjectHoursOutput, 0, len(sum.Projects)),
	}
	for _, p := range sum.Projects {
		out.Projects = append(out.Projects, ProjectHoursOutput(p))
	}
	return nil, out, nil
}

func filterFromInput(input SummarizeTimesheetInput, loc *time.Location) (models.TimeEntryFilter, error) {
	f := models.TimeEntryFilter{
		UserID:         input.UserID,
		OrganizationID: input.OrganizationID,
		CaseID:         input.CaseID,
	}
	var err error
	if f.From, err = parseBound("from", input.From, loc); err != nil {
		return f, err
	}
	if f.To, err = parseBound("to", input.To, loc); err != nil {
		return f, err
	}
	return f, nil
}

// parseBound reads a bare date as midnight in loc.
func parseBound(field, value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format (use YYYY-MM-DD or RFC3339): %w", field, err)
	}
	return t, nil
}
