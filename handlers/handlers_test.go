// ABOUTME: Tests for the portal, case, and timesheet MCP handlers
// ABOUTME: Runs handlers against a temp Badger store and SQLite database, plus an in-memory MCP session
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/reports"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureCase = `{
	"id": "c1",
	"clientName": "Mehta",
	"projectName": "Whitefield 3BHK",
	"financial": {
		"totalBudget": 250000,
		"installmentSchedule": [
			{"id": "i1", "milestoneName": "Booking", "amount": 100000, "status": "Paid"},
			{"id": "i2", "milestoneName": "Civil", "amount": 150000, "status": "Pending", "dueDate": "2025-04-01T00:00:00Z"}
		]
	},
	"executionPlan": {
		"startDate": "2025-03-01T00:00:00Z",
		"endDate": "2025-06-09T00:00:00Z",
		"phases": [
			{"name": "Design", "status": "completed", "startDate": "2025-03-01T00:00:00Z", "endDate": "2025-03-15T00:00:00Z"},
			{"name": "Civil", "status": "in_progress", "completionPercent": 30},
			{"name": "Handover", "status": "pending"}
		]
	},
	"approvals": [{"id": "a1", "type": "design_change", "status": "pending"}]
}`

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func setupStore(t *testing.T) *docstore.Client {
	t.Helper()
	store := docstore.NewTestClient(t)
	_, err := cases.ImportCase(context.Background(), store, []byte(fixtureCase))
	require.NoError(t, err)
	return store
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestGetClientProject(t *testing.T) {
	h := NewPortalHandlers(setupStore(t), clock)
	ctx := context.Background()

	_, out, err := h.GetClientProject(ctx, nil, GetClientProjectInput{CaseID: "c1"})
	require.NoError(t, err)
	data, err := json.Marshal(out)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Whitefield 3BHK", got["projectName"])
	assert.Equal(t, float64(100000), got["totalPaid"])
	assert.Equal(t, float64(40), got["budgetUtilizationPercent"])
	assert.Equal(t, float64(2), got["currentStageId"])

	_, _, err = h.GetClientProject(ctx, nil, GetClientProjectInput{})
	assert.Error(t, err)

	_, _, err = h.GetClientProject(ctx, nil, GetClientProjectInput{CaseID: "missing"})
	assert.ErrorIs(t, err, cases.ErrCaseNotFound)
}

func TestListCases(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	_, err := cases.ImportCase(ctx, store, []byte(`{"id":"c2","clientName":"Rao","projectName":"Indiranagar Villa"}`))
	require.NoError(t, err)

	h := NewPortalHandlers(store, clock)

	tests := []struct {
		name  string
		input ListCasesInput
		want  []string
	}{
		{"all", ListCasesInput{}, []string{"c1", "c2"}},
		{"by client", ListCasesInput{Query: "mehta"}, []string{"c1"}},
		{"by project", ListCasesInput{Query: "villa"}, []string{"c2"}},
		{"limit", ListCasesInput{Limit: 1}, []string{"c1"}},
		{"no match", ListCasesInput{Query: "nobody"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := h.ListCases(ctx, nil, tt.input)
			require.NoError(t, err)
			ids := []string{}
			for _, c := range out.Cases {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, out, err := h.ListCases(ctx, nil, ListCasesInput{Query: "mehta"})
	require.NoError(t, err)
	assert.Equal(t, 40, out.Cases[0].BudgetUtilizationPercent)
}

func TestGetProjectTimeline(t *testing.T) {
	h := NewPortalHandlers(setupStore(t), clock)

	_, out, err := h.GetProjectTimeline(context.Background(), nil, GetProjectTimelineInput{CaseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 3, out.NodeCount)
	assert.Contains(t, out.DOTSource, "stage1 -> stage2")
	assert.Contains(t, out.Gantt, "Design")
}

func TestCaseWriteHandlers(t *testing.T) {
	store := setupStore(t)
	h := NewCaseHandlers(store)
	ctx := context.Background()

	_, msg, err := h.SendChatMessage(ctx, nil, SendChatMessageInput{CaseID: "c1", SenderName: "Asha", Message: "Tiles arrive Monday"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	_, logOut, err := h.AppendDailyLog(ctx, nil, AppendDailyLogInput{CaseID: "c1", Date: "2025-03-09", WorkDescription: "Plastering", CompletionPercent: 35, ManpowerCount: 6})
	require.NoError(t, err)
	assert.NotEmpty(t, logOut.ID)

	_, _, err = h.UpdateInstallment(ctx, nil, UpdateInstallmentInput{CaseID: "c1", InstallmentID: "i2", Status: "Paid", PaidAt: "2025-03-09T10:00:00Z"})
	require.NoError(t, err)

	_, _, err = h.RespondToApproval(ctx, nil, RespondToApprovalInput{CaseID: "c1", ApprovalID: "a1", Decision: "Approved", RespondedBy: "Mehta"})
	require.NoError(t, err)

	_, _, err = h.MarkLeadMilestone(ctx, nil, MarkLeadMilestoneInput{CaseID: "c1", Milestone: "siteVisitCompleted", At: "2025-02-01"})
	require.NoError(t, err)

	_, _, err = h.UpdatePhase(ctx, nil, UpdatePhaseInput{CaseID: "c1", StageID: 2, Status: "completed"})
	require.NoError(t, err)

	p := NewPortalHandlers(store, clock)
	_, out, err := p.GetClientProject(ctx, nil, GetClientProjectInput{CaseID: "c1"})
	require.NoError(t, err)
	data, err := json.Marshal(out)
	require.NoError(t, err)

	var got struct {
		TotalPaid                float64 `json:"totalPaid"`
		BudgetUtilizationPercent int     `json:"budgetUtilizationPercent"`
		CurrentStageID           int     `json:"currentStageId"`
		Messages                 []struct{ Message string }
		DailyUpdates             []struct{ WorkDescription string }
		Requests                 []struct{ Status string }
		LeadJourneySteps         []struct{ Key string }
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 250000.0, got.TotalPaid)
	assert.Equal(t, 100, got.BudgetUtilizationPercent)
	assert.Equal(t, 3, got.CurrentStageID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Tiles arrive Monday", got.Messages[0].Message)
	require.Len(t, got.DailyUpdates, 1)
	require.Len(t, got.Requests, 1)
	assert.Equal(t, "resolved", got.Requests[0].Status)
	require.Len(t, got.LeadJourneySteps, 1)
	assert.Equal(t, "siteVisitCompleted", got.LeadJourneySteps[0].Key)
}

func TestCaseWriteHandlers_Validation(t *testing.T) {
	h := NewCaseHandlers(setupStore(t))
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"chat without case", func() error {
			_, _, err := h.SendChatMessage(ctx, nil, SendChatMessageInput{SenderName: "A", Message: "x"})
			return err
		}},
		{"chat without sender", func() error {
			_, _, err := h.SendChatMessage(ctx, nil, SendChatMessageInput{CaseID: "c1", Message: "x"})
			return err
		}},
		{"bad log date", func() error {
			_, _, err := h.AppendDailyLog(ctx, nil, AppendDailyLogInput{CaseID: "c1", Date: "yesterday", WorkDescription: "x"})
			return err
		}},
		{"unknown installment", func() error {
			_, _, err := h.UpdateInstallment(ctx, nil, UpdateInstallmentInput{CaseID: "c1", InstallmentID: "zz", Status: "Paid"})
			return err
		}},
		{"bad decision", func() error {
			_, _, err := h.RespondToApproval(ctx, nil, RespondToApprovalInput{CaseID: "c1", ApprovalID: "a1", Decision: "maybe"})
			return err
		}},
		{"unknown milestone", func() error {
			_, _, err := h.MarkLeadMilestone(ctx, nil, MarkLeadMilestoneInput{CaseID: "c1", Milestone: "handshake"})
			return err
		}},
		{"stage out of range", func() error {
			_, _, err := h.UpdatePhase(ctx, nil, UpdatePhaseInput{CaseID: "c1", StageID: 9, Status: "completed"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.call())
		})
	}
}

func TestTimesheetHandlers(t *testing.T) {
	database := setupTestDB(t)
	h := NewTimesheetHandlers(database, reports.NewService(database))
	ctx := context.Background()

	_, in, err := h.ClockIn(ctx, nil, ClockInInput{UserID: "u1", UserName: "Ravi", CaseID: "c1", At: "2025-03-03T08:00:00Z"})
	require.NoError(t, err)
	assert.Empty(t, in.ClockOut)

	_, _, err = h.ClockIn(ctx, nil, ClockInInput{UserID: "u1", At: "2025-03-03T09:00:00Z"})
	assert.ErrorIs(t, err, db.ErrAlreadyClockedIn)

	_, out, err := h.ClockOut(ctx, nil, ClockOutInput{UserID: "u1", At: "2025-03-03T18:30:00Z"})
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, 10.5, out.Hours)

	_, _, err = h.ClockOut(ctx, nil, ClockOutInput{UserID: "u1"})
	assert.Error(t, err)

	_, sum, err := h.SummarizeTimesheet(ctx, nil, SummarizeTimesheetInput{From: "2025-03-03", To: "2025-03-04"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Entries)
	assert.Equal(t, 10.5, sum.TotalHours)
	assert.Equal(t, 2.5, sum.OvertimeHours)
	assert.Equal(t, 3.75, sum.WeightedHours)
	require.Len(t, sum.Projects, 1)
	assert.Equal(t, "c1", sum.Projects[0].CaseID)

	_, _, err = h.SummarizeTimesheet(ctx, nil, SummarizeTimesheetInput{From: "March"})
	assert.Error(t, err)
}

func TestResources(t *testing.T) {
	h := NewResourceHandlers(setupStore(t), clock)
	ctx := context.Background()

	res, err := h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "fitout://cases"}})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "Whitefield 3BHK")

	res, err = h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "fitout://cases/c1/project"}})
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, `"currentStageId": 2`)

	_, err = h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "fitout://suppliers"}})
	assert.Error(t, err)
	_, err = h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "fitout://deals"}})
	assert.Error(t, err)
}

func TestPrompts(t *testing.T) {
	h := NewPromptHandlers(setupStore(t), clock)
	ctx := context.Background()

	for _, p := range Prompts() {
		t.Run(p.Name, func(t *testing.T) {
			res, err := h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: p.Name, Arguments: map[string]string{"case_id": "c1"}}})
			require.NoError(t, err)
			require.Len(t, res.Messages, 1)
			text := res.Messages[0].Content.(*mcp.TextContent).Text
			assert.Contains(t, text, "Whitefield 3BHK")
		})
	}

	res, err := h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "payment-reminder", Arguments: map[string]string{"case_id": "c1"}}})
	require.NoError(t, err)
	assert.True(t, strings.Contains(res.Messages[0].Content.(*mcp.TextContent).Text, "Next installment: Civil"))

	_, err = h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "vendor-digest", Arguments: map[string]string{"case_id": "c1"}}})
	assert.Error(t, err)
	_, err = h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "payment-reminder"}})
	assert.Error(t, err)
}

func TestServerSession(t *testing.T) {
	store := setupStore(t)
	database := setupTestDB(t)
	server := NewServer(store, database, reports.NewService(database), "test")
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = serverSession.Close() }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "get_client_project")
	assert.Contains(t, names, "summarize_timesheet")
	assert.Len(t, names, 12)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_cases",
		Arguments: map[string]any{"query": "mehta"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "Whitefield 3BHK")
}
