// ABOUTME: MCP server assembly
// ABOUTME: Registers every portal, case, and timesheet tool plus resources and prompts
package handlers

import (
	"database/sql"
	"time"

	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/reports"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer builds the MCP server. database may be nil, in which case the
// timesheet tools are not registered.
func NewServer(store docstore.Store, database *sql.DB, svc *reports.Service, version string) *mcp.Server {
	now := time.Now
	portalHandlers := NewPortalHandlers(store, now)
	caseHandlers := NewCaseHandlers(store)
	resourceHandlers := NewResourceHandlers(store, now)
	promptHandlers := NewPromptHandlers(store, now)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "fitout",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_client_project",
		Description: "Get the client portal view of a case: payments, stages, schedule, lead journey, updates, messages, and requests",
	}, portalHandlers.GetClientProject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_cases",
		Description: "List cases with budget, payment, and stage progress",
	}, portalHandlers.ListCases)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_project_timeline",
		Description: "Render a case's stage timeline as GraphViz DOT and a text Gantt chart",
	}, portalHandlers.GetProjectTimeline)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_chat_message",
		Description: "Post a message to a case's client chat",
	}, caseHandlers.SendChatMessage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "append_daily_log",
		Description: "Record a daily site progress report on a case",
	}, caseHandlers.AppendDailyLog)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_installment",
		Description: "Update a payment installment's status, amount, name, or due date",
	}, caseHandlers.UpdateInstallment)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "respond_to_approval",
		Description: "Approve or reject a pending client request",
	}, caseHandlers.RespondToApproval)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "mark_lead_milestone",
		Description: "Record when a pre-sales milestone happened (call, site visit, design, quotation, booking)",
	}, caseHandlers.MarkLeadMilestone)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_phase",
		Description: "Change an execution phase's status and completion",
	}, caseHandlers.UpdatePhase)

	if database != nil && svc != nil {
		timesheetHandlers := NewTimesheetHandlers(database, svc)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "clock_in",
			Description: "Start a time entry for a user, optionally against a case",
		}, timesheetHandlers.ClockIn)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "clock_out",
			Description: "Stop a user's running time entry",
		}, timesheetHandlers.ClockOut)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "summarize_timesheet",
			Description: "Total, overtime, untracked, and per-project hours for a date range",
		}, timesheetHandlers.SummarizeTimesheet)
	}

	server.AddResource(CaseListResource(), resourceHandlers.ReadResource)
	server.AddResourceTemplate(ProjectResourceTemplate(), resourceHandlers.ReadResource)
	for _, p := range Prompts() {
		server.AddPrompt(p, promptHandlers.GetPrompt)
	}

	return server
}
