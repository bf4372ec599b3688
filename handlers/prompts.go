// ABOUTME: MCP prompt handlers for reusable client-communication templates
// ABOUTME: Provides prompts for status updates, payment reminders, and site reports
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/models"
	"github.com/harperreed/fitout/portal"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	store docstore.Store
	now   func() time.Time
}

func NewPromptHandlers(store docstore.Store, now func() time.Time) *PromptHandlers {
	if now == nil {
		now = time.Now
	}
	return &PromptHandlers{store: store, now: now}
}

// Prompts lists the templates GetPrompt understands.
func Prompts() []*mcp.Prompt {
	caseArg := []*mcp.PromptArgument{{Name: "case_id", Description: "Case ID", Required: true}}
	return []*mcp.Prompt{
		{Name: "project-status-update", Description: "Draft a status update for the client", Arguments: caseArg},
		{Name: "payment-reminder", Description: "Draft a polite reminder for the next unpaid installment", Arguments: caseArg},
		{Name: "site-report-digest", Description: "Summarize the latest daily site logs", Arguments: caseArg},
	}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	caseID, ok := request.Params.Arguments["case_id"]
	if !ok || caseID == "" {
		return nil, fmt.Errorf("case_id is required")
	}
	raw, err := cases.GetCase(ctx, h.store, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}
	p := portal.RawCaseToClientProject(raw, h.now())

	switch request.Params.Name {
	case "project-status-update":
		return statusUpdatePrompt(p), nil
	case "payment-reminder":
		return paymentReminderPrompt(p)
	case "site-report-digest":
		return siteReportPrompt(p), nil
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			},
		},
	}
}

func statusUpdatePrompt(p *models.ClientProject) *mcp.GetPromptResult {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("Project: %s\nClient: %s\n", p.ProjectName, p.ClientName))
	text.WriteString(fmt.Sprintf("Budget: %.0f paid of %.0f (%d%%)\n", p.TotalPaid, p.TotalBudget, p.BudgetUtilizationPercent))
	text.WriteString(fmt.Sprintf("Schedule: %d days remaining, %d of %d elapsed\n", p.DaysRemaining, p.DaysCompleted, p.TotalDurationDays))

	text.WriteString("\nStages:\n")
	for _, s := range p.Stages {
		marker := ""
		if s.ID == p.CurrentStageID {
			marker = " (current)"
		}
		text.WriteString(fmt.Sprintf("- %d. %s: %s, %.0f%%%s\n", s.ID, s.Name, s.Status, s.CompletionPercent, marker))
	}

	open := 0
	for _, r := range p.Requests {
		if r.Status == models.RequestOpen {
			open++
		}
	}
	if open > 0 {
		text.WriteString(fmt.Sprintf("\nThe client has %d approval request(s) awaiting a decision.\n", open))
	}

	text.WriteString("\nPlease write a short, friendly status update for the client covering:")
	text.WriteString("\n1. Progress on the current stage")
	text.WriteString("\n2. What happens next")
	text.WriteString("\n3. Anything the client needs to act on")

	return userPrompt(fmt.Sprintf("Status update for %s", p.ProjectName), text.String())
}

func paymentReminderPrompt(p *models.ClientProject) (*mcp.GetPromptResult, error) {
	var next *models.PaymentMilestone
	for i := range p.PaymentMilestones {
		if !p.PaymentMilestones[i].IsPaid {
			next = &p.PaymentMilestones[i]
			break
		}
	}
	if next == nil {
		return nil, fmt.Errorf("all installments for %s are paid", p.ID)
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("Client: %s\nProject: %s\n", p.ClientName, p.ProjectName))
	text.WriteString(fmt.Sprintf("Next installment: %s, amount %.0f, status %s\n", next.Name, next.Amount, next.Status))
	if next.DueDate != nil {
		text.WriteString(fmt.Sprintf("Due: %s\n", next.DueDate.Format("02 Jan 2006")))
	}
	text.WriteString(fmt.Sprintf("Paid so far: %.0f of %.0f\n", p.TotalPaid, p.TotalBudget))
	text.WriteString("\nPlease draft a polite payment reminder that ties the installment to the work it unlocks.")

	return userPrompt(fmt.Sprintf("Payment reminder for %s", p.ProjectName), text.String()), nil
}

func siteReportPrompt(p *models.ClientProject) *mcp.GetPromptResult {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("Project: %s\n\nRecent site logs:\n", p.ProjectName))

	logs := p.DailyUpdates
	if len(logs) > 7 {
		logs = logs[len(logs)-7:]
	}
	if len(logs) == 0 {
		text.WriteString("(none recorded)\n")
	}
	for _, l := range logs {
		day := "undated"
		if l.Date != nil {
			day = l.Date.Format("02 Jan")
		}
		text.WriteString(fmt.Sprintf("- %s: %s (%.0f%%, %d on site)", day, l.WorkDescription, l.CompletionPercent, l.ManpowerCount))
		if l.Blocker != "" {
			text.WriteString(fmt.Sprintf(" BLOCKER: %s", l.Blocker))
		}
		text.WriteString("\n")
	}

	text.WriteString("\nPlease summarize the week's progress for the client and call out any blockers.")
	return userPrompt(fmt.Sprintf("Site report digest for %s", p.ProjectName), text.String())
}
