// ABOUTME: Terminal summary of a client project
// ABOUTME: Renders payments, schedule, stages and lead journey as plain text
package viz

import (
	"fmt"
	"strings"

	"github.com/harperreed/fitout/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"

// RenderPortalSummary formats p for a terminal. Amounts are grouped for tag
// (en-IN gives lakh grouping).
func RenderPortalSummary(p *models.ClientProject, tag language.Tag) string {
	pr := message.NewPrinter(tag)
	var out strings.Builder

	out.WriteString(rule)
	out.WriteString(fmt.Sprintf("  %s\n", strings.ToUpper(p.ProjectName)))
	if p.ClientName != "" {
		out.WriteString(fmt.Sprintf("  Client: %s\n", p.ClientName))
	}
	out.WriteString(rule + "\n")

	out.WriteString("PAYMENTS\n")
	out.WriteString(pr.Sprintf("  Paid %.0f of %.0f (%d%%)\n", p.TotalPaid, p.TotalBudget, p.BudgetUtilizationPercent))
	out.WriteString("  " + progressBar(p.BudgetUtilizationPercent, 20) + "\n")
	for _, m := range p.PaymentMilestones {
		mark := "○"
		switch {
		case m.IsPaid:
			mark = "●"
		case m.IsUnlocked:
			mark = "◐"
		}
		out.WriteString(pr.Sprintf("  %s %-20s %12.0f  %s\n", mark, truncate(m.Name, 20), m.Amount, m.Status))
	}
	out.WriteString("\n")

	out.WriteString("SCHEDULE\n")
	if p.StartDate != nil && p.EndDate != nil {
		out.WriteString(fmt.Sprintf("  %s → %s\n", p.StartDate.Format("02 Jan 2006"), p.EndDate.Format("02 Jan 2006")))
	}
	out.WriteString(fmt.Sprintf("  %d days remaining, %d of %d days elapsed\n\n", p.DaysRemaining, p.DaysCompleted, p.TotalDurationDays))

	if len(p.Stages) > 0 {
		out.WriteString("STAGES\n")
		out.WriteString(RenderGantt(p, 30))
		out.WriteString(fmt.Sprintf("  Current stage: %d\n\n", p.CurrentStageID))
	}

	if len(p.LeadJourneySteps) > 0 {
		out.WriteString("LEAD JOURNEY\n")
		for _, s := range p.LeadJourneySteps {
			when := "date unknown"
			if s.CompletedAt != nil {
				when = s.CompletedAt.Format("02 Jan 2006")
			}
			out.WriteString(fmt.Sprintf("  ✓ %-20s %s\n", s.Label, when))
		}
		out.WriteString("\n")
	}

	open := 0
	for _, r := range p.Requests {
		if r.Status == models.RequestOpen {
			open++
		}
	}
	out.WriteString("ACTIVITY\n")
	out.WriteString(fmt.Sprintf("  💬 %d messages  📋 %d daily updates  ✋ %d open requests\n", len(p.Messages), len(p.DailyUpdates), open))
	if p.Health.Status != "" {
		out.WriteString(fmt.Sprintf("  Health: %s (risk %s)\n", p.Health.Status, p.Health.RiskLevel))
	}

	return out.String()
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
