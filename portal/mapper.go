// ABOUTME: Pure mapping from a stored case record to the client project projection
// ABOUTME: Normalizes dates, translates statuses and computes budget and schedule aggregates
package portal

import (
	"math"
	"time"

	"github.com/harperreed/fitout/models"
)

// DefaultResponsibleRole is shown on every stage; phases do not record an owner.
const DefaultResponsibleRole = "Project Manager"

const day = 24 * time.Hour

// RawCaseToClientProject builds the full projection from one snapshot of a
// case. now is used for days-remaining arithmetic and for chat messages that
// carry no timestamp. Malformed fields degrade to zero values; this never fails.
func RawCaseToClientProject(raw *models.RawCase, now time.Time) *models.ClientProject {
	p := &models.ClientProject{
		ID:          raw.ID,
		ClientName:  raw.ClientName,
		ProjectName: raw.DisplayName(),
		StartDate:   raw.ExecutionPlan.StartDate.Ptr(),
		EndDate:     raw.ExecutionPlan.EndDate.Ptr(),
		Health: models.ProjectHealth{
			Status:               raw.Health.Status,
			RiskLevel:            raw.Health.RiskLevel,
			CompletionPercentage: raw.Health.CompletionPercentage.Float(),
		},
	}

	p.PaymentMilestones = mapMilestones(raw.Financial.InstallmentSchedule)
	p.Stages = mapStages(raw.ExecutionPlan.Phases)
	p.LeadJourneySteps = mapLeadJourney(raw.LeadJourney)
	p.DailyUpdates = mapDailyLogs(raw.DailyLogs)
	p.Messages = mapChat(raw.Chat, now)
	p.Requests = mapApprovals(raw.Approvals)

	for _, m := range p.PaymentMilestones {
		if m.IsPaid {
			p.TotalPaid += m.Amount
		}
	}
	p.TotalBudget = raw.Financial.TotalBudget.Float()
	p.BudgetUtilizationPercent = utilization(p.TotalPaid, p.TotalBudget)

	p.DaysRemaining = daysRemaining(p.EndDate, raw.Health.DaysRemaining, now)
	if p.StartDate != nil && p.EndDate != nil {
		p.TotalDurationDays = ceilDays(p.EndDate.Sub(*p.StartDate))
	}
	// Can go negative when health.daysRemaining disagrees with the plan dates.
	p.DaysCompleted = p.TotalDurationDays - p.DaysRemaining
	p.CurrentStageID = currentStageID(p.Stages)

	return p
}

func mapMilestones(schedule []models.RawInstallment) []models.PaymentMilestone {
	out := make([]models.PaymentMilestone, 0, len(schedule))
	allPriorPaid := true
	for _, inst := range schedule {
		paid := inst.Status == models.InstallmentPaid
		out = append(out, models.PaymentMilestone{
			ID:         inst.ID,
			Name:       inst.MilestoneName,
			Percentage: inst.Percentage.Float(),
			Amount:     inst.Amount.Float(),
			Status:     inst.Status,
			DueDate:    inst.DueDate.Ptr(),
			PaidAt:     inst.PaidAt.Ptr(),
			IsPaid:     paid,
			IsUnlocked: paid || allPriorPaid,
		})
		allPriorPaid = allPriorPaid && paid
	}
	return out
}

func mapStages(phases []models.RawPhase) []models.JourneyStage {
	out := make([]models.JourneyStage, 0, len(phases))
	for i, ph := range phases {
		out = append(out, models.JourneyStage{
			ID:                i + 1,
			Name:              ph.Name,
			Status:            stageStatus(ph.Status),
			StartDate:         ph.StartDate.Ptr(),
			EndDate:           ph.EndDate.Ptr(),
			CompletionPercent: ph.CompletionPercent.Float(),
			ResponsibleRole:   DefaultResponsibleRole,
		})
	}
	return out
}

func stageStatus(phaseStatus string) string {
	switch phaseStatus {
	case models.PhaseCompleted:
		return models.StageCompleted
	case models.PhaseInProgress:
		return models.StageInProgress
	default:
		return models.StageLocked
	}
}

func mapLeadJourney(journey map[string]models.Timestamp) []models.LeadJourneyStep {
	out := make([]models.LeadJourneyStep, 0, len(leadMilestones))
	for _, m := range leadMilestones {
		ts, ok := journey[m.Key]
		if !ok || !ts.Present() {
			continue
		}
		out = append(out, models.LeadJourneyStep{
			Key:         m.Key,
			Label:       m.Label,
			Status:      models.StageCompleted,
			CompletedAt: ts.Ptr(),
		})
	}
	return out
}

func mapDailyLogs(logs []models.RawDailyLog) []models.ClientDailyUpdateItem {
	out := make([]models.ClientDailyUpdateItem, 0, len(logs))
	for _, l := range logs {
		photos := l.Photos
		if photos == nil {
			photos = []string{}
		}
		out = append(out, models.ClientDailyUpdateItem{
			ID:                l.ID,
			Date:              l.Date.Ptr(),
			WorkDescription:   l.WorkDescription,
			CompletionPercent: l.CompletionPercent.Float(),
			ManpowerCount:     l.ManpowerCount.Int(),
			Photos:            photos,
			Blocker:           l.Blocker,
		})
	}
	return out
}

func mapChat(chat []models.RawChatMessage, now time.Time) []models.ClientMessage {
	out := make([]models.ClientMessage, 0, len(chat))
	for _, c := range chat {
		ts, ok := c.Timestamp.Time()
		if !ok {
			ts = now
		}
		attachments := c.Attachments
		if attachments == nil {
			attachments = []string{}
		}
		out = append(out, models.ClientMessage{
			ID:          c.ID,
			SenderID:    c.SenderID,
			SenderName:  c.SenderName,
			Role:        c.Role,
			Message:     c.Message,
			Type:        c.Type,
			Timestamp:   ts,
			Attachments: attachments,
		})
	}
	return out
}

func mapApprovals(approvals []models.RawApproval) []models.ClientRequest {
	out := make([]models.ClientRequest, 0, len(approvals))
	for _, a := range approvals {
		out = append(out, models.ClientRequest{
			ID:           a.ID,
			Type:         a.Type,
			Status:       requestStatus(a.Status),
			Payload:      a.Payload,
			CreatedAt:    a.CreatedAt.Ptr(),
			Conversation: []models.RequestMessage{},
		})
	}
	return out
}

func requestStatus(approvalStatus string) string {
	switch approvalStatus {
	case models.ApprovalPending:
		return models.RequestOpen
	case models.ApprovalApproved:
		return models.RequestResolved
	default:
		return models.RequestInProgress
	}
}

func utilization(paid, budget float64) int {
	if budget <= 0 {
		return 0
	}
	pct := math.Round(paid / budget * 100)
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return int(pct)
}

// daysRemaining prefers the plan end date and only consults the stored health
// figure when the plan has no end date.
func daysRemaining(end *time.Time, fallback models.OptionalNumber, now time.Time) int {
	if end != nil {
		d := ceilDays(end.Sub(now))
		if d < 0 {
			return 0
		}
		return d
	}
	if fallback.Set {
		return fallback.Value.Int()
	}
	return 0
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

func currentStageID(stages []models.JourneyStage) int {
	for _, s := range stages {
		if s.Status == models.StageInProgress {
			return s.ID
		}
	}
	if len(stages) > 0 {
		return stages[len(stages)-1].ID
	}
	return 1
}
