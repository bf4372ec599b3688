// ABOUTME: Tests for Gantt geometry, timeline graphs and the terminal summary
// ABOUTME: Builds projections in memory; no store needed
package viz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-graphviz"
	"github.com/harperreed/fitout/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func date(d int) *time.Time {
	t := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
	return &t
}

func sampleProject() *models.ClientProject {
	return &models.ClientProject{
		ID:          "c1",
		ClientName:  "Mehta",
		ProjectName: "Whitefield 3BHK",
		StartDate:   date(0),
		EndDate:     date(100),
		Stages: []models.JourneyStage{
			{ID: 1, Name: "Design", Status: models.StageCompleted, StartDate: date(0), EndDate: date(20), CompletionPercent: 100},
			{ID: 2, Name: "Civil", Status: models.StageInProgress, StartDate: date(20), EndDate: date(70), CompletionPercent: 40},
			{ID: 3, Name: "Handover", Status: models.StageLocked},
			{ID: 4, Name: "Snagging", Status: models.StageLocked, StartDate: date(90), EndDate: date(130)},
		},
		PaymentMilestones: []models.PaymentMilestone{
			{Name: "Booking", Amount: 100000, Status: "Paid", IsPaid: true, IsUnlocked: true},
			{Name: "Civil", Amount: 150000, Status: "Pending", IsUnlocked: true},
		},
		TotalPaid:                100000,
		TotalBudget:              250000,
		BudgetUtilizationPercent: 40,
		CurrentStageID:           2,
	}
}

func TestGanttBars(t *testing.T) {
	bars := GanttBars(sampleProject())

	require.Len(t, bars, 4)
	assert.True(t, bars[0].HasDates)
	assert.InDelta(t, 0, bars[0].OffsetPercent, 0.001)
	assert.InDelta(t, 20, bars[0].WidthPercent, 0.001)
	assert.InDelta(t, 20, bars[1].OffsetPercent, 0.001)
	assert.InDelta(t, 50, bars[1].WidthPercent, 0.001)
	assert.False(t, bars[2].HasDates)
	assert.Zero(t, bars[2].WidthPercent)
	// Clamped to the project window.
	assert.InDelta(t, 90, bars[3].OffsetPercent, 0.001)
	assert.InDelta(t, 10, bars[3].WidthPercent, 0.001)
}

func TestGanttBars_WindowFromStages(t *testing.T) {
	p := sampleProject()
	p.StartDate = nil
	p.EndDate = nil

	bars := GanttBars(p)
	// Window is day 0 to day 130.
	assert.InDelta(t, 90.0/130*100, bars[3].OffsetPercent, 0.001)
	assert.InDelta(t, 100-90.0/130*100, bars[3].WidthPercent, 0.001)
}

func TestGanttBars_NoWindow(t *testing.T) {
	p := &models.ClientProject{Stages: []models.JourneyStage{{ID: 1, Name: "Design"}}}
	bars := GanttBars(p)
	require.Len(t, bars, 1)
	assert.False(t, bars[0].HasDates)
}

func TestRenderGantt(t *testing.T) {
	out := RenderGantt(sampleProject(), 20)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "████")
	assert.Contains(t, lines[1], "▓▓▓▓▓▓▓▓▓▓")
	assert.NotContains(t, lines[2], "░")
}

func TestGenerateTimelineGraph(t *testing.T) {
	out, err := GenerateTimelineGraph(context.Background(), sampleProject(), graphviz.XDOT)
	require.NoError(t, err)

	dot := string(out)
	assert.Contains(t, dot, "stage1")
	assert.Contains(t, dot, "stage4")
	assert.Contains(t, dot, "stage1 -> stage2")
	assert.Contains(t, dot, "gold")
}

func TestGenerateTimelineGraph_SVG(t *testing.T) {
	out, err := GenerateTimelineGraph(context.Background(), sampleProject(), graphviz.SVG)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<svg")
}

func TestRenderPortalSummary(t *testing.T) {
	p := sampleProject()
	p.LeadJourneySteps = []models.LeadJourneyStep{{Key: "callInitiated", Label: "Initial Call", Status: "completed", CompletedAt: date(-30)}, {Key: "quotationShared", Label: "Quotation", Status: "completed"}}

	out := RenderPortalSummary(p, language.English)

	assert.Contains(t, out, "WHITEFIELD 3BHK")
	assert.Contains(t, out, "Paid 100,000 of 250,000 (40%)")
	assert.Contains(t, out, "Initial Call")
	assert.Contains(t, out, "date unknown")
	assert.Contains(t, out, "Current stage: 2")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "██████████", progressBar(150, 10))
	assert.Equal(t, "░░░░░░░░░░", progressBar(0, 10))
	assert.Equal(t, "████░░░░░░", progressBar(40, 10))
}

func TestBucket(t *testing.T) {
	tests := []struct {
		name    string
		project *models.ClientProject
		want    string
	}{
		{"no stages no payment", &models.ClientProject{}, BucketLead},
		{"paid but not started", &models.ClientProject{TotalPaid: 10, Stages: []models.JourneyStage{{Status: models.StageLocked}}}, BucketBooked},
		{"running", sampleProject(), BucketInProgress},
		{"between stages", &models.ClientProject{Stages: []models.JourneyStage{{Status: models.StageCompleted}, {Status: models.StageLocked}}}, BucketInProgress},
		{"all done", &models.ClientProject{Stages: []models.JourneyStage{{Status: models.StageCompleted}}}, BucketHandover},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bucket(tt.project))
		})
	}
}

func TestDashboard(t *testing.T) {
	now := *date(40)
	running := sampleProject()
	running.PaymentMilestones[1].DueDate = date(30)
	running.Requests = []models.ClientRequest{{Status: models.RequestOpen}, {Status: models.RequestResolved}}
	running.DailyUpdates = []models.ClientDailyUpdateItem{{Date: date(20)}}

	lead := &models.ClientProject{ID: "c2", ProjectName: "Koramangala Flat", TotalBudget: 50000}

	stats := GenerateDashboardStats([]*models.ClientProject{running, lead}, now)

	assert.Equal(t, 2, stats.TotalCases)
	assert.Equal(t, 300000.0, stats.TotalBudget)
	assert.Equal(t, 100000.0, stats.TotalPaid)
	assert.Equal(t, 1, stats.OpenRequests)
	assert.Equal(t, 1, stats.ByBucket[BucketLead].Count)
	assert.Equal(t, 1, stats.ByBucket[BucketInProgress].Count)

	require.Len(t, stats.OverdueInstallments, 1)
	assert.Equal(t, 10, stats.OverdueInstallments[0].DaysOverdue)
	require.Len(t, stats.StaleProjects, 1)
	assert.Equal(t, 20, stats.StaleProjects[0].DaysSince)

	out := RenderDashboard(stats, language.English)
	assert.Contains(t, out, "FITOUT PORTFOLIO DASHBOARD")
	assert.Contains(t, out, "100,000 collected of 300,000")
	assert.Contains(t, out, "Civil overdue 10 days")
	assert.Contains(t, out, "no site log in 20 days")
}
