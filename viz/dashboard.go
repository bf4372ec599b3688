// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Provides an ASCII overview of every case in the portfolio
package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/fitout/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Portfolio buckets, in display order.
const (
	BucketLead       = "lead"
	BucketBooked     = "booked"
	BucketInProgress = "in_progress"
	BucketHandover   = "handover"
)

// StaleAfter is how long a running project can go without a site log before
// it needs attention.
const StaleAfter = 7 * 24 * time.Hour

type DashboardStats struct {
	ByBucket map[string]BucketStats

	TotalCases   int
	TotalBudget  float64
	TotalPaid    float64
	OpenRequests int

	OverdueInstallments []OverdueInstallment
	StaleProjects       []StaleProject
}

type BucketStats struct {
	Bucket string
	Count  int
	Budget float64
}

type OverdueInstallment struct {
	CaseID      string
	ProjectName string
	Name        string
	Amount      float64
	DaysOverdue int
}

type StaleProject struct {
	CaseID      string
	ProjectName string
	DaysSince   int // -1 when no log was ever recorded
}

// Bucket places a project in the portfolio pipeline.
func Bucket(p *models.ClientProject) string {
	if len(p.Stages) > 0 {
		done := 0
		for _, s := range p.Stages {
			switch s.Status {
			case models.StageInProgress:
				return BucketInProgress
			case models.StageCompleted:
				done++
			}
		}
		if done == len(p.Stages) {
			return BucketHandover
		}
		if done > 0 {
			return BucketInProgress
		}
	}
	if p.TotalPaid > 0 {
		return BucketBooked
	}
	return BucketLead
}

func GenerateDashboardStats(projects []*models.ClientProject, now time.Time) *DashboardStats {
	stats := &DashboardStats{
		ByBucket:   make(map[string]BucketStats),
		TotalCases: len(projects),
	}

	for _, p := range projects {
		bucket := Bucket(p)
		bstats := stats.ByBucket[bucket]
		bstats.Bucket = bucket
		bstats.Count++
		bstats.Budget += p.TotalBudget
		stats.ByBucket[bucket] = bstats

		stats.TotalBudget += p.TotalBudget
		stats.TotalPaid += p.TotalPaid
		for _, r := range p.Requests {
			if r.Status == models.RequestOpen {
				stats.OpenRequests++
			}
		}

		for _, m := range p.PaymentMilestones {
			if m.IsPaid || m.DueDate == nil || !m.DueDate.Before(now) {
				continue
			}
			stats.OverdueInstallments = append(stats.OverdueInstallments, OverdueInstallment{
				CaseID:      p.ID,
				ProjectName: p.ProjectName,
				Name:        m.Name,
				Amount:      m.Amount,
				DaysOverdue: int(now.Sub(*m.DueDate).Hours() / 24),
			})
		}

		if bucket != BucketInProgress {
			continue
		}
		var last time.Time
		for _, u := range p.DailyUpdates {
			if u.Date != nil && u.Date.After(last) {
				last = *u.Date
			}
		}
		switch {
		case last.IsZero():
			stats.StaleProjects = append(stats.StaleProjects, StaleProject{CaseID: p.ID, ProjectName: p.ProjectName, DaysSince: -1})
		case now.Sub(last) > StaleAfter:
			stats.StaleProjects = append(stats.StaleProjects, StaleProject{
				CaseID:      p.ID,
				ProjectName: p.ProjectName,
				DaysSince:   int(now.Sub(last).Hours() / 24),
			})
		}
	}

	return stats
}

func RenderDashboard(stats *DashboardStats, tag language.Tag) string {
	pr := message.NewPrinter(tag)
	var out strings.Builder

	out.WriteString(rule)
	out.WriteString("  FITOUT PORTFOLIO DASHBOARD\n")
	out.WriteString(rule + "\n")

	out.WriteString("PIPELINE\n")
	renderPipeline(&out, pr, stats.ByBucket)
	out.WriteString("\n")

	out.WriteString("STATS\n")
	out.WriteString(pr.Sprintf("  🏠 %d cases  💰 %.0f collected of %.0f  ✋ %d open requests\n\n",
		stats.TotalCases, stats.TotalPaid, stats.TotalBudget, stats.OpenRequests))

	if len(stats.OverdueInstallments) > 0 || len(stats.StaleProjects) > 0 {
		out.WriteString("NEEDS ATTENTION\n")
		for _, o := range stats.OverdueInstallments {
			out.WriteString(pr.Sprintf("  ⚠️  %s: %s overdue %d days (%.0f)\n", o.ProjectName, o.Name, o.DaysOverdue, o.Amount))
		}
		for _, s := range stats.StaleProjects {
			if s.DaysSince < 0 {
				out.WriteString(fmt.Sprintf("  ⚠️  %s: no site logs yet\n", s.ProjectName))
				continue
			}
			out.WriteString(fmt.Sprintf("  ⚠️  %s: no site log in %d days\n", s.ProjectName, s.DaysSince))
		}
	}

	return out.String()
}

func renderPipeline(out *strings.Builder, pr *message.Printer, pipeline map[string]BucketStats) {
	buckets := []string{BucketLead, BucketBooked, BucketInProgress, BucketHandover}

	maxCount := 0
	for _, b := range pipeline {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, bucket := range buckets {
		b, exists := pipeline[bucket]
		if !exists {
			continue
		}
		bar := progressBar(b.Count*100/maxCount, 10)
		out.WriteString(pr.Sprintf("  %-12s %s  %2d (%.0f)\n", bucket, bar, b.Count, b.Budget))
	}
}
