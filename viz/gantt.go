// ABOUTME: Gantt bar positions for project stages
// ABOUTME: Places each stage inside the project window as offset and width percentages
package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/fitout/models"
)

type GanttBar struct {
	StageID       int
	Name          string
	Status        string
	OffsetPercent float64
	WidthPercent  float64
	HasDates      bool
}

// projectWindow returns the plan dates. A missing plan date falls back to
// the earliest stage start or latest stage end.
func projectWindow(p *models.ClientProject) (time.Time, time.Time, bool) {
	var start, end time.Time
	if p.StartDate != nil {
		start = *p.StartDate
	} else {
		for _, s := range p.Stages {
			if s.StartDate != nil && (start.IsZero() || s.StartDate.Before(start)) {
				start = *s.StartDate
			}
		}
	}
	if p.EndDate != nil {
		end = *p.EndDate
	} else {
		for _, s := range p.Stages {
			if s.EndDate != nil && s.EndDate.After(end) {
				end = *s.EndDate
			}
		}
	}
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func clampPercent(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return f
}

// GanttBars positions every stage. Stages without both dates, or a project
// without a usable window, get HasDates false and zero geometry.
func GanttBars(p *models.ClientProject) []GanttBar {
	bars := make([]GanttBar, 0, len(p.Stages))
	start, end, ok := projectWindow(p)
	total := end.Sub(start)

	for _, s := range p.Stages {
		bar := GanttBar{StageID: s.ID, Name: s.Name, Status: s.Status}
		if ok && s.StartDate != nil && s.EndDate != nil && !s.EndDate.Before(*s.StartDate) {
			offset := clampPercent(float64(s.StartDate.Sub(start)) / float64(total) * 100)
			finish := clampPercent(float64(s.EndDate.Sub(start)) / float64(total) * 100)
			bar.OffsetPercent = offset
			bar.WidthPercent = finish - offset
			bar.HasDates = true
		}
		bars = append(bars, bar)
	}
	return bars
}

// RenderGantt draws the bars as a text chart width columns wide.
func RenderGantt(p *models.ClientProject, width int) string {
	if width < 10 {
		width = 10
	}
	var out strings.Builder
	for _, b := range GanttBars(p) {
		line := []rune(strings.Repeat("·", width))
		if b.HasDates {
			from := int(b.OffsetPercent / 100 * float64(width))
			to := int((b.OffsetPercent + b.WidthPercent) / 100 * float64(width))
			if to == from && to < width {
				to++
			}
			for i := from; i < to && i < width; i++ {
				line[i] = statusGlyph(b.Status)
			}
		}
		out.WriteString(fmt.Sprintf("  %2d %-18s %s\n", b.StageID, truncate(b.Name, 18), string(line)))
	}
	return out.String()
}

func statusGlyph(status string) rune {
	switch status {
	case models.StageCompleted:
		return '█'
	case models.StageInProgress:
		return '▓'
	default:
		return '░'
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
