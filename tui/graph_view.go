package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/fitout/viz"
)

var stageDetailStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("252"))

func (m Model) renderTimelineView() string {
	var s strings.Builder
	p := m.state.Project

	// Title
	s.WriteString(titleStyle.Render("TIMELINE"))
	s.WriteString("\n\n")

	if p == nil {
		s.WriteString("Loading...\n")
		s.WriteString(m.renderTimelineHelp())
		return s.String()
	}

	if p.StartDate != nil && p.EndDate != nil {
		s.WriteString(fmt.Sprintf("%s → %s  (%d of %d days)\n\n",
			p.StartDate.Format("02 Jan 2006"), p.EndDate.Format("02 Jan 2006"),
			p.DaysCompleted, p.TotalDurationDays))
	}

	width := m.width - 30
	if width < 20 {
		width = 20
	}
	s.WriteString(viz.RenderGantt(p, width))
	s.WriteString("\n")

	for _, st := range p.Stages {
		line := fmt.Sprintf("%2d. %-20s %-12s %3.0f%%", st.ID, st.Name, st.Status, st.CompletionPercent)
		if st.ResponsibleRole != "" {
			line += "  " + st.ResponsibleRole
		}
		if st.ID == p.CurrentStageID {
			line = titleStyle.UnsetMarginBottom().Render(line)
		} else {
			line = stageDetailStyle.Render(line)
		}
		s.WriteString(line + "\n")
	}

	s.WriteString(m.renderTimelineHelp())
	return s.String()
}

func (m Model) renderTimelineHelp() string {
	help := []string{
		"Esc: Back",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleTimelineKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = ViewProject
	}
	return m, nil
}
