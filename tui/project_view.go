package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/fitout/models"
	"github.com/harperreed/fitout/viz"
)

var (
	messageSenderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
)

// recentMessages is how many chat messages the project view shows.
const recentMessages = 5

func (m Model) renderProjectView() string {
	var s strings.Builder

	switch {
	case m.state.Project != nil:
		s.WriteString(viz.RenderPortalSummary(m.state.Project, m.opts.Language))
		s.WriteString(renderMessages(m.state.Project))
	case m.state.Loading:
		s.WriteString(titleStyle.Render("Loading " + m.caseID + "..."))
		s.WriteString("\n")
	}

	// A stale projection stays visible alongside a transport error.
	if m.state.Error != "" {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render("Error: " + m.state.Error))
		s.WriteString("\n")
	}
	if m.notice != "" {
		s.WriteString("\n")
		s.WriteString(noticeStyle.Render(m.notice))
		s.WriteString("\n")
	}

	s.WriteString(m.renderProjectHelp())
	return s.String()
}

func renderMessages(p *models.ClientProject) string {
	if len(p.Messages) == 0 {
		return ""
	}
	var s strings.Builder
	s.WriteString("MESSAGES\n")
	start := 0
	if len(p.Messages) > recentMessages {
		start = len(p.Messages) - recentMessages
	}
	for _, msg := range p.Messages[start:] {
		s.WriteString(fmt.Sprintf("  %s %s  %s\n",
			msg.Timestamp.Format("02 Jan 15:04"),
			messageSenderStyle.Render(msg.SenderName),
			msg.Message))
	}
	return s.String()
}

func (m Model) renderProjectHelp() string {
	help := []string{
		"t: Timeline",
		"m: Message client",
		"Esc: Back",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleProjectKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = ViewList
		return m, m.loadCases()
	case "t":
		if m.state.Project != nil {
			m.viewMode = ViewTimeline
		}
	case "m":
		if m.state.Project != nil {
			m.viewMode = ViewCompose
			m.notice = ""
			cmd := m.compose.Focus()
			return m, cmd
		}
	}
	return m, nil
}
