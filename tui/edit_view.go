package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/docstore"
)

func (m Model) renderComposeView() string {
	var s strings.Builder

	// Title
	name := m.caseID
	if m.state.Project != nil {
		name = m.state.Project.ProjectName
	}
	s.WriteString(titleStyle.Render("MESSAGE " + strings.ToUpper(name)))
	s.WriteString("\n\n")

	s.WriteString("> ")
	s.WriteString(m.compose.View())
	s.WriteString("\n")

	if m.notice != "" {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(m.notice))
		s.WriteString("\n")
	}

	// Help
	s.WriteString(m.renderComposeHelp())

	return s.String()
}

func (m Model) renderComposeHelp() string {
	help := []string{
		"Enter: Send",
		"Esc: Cancel",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleComposeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.compose.Blur()
		m.viewMode = ViewProject
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.compose.Value())
		if text == "" {
			return m, nil
		}
		m.compose.Blur()
		return m, sendChat(m.store, m.caseID, m.opts.SenderName, text)
	}

	// Update the input
	var cmd tea.Cmd
	m.compose, cmd = m.compose.Update(msg)
	return m, cmd
}

// sendChat posts the message; the watcher delivers the updated projection.
func sendChat(store docstore.Writer, caseID, sender, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := cases.SendChatMessage(context.Background(), store, caseID, cases.ChatInput{
			SenderName: sender,
			Role:       "designer",
			Message:    text,
		})
		return chatSentMsg{err: err}
	}
}
