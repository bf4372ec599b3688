package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/fitout/portal"
	"golang.org/x/text/message"
)

func (m Model) renderListView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render("FITOUT"))
	s.WriteString("\n\n")

	// Tabs
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	// Table
	s.WriteString(m.renderCasesTable())
	s.WriteString("\n\n")

	// Help
	s.WriteString(m.renderListHelp())

	return s.String()
}

func (m Model) renderTabs() string {
	tabs := []struct {
		name string
		mode ViewMode
	}{{"Cases", ViewList}, {"Sync", ViewSync}}

	var rendered []string
	for _, tab := range tabs {
		if tab.mode == m.viewMode {
			rendered = append(rendered, tabActiveStyle.Render(tab.name))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(tab.name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderCasesTable() string {
	if len(m.projects) == 0 {
		return helpStyle.Render("No cases yet. Import one with 'fitout case import <file>'.")
	}

	pr := message.NewPrinter(m.opts.Language)
	columns := []table.Column{
		{Title: "Project", Width: 28},
		{Title: "Client", Width: 18},
		{Title: "Paid", Width: 6},
		{Title: "Budget", Width: 12},
		{Title: "Stage", Width: 6},
		{Title: "Days left", Width: 9},
	}

	var rows []table.Row
	for _, p := range m.projects {
		stage := "-"
		if len(p.Stages) > 0 {
			stage = fmt.Sprintf("%d/%d", p.CurrentStageID, len(p.Stages))
		}
		rows = append(rows, table.Row{
			p.ProjectName,
			p.ClientName,
			fmt.Sprintf("%d%%", p.BudgetUtilizationPercent),
			pr.Sprintf("%.0f", p.TotalBudget),
			stage,
			fmt.Sprintf("%d", p.DaysRemaining),
		})
	}

	height := m.height - 10
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	if m.selectedRow < len(rows) {
		t.SetCursor(m.selectedRow)
	}
	return t.View()
}

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Enter: Open",
		"r: Reload",
		"Tab: Sync",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < len(m.projects)-1 {
			m.selectedRow++
		}
	case "enter":
		if m.selectedRow < len(m.projects) {
			m.caseID = m.projects[m.selectedRow].ID
			m.state = portal.State{Loading: true}
			m.notice = ""
			m.viewMode = ViewProject
			return m, m.watch(m.caseID)
		}
	case "r":
		return m, m.loadCases()
	case "tab":
		m.viewMode = ViewSync
		return m, m.loadSyncStates()
	}
	return m, nil
}
