// ABOUTME: TUI view for calendar sync status and controls
// ABOUTME: Displays importer bookkeeping and runs a calendar import on demand
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/sync"
)

var (
	syncHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	syncServiceStyle = lipgloss.NewStyle().
				Bold(true).
				Width(12)

	syncIdleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	syncSyncingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)

	syncErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	syncMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)
)

// SyncCompleteMsg is sent when a calendar import completes.
type SyncCompleteMsg struct {
	Result *sync.ImportResult
	Error  error
}

type syncStatesMsg struct {
	states []db.SyncState
}

func (m Model) renderSyncView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render("FITOUT"))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	if m.opts.DB == nil {
		s.WriteString(syncMessageStyle.Render("Sync status needs the local database."))
		s.WriteString("\n\n")
		s.WriteString(m.renderSyncHelp())
		return s.String()
	}

	s.WriteString(syncHeaderStyle.Render("Service Status"))
	s.WriteString("\n\n")

	if len(m.syncStates) == 0 && !m.syncInProgress {
		s.WriteString(syncMessageStyle.Render("  Not synced yet. Run 'fitout sync init' first."))
		s.WriteString("\n")
	}
	for _, state := range m.syncStates {
		var row strings.Builder
		row.WriteString("  ")
		row.WriteString(syncServiceStyle.Render(serviceTitle(state.Service)))

		switch {
		case state.Status == db.SyncRunning || (m.syncInProgress && state.Service == "calendar"):
			row.WriteString(syncSyncingStyle.Render("  ⟳ Syncing..."))
		case state.Status == db.SyncError:
			row.WriteString(syncErrorStyle.Render("  ✗ Error"))
			if state.ErrorMessage != "" {
				row.WriteString(syncErrorStyle.Render(": " + state.ErrorMessage))
			}
		default:
			row.WriteString(syncIdleStyle.Render("  ✓ Idle"))
			if state.LastSyncTime != nil {
				row.WriteString(syncMessageStyle.Render(" • Last synced " + formatTimeSince(*state.LastSyncTime, m.opts.Now())))
			}
		}

		s.WriteString(row.String())
		s.WriteString("\n")
	}
	s.WriteString("\n")

	// Recent messages
	if len(m.syncMessages) > 0 {
		s.WriteString(syncHeaderStyle.Render("Recent Activity"))
		s.WriteString("\n\n")
		// Show last 5 messages
		start := 0
		if len(m.syncMessages) > 5 {
			start = len(m.syncMessages) - 5
		}
		for _, msg := range m.syncMessages[start:] {
			s.WriteString(syncMessageStyle.Render("  " + msg))
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	s.WriteString(m.renderSyncHelp())
	return s.String()
}

func (m Model) renderSyncHelp() string {
	help := []string{
		"s: Import calendar",
		"r: Refresh status",
		"Tab: Cases",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) loadSyncStates() tea.Cmd {
	database := m.opts.DB
	if database == nil {
		return nil
	}
	return func() tea.Msg {
		states, err := db.ListSyncStates(context.Background(), database)
		if err != nil {
			return syncStatesMsg{}
		}
		return syncStatesMsg{states: states}
	}
}

func (m Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "s":
		if m.opts.CalendarSync == nil {
			m.addSyncMessage("Calendar sync is not configured. Run 'fitout sync init'.")
			return m, nil
		}
		if m.syncInProgress {
			return m, nil
		}
		m.syncInProgress = true
		m.addSyncMessage("Starting calendar import...")
		return m, runCalendarSync(m.opts.CalendarSync)
	case "r":
		return m, m.loadSyncStates()
	case "tab", "esc":
		m.viewMode = ViewList
		return m, m.loadCases()
	}
	return m, nil
}

func runCalendarSync(fn CalendarSync) tea.Cmd {
	return func() tea.Msg {
		result, err := fn(context.Background())
		return SyncCompleteMsg{Result: result, Error: err}
	}
}

// addSyncMessage adds a message to the sync message log.
func (m *Model) addSyncMessage(msg string) {
	timestamp := m.opts.Now().Format("15:04:05")
	m.syncMessages = append(m.syncMessages, fmt.Sprintf("[%s] %s", timestamp, msg))
}

// handleSyncComplete records the outcome and refreshes the status rows.
func (m *Model) handleSyncComplete(msg SyncCompleteMsg) tea.Cmd {
	m.syncInProgress = false

	if msg.Error != nil {
		m.addSyncMessage(fmt.Sprintf("✗ calendar import failed: %v", msg.Error))
	} else if msg.Result != nil {
		m.addSyncMessage(fmt.Sprintf("✓ calendar import: %d fetched, %d marked, %d already set",
			msg.Result.Fetched, msg.Result.Marked, msg.Result.AlreadySet))
		reasons := make([]string, 0, len(msg.Result.Skipped))
		for reason := range msg.Result.Skipped {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			m.addSyncMessage(fmt.Sprintf("  skipped %d: %s", msg.Result.Skipped[reason], reason))
		}
	}

	return tea.Batch(m.loadSyncStates(), m.loadCases())
}

func serviceTitle(service string) string {
	if service == "" {
		return "?"
	}
	return strings.ToUpper(service[:1]) + service[1:]
}

// formatTimeSince renders how long ago t was, in the largest whole unit.
func formatTimeSince(t, now time.Time) string {
	d := now.Sub(t)
	if d < time.Minute {
		return "just now"
	}
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}
	for _, u := range units {
		if d < u.size {
			continue
		}
		n := int(d / u.size)
		if n == 1 {
			return fmt.Sprintf("1 %s ago", u.name)
		}
		return fmt.Sprintf("%d %ss ago", n, u.name)
	}
	return "just now"
}
