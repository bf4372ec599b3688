// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Browses cases and follows one client project live through a portal watcher
package tui

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/db"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/models"
	"github.com/harperreed/fitout/portal"
	"github.com/harperreed/fitout/sync"
	"golang.org/x/text/language"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewProject
	ViewTimeline
	ViewCompose
	ViewSync
)

// CalendarSync runs one calendar import.
type CalendarSync func(ctx context.Context) (*sync.ImportResult, error)

// Options configures the model. Everything is optional except the store.
type Options struct {
	DB           *sql.DB
	CalendarSync CalendarSync
	SenderName   string
	Language     language.Tag
	Now          func() time.Time
}

// Model is the main bubbletea model
type Model struct {
	store   docstore.Store
	watcher *portal.Watcher
	opts    Options

	viewMode ViewMode

	// List view state
	projects    []*models.ClientProject
	selectedRow int

	// Project view state
	state  portal.State
	caseID string

	// Compose view state
	compose textinput.Model
	notice  string

	// Sync view state
	syncStates     []db.SyncState
	syncInProgress bool
	syncMessages   []string

	width  int
	height int
	err    error
}

// StateMsg carries a watcher state into the update loop.
type StateMsg portal.State

type casesLoadedMsg struct {
	projects []*models.ClientProject
	err      error
}

type chatSentMsg struct {
	err error
}

// NewModel creates a new TUI model. watcher may be nil in tests, in which
// case StateMsg values must be fed by hand.
func NewModel(store docstore.Store, watcher *portal.Watcher, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Language == language.Und {
		opts.Language = language.English
	}
	if opts.SenderName == "" {
		opts.SenderName = "Studio"
	}

	input := textinput.New()
	input.Placeholder = "Message to the client"
	input.CharLimit = 500
	input.Width = 60

	return Model{
		store:    store,
		watcher:  watcher,
		opts:     opts,
		viewMode: ViewList,
		compose:  input,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return m.loadCases()
}

func (m Model) loadCases() tea.Cmd {
	store := m.store
	now := m.opts.Now
	return func() tea.Msg {
		all, err := cases.ListCases(context.Background(), store)
		if err != nil {
			return casesLoadedMsg{err: err}
		}
		projects := make([]*models.ClientProject, 0, len(all))
		for _, raw := range all {
			projects = append(projects, portal.RawCaseToClientProject(raw, now()))
		}
		return casesLoadedMsg{projects: projects}
	}
}

// watch switches the watcher off the update goroutine; Watch publishes
// synchronously and the listener sends back into the program.
func (m Model) watch(caseID string) tea.Cmd {
	w := m.watcher
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		w.Watch(caseID)
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case casesLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.projects = msg.projects
			if m.selectedRow >= len(m.projects) {
				m.selectedRow = 0
			}
		}
		return m, nil
	case StateMsg:
		m.state = portal.State(msg)
		return m, nil
	case chatSentMsg:
		if msg.err != nil {
			m.notice = "✗ " + msg.err.Error()
			return m, nil
		}
		m.notice = "✓ Message sent"
		m.compose.Reset()
		m.viewMode = ViewProject
		return m, nil
	case syncStatesMsg:
		m.syncStates = msg.states
		return m, nil
	case SyncCompleteMsg:
		cmd := m.handleSyncComplete(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewProject:
		return m.renderProjectView()
	case ViewTimeline:
		return m.renderTimelineView()
	case ViewCompose:
		return m.renderComposeView()
	case ViewSync:
		return m.renderSyncView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	// Typing a message must not trigger shortcuts.
	if m.viewMode == ViewCompose {
		return m.handleComposeKeys(msg)
	}
	if msg.String() == "q" {
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewProject:
		return m.handleProjectKeys(msg)
	case ViewTimeline:
		return m.handleTimelineKeys(msg)
	case ViewSync:
		return m.handleSyncKeys(msg)
	}

	return m, nil
}

// Run starts the full-screen interface and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, store docstore.Store, opts Options, watcherOpts ...portal.WatcherOption) error {
	watcher := portal.NewWatcher(store, watcherOpts...)
	defer watcher.Close()

	m := NewModel(store, watcher, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	stop := watcher.OnChange(func(st portal.State) {
		p.Send(StateMsg(st))
	})
	defer stop()

	_, err := p.Run()
	return err
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)
