// Package schedule provides the scheduled reset tab: reset windows, the
// engine state and the outcome of the last pass.
package schedule

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credits-dashboard-tui/internal/app"
)

// keyMap defines the key bindings specific to the schedule tab.
type keyMap struct {
	Up            key.Binding
	Down          key.Binding
	ToggleWindow  key.Binding
	ToggleEngine  key.Binding
	ToggleRefresh key.Binding
	Check         key.Binding
}

// defaultKeyMap returns the default key bindings for the schedule tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "prev window"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next window"),
		),
		ToggleWindow: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "toggle window"),
		),
		ToggleEngine: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "toggle scheduled reset"),
		),
		ToggleRefresh: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "toggle auto refresh"),
		),
		Check: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "check now"),
		),
	}
}

// Model represents the schedule tab state.
type Model struct {
	state    *app.State
	commands *app.Commands
	keys     keyMap
	viewport viewport.Model
	cursor   int
	width    int
	height   int
}

// New creates a new schedule model.
func New(state *app.State, commands *app.Commands) *Model {
	return &Model{
		state:    state,
		commands: commands,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

// Init initializes the schedule tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the schedule tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	case app.SettingsUpdatedMsg:
		m.clampCursor(len(msg.Settings.ScheduledReset.Windows))
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	st, loaded := m.state.GetSettings()
	windows := len(st.ScheduledReset.Windows)

	switch {
	case key.Matches(msg, m.keys.Up):
		if windows > 0 {
			m.cursor = (m.cursor - 1 + windows) % windows
		}
	case key.Matches(msg, m.keys.Down):
		if windows > 0 {
			m.cursor = (m.cursor + 1) % windows
		}
	case key.Matches(msg, m.keys.ToggleWindow):
		if m.cursor < windows {
			return m.commands.ToggleWindow(m.cursor)
		}
	case key.Matches(msg, m.keys.ToggleEngine):
		if loaded {
			return m.commands.SetScheduledReset(!st.ScheduledReset.Enabled)
		}
	case key.Matches(msg, m.keys.ToggleRefresh):
		if loaded {
			return m.commands.SetAutoRefresh(!st.AutoRefresh)
		}
	case key.Matches(msg, m.keys.Check):
		return m.commands.CheckSchedule()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) clampCursor(n int) {
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

// SetSize sets the available size for the schedule tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleWindow,
		m.keys.ToggleEngine,
		m.keys.ToggleRefresh,
		m.keys.Check,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Up, m.keys.Down, m.keys.ToggleWindow},
		{m.keys.ToggleEngine, m.keys.ToggleRefresh, m.keys.Check},
	}
}
