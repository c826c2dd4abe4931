// Package history provides the history tab: recorded credit balances of
// the selected subscription and the account-wide usage trend.
package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credits-dashboard-tui/internal/app"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

// TimeRange is the span of credit history shown.
type TimeRange int

const (
	TimeRangeDay TimeRange = iota
	TimeRangeWeek
	TimeRangeMonth
)

// Duration returns how far back the range reaches.
func (r TimeRange) Duration() time.Duration {
	switch r {
	case TimeRangeWeek:
		return 7 * 24 * time.Hour
	case TimeRangeMonth:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Next cycles through the ranges.
func (r TimeRange) Next() TimeRange {
	return (r + 1) % 3
}

func (r TimeRange) String() string {
	switch r {
	case TimeRangeWeek:
		return "7 days"
	case TimeRangeMonth:
		return "30 days"
	default:
		return "24 hours"
	}
}

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	ToggleRange key.Binding
	Reload      key.Binding
	Up          key.Binding
	Down        key.Binding
}

// defaultKeyMap returns the default key bindings for the history tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle time range"),
		),
		Reload: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "reload history"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// historyLoadedMsg carries the credit snapshots of one subscription.
type historyLoadedMsg struct {
	err            error
	snapshots      []models.CreditSnapshot
	subscriptionID int64
	timeRange      TimeRange
}

// Model represents the history tab state.
type Model struct {
	state     *app.State
	commands  *app.Commands
	keys      keyMap
	viewport  viewport.Model
	snapshots []models.CreditSnapshot
	err       error
	loadedAt  time.Time
	loadedID  int64
	width     int
	height    int
	timeRange TimeRange
	loading   bool
}

// New creates a new history model.
func New(state *app.State, commands *app.Commands) *Model {
	return &Model{
		state:     state,
		commands:  commands,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		timeRange: TimeRangeWeek,
	}
}

// Init initializes the history tab.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

// load requests the history of the selected subscription.
func (m *Model) load() tea.Cmd {
	sub, ok := m.state.SelectedSubscription()
	if !ok {
		return nil
	}

	id, rng := sub.ID, m.timeRange
	cmd := m.commands.LoadCreditHistory(id, time.Now().Add(-rng.Duration()),
		func(snaps []models.CreditSnapshot, err error) tea.Msg {
			return historyLoadedMsg{subscriptionID: id, timeRange: rng, snapshots: snaps, err: err}
		})
	if cmd != nil {
		m.loading = true
	}
	return cmd
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		return m, m.handleLoaded(msg)

	case app.TabSwitchMsg:
		if msg.Tab == app.TabHistory {
			return m, m.load()
		}

	case app.SelectedSubscriptionChangedMsg, app.SnapshotLoadedMsg:
		return m, m.load()

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleLoaded(msg historyLoadedMsg) tea.Cmd {
	// Drop answers to a request that no longer matches the view.
	sub, ok := m.state.SelectedSubscription()
	if !ok || sub.ID != msg.subscriptionID || msg.timeRange != m.timeRange {
		return nil
	}

	m.loading = false
	m.loadedID = msg.subscriptionID
	m.err = msg.err
	if msg.err != nil {
		return m.commands.NotifyError(fmt.Sprintf("History error: %v", msg.err))
	}
	m.snapshots = msg.snapshots
	m.loadedAt = time.Now()
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ToggleRange):
		m.timeRange = m.timeRange.Next()
		return m.load()
	case key.Matches(msg, m.keys.Reload):
		return m.load()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleRange,
		m.keys.Reload,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange, m.keys.Reload},
		{m.keys.Up, m.keys.Down},
	}
}
