package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credits-dashboard-tui/internal/services"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/credits"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

// Tabs in navbar order.
const (
	TabDashboard TabID = iota
	TabSchedule
	TabHistory
	TabInfo
)

var tabNames = []string{"Dashboard", "Schedule", "History", "Info"}

// String returns the string representation of the TabID.
func (t TabID) String() string {
	if t < 0 || int(t) >= len(tabNames) {
		return "Unknown"
	}
	return tabNames[t]
}

// Tab is one screen of the dashboard. Only the active tab receives
// messages; SetSize is called on every tab when the window resizes.
type Tab interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Tab, tea.Cmd)
	View() string
	SetSize(width, height int)
	ShortHelp() []key.Binding
	FullHelp() [][]key.Binding
}

// KeyMap holds the global key bindings. Tabs[i] jumps to tab i.
type KeyMap struct {
	Tabs    []key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
	Escape  key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{
		NextTab: key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab/→", "next tab")),
		PrevTab: key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab/←", "prev tab")),
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Escape:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
	for i, name := range tabNames {
		n := strconv.Itoa(i + 1)
		km.Tabs = append(km.Tabs, key.NewBinding(key.WithKeys(n), key.WithHelp(n, strings.ToLower(name))))
	}
	return km
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.Tabs, {k.NextTab, k.PrevTab}, {k.Refresh, k.Help, k.Quit}}
}

// Model is the main application model.
type Model struct {
	// Shared state
	state    *State
	services *services.Manager
	commands *Commands
	styles   chrome
	keymap   KeyMap

	// Service subscription
	eventChannel chan services.ServiceEvent

	tabs    []Tab
	spinner spinner.Model

	activeTab TabID
	width     int
	height    int
	showHelp  bool
	ready     bool
}

// NewModel initializes a new application model. mgr may be nil in tests.
func NewModel(mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return &Model{
		activeTab: TabDashboard,
		tabs:      make([]Tab, len(tabNames)),
		state:     NewState(),
		services:  mgr,
		commands:  NewCommands(mgr),
		keymap:    DefaultKeyMap(),
		styles:    newChrome(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetCommands returns the commands helper.
func (m *Model) GetCommands() *Commands {
	return m.commands
}

// GetActiveTab returns the currently active tab ID.
func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// IsReady returns true if the model is ready (window size received).
func (m *Model) IsReady() bool {
	return m.ready
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Loading subscriptions...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		defaultTickCmd(),
	}

	if m.services != nil {
		cmds = append(cmds,
			subscribeToServicesCmd(m.services),
			loadInitialData(m.services),
			loadLoginInfoCmd(m.services),
		)
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
	case tea.KeyMsg:
		if cmd, handled := m.handleKeyMsg(msg); handled {
			return m, cmd
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	if cmd := m.updateActiveTab(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds, defaultTickCmd())
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEvent(msg.Event))
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
	case InitialDataMsg:
		m.handleInitialData(msg)
	case SnapshotLoadedMsg:
		cmds = append(cmds, m.handleSnapshotLoaded(msg))
	case ProjectionsUpdatedMsg:
		m.state.SetProjections(msg.Projections)
	case SchedulerUpdatedMsg:
		m.state.SetSchedulerStatus(msg.Status)
	case UsageUpdatedMsg:
		m.state.SetUsage(msg.Usage)
		m.stopLoading(ResourceUsage)
	case SettingsUpdatedMsg:
		m.state.SetSettings(msg.Settings)
	case ResetResultMsg:
		cmds = append(cmds, m.handleResetResult(msg))
	case AutoResetToggledMsg:
		cmds = append(cmds, m.handleAutoResetToggled(msg))
	case SettingsSavedMsg:
		if msg.Error != nil {
			cmds = append(cmds, notifyErrorCmd(describeError("Failed to save settings", msg.Error)))
		} else {
			cmds = append(cmds, notifyInfoCmd(capitalize(msg.Action)))
		}
	case LoginInfoMsg:
		if msg.Error == nil {
			m.state.SetLogin(msg.Info)
		}
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()
	case StartLoadingMsg:
		m.state.SetLoading(msg.Resource, true)
		m.state.SetLoadingNotification("Refreshing...")
	case StopLoadingMsg:
		m.stopLoading(msg.Resource)
	case ErrorMsg:
		cmds = append(cmds, notifyErrorCmd(describeError(msg.Context, msg.Error)))
	case RefreshMsg:
		cmds = append(cmds, m.handleRefresh(msg)...)
	case TabSwitchMsg:
		m.switchTab(msg.Tab)
	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	}
	return cmds
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.updateTabSizes()
}

func (m *Model) handleInitialData(msg InitialDataMsg) {
	m.state.SetSettings(msg.Settings)
	m.state.SetSchedulerStatus(msg.Scheduler)
	m.state.SetUsage(msg.Usage)
	if msg.Snapshot != nil && len(msg.Snapshot.Subscriptions) > 0 {
		m.state.SetSnapshot(msg.Snapshot, msg.Stats)
		m.stopLoading(ResourceInitial)
	}
}

func (m *Model) handleSnapshotLoaded(msg SnapshotLoadedMsg) tea.Cmd {
	m.state.SetSnapshot(msg.Snapshot, msg.Stats)
	m.stopLoading(ResourceInitial)
	m.stopLoading(ResourceSubscriptions)
	if msg.Error != nil && !errors.Is(msg.Error, credits.ErrRefreshInProgress) {
		return notifyErrorCmd(describeError("Refresh failed", msg.Error))
	}
	return nil
}

func (m *Model) handleResetResult(msg ResetResultMsg) tea.Cmd {
	m.stopLoading(ResourceReset)
	if msg.Error != nil {
		if errors.Is(msg.Error, services.ErrResetBlocked) {
			return notifyWarningCmd(fmt.Sprintf("%s: %v", msg.Name, msg.Error))
		}
		return notifyErrorCmd(describeError("Reset of "+msg.Name+" failed", msg.Error))
	}
	return notifySuccessCmd(fmt.Sprintf("Credits of %s reset", msg.Name))
}

func (m *Model) handleAutoResetToggled(msg AutoResetToggledMsg) tea.Cmd {
	if msg.Error != nil {
		return notifyErrorCmd(describeError("Failed to update auto reset", msg.Error))
	}
	state := "off"
	if msg.Enabled {
		state = "on"
	}
	return notifyInfoCmd(fmt.Sprintf("Auto reset at zero %s for %s", state, msg.Name))
}

func (m *Model) stopLoading(resource string) {
	m.state.SetLoading(resource, false)
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func (m *Model) handleRefresh(msg RefreshMsg) []tea.Cmd {
	if m.services == nil {
		return nil
	}

	var cmds []tea.Cmd
	switch msg.Resource {
	case ResourceUsage:
		cmds = append(cmds,
			func() tea.Msg { return StartLoadingMsg{Resource: ResourceUsage} },
			refreshUsageCmd(m.services))
	default:
		cmds = append(cmds,
			func() tea.Msg { return StartLoadingMsg{Resource: ResourceSubscriptions} },
			refreshSubscriptionsCmd(m.services))
	}
	return cmds
}

func (m *Model) switchTab(tab TabID) {
	if tab < 0 || int(tab) >= len(m.tabs) {
		return
	}
	m.activeTab = tab
	m.updateTabSizes()
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateTabSizes() {
	contentHeight := max(m.height-5, 0)

	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

// handleKeyMsg handles global keys. handled is false when the active tab
// should receive the key.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return nil, true
	case key.Matches(msg, m.keymap.Escape) && m.showHelp:
		m.showHelp = false
		return nil, true
	case key.Matches(msg, m.keymap.Refresh):
		return tea.Batch(m.handleRefresh(RefreshMsg{Resource: ResourceSubscriptions})...), true
	}

	for i, binding := range m.keymap.Tabs {
		if key.Matches(msg, binding) {
			m.switchTab(TabID(i))
			return m.tabSwitchedCmd(), true
		}
	}

	step := 0
	switch {
	case key.Matches(msg, m.keymap.NextTab):
		step = 1
	case key.Matches(msg, m.keymap.PrevTab):
		step = -1
	default:
		return nil, false
	}
	if m.showHelp || len(m.tabs) == 0 {
		return nil, true
	}
	m.switchTab(TabID((int(m.activeTab) + step + len(m.tabs)) % len(m.tabs)))
	return m.tabSwitchedCmd(), true
}

func (m *Model) tabSwitchedCmd() tea.Cmd {
	tab := m.activeTab
	return func() tea.Msg { return TabSwitchMsg{Tab: tab} }
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.SubscriptionsUpdatedEvent:
		return func() tea.Msg {
			return SnapshotLoadedMsg{Snapshot: e.Snapshot, Stats: e.Stats}
		}

	case services.RefreshingEvent:
		m.state.SetLoading(ResourceSubscriptions, true)

	case services.ProjectionUpdatedEvent:
		m.state.SetProjections(e.Projections)
		return func() tea.Msg { return ProjectionsUpdatedMsg(e) }

	case services.UsageUpdatedEvent:
		m.state.SetUsage(e)

	case services.SchedulerStatusEvent:
		m.state.SetSchedulerStatus(e.Status)
		return func() tea.Msg { return SchedulerUpdatedMsg(e) }

	case services.SchedulerPassEvent:
		return passNotification(e)

	case services.ResetCompletedEvent:
		if !e.Manual {
			return resetSummaryNotification(e)
		}

	case services.SettingsChangedEvent:
		m.state.SetSettings(e.Settings)
		return func() tea.Msg { return SettingsUpdatedMsg(e) }

	case services.ErrorEvent:
		if e.Service == "credits" {
			m.stopLoading(ResourceInitial)
			m.stopLoading(ResourceSubscriptions)
		}
		return notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}

	return nil
}

func passNotification(e services.SchedulerPassEvent) tea.Cmd {
	if e.Err != nil {
		return notifyWarningCmd(fmt.Sprintf("Window %s: %v", e.Window, e.Err))
	}
	if e.Tasks > 0 {
		return notifyInfoCmd(fmt.Sprintf("Window %s: resetting %d subscription(s)", e.Window, e.Tasks))
	}
	return nil
}

func resetSummaryNotification(e services.ResetCompletedEvent) tea.Cmd {
	var failed int
	for _, r := range e.Results {
		if r.Outcome == scheduler.OutcomeFailed {
			failed++
		}
	}
	if failed > 0 {
		return notifyErrorCmd(fmt.Sprintf("Window %s: %d of %d resets failed", e.Window, failed, len(e.Results)))
	}
	return notifySuccessCmd(fmt.Sprintf("Window %s: %d reset(s) done", e.Window, len(e.Results)))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
