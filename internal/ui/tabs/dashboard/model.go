// Package dashboard provides the subscription overview tab.
package dashboard

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credits-dashboard-tui/internal/app"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/components"
)

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

const animationDuration = 1.5 // seconds

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	Next            key.Binding
	Prev            key.Binding
	First           key.Binding
	Last            key.Binding
	Reset           key.Binding
	ToggleAutoReset key.Binding
	Confirm         key.Binding
	Cancel          key.Binding
}

// defaultKeyMap returns the default key bindings for the dashboard tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("n", "j", "down"),
			key.WithHelp("j/n", "next subscription"),
		),
		Prev: key.NewBinding(
			key.WithKeys("p", "k", "up"),
			key.WithHelp("k/p", "prev subscription"),
		),
		First: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "first subscription"),
		),
		Last: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "last subscription"),
		),
		Reset: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "reset credits"),
		),
		ToggleAutoReset: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle reset at zero"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n/esc", "cancel"),
		),
	}
}

// AnimationState tracks the eased credit percentage of one subscription.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Model represents the dashboard tab state.
type Model struct {
	state          *app.State
	commands       *app.Commands
	animations     map[string]*AnimationState
	pendingReset   *models.Subscription
	spinner        components.LoadingSpinner
	keys           keyMap
	viewport       viewport.Model
	totalBar       components.CreditBar
	checker        reset.Checker
	width          int
	height         int
	animationFrame int
}

// New creates a new dashboard model. cooldown is the minimum time between
// two resets of a subscription.
func New(state *app.State, commands *app.Commands, cooldown time.Duration) *Model {
	return &Model{
		state:      state,
		commands:   commands,
		checker:    reset.NewChecker(cooldown),
		spinner:    components.NewSpinner("Loading subscriptions..."),
		totalBar:   components.NewCreditBar(30),
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		animations: make(map[string]*AnimationState),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(msg))

	case app.StartLoadingMsg:
		cmds = append(cmds, animationTickCmd())

	case app.SnapshotLoadedMsg, app.InitialDataMsg, app.TabSwitchMsg:
		m.syncAnimationTargets(time.Now())
		cmds = append(cmds, animationTickCmd())

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(msg animationTickMsg) tea.Cmd {
	m.animationFrame++
	now := time.Time(msg)

	animating := m.syncAnimationTargets(now)
	m.stepAnimations(now)

	if animating || m.state.AnyLoading() {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if m.pendingReset != nil {
		return m.handleConfirmKey(msg)
	}

	count := m.state.SubscriptionCount()
	selected := m.state.GetSelectedIndex()

	switch {
	case key.Matches(msg, m.keys.Next):
		if count > 0 {
			return m.selectIndex((selected + 1) % count)
		}
	case key.Matches(msg, m.keys.Prev):
		if count > 0 {
			return m.selectIndex((selected - 1 + count) % count)
		}
	case key.Matches(msg, m.keys.First):
		if count > 0 {
			return m.selectIndex(0)
		}
	case key.Matches(msg, m.keys.Last):
		if count > 0 {
			return m.selectIndex(count - 1)
		}
	case key.Matches(msg, m.keys.Reset):
		if sub, ok := m.state.SelectedSubscription(); ok {
			m.pendingReset = &sub
		}
	case key.Matches(msg, m.keys.ToggleAutoReset):
		if sub, ok := m.state.SelectedSubscription(); ok {
			return m.commands.ToggleAutoReset(sub)
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	sub := *m.pendingReset
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.pendingReset = nil
		return m.commands.ResetSubscription(sub)
	case key.Matches(msg, m.keys.Cancel):
		m.pendingReset = nil
	}
	return nil
}

func (m *Model) selectIndex(idx int) tea.Cmd {
	m.state.SetSelectedIndex(idx)
	sub, ok := m.state.SelectedSubscription()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return app.SelectedSubscriptionChangedMsg{Index: idx, ID: sub.ID}
	}
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

func animationKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// syncAnimationTargets points every subscription bar at its current
// balance and reports whether any bar is still moving.
func (m *Model) syncAnimationTargets(now time.Time) bool {
	var animating bool
	for _, sub := range m.state.Subscriptions() {
		if m.updateAnimationState(animationKey(sub.ID), sub.CreditPercent(), now) {
			animating = true
		}
	}
	return animating
}

func (m *Model) updateAnimationState(animKey string, target float64, now time.Time) bool {
	state, exists := m.animations[animKey]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[animKey] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

func (m *Model) stepAnimations(now time.Time) {
	for _, state := range m.animations {
		if state.CurrentPercent == state.TargetPercent {
			continue
		}
		elapsed := now.Sub(state.StartTime).Seconds()
		if elapsed >= animationDuration {
			state.CurrentPercent = state.TargetPercent
			continue
		}
		progress := elapsed / animationDuration
		ease := 1.0 - (1.0-progress)*(1.0-progress)
		state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
	}
}

// displayPercent returns the animated percentage of sub.
func (m *Model) displayPercent(sub models.Subscription) float64 {
	if anim, ok := m.animations[animationKey(sub.ID)]; ok {
		return anim.CurrentPercent
	}
	return sub.CreditPercent()
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.Next,
		m.keys.Prev,
		m.keys.Reset,
		m.keys.ToggleAutoReset,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Next, m.keys.Prev},
		{m.keys.First, m.keys.Last},
		{m.keys.Reset, m.keys.ToggleAutoReset},
		{m.keys.Confirm, m.keys.Cancel},
	}
}
