// Package info provides the info tab: configuration, account and build
// information.
package info

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credits-dashboard-tui/internal/app"
	"github.com/j-veylop/credits-dashboard-tui/internal/config"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/auth"
)

// TokenStatus describes the token currently in use.
type TokenStatus interface {
	Source() auth.Source
	Masked() string
}

var (
	loginKey  = key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "check login"))
	scrollKey = key.NewBinding(key.WithKeys("up", "k", "down", "j"), key.WithHelp("↑↓/jk", "scroll"))
)

// Model is the info tab. It only reads state; the login check is the one
// action it triggers.
type Model struct {
	state    *app.State
	commands *app.Commands
	config   *config.Config
	tokens   TokenStatus
	viewport viewport.Model
	width    int
	height   int
}

// New creates the info tab. cfg and tokens may be nil.
func New(state *app.State, commands *app.Commands, cfg *config.Config, tokens TokenStatus) *Model {
	return &Model{
		state:    state,
		commands: commands,
		config:   cfg,
		tokens:   tokens,
		viewport: viewport.New(0, 0),
	}
}

func (m *Model) Init() tea.Cmd { return nil }

// Update checks the login on 'l' and passes other keys to the viewport.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	switch {
	case !ok:
		return m, nil
	case key.Matches(k, loginKey):
		return m, m.commands.LoadLoginInfo()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(k)
	return m, cmd
}

func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width, m.viewport.Height = width, height
}

func (m *Model) ShortHelp() []key.Binding { return []key.Binding{loginKey} }

func (m *Model) FullHelp() [][]key.Binding { return [][]key.Binding{{loginKey}, {scrollKey}} }
