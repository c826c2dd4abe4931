package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credits-dashboard-tui/internal/ui/styles"
)

// LoadingSpinner is a bubble spinner with a label naming what is loading.
type LoadingSpinner struct {
	spinner  spinner.Model
	label    string
	fallback string
	style    lipgloss.Style
}

// NewSpinner creates a spinner showing label until SetResources names
// something more specific.
func NewSpinner(label string) LoadingSpinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return LoadingSpinner{
		spinner:  s,
		label:    label,
		fallback: label,
		style:    lipgloss.NewStyle().Foreground(styles.TextSecondary),
	}
}

// Init starts the spinner.
func (l LoadingSpinner) Init() tea.Cmd {
	return l.spinner.Tick
}

// Update handles spinner tick messages.
func (l LoadingSpinner) Update(msg tea.Msg) (LoadingSpinner, tea.Cmd) {
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return l, cmd
}

// View renders the spinner with its label.
func (l LoadingSpinner) View() string {
	return l.spinner.View() + " " + l.style.Render(l.label)
}

// Label returns the current label.
func (l LoadingSpinner) Label() string {
	return l.label
}

// SetResources labels the spinner with the resources being loaded. The
// initial placeholder resource and an empty list restore the fallback label.
func (l *LoadingSpinner) SetResources(resources []string) {
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		if r != "" && r != "initial" {
			names = append(names, r)
		}
	}
	if len(names) == 0 {
		l.label = l.fallback
		return
	}
	l.label = "Loading " + strings.Join(names, ", ") + "..."
}
