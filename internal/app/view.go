package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/credits-dashboard-tui/internal/ui/styles"
)

// chrome styles the frame around the active tab.
type chrome struct {
	navbar, active, inactive, status lipgloss.Style
	content, heading, muted         lipgloss.Style
	toast                            map[NotificationType]toastStyle
}

type toastStyle struct {
	style  lipgloss.Style
	prefix string
}

func newChrome() chrome {
	muted := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	accent := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	toast := func(c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c).Padding(0, 1)
	}

	return chrome{
		navbar: lipgloss.NewStyle().Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(muted),
		active:   lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 2),
		inactive: lipgloss.NewStyle().Foreground(muted).Padding(0, 2),
		status:   lipgloss.NewStyle().Foreground(muted).Padding(0, 2),
		content:  lipgloss.NewStyle().Padding(1, 2),
		heading:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		muted:    lipgloss.NewStyle().Foreground(muted),
		toast: map[NotificationType]toastStyle{
			NotificationSuccess: {toast(styles.Success), "[OK]"},
			NotificationError:   {toast(styles.Error).Bold(true), "[ERR]"},
			NotificationWarning: {toast(styles.Warning), "[WARN]"},
			NotificationInfo:    {toast(styles.Info), "[INFO]"},
			NotificationLoading: {toast(styles.Info), ""},
		},
	}
}

// View renders the navbar, the active tab and the status bar, with the
// help panel and toasts drawn on top.
func (m *Model) View() string {
	var parts []string
	if m.width > 0 {
		parts = append(parts, m.renderNavbar())
	}
	if !m.ready {
		parts = append(parts, m.styles.content.Render(m.spinner.View()+" Loading..."))
		return strings.Join(parts, "\n")
	}

	body := m.styles.content.Render(fmt.Sprintf("Tab %d: %s\n\n%s",
		m.activeTab+1, m.activeTab, m.styles.muted.Render("This tab is not yet implemented.")))
	if tab := m.currentTab(); tab != nil {
		body = tab.View()
	}
	parts = append(parts, body, m.renderStatusBar())

	screen := strings.Join(parts, "\n")
	if m.showHelp {
		help := m.renderHelp()
		x := max((m.width-lipgloss.Width(help))/2, 0)
		y := max((m.height-lipgloss.Height(help))/2, 0)
		screen = overlay(screen, help, x, y)
	}
	if toasts := m.renderNotifications(); len(toasts) > 0 {
		stack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
		screen = overlay(screen, stack, max(m.width-lipgloss.Width(stack)-2, 0), 2)
	}
	return screen
}

func (m *Model) currentTab() Tab {
	if int(m.activeTab) < len(m.tabs) {
		return m.tabs[m.activeTab]
	}
	return nil
}

// overlay draws top over base with its top-left corner at column x and
// line y. Lines of top past the end of base are dropped.
func overlay(base, top string, x, y int) string {
	lines := strings.Split(base, "\n")
	width := lipgloss.Width(top)

	for i, line := range strings.Split(top, "\n") {
		row := y + i
		if row >= len(lines) {
			break
		}
		left := ansi.Truncate(lines[row], x, "")
		if pad := x - lipgloss.Width(left); pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		lines[row] = left + line + ansi.TruncateLeft(lines[row], x+width, "")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderNavbar() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if TabID(i) == m.activeTab {
			tabs[i] = m.styles.active.Render(fmt.Sprintf("[%d] %s", i+1, name))
		} else {
			tabs[i] = m.styles.inactive.Render(fmt.Sprintf(" %d  %s", i+1, name))
		}
	}
	return m.styles.navbar.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

// renderStatusBar shows the scheduler state and data age.
func (m *Model) renderStatusBar() string {
	st := m.state.GetSchedulerStatus()
	fields := []string{"auto reset off", "never updated", "? help"}
	if st.Enabled {
		fields[0] = "auto reset: " + st.State.String()
	}
	if updated := m.state.GetLastUpdated(); !updated.IsZero() {
		fields[1] = "updated " + updated.Format("15:04:05")
	}
	if snap := m.state.Snapshot(); snap != nil && snap.Cached {
		fields[1] += " (cached)"
	}
	return m.styles.status.Render(strings.Join(fields, "  •  "))
}

func (m *Model) renderNotifications() []string {
	notes := m.state.GetNotifications()
	toasts := make([]string, 0, len(notes))
	for _, n := range notes {
		ts := m.styles.toast[n.Type]
		prefix := ts.prefix
		if n.Type == NotificationLoading {
			prefix = m.spinner.View()
		}
		toasts = append(toasts, styles.ToastStyle.Render(ts.style.Render(prefix+" "+n.Message)))
	}
	return toasts
}

func (m *Model) renderHelp() string {
	section := func(title string, rows ...[2]string) []string {
		out := []string{m.styles.heading.Render(title)}
		for _, r := range rows {
			out = append(out, fmt.Sprintf("  %-10s %s", r[0], r[1]))
		}
		return append(out, "")
	}

	lines := []string{m.styles.heading.Render("Keyboard Shortcuts"), ""}
	lines = append(lines, section("Navigation",
		[2]string{"1-4", "Switch tabs"},
		[2]string{"Tab", "Next tab"},
		[2]string{"Shift+Tab", "Previous tab"})...)
	lines = append(lines, section("Actions",
		[2]string{"r", "Refresh subscriptions"},
		[2]string{"?", "Toggle help"},
		[2]string{"q/Ctrl+C", "Quit"})...)

	if tab := m.currentTab(); tab != nil {
		if bindings := tab.ShortHelp(); len(bindings) > 0 {
			rows := make([][2]string, len(bindings))
			for i, b := range bindings {
				rows[i] = [2]string{b.Help().Key, b.Help().Desc}
			}
			lines = append(lines, section(m.activeTab.String()+" Tab", rows...)...)
		}
	}

	lines = append(lines, m.styles.muted.Render("Press ? or Esc to close"))
	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}
