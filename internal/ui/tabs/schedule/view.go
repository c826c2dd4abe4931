package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/settings"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/styles"
)

const timeLayout = "01-02 15:04:05"

// View renders the schedule tab.
func (m *Model) View() string {
	st, loaded := m.state.GetSettings()
	status := m.state.GetSchedulerStatus()

	sections := []string{m.renderTitle()}
	if !loaded {
		sections = append(sections, styles.HelpStyle.Render("Settings not loaded"))
	} else {
		sections = append(sections,
			m.renderEngineCard(st, status),
			m.renderWindowsCard(st.ScheduledReset.Windows, status),
		)
	}
	if len(status.Cooldowns) > 0 {
		sections = append(sections, m.renderCooldownsCard(status.Cooldowns))
	}
	if len(status.LastResults) > 0 {
		sections = append(sections, m.renderResultsCard(status.LastResults))
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Scheduled Reset")
	subtitle := styles.HelpStyle.Render("Daily windows in which eligible subscriptions are reset")
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 100)
}

func (m *Model) renderEngineCard(st settings.Settings, status scheduler.Status) string {
	rows := []string{styles.CardTitleStyle.Render("Engine"), ""}

	enabled := styles.ErrorTextStyle.Render("disabled")
	if st.ScheduledReset.Enabled {
		enabled = styles.SuccessTextStyle.Render("enabled")
	}
	rows = append(rows, row("Scheduled reset", enabled))
	rows = append(rows, row("State", stateStyle(status.State).Render(status.State.String())))

	refresh := styles.HelpStyle.Render("off")
	if st.AutoRefresh {
		refresh = fmt.Sprintf("every %s", st.RefreshInterval())
	}
	rows = append(rows, row("Auto refresh", refresh))

	if !status.NextWake.IsZero() {
		rows = append(rows, row("Next wake", fmt.Sprintf("%s (in %s)",
			status.NextWake.Format(timeLayout), components.FormatCountdown(time.Until(status.NextWake)))))
	}
	if status.Active != nil {
		rows = append(rows, row("Active window", fmt.Sprintf("%s until %s",
			status.Active.Window.ID(), status.Active.End.Format("15:04:05"))))
	}
	if status.Next != nil {
		rows = append(rows, row("Next window", fmt.Sprintf("%s on %s",
			status.Next.Window.ID(), status.Next.Date())))
	}
	if !status.LastRun.IsZero() {
		rows = append(rows, row("Last run", status.LastRun.Format(timeLayout)))
	}
	if mk := status.Marker; mk != nil {
		rows = append(rows, row("Last pass", fmt.Sprintf("%s on %s: %d reset(s), %d skipped",
			mk.Window, mk.Date, mk.ResetCount, mk.SkipCount)))
	}
	if status.LastError != "" {
		rows = append(rows, row("Last error", styles.ErrorTextStyle.Render(status.LastError)))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderWindowsCard(windows []reset.Window, status scheduler.Status) string {
	rows := []string{styles.CardTitleStyle.Render("Windows"), ""}

	if len(windows) == 0 {
		rows = append(rows, styles.HelpStyle.Render("No windows configured; add them to the settings file"))
	}

	for i, w := range windows {
		prefix := "  "
		if i == m.cursor {
			prefix = styles.FocusedStyle.Render("▸ ")
		}

		check := styles.HelpStyle.Render("[ ]")
		if w.Enabled {
			check = styles.SuccessTextStyle.Render("[x]")
		}

		detail := fmt.Sprintf("%d min before, %d min after, needs %d reset(s)",
			w.JitterBeforeMinutes, w.SpanMinutes, w.RequiredResets)

		var note string
		switch {
		case w.Validate() != nil:
			note = styles.ErrorTextStyle.Render("  invalid: " + w.Validate().Error())
		case status.Active != nil && status.Active.Index == i:
			note = styles.SchedulerProcessingStyle.Render("  ● open")
		case status.Next != nil && status.Next.Index == i:
			note = styles.SchedulerAwaitingStyle.Render("  next")
		}

		rows = append(rows, fmt.Sprintf("%s%s %s  %s%s",
			prefix, check, lipgloss.NewStyle().Bold(true).Render(w.ID()), styles.HelpStyle.Render(detail), note))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderCooldownsCard(pending []scheduler.Pending) string {
	rows := []string{styles.CardTitleStyle.Render("Waiting for cooldowns"), ""}
	for _, p := range pending {
		ids := make([]string, len(p.SubscriptionIDs))
		for i, id := range p.SubscriptionIDs {
			ids[i] = fmt.Sprintf("#%d", id)
		}
		rows = append(rows, fmt.Sprintf("  %s  %s  %s",
			p.At.Format("15:04:05"),
			styles.HelpStyle.Render("in "+components.FormatCountdown(time.Until(p.At))),
			strings.Join(ids, ", ")))
	}
	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderResultsCard(results []scheduler.Result) string {
	rows := []string{styles.CardTitleStyle.Render("Last resets"), ""}
	for _, r := range results {
		outcome := styles.SuccessTextStyle
		switch r.Outcome {
		case scheduler.OutcomeFailed:
			outcome = styles.ErrorTextStyle
		case scheduler.OutcomeUnverified:
			outcome = styles.WarningTextStyle
		}

		line := fmt.Sprintf("  %-20s %s  %s",
			r.Task.Subscription.DisplayName(),
			outcome.Render(string(r.Outcome)),
			styles.HelpStyle.Render(r.FinishedAt.Format("15:04:05")))
		if r.Err != nil {
			line += "  " + styles.ErrorTextStyle.Render(r.Err.Error())
		}
		rows = append(rows, line)
	}
	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func row(label, value string) string {
	labelStyle := lipgloss.NewStyle().Width(18).Foreground(styles.TextMuted)
	return labelStyle.Render(label+":") + " " + value
}

func stateStyle(s scheduler.State) lipgloss.Style {
	switch s {
	case scheduler.StateAwaitingWindow:
		return styles.SchedulerAwaitingStyle
	case scheduler.StateInWindowProcessing:
		return styles.SchedulerProcessingStyle
	case scheduler.StateInWindowCooldownTracking:
		return styles.SchedulerTrackingStyle
	default:
		return styles.SchedulerIdleStyle
	}
}
