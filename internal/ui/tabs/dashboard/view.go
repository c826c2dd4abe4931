package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/styles"
)

const (
	indentSpace  = "    "
	percentWidth = 6
	rateWidth    = 12
	badgeWidth   = 12
	windowPeriod = 24 * time.Hour
)

// View renders the dashboard component.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return m.renderLoading()
	}

	sections := []string{
		m.renderTitle(),
		m.renderOverview(),
		m.renderSubscriptionList(),
	}
	if m.pendingReset != nil {
		sections = append(sections, m.renderConfirm())
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderLoading renders the spinner above a shimmering placeholder bar.
func (m *Model) renderLoading() string {
	m.spinner.SetResources(m.state.GetLoadingResources())
	bar := components.LoadingBar(max(m.width/2, 10), m.animationFrame, styles.Primary, false)
	content := lipgloss.JoinVertical(lipgloss.Center, m.spinner.View(), "", bar)
	return styles.CenterBoth(content, m.width, m.height)
}

// renderTitle renders the dashboard title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Credits Dashboard")
	subtitle := styles.HelpStyle.Render("Subscription credits and scheduled resets")

	snap := m.state.Snapshot()
	if snap != nil && snap.Cached {
		subtitle += styles.WarningTextStyle.Render("  (cached, waiting for API)")
	} else if snap != nil && snap.Error != "" {
		subtitle += styles.ErrorTextStyle.Render("  " + snap.Error)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

// renderOverview renders totals across subscriptions and today's usage.
func (m *Model) renderOverview() string {
	cardWidth := max(m.width-6, 40)
	stats := m.state.GetStats()

	icon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	rows := []string{fmt.Sprintf("%s %s", icon, styles.CardTitleStyle.Render("Overview"))}

	totalPercent := 0.0
	if stats.TotalLimit > 0 {
		totalPercent = stats.TotalCredits / stats.TotalLimit * 100
	}
	rows = append(rows,
		indentSpace+m.totalBar.View(totalPercent, max(cardWidth-30, 20)),
		fmt.Sprintf("%s%s  %s  %s",
			indentSpace,
			styles.HelpStyle.Render(fmt.Sprintf("%.2f / %.2f credits", stats.TotalCredits, stats.TotalLimit)),
			styles.HelpStyle.Render(fmt.Sprintf("%d subscription(s), %d paygo", stats.Subscriptions, stats.Paygo)),
			styles.InfoTextStyle.Render(fmt.Sprintf("%d reset(s) left", stats.ResetsLeft)),
		),
	)

	if snap := m.state.Snapshot(); snap != nil && snap.Dashboard != nil {
		today := snap.Dashboard.RecentActivity
		rows = append(rows, fmt.Sprintf("%s%s",
			indentSpace,
			styles.HelpStyle.Render(fmt.Sprintf("Today: %d requests, %d tokens, $%.2f",
				today.RequestsToday, today.TokensToday, today.Cost)),
		))
	}

	if line := m.renderNextWindow(); line != "" {
		rows = append(rows, indentSpace+line)
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderNextWindow shows the countdown to the next scheduled reset.
func (m *Model) renderNextWindow() string {
	st := m.state.GetSchedulerStatus()
	if !st.Enabled {
		return styles.HelpStyle.Render("Scheduled reset disabled")
	}
	if st.Active != nil {
		return styles.SchedulerProcessingStyle.Render(
			fmt.Sprintf("Reset window %s open until %s", st.Active.Window.ID(), st.Active.End.Format("15:04:05")))
	}
	if st.Next == nil {
		return styles.HelpStyle.Render("No reset window enabled")
	}
	return styles.SchedulerAwaitingStyle.Render(fmt.Sprintf("Next reset window %s in %s",
		st.Next.Window.ID(), components.FormatCountdown(time.Until(st.Next.Target))))
}

// renderSubscriptionList renders one card section per subscription.
func (m *Model) renderSubscriptionList() string {
	subs := m.state.Subscriptions()
	cardWidth := max(m.width-6, 40)

	titleIcon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	rows := []string{fmt.Sprintf("%s %s", titleIcon, styles.CardTitleStyle.Render("Subscriptions"))}

	if len(subs) == 0 {
		emptyIcon := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○")
		rows = append(rows,
			"",
			fmt.Sprintf("  %s %s", emptyIcon, styles.HelpStyle.Render("No subscriptions found")),
			"",
			styles.InfoTextStyle.Render("  ╰─▶ Check the API token on the Info tab"),
		)
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	dividerWidth := max(cardWidth-8, 20)
	divider := lipgloss.NewStyle().Foreground(styles.Subtle).Render(
		"  ├" + strings.Repeat("─", dividerWidth) + "┤",
	)

	selected := m.state.GetSelectedIndex()
	rows = append(rows, "")
	for i, sub := range subs {
		rows = append(rows, m.renderSubscription(sub, i == selected, cardWidth-4))
		if i < len(subs)-1 {
			rows = append(rows, "", divider, "")
		}
	}
	rows = append(rows, "")

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderSubscription(sub models.Subscription, selected bool, width int) string {
	contentWidth := max(width-4, 20)
	barWidth := max(contentWidth-len(indentSpace)-percentWidth-rateWidth-badgeWidth-4, 10)

	lines := []string{m.renderHeader(sub, selected), ""}

	if !sub.IsRunning() {
		status := sub.SubscriptionStatus
		if status == "" {
			status = "inactive"
		}
		lines = append(lines, indentSpace+styles.CreditBlockedStyle.Render("Not running: "+status))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	proj := m.state.GetProjection(sub.ID)
	lines = append(lines, m.renderCreditLine(sub, proj, barWidth))
	if line := m.renderTimeLine(sub, proj, barWidth); line != "" {
		lines = append(lines, line)
	}
	lines = append(lines, m.renderDetails(sub))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderHeader(sub models.Subscription, selected bool) string {
	activeIndicator := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○ ")
	if sub.IsRunning() {
		activeIndicator = styles.SuccessTextStyle.Render("● ")
	}

	selectionPrefix := "  "
	if selected {
		selectionPrefix = styles.FocusedStyle.Render("▸ ")
	}

	name := sub.DisplayName()
	if len(name) > 35 {
		name = name[:32] + "..."
	}

	var badges []string
	if plan := sub.SubscriptionPlan.PlanType; plan != "" {
		badges = append(badges, styles.HelpStyle.Render("◆ "+plan))
	}
	if sub.IsPaygo() {
		badges = append(badges, styles.PaygoStyle.Render("PAYGO"))
	}
	if sub.AutoResetWhenZero {
		badges = append(badges, styles.InfoTextStyle.Render("↻ reset at zero"))
	}

	return fmt.Sprintf("%s%s%s %s",
		selectionPrefix,
		activeIndicator,
		lipgloss.NewStyle().Bold(true).Render(name),
		strings.Join(badges, " "),
	)
}

func (m *Model) renderCreditLine(sub models.Subscription, proj *models.CreditProjection, barWidth int) string {
	percent := m.displayPercent(sub)

	percentStr := styles.GetCreditStyle(sub.CreditPercent(), false).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", sub.CreditPercent()))

	rateStr := lipgloss.NewStyle().Width(rateWidth).Render("")
	badgeStr := lipgloss.NewStyle().Width(badgeWidth).Render("")

	if proj != nil && proj.Rate > 0 {
		rateStr = projectionTextStyle(proj.Status).
			Width(rateWidth).
			Align(lipgloss.Right).
			Render(fmt.Sprintf("%.1f/hr", proj.Rate))
	}
	if proj != nil && proj.Status != models.ProjectionUnknown {
		badgeStr = styles.GetProjectionStyle(string(proj.Status)).
			Width(badgeWidth).
			Align(lipgloss.Right).
			Render(projectionBadge(proj.Status))
	}

	return lipgloss.JoinHorizontal(lipgloss.Left,
		indentSpace,
		components.RenderGradientBar(percent, barWidth),
		" ",
		percentStr,
		" ",
		rateStr,
		" ",
		badgeStr,
	)
}

// renderTimeLine shows the cooldown of a recently reset subscription, or
// the time left until the next scheduled reset.
func (m *Model) renderTimeLine(sub models.Subscription, proj *models.CreditProjection, barWidth int) string {
	now := time.Now()

	var remaining, period time.Duration
	var label string
	if left := m.checker.CooldownRemaining(&sub, now); left > 0 {
		remaining, period = left, m.checker.Cooldown
		label = "cooldown"
	} else if proj != nil && !proj.NextReset.IsZero() {
		remaining, period = proj.NextReset.Sub(now), windowPeriod
		label = "next reset"
	} else {
		return ""
	}

	timeStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(percentWidth + rateWidth + 1).
		Align(lipgloss.Right).
		Render(label + " " + components.FormatHours(remaining.Hours()))

	depleteStr := lipgloss.NewStyle().Width(badgeWidth).Render("")
	if proj != nil && proj.Rate > 0 && !math.IsInf(proj.HoursLeft, 0) && proj.HoursLeft > 0 {
		depleteStr = projectionTextStyle(proj.Status).
			Width(badgeWidth).
			Align(lipgloss.Right).
			Render("empty " + components.FormatHours(proj.HoursLeft))
	}

	return lipgloss.JoinHorizontal(lipgloss.Left,
		indentSpace,
		components.RenderCountdownBar(remaining, period, barWidth),
		" ",
		timeStr,
		" ",
		depleteStr,
	)
}

func (m *Model) renderDetails(sub models.Subscription) string {
	parts := []string{
		fmt.Sprintf("%.2f / %.2f credits", sub.CurrentCredits, sub.CreditLimit()),
		fmt.Sprintf("%d reset(s) left", sub.ResetTimes),
	}
	if last, ok := sub.LastReset(); ok {
		parts = append(parts, "last reset "+last.Format("01-02 15:04"))
	}
	if sub.RemainingDays > 0 {
		parts = append(parts, fmt.Sprintf("%d day(s) left", sub.RemainingDays))
	}
	return indentSpace + styles.HelpStyle.Render(strings.Join(parts, "  •  "))
}

func (m *Model) renderConfirm() string {
	sub := m.pendingReset
	prompt := fmt.Sprintf("Reset credits of %s now? (%d reset(s) left)  [y] confirm  [n] cancel",
		sub.DisplayName(), sub.ResetTimes)
	return styles.FocusedBorderStyle.Render(styles.WarningTextStyle.Render(prompt))
}

func projectionTextStyle(status models.ProjectionStatus) lipgloss.Style {
	switch status {
	case models.ProjectionCritical:
		return styles.ErrorTextStyle
	case models.ProjectionWarning:
		return styles.WarningTextStyle
	default:
		return styles.HelpStyle
	}
}

func projectionBadge(status models.ProjectionStatus) string {
	switch status {
	case models.ProjectionCritical:
		return "▲ CRITICAL"
	case models.ProjectionWarning:
		return "▲ WARNING"
	case models.ProjectionSafe:
		return "● SAFE"
	default:
		return ""
	}
}
