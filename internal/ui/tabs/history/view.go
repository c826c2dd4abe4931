package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/styles"
)

var weekdayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// View renders the history tab.
func (m *Model) View() string {
	sub, ok := m.state.SelectedSubscription()
	if !ok {
		return m.renderMessage(
			styles.TitleStyle.Render("History"),
			"",
			styles.HelpStyle.Render("No subscription selected."),
		)
	}
	if m.loading && m.loadedID != sub.ID {
		return m.renderMessage(styles.HelpStyle.Render("Loading credit history..."))
	}
	if m.err != nil {
		return m.renderMessage(fmt.Sprintf("%s %v", styles.ErrorTextStyle.Render("Error:"), m.err))
	}

	sections := []string{m.renderHeader(sub)}
	if len(m.snapshots) < 2 {
		sections = append(sections,
			styles.HelpStyle.Render("Not enough credit snapshots recorded in this range yet."),
			styles.HelpStyle.Render("Data will appear as balances are polled."),
			"",
		)
	} else {
		sections = append(sections, m.renderBalanceChart(sub), m.renderHourlyPattern())
	}
	sections = append(sections, m.renderUsageTrend())

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderMessage(lines ...string) string {
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

func (m *Model) renderHeader(sub models.Subscription) string {
	name := sub.DisplayName()
	if len(name) > 40 {
		name = name[:37] + "..."
	}
	title := styles.TitleStyle.Render("History: " + name)

	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)
	rangeIndicator := rangeStyle.Render(fmt.Sprintf("[t] %s", m.timeRange))

	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", rangeIndicator)

	var subtitle string
	if n := len(m.snapshots); n > 0 {
		subtitle = styles.HelpStyle.Render(fmt.Sprintf("%d snapshots: %s → %s",
			n,
			m.snapshots[0].Timestamp.Local().Format("Jan 2 15:04"),
			m.snapshots[n-1].Timestamp.Local().Format("Jan 2 15:04"),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) renderBalanceChart(sub models.Subscription) string {
	cardWidth := m.cardWidth()
	rows := []string{styles.CardTitleStyle.Render("Credit Balance"), ""}

	series := balances(m.snapshots)
	limit := make([]float64, len(series))
	for i, s := range m.snapshots {
		limit[i] = s.CreditLimit
	}

	chart := components.RenderMultiLineChart([][]float64{series, limit},
		max(cardWidth-12, 30), 8, fmt.Sprintf("Last %s", m.timeRange))
	for line := range strings.SplitSeq(chart, "\n") {
		rows = append(rows, "  "+line)
	}

	rows = append(rows, "", "  "+components.RenderLegend([]components.LegendItem{
		{Label: "Credits", Color: components.SeriesLegendColors[0]},
		{Label: "Limit", Color: components.SeriesLegendColors[1]},
	}))

	c := summarize(m.snapshots)
	rows = append(rows, fmt.Sprintf("  Consumed: %s  Resets observed: %d  Now: %.2f / %.2f",
		lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).Render(fmt.Sprintf("%.2f", c.Consumed)),
		c.Refills,
		sub.CurrentCredits,
		sub.CreditLimit(),
	), "")

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderHourlyPattern() string {
	rows := []string{styles.CardTitleStyle.Render("Hourly Consumption"), ""}

	c := summarize(m.snapshots)
	if c.Consumed == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No consumption in this range"))
	} else {
		rows = append(rows,
			"  "+components.RenderHourlyHeatmap(c.Hourly),
			"",
			fmt.Sprintf("  Peak: %s (%.2f credits)",
				lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).
					Render(fmt.Sprintf("%02d:00-%02d:00", c.Peak, (c.Peak+1)%24)),
				c.Hourly[c.Peak],
			),
		)
	}
	rows = append(rows, "")

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderUsageTrend() string {
	cardWidth := m.cardWidth()
	rows := []string{styles.CardTitleStyle.Render("Daily Cost (all subscriptions)"), ""}

	usage := m.state.GetUsage()
	if len(usage.Trend) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No usage trend available"), "")
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	costs, labels := trendCosts(usage.Trend)
	recent, recentLabels := costs, labels
	if len(recent) > 7 {
		recent, recentLabels = recent[len(recent)-7:], recentLabels[len(recentLabels)-7:]
	}
	for line := range strings.SplitSeq(components.RenderBarChart(recent, recentLabels, max(cardWidth-12, 30)), "\n") {
		rows = append(rows, "  "+line)
	}

	rows = append(rows, "", fmt.Sprintf("  %d days  %s", len(costs), components.RenderColoredSparkline(costs, 30)))

	if st := usage.Stats; st.HasData {
		rows = append(rows, fmt.Sprintf("  Avg/day  3d %.2f  7d %.2f  15d %.2f  30d %.2f  (%d days of data)",
			st.Avg3, st.Avg7, st.Avg15, st.Avg30, st.AvailableDays))
	}

	rows = append(rows, "  "+components.RenderWeeklyPattern(weekdayCost(usage.Trend), weekdayNames))

	if !m.loadedAt.IsZero() {
		rows = append(rows, "", styles.HelpStyle.Render("  history loaded "+m.loadedAt.Format(time.TimeOnly)))
	}
	rows = append(rows, "")

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
