package info

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credits-dashboard-tui/internal/ui/styles"
	"github.com/j-veylop/credits-dashboard-tui/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderAccountCard(),
		m.renderConfigCard(),
		m.renderAboutCard(),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Account, configuration and application information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 80)
}

func (m *Model) renderAccountCard() string {
	rows := []string{styles.CardTitleStyle.Render("Account"), ""}

	token := styles.ErrorTextStyle.Render("not configured")
	if m.tokens != nil {
		if masked := m.tokens.Masked(); masked != "" {
			token = fmt.Sprintf("%s (%s)", masked, m.tokens.Source())
		}
	}
	rows = append(rows, m.renderRow("Token", token))

	if login := m.state.GetLogin(); login != nil {
		name := login.LoginName
		if login.ActualName != "" {
			name = fmt.Sprintf("%s (%s)", login.LoginName, login.ActualName)
		}
		rows = append(rows, m.renderRow("User", name))
		if login.Email != "" {
			rows = append(rows, m.renderRow("Email", login.Email))
		}
		if login.UserType != "" {
			rows = append(rows, m.renderRow("Type", login.UserType))
		}
		if login.ReferralCode != "" {
			rows = append(rows, m.renderRow("Referral Code", login.ReferralCode))
		}
	} else {
		rows = append(rows, m.renderRow("User", styles.HelpStyle.Render("unknown")))
	}

	stats := m.state.GetStats()
	rows = append(rows,
		"",
		fmt.Sprintf("Subscriptions: %s  PAYGO: %d  Resets left: %d",
			styles.InfoTextStyle.Render(fmt.Sprintf("%d", stats.Subscriptions)),
			stats.Paygo,
			stats.ResetsLeft,
		),
		"",
		styles.HelpStyle.Render("Press 'l' to check the login"),
	)

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration"), ""}

	if c := m.config; c != nil {
		metrics := c.MetricsAddr
		if metrics == "" {
			metrics = "off"
		}
		rows = append(rows,
			m.renderRow("API", c.APIBaseURL),
			m.renderRow("Database", c.DatabasePath),
			m.renderRow("Settings", c.SettingsPath),
			m.renderRow("Log File", c.LogPath),
			m.renderRow("Token File", c.TokenFile),
			m.renderRow("Refresh", c.RefreshInterval.String()),
			m.renderRow("Reset Cooldown", c.ResetCooldown.String()),
			m.renderRow("Reset Jitter", c.ResetMaxJitter.String()),
			m.renderRow("Metrics", metrics),
		)
	} else {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func (m *Model) renderAboutCard() string {
	rows := []string{
		styles.CardTitleStyle.Render("About " + version.Name),
		"",
		m.renderRow("Version", version.GetVersion()),
		m.renderRow("Build Date", version.GetDate()),
		m.renderRow("Git Commit", version.GetCommit()),
		m.renderRow("Go Version", runtime.Version()),
		m.renderRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
