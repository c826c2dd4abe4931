// Package styles defines the visual styling for the application.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Primary   = lipgloss.Color("205") // Pink
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow
	Info    = lipgloss.Color("39")  // Blue

	BgDark  = lipgloss.Color("235")
	BgLight = lipgloss.Color("237")

	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// Layout.
var (
	// DocStyle is the margin around every tab.
	DocStyle = lipgloss.NewStyle().
			Margin(1, 2).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(1, 2).
			MarginBottom(1)

	CardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	// FocusedStyle marks the cursor row.
	FocusedStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	// FocusedBorderStyle frames the selected subscription and prompts.
	FocusedBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Primary).
				Padding(0, 1)

	ProgressLabelStyle = lipgloss.NewStyle().
				Foreground(TextSecondary).
				Width(20)

	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)

	HelpPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Primary).
			Padding(1, 3).
			Background(BgDark)

	// ToastStyle frames floating notifications.
	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1).
			MarginBottom(1)
)

// Message text.
var (
	ErrorTextStyle   = lipgloss.NewStyle().Foreground(Error)
	SuccessTextStyle = lipgloss.NewStyle().Foreground(Success)
	WarningTextStyle = lipgloss.NewStyle().Foreground(Warning)
	InfoTextStyle    = lipgloss.NewStyle().Foreground(Info)
)

// Credit balance styles. High is above half the limit, low below 20%.
var (
	creditHighStyle   = lipgloss.NewStyle().Foreground(Success)
	creditMediumStyle = lipgloss.NewStyle().Foreground(Warning)
	creditLowStyle    = lipgloss.NewStyle().Foreground(Error)

	// CreditBlockedStyle marks subscriptions that are not running.
	CreditBlockedStyle = lipgloss.NewStyle().
				Foreground(Error).
				Bold(true).
				Italic(true)

	// PaygoStyle marks pay-as-you-go subscriptions.
	PaygoStyle = lipgloss.NewStyle().
			Foreground(Info).
			Bold(true)
)

// GetCreditStyle returns the style for a balance at percent of its limit.
func GetCreditStyle(percent float64, blocked bool) lipgloss.Style {
	if blocked {
		return CreditBlockedStyle
	}
	switch {
	case percent > 50:
		return creditHighStyle
	case percent > 20:
		return creditMediumStyle
	default:
		return creditLowStyle
	}
}

// Reset engine states.
var (
	SchedulerIdleStyle       = lipgloss.NewStyle().Foreground(TextMuted)
	SchedulerAwaitingStyle   = lipgloss.NewStyle().Foreground(Info)
	SchedulerProcessingStyle = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	SchedulerTrackingStyle   = lipgloss.NewStyle().Foreground(Secondary)
)

var (
	projectionSafeStyle     = lipgloss.NewStyle().Foreground(Success)
	projectionWarningStyle  = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	projectionCriticalStyle = lipgloss.NewStyle().Foreground(Error).Bold(true)
	projectionUnknownStyle  = lipgloss.NewStyle().Foreground(Subtle)
)

// GetProjectionStyle returns the badge style for a projection status.
func GetProjectionStyle(status string) lipgloss.Style {
	switch status {
	case "CRITICAL":
		return projectionCriticalStyle
	case "WARNING":
		return projectionWarningStyle
	case "SAFE":
		return projectionSafeStyle
	default:
		return projectionUnknownStyle
	}
}

// CenterBoth centers content both horizontally and vertically.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}
