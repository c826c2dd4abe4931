// Package components provides reusable UI components.
package components

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/ui/styles"
)

const (
	creditLowColor  = "#ff6b6b"
	creditHighColor = "#51cf66"
	timeStartColor  = "#ffd93d"
	timeEndColor    = "#6c5ce7"
)

// CreditBar renders a credit balance as a progress bar.
type CreditBar struct {
	progress progress.Model
}

// NewCreditBar creates a credit bar with the red to green gradient.
func NewCreditBar(width int) CreditBar {
	p := progress.New(
		progress.WithScaledGradient(creditLowColor, creditHighColor),
		progress.WithWidth(max(width, 5)),
		progress.WithoutPercentage(),
	)
	return CreditBar{progress: p}
}

// View renders the bar followed by the percentage. Values past 100% keep
// their raw percentage but draw a full bar.
func (c CreditBar) View(percent float64, width int) string {
	c.progress.Width = max(width-8, 5)

	bar := c.progress.ViewAs(clampPercent(percent) / 100)
	percentStr := styles.GetCreditStyle(percent, false).Render(fmt.Sprintf("%.0f%%", percent))

	return lipgloss.JoinHorizontal(lipgloss.Center, bar, " ", percentStr)
}

func clampPercent(p float64) float64 {
	return math.Max(0, math.Min(100, p))
}

// RenderGradientBar renders a percent (0-100) as a red to green bar.
func RenderGradientBar(percent float64, width int) string {
	return renderBar(percent/100, width, creditLowColor, creditHighColor)
}

func renderBar(fraction float64, width int, from, to string) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*fraction), 0), width)

	var b strings.Builder
	empty := lipgloss.NewStyle().Foreground(styles.Subtle)
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(interpolateColor(from, to, t)))
			b.WriteString(style.Render("█"))
		} else {
			b.WriteString(empty.Render("░"))
		}
	}
	return b.String()
}

// RenderCountdownBar renders the elapsed share of period. The bar fills up
// as remaining runs out.
func RenderCountdownBar(remaining, period time.Duration, width int) string {
	fraction := 1.0
	if period > 0 {
		fraction = 1 - float64(remaining)/float64(period)
	}
	return renderBar(math.Max(0, math.Min(1, fraction)), width, timeStartColor, timeEndColor)
}

// LoadingBar renders a shimmer sweeping across an empty bar. reverse runs
// the sweep right to left.
func LoadingBar(width, frame int, accent lipgloss.TerminalColor, reverse bool) string {
	barWidth := max(width, 10)

	const cycle = 120
	t := float64(frame%cycle) / float64(cycle)
	p := t * 2
	if t >= 0.5 {
		p = (1 - t) * 2
	}
	eased := p * p * (3 - 2*p)
	if reverse {
		eased = 1 - eased
	}
	shimmerPos := int(eased * float64(barWidth))

	near := lipgloss.NewStyle().Foreground(accent)
	mid := lipgloss.NewStyle().Foreground(styles.TextSecondary)
	far := lipgloss.NewStyle().Foreground(styles.BgLight)

	var b strings.Builder
	for i := range barWidth {
		dist := shimmerPos - i
		if dist < 0 {
			dist = -dist
		}
		switch {
		case dist < 3:
			b.WriteString(near.Render("▓"))
		case dist < 5:
			b.WriteString(mid.Render("▒"))
		default:
			b.WriteString(far.Render("░"))
		}
	}
	return b.String()
}

// FormatHours renders a number of hours as "1h 05m" or "2d 03h".
func FormatHours(hours float64) string {
	if hours <= 0 || math.IsInf(hours, 0) || math.IsNaN(hours) {
		return "---"
	}

	h := int(hours)
	m := int((hours - float64(h)) * 60)

	if h >= 24 {
		return fmt.Sprintf("%dd %02dh", h/24, h%24)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

// FormatCountdown renders a duration as "1h 05m 09s", dropping leading
// zero units.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h >= 24:
		return fmt.Sprintf("%dd %02dh %02dm", h/24, h%24, m)
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
