// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/credits-dashboard-tui/internal/ui/styles"
)

// SeriesColors are assigned to chart series in order. SeriesLegendColors
// are the matching lipgloss colors for legends.
var (
	SeriesColors = []asciigraph.AnsiColor{
		asciigraph.Red, asciigraph.Blue, asciigraph.Green, asciigraph.Yellow, asciigraph.Magenta, asciigraph.Cyan,
	}
	SeriesLegendColors = []lipgloss.Color{"1", "4", "2", "3", "5", "6"}
)

var (
	sparkRunes = []rune("▁▂▃▄▅▆▇█")
	heatRunes  = []rune("░▒▓█")
	heatColors = []lipgloss.Color{styles.Subtle, styles.Success, styles.Warning, styles.Error}
)

// peak returns the largest value, or 1 when nothing is positive.
func peak(values []float64) float64 {
	top := 0.0
	for _, v := range values {
		top = max(top, v)
	}
	if top == 0 {
		return 1
	}
	return top
}

// level maps v in [0, top] to an index in [0, steps).
func level(v, top float64, steps int) int {
	return min(max(int(v/top*float64(steps-1)), 0), steps-1)
}

// fit pads or truncates values to n entries.
func fit(values []float64, n int) []float64 {
	if len(values) == n {
		return values
	}
	out := make([]float64, n)
	copy(out, values)
	return out
}

// RenderMultiLineChart plots several series on one chart. Shorter series
// are padded at the front with their first value so they end together.
func RenderMultiLineChart(series [][]float64, width, height int, caption string) string {
	maxLen := 0
	for _, data := range series {
		maxLen = max(maxLen, len(data))
	}
	if maxLen == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	padded := make([][]float64, 0, len(series))
	colors := make([]asciigraph.AnsiColor, 0, len(series))
	for i, data := range series {
		if len(data) == 0 {
			continue
		}
		row := make([]float64, maxLen)
		offset := maxLen - len(data)
		for j := range offset {
			row[j] = data[0]
		}
		copy(row[offset:], data)
		padded = append(padded, row)
		colors = append(colors, SeriesColors[i%len(SeriesColors)])
	}

	return asciigraph.PlotMany(padded,
		asciigraph.Height(max(height, 3)),
		asciigraph.Width(max(width, 20)),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
	)
}

// RenderBarChart draws one horizontal bar per value, labels right-aligned.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	labelWidth := 0
	for _, l := range labels {
		labelWidth = max(labelWidth, lipgloss.Width(l))
	}
	barWidth := max(width-labelWidth-10, 10)
	top := peak(values)

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		n := max(int(v/top*float64(barWidth)), 0)
		lines = append(lines, fmt.Sprintf("%*s │%s %.1f", labelWidth, label, strings.Repeat("█", n), v))
	}
	return strings.Join(lines, "\n")
}

// RenderHourlyHeatmap shades 24 hourly buckets from 00 to 23, with a gap
// at noon.
func RenderHourlyHeatmap(hours []float64) string {
	hours = fit(hours, 24)
	top := peak(hours)

	var b strings.Builder
	b.WriteString("00 ")
	for i, v := range hours {
		idx := level(v, top, len(heatRunes))
		b.WriteString(lipgloss.NewStyle().Foreground(heatColors[idx]).Render(string(heatRunes[idx])))
		if i == 11 {
			b.WriteByte(' ')
		}
	}
	b.WriteString(" 23")
	return b.String()
}

// RenderWeeklyPattern renders one labelled spark per weekday, Sunday first.
func RenderWeeklyPattern(days []float64, dayNames []string) string {
	days = fit(days, 7)
	if len(dayNames) != 7 {
		dayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	}
	top := peak(days)

	parts := make([]string, len(days))
	for i, v := range days {
		parts[i] = dayNames[i] + " " + string(sparkRunes[level(v, top, len(sparkRunes))])
	}
	return strings.Join(parts, " ")
}

// RenderColoredSparkline samples values down to width and colors each
// spark by spend, the largest values rendering red.
func RenderColoredSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	top := peak(values)
	step := max(float64(len(values))/float64(width), 1)

	var b strings.Builder
	for i := 0; i < width; i++ {
		idx := int(float64(i) * step)
		if idx >= len(values) {
			break
		}
		v := values[idx]
		style := styles.GetCreditStyle(100-v/top*100, false)
		b.WriteString(style.Render(string(sparkRunes[level(v, top, len(sparkRunes))])))
	}
	return b.String()
}

// LegendItem is one entry of a chart legend.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderLegend renders colored squares followed by their labels.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = lipgloss.NewStyle().Foreground(item.Color).Render("■") + " " + item.Label
	}
	return strings.Join(parts, "  ")
}
