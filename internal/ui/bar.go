package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Usage bar block characters.
const (
	BarFilled = '█'
	BarEmpty  = '░'
)

// ClampPercent clamps a percentage to the 0-100 range.
func ClampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// barCounts returns the number of filled and empty cells for a bar.
func barCounts(percent float64, width int) (filled, empty int) {
	filled = int((percent / 100.0) * float64(width))
	empty = width - filled
	return
}

// UsageBar renders percent as "[████░░░░]  45%", colored by ThresholdColor.
// Non-positive widths render only the percentage.
func UsageBar(percent float64, width int) string {
	percent = ClampPercent(percent)
	label := fmt.Sprintf("%3.0f%%", percent)
	if width <= 0 {
		return label
	}

	filled, empty := barCounts(percent, width)
	var sb strings.Builder
	sb.Grow(width*3 + 2)
	sb.WriteRune('[')
	sb.WriteString(strings.Repeat(string(BarFilled), filled))
	sb.WriteString(strings.Repeat(string(BarEmpty), empty))
	sb.WriteRune(']')

	bar := lipgloss.NewStyle().Foreground(ThresholdColor(percent)).Render(sb.String())
	return bar + " " + label
}
