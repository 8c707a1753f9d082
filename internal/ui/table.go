package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows under headers with a rounded border. Returns an
// empty string when there are no rows.
func Table(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorInfo).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// KeyValues renders label/value pairs with the labels right-aligned.
func KeyValues(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		width = max(width, lipgloss.Width(p[0]))
	}

	label := MutedStyle().Width(width).Align(lipgloss.Right)
	lines := make([]string, 0, len(pairs))
	for _, p := range pairs {
		lines = append(lines, label.Render(p[0])+"  "+p[1])
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
