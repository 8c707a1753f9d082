package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/pxd/internal/parse"
)

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Check passed / service active
	SymbolFail     = "✗" // Check failed / not found
	SymbolPending  = "○" // Stopped
	SymbolProgress = "◐" // Unknown state
	SymbolComplete = "●" // Running
	SymbolWarning  = "!" // Warning line
)

// StateSymbol renders a run state as a colored symbol.
func StateSymbol(s parse.State) string {
	switch s {
	case parse.Running:
		return lipgloss.NewStyle().Foreground(ColorSuccess).Render(SymbolComplete)
	case parse.Stopped:
		return lipgloss.NewStyle().Foreground(ColorMuted).Render(SymbolPending)
	default:
		return lipgloss.NewStyle().Foreground(ColorWarning).Render(SymbolProgress)
	}
}

// Check renders a boolean as a colored check or cross.
func Check(ok bool) string {
	if ok {
		return lipgloss.NewStyle().Foreground(ColorSuccess).Render(SymbolSuccess)
	}
	return lipgloss.NewStyle().Foreground(ColorError).Render(SymbolFail)
}
