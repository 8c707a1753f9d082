package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters, lowest to highest.
var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the most recent width samples as block characters.
// Levels are scaled between the window's min and max, and the whole line
// takes the ThresholdColor of the newest sample.
func Sparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	levels := len(sparkRunes)
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for _, v := range data {
		level := levels / 2
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(levels-1))
			level = max(0, min(level, levels-1))
		}
		sb.WriteRune(sparkRunes[level])
	}

	last := data[len(data)-1]
	return lipgloss.NewStyle().Foreground(ThresholdColor(last)).Render(sb.String())
}

// History keeps the last N samples of one series for Sparkline.
type History struct {
	size    int
	samples []float64
}

// NewHistory creates a history holding at most size samples.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{size: size, samples: make([]float64, 0, size)}
}

// Add appends a sample, dropping the oldest when full.
func (h *History) Add(v float64) {
	if len(h.samples) == h.size {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:h.size-1]
	}
	h.samples = append(h.samples, v)
}

// Values returns the samples oldest first.
func (h *History) Values() []float64 {
	return append([]float64(nil), h.samples...)
}
