// Package ui renders pxd records for the terminal using Lip Gloss.
//
// Tables, usage bars and sparklines share one color scheme: usage below
// 60% is green, below 80% yellow and anything above red. Call
// DisableColors for --no-color or when stdout is not a terminal.
//
//	fmt.Print(ui.SystemOverview(overview))
//	fmt.Print(ui.UsageBar(67.5, 20)) // [█████████████░░░░░░░]  68%
package ui
