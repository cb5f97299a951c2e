// Package theme holds the terminal styles of the practice host.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	TextDim   = lipgloss.Color("#94A3B8") // Slate
)

// Dialogue
var (
	Speaker = lipgloss.NewStyle().
		Bold(true).
		Foreground(Secondary)

	Prompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Accent)

	Said = lipgloss.NewStyle().
		Foreground(Success)

	Recording = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)
)

// Status
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Notice = lipgloss.NewStyle().
		Foreground(Error)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Paint renders s with style when enabled, and returns s unchanged otherwise
// so output piped to a file or a test stays plain.
func Paint(enabled bool, style lipgloss.Style, s string) string {
	if !enabled {
		return s
	}
	return style.Render(s)
}
