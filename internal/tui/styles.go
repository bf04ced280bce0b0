// Package tui provides the interactive terminal prompts of the starter CLI.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#06B6D4") // Cyan
	successColor   = lipgloss.Color("#10B981") // Green
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	accentColor    = lipgloss.Color("#F472B6") // Pink
)

// Prompt styles
var (
	// LabelStyle for the question above every prompt
	LabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// GroupStyle for dependency group headers
	GroupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginTop(1)
)

// Text styles
var (
	// SelectedStyle for the item under the cursor
	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor)

	// CursorStyle for the cursor indicator
	CursorStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	// CheckedStyle for toggled items
	CheckedStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// MutedStyle for less important text
	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// Help bar style
var (
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)
)

// helpBar renders key/description pairs.
func helpBar(pairs ...string) string {
	var s string
	for i := 0; i+1 < len(pairs); i += 2 {
		if s != "" {
			s += "  "
		}
		s += HelpKeyStyle.Render(pairs[i]) + " " + pairs[i+1]
	}
	return HelpStyle.Render(s)
}
