package tui

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

// RenderMarkdown renders markdown for the terminal. Without styled output
// the plain "notty" style is used. On failure the input is returned as is
// along with the error.
func RenderMarkdown(markdown string, styled bool, width int) (string, error) {
	if markdown == "" {
		return "", nil
	}

	style := styles.NoTTYStyle
	if styled {
		style = styles.DarkStyle
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown, err
	}

	out, err := r.Render(markdown)
	if err != nil {
		return markdown, err
	}
	return out, nil
}
