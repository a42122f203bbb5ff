package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or fallback when it is not a terminal.
func Width(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// NewRenderer returns a function that renders markdown answers with glamour,
// wrapped at width. When the output is not a terminal, or glamour cannot be
// initialised, text is passed through unchanged.
func NewRenderer(out *os.File, width int) func(string) string {
	plain := func(s string) string { return s }
	if !IsTerminal(out) {
		return plain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return plain
	}
	return func(markdown string) string {
		rendered, err := r.Render(markdown)
		if err != nil {
			return markdown
		}
		return rendered
	}
}
