package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"  _       _ _           ", "#34d399"},
	{" | |_ ___| | | ___ _ __ ", "#2dd4bf"},
	{" | __/ _ \\ | |/ _ \\ '__|", "#22d3ee"},
	{" | ||  __/ | |  __/ |   ", "#38bdf8"},
	{"  \\__\\___|_|_|\\___|_|   ", "#60a5fa"},
}

// PrintBanner writes the teller banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, termenv.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}

// Styles colors the REPL prompt and system lines.
type Styles struct {
	profile termenv.Profile
}

// NewStyles detects the color profile of stdout.
func NewStyles() Styles {
	return Styles{profile: termenv.ColorProfile()}
}

func (s Styles) Prompt(text string) string {
	return termenv.String(text).Foreground(s.profile.Color("#34d399")).Bold().String()
}

func (s Styles) System(text string) string {
	return termenv.String(text).Foreground(s.profile.Color("#9ca3af")).Italic().String()
}

func (s Styles) Error(text string) string {
	return termenv.String(text).Foreground(s.profile.Color("#f87171")).String()
}
