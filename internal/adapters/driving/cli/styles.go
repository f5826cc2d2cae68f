package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette shared by every command's output.
var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorAccent  = lipgloss.Color("#06B6D4")
	colorMuted   = lipgloss.Color("#6C7086")
	colorSuccess = lipgloss.Color("#A6E3A1")
	colorWarning = lipgloss.Color("#F9E2AF")
	colorError   = lipgloss.Color("#F38BA8")
)

// styles renders output; every style is a no-op when plain is set.
type styles struct {
	plain bool

	title   lipgloss.Style
	key     lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles(w io.Writer) styles {
	s := styles{plain: !isTerminal(w)}
	if s.plain {
		return s
	}
	s.title = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	s.key = lipgloss.NewStyle().Foreground(colorAccent)
	s.muted = lipgloss.NewStyle().Foreground(colorMuted)
	s.success = lipgloss.NewStyle().Foreground(colorSuccess)
	s.warning = lipgloss.NewStyle().Foreground(colorWarning)
	s.failure = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	return s
}

func (s styles) render(st lipgloss.Style, text string) string {
	if s.plain {
		return text
	}
	return st.Render(text)
}

func (s styles) Title(text string) string   { return s.render(s.title, text) }
func (s styles) Key(text string) string     { return s.render(s.key, text) }
func (s styles) Muted(text string) string   { return s.render(s.muted, text) }
func (s styles) Success(text string) string { return s.render(s.success, text) }
func (s styles) Warning(text string) string { return s.render(s.warning, text) }
func (s styles) Failure(text string) string { return s.render(s.failure, text) }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
