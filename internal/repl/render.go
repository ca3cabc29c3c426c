package repl

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Renderer styles shell output.
type Renderer interface {
	Title(s string) string
	Prompt(s string) string
	Dim(s string) string
	Source(s string) string
	Success(s string) string
	Error(s string) string
	Markdown(s string) string
}

// PlainRenderer writes text unchanged, for pipes and tests.
type PlainRenderer struct{}

func (PlainRenderer) Title(s string) string    { return s }
func (PlainRenderer) Prompt(s string) string   { return s }
func (PlainRenderer) Dim(s string) string      { return s }
func (PlainRenderer) Source(s string) string   { return s }
func (PlainRenderer) Success(s string) string  { return s }
func (PlainRenderer) Error(s string) string    { return "error: " + s }
func (PlainRenderer) Markdown(s string) string { return s }

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// TermRenderer colours output with lipgloss and renders answers as
// markdown with glamour.
type TermRenderer struct {
	md *glamour.TermRenderer
}

// NewTermRenderer creates a TermRenderer wrapping at width columns.
func NewTermRenderer(width int) *TermRenderer {
	r := &TermRenderer{}
	if md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width)); err == nil {
		r.md = md
	}
	return r
}

func (r *TermRenderer) Title(s string) string   { return titleStyle.Render(s) }
func (r *TermRenderer) Prompt(s string) string  { return promptStyle.Render(s) }
func (r *TermRenderer) Dim(s string) string     { return dimStyle.Render(s) }
func (r *TermRenderer) Source(s string) string  { return sourceStyle.Render(s) }
func (r *TermRenderer) Success(s string) string { return successStyle.Render(s) }
func (r *TermRenderer) Error(s string) string   { return errorStyle.Render("error: " + s) }

func (r *TermRenderer) Markdown(s string) string {
	if r.md == nil {
		return s
	}
	out, err := r.md.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(out, "\n")
}

// RendererFor picks a TermRenderer when w is a terminal.
func RendererFor(w io.Writer) Renderer {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return PlainRenderer{}
	}
	return NewTermRenderer(100)
}
