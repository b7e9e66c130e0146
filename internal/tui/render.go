package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns a turn's markdown into terminal text wrapped at width.
type Renderer interface {
	Render(markdown string, width int) string
}

type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer renders with glamour, falling back to plain text when glamour fails.
func NewMarkdownRenderer() Renderer {
	return &markdownRenderer{}
}

func (r *markdownRenderer) Render(markdown string, width int) string {
	if r.renderer == nil || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return markdown
		}
		r.renderer, r.width = tr, width
	}

	out, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}

// PlainRenderer leaves text untouched.
type PlainRenderer struct{}

func (PlainRenderer) Render(markdown string, _ int) string {
	return markdown
}
