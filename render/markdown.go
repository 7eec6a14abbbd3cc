package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders bot answers. The zero value and a nil *Markdown both
// return text unchanged.
type Markdown struct {
	r *glamour.TermRenderer
}

// NewMarkdown creates a renderer wrapping at width columns (0 = default).
func NewMarkdown(width int) (*Markdown, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return &Markdown{r: r}, nil
}

// Render returns md rendered for the terminal, or md itself when
// rendering fails.
func (m *Markdown) Render(md string) string {
	if m == nil || m.r == nil || strings.TrimSpace(md) == "" {
		return md
	}
	out, err := m.r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
