package tui

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
)

// PreviewPanel is one standalone table preview.
type PreviewPanel struct {
	ID     string
	Title  string
	Hidden bool
	Panel  *ExplorerPanel
}

// PreviewPanels is the ordered list of open previews. Newest panels are
// appended and selected.
type PreviewPanels struct {
	items       []*PreviewPanel
	selected    int
	rowsPerPage int
}

func NewPreviewPanels(rowsPerPage int) *PreviewPanels {
	return &PreviewPanels{rowsPerPage: rowsPerPage}
}

// Add opens a preview of data titled title and selects it.
func (pp *PreviewPanels) Add(title string, data explorer.TableData) *PreviewPanel {
	p := &PreviewPanel{
		ID:    uuid.NewString(),
		Title: title,
		Panel: NewExplorerPanel(data, pp.rowsPerPage),
	}
	pp.items = append(pp.items, p)
	pp.selected = len(pp.items) - 1
	return p
}

// Remove closes the panel with id.
func (pp *PreviewPanels) Remove(id string) bool {
	i := pp.index(id)
	if i < 0 {
		return false
	}
	pp.items = slices.Delete(pp.items, i, i+1)
	if i < pp.selected {
		pp.selected--
	}
	pp.selected = min(pp.selected, max(len(pp.items)-1, 0))
	return true
}

// Toggle flips whether the panel with id is collapsed.
func (pp *PreviewPanels) Toggle(id string) bool {
	i := pp.index(id)
	if i < 0 {
		return false
	}
	pp.items[i].Hidden = !pp.items[i].Hidden
	return true
}

// Get returns the panel with id.
func (pp *PreviewPanels) Get(id string) (*PreviewPanel, bool) {
	if i := pp.index(id); i >= 0 {
		return pp.items[i], true
	}
	return nil, false
}

// Items returns the panels in display order.
func (pp *PreviewPanels) Items() []*PreviewPanel { return slices.Clone(pp.items) }

func (pp *PreviewPanels) Len() int { return len(pp.items) }

// Selected returns the selected panel, nil when none are open.
func (pp *PreviewPanels) Selected() *PreviewPanel {
	if len(pp.items) == 0 {
		return nil
	}
	return pp.items[pp.selected]
}

// Move shifts the selection by delta, wrapping around.
func (pp *PreviewPanels) Move(delta int) {
	n := len(pp.items)
	if n == 0 {
		return
	}
	pp.selected = ((pp.selected+delta)%n + n) % n
}

func (pp *PreviewPanels) index(id string) int {
	return slices.IndexFunc(pp.items, func(p *PreviewPanel) bool { return p.ID == id })
}

// Render draws every panel; hidden ones collapse to their title bar.
// focused marks whether the selected panel receives keys.
func (pp *PreviewPanels) Render(width int, focused bool) string {
	if len(pp.items) == 0 {
		return ""
	}

	inner := max(width-4, 10)
	var blocks []string
	for i, p := range pp.items {
		active := focused && i == pp.selected

		marker := "▾ "
		if p.Hidden {
			marker = "▸ "
		}
		title := StyleBold.Render(marker + p.Title)
		if active {
			title = StyleListItemActive.Render(marker + p.Title)
		}

		body := title
		if !p.Hidden {
			body = lipgloss.JoinVertical(lipgloss.Left, title, p.Panel.Render(inner, active))
		}

		style := StylePanel
		if active {
			style = StylePanelActive
		}
		blocks = append(blocks, style.Width(width-2).Render(body))
	}
	return strings.Join(blocks, "\n")
}
