// panel.go is the interactive wrapper around one explorer.Explorer,
// shared by tables embedded in chat answers and standalone previews.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/render"
)

type panelMode int

const (
	panelBrowse panelMode = iota
	panelSearch
	panelFilter
)

const maxCellWidth = 40

// ExplorerPanel renders a table page and maps keys onto explorer
// operations.
type ExplorerPanel struct {
	ex    *explorer.Explorer
	focus int // focused column index
	mode  panelMode
	input textinput.Model
}

// NewExplorerPanel creates a panel over data showing rowsPerPage rows.
// An unsupported page size falls back to the explorer default.
func NewExplorerPanel(data explorer.TableData, rowsPerPage int) *ExplorerPanel {
	ex := explorer.New(data)
	_ = ex.SetRowsPerPage(rowsPerPage)

	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 200

	return &ExplorerPanel{ex: ex, input: ti}
}

// Explorer exposes the underlying state machine.
func (p *ExplorerPanel) Explorer() *explorer.Explorer { return p.ex }

// FocusedColumn returns the header label of the focused column.
func (p *ExplorerPanel) FocusedColumn() string {
	headers := p.ex.Headers()
	if p.focus < len(headers) {
		return headers[p.focus]
	}
	return ""
}

// Editing reports whether the panel is capturing text for search or a
// column filter.
func (p *ExplorerPanel) Editing() bool { return p.mode != panelBrowse }

// HandleKey applies msg and reports whether the panel consumed it.
func (p *ExplorerPanel) HandleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if p.mode != panelBrowse {
		return true, p.handleEditKey(msg)
	}

	switch msg.String() {
	case "/":
		p.startEdit(panelSearch, p.ex.SearchQuery())
	case "f":
		p.startEdit(panelFilter, p.ex.Filter(p.FocusedColumn()).Value)
	case "F":
		_ = p.ex.ToggleColumnFilter(p.FocusedColumn())
	case "s":
		p.ex.SetSort(p.FocusedColumn())
	case "S":
		col := p.FocusedColumn()
		p.ex.SetSort(col)
		if p.ex.Sort().Direction != explorer.Desc {
			p.ex.SetSort(col)
		}
	case "left", "h":
		p.focus = max(p.focus-1, 0)
	case "right", "l":
		p.focus = min(p.focus+1, max(len(p.ex.Headers())-1, 0))
	case "[":
		p.ex.PrevPage()
	case "]":
		p.ex.NextPage()
	case "{":
		p.ex.FirstPage()
	case "}":
		p.ex.LastPage()
	case "+", "=":
		p.ex.CyclePageSize(1)
	case "-":
		p.ex.CyclePageSize(-1)
	default:
		return false, nil
	}
	return true, nil
}

func (p *ExplorerPanel) startEdit(mode panelMode, value string) {
	p.mode = mode
	p.input.SetValue(value)
	p.input.CursorEnd()
	p.input.Focus()
}

// handleEditKey applies each keystroke immediately so the table narrows
// while typing. Enter and Esc both leave edit mode keeping the text.
func (p *ExplorerPanel) handleEditKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter", "esc":
		p.mode = panelBrowse
		p.input.Blur()
		return nil
	case "ctrl+u":
		p.input.SetValue("")
	default:
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		p.apply()
		return cmd
	}
	p.apply()
	return nil
}

func (p *ExplorerPanel) apply() {
	switch p.mode {
	case panelSearch:
		if p.input.Value() != p.ex.SearchQuery() {
			p.ex.SetSearchQuery(p.input.Value())
		}
	case panelFilter:
		col := p.FocusedColumn()
		if p.input.Value() != p.ex.Filter(col).Value {
			_ = p.ex.SetFilterValue(col, p.input.Value())
		}
	}
}

// Render draws the panel body: query line, table page and pager.
func (p *ExplorerPanel) Render(width int, active bool) string {
	v := p.ex.View()

	var lines []string
	if status := p.statusLine(); status != "" {
		lines = append(lines, status)
	}

	focus := -1
	if active {
		focus = p.focus
	}
	cell := maxCellWidth
	if n := len(v.Headers); n > 0 && width > 0 {
		cell = min(cell, max(width/n-3, 4))
	}
	table := render.TableString(v, render.TableOptions{
		Sort:         p.ex.Sort(),
		Focus:        focus,
		MaxCellWidth: cell,
	})
	lines = append(lines, strings.TrimRight(table, "\n"))

	if v.TotalRows > 0 {
		pager := render.Pager(v.CurrentPage, p.ex.PageNumbers(), v.TotalPages)
		info := fmt.Sprintf("%d rows · %d per page", v.TotalRows, v.RowsPerPage)
		lines = append(lines, StyleDimmed.Render(pager+"   "+info))
	}

	return lipgloss.NewStyle().MaxWidth(max(width, 1)).Render(strings.Join(lines, "\n"))
}

func (p *ExplorerPanel) statusLine() string {
	switch p.mode {
	case panelSearch:
		return StylePrompt.Render("search: ") + p.input.View()
	case panelFilter:
		return StylePrompt.Render("filter "+p.FocusedColumn()+": ") + p.input.View()
	}

	var parts []string
	if q := p.ex.SearchQuery(); q != "" {
		parts = append(parts, fmt.Sprintf("search %q", q))
	}
	for _, h := range p.ex.Headers() {
		if f := p.ex.Filter(h); f.Value != "" {
			state := "on"
			if !f.Active {
				state = "off"
			}
			parts = append(parts, fmt.Sprintf("%s~%q (%s)", h, f.Value, state))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return StyleDimmed.Render(strings.Join(parts, "  "))
}

// panelHelp lists the explorer keys for the help bar.
func panelHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "/", Desc: "search"},
		{Key: "f/F", Desc: "filter/toggle"},
		{Key: "s/S", Desc: "sort"},
		{Key: "←/→", Desc: "column"},
		{Key: "[/]", Desc: "page"},
		{Key: "+/-", Desc: "page size"},
	}
}
