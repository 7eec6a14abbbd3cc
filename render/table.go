// Package render turns explorer pages and bot answers into terminal text:
// tables through go-pretty, markdown through glamour.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
)

// TableOptions tune Table output.
type TableOptions struct {
	// Sort marks the sort column's header with an arrow.
	Sort explorer.Sort
	// Focus marks the focused column header; -1 for none.
	Focus int
	// MaxCellWidth trims wider cells; 0 means unlimited.
	MaxCellWidth int
	// Footer appends "(N rows, page X of Y)".
	Footer bool
}

// Table renders one explorer page.
func Table(w io.Writer, v explorer.View, opts TableOptions) {
	_, _ = io.WriteString(w, TableString(v, opts))
}

// TableString renders one explorer page to a string.
func TableString(v explorer.View, opts TableOptions) string {
	var sb strings.Builder

	if len(v.Headers) == 0 {
		sb.WriteString("(no columns)\n")
		return sb.String()
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(v.Headers))
	for i, h := range v.Headers {
		label := h
		if opts.Sort.Key == h {
			if opts.Sort.Direction == explorer.Desc {
				label += " ▼"
			} else {
				label += " ▲"
			}
		}
		if i == opts.Focus {
			label = "[" + label + "]"
		}
		header[i] = label
	}
	t.AppendHeader(header)

	for _, r := range v.Rows {
		row := make(table.Row, len(r))
		for i, cell := range r {
			row[i] = cell
		}
		t.AppendRow(row)
	}

	if opts.MaxCellWidth > 0 {
		configs := make([]table.ColumnConfig, len(v.Headers))
		for i := range configs {
			configs[i] = table.ColumnConfig{
				Number:           i + 1,
				WidthMax:         opts.MaxCellWidth,
				WidthMaxEnforcer: text.Trim,
			}
		}
		t.SetColumnConfigs(configs)
	}

	sb.WriteString(t.Render())
	sb.WriteString("\n")
	if len(v.Rows) == 0 {
		sb.WriteString("(0 rows)\n")
	} else if opts.Footer {
		fmt.Fprintf(&sb, "(%d rows, page %d of %d)\n", v.TotalRows, v.CurrentPage, v.TotalPages)
	}
	return sb.String()
}

// Pager renders the page-number strip, e.g. "« 2 3 [4] 5 6 »".
func Pager(current int, pages []int, total int) string {
	var parts []string
	if current > 1 {
		parts = append(parts, "«")
	}
	for _, p := range pages {
		if p == current {
			parts = append(parts, fmt.Sprintf("[%d]", p))
		} else {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	if current < total {
		parts = append(parts, "»")
	}
	return strings.Join(parts, " ")
}
