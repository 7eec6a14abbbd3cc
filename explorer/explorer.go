package explorer

import (
	"errors"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Direction is the sort order of the sort key column.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// PageSizes are the selectable rows-per-page values.
var PageSizes = []int{5, 10, 25, 50, 100}

// DefaultRowsPerPage is used when no page size is configured.
const DefaultRowsPerPage = 5

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrInvalidPageSize = errors.New("invalid page size")
)

// Filter is the per-column filter state.
type Filter struct {
	Active bool
	Value  string
}

// Sort names the sort column; an empty Key means unsorted.
type Sort struct {
	Key       string
	Direction Direction
}

// View is one rendered page of the explorer.
type View struct {
	Headers     []string
	Rows        [][]string
	TotalRows   int
	TotalPages  int
	CurrentPage int
	RowsPerPage int
}

// Explorer is the search/filter/sort/paginate state machine over one table.
type Explorer struct {
	headers []string
	rows    [][]Cell
	folded  [][]string // case-folded cell text, "" for nulls
	nulls   [][]bool

	search  string
	filters map[string]Filter
	sort    Sort
	page    int
	perPage int

	// indices into rows that survived search + filters, in sort order
	visible []int
}

// New creates an explorer over data. The data must not be mutated afterwards.
func New(data TableData) *Explorer {
	e := &Explorer{
		headers: resolveHeaders(data.Headers, data.Rows),
		rows:    data.Rows,
		page:    1,
		perPage: DefaultRowsPerPage,
	}

	fold := cases.Fold()
	e.folded = make([][]string, len(e.rows))
	e.nulls = make([][]bool, len(e.rows))
	for i, row := range e.rows {
		e.folded[i] = make([]string, len(row))
		e.nulls[i] = make([]bool, len(row))
		for j, c := range row {
			if c == nil {
				e.nulls[i][j] = true
				continue
			}
			e.folded[i][j] = fold.String(CellString(c))
		}
	}

	e.filters = make(map[string]Filter, len(e.headers))
	for _, h := range e.headers {
		e.filters[h] = Filter{}
	}

	e.recompute()
	return e
}

// Headers returns the resolved column labels.
func (e *Explorer) Headers() []string { return slices.Clone(e.headers) }

// SearchQuery returns the current search text.
func (e *Explorer) SearchQuery() string { return e.search }

// Sort returns the current sort key and direction.
func (e *Explorer) Sort() Sort { return e.sort }

// Filter returns the filter state of column.
func (e *Explorer) Filter(column string) Filter { return e.filters[column] }

// RowsPerPage returns the current page size.
func (e *Explorer) RowsPerPage() int { return e.perPage }

// SetSearchQuery sets the full-text query and returns to the first page.
func (e *Explorer) SetSearchQuery(q string) {
	e.search = q
	e.recompute()
	e.page = 1
}

// ToggleColumnFilter flips whether the filter on column is applied.
func (e *Explorer) ToggleColumnFilter(column string) error {
	f, ok := e.filters[column]
	if !ok {
		return ErrUnknownColumn
	}
	f.Active = !f.Active
	e.filters[column] = f
	e.recompute()
	e.page = 1
	return nil
}

// SetFilterValue sets the filter text of column. A non-empty value
// activates the filter.
func (e *Explorer) SetFilterValue(column, value string) error {
	f, ok := e.filters[column]
	if !ok {
		return ErrUnknownColumn
	}
	f.Value = value
	if value != "" {
		f.Active = true
	}
	e.filters[column] = f
	e.recompute()
	e.page = 1
	return nil
}

// SetSort sorts by column ascending, or flips the direction when column is
// already the sort key. The current page is kept.
func (e *Explorer) SetSort(column string) {
	if e.sort.Key == column {
		if e.sort.Direction == Asc {
			e.sort.Direction = Desc
		} else {
			e.sort.Direction = Asc
		}
	} else {
		e.sort = Sort{Key: column, Direction: Asc}
	}
	e.recompute()
}

// SetRowsPerPage changes the page size to one of PageSizes.
func (e *Explorer) SetRowsPerPage(n int) error {
	if !slices.Contains(PageSizes, n) {
		return ErrInvalidPageSize
	}
	e.perPage = n
	e.recompute()
	return nil
}

// CyclePageSize moves to the next (dir > 0) or previous page size.
func (e *Explorer) CyclePageSize(dir int) {
	i := slices.Index(PageSizes, e.perPage)
	i += dir
	if i < 0 || i >= len(PageSizes) {
		return
	}
	_ = e.SetRowsPerPage(PageSizes[i])
}

// SetPage jumps to page n, clamped into the valid range.
func (e *Explorer) SetPage(n int) {
	e.page = n
	e.clampPage()
}

func (e *Explorer) NextPage()  { e.SetPage(e.page + 1) }
func (e *Explorer) PrevPage()  { e.SetPage(e.page - 1) }
func (e *Explorer) FirstPage() { e.SetPage(1) }
func (e *Explorer) LastPage()  { e.SetPage(e.totalPages()) }

// View returns the current page. It does not modify the explorer.
func (e *Explorer) View() View {
	v := View{
		Headers:     slices.Clone(e.headers),
		TotalRows:   len(e.visible),
		TotalPages:  e.totalPages(),
		CurrentPage: e.page,
		RowsPerPage: e.perPage,
	}

	start := (e.page - 1) * e.perPage
	end := min(start+e.perPage, len(e.visible))
	if start > end {
		start = end
	}
	v.Rows = make([][]string, 0, end-start)
	for _, idx := range e.visible[start:end] {
		v.Rows = append(v.Rows, e.displayRow(e.rows[idx]))
	}
	return v
}

// PageNumbers returns up to five page numbers around the current page.
func (e *Explorer) PageNumbers() []int {
	total := e.totalPages()
	count := min(total, 5)
	pages := make([]int, count)
	for i := range pages {
		n := i + 1
		if total > 5 {
			switch {
			case e.page > 3 && e.page < total-1:
				n = e.page - 2 + i
			case e.page >= total-1:
				n = total - 4 + i
			}
		}
		pages[i] = n
	}
	return pages
}

func (e *Explorer) displayRow(row []Cell) []string {
	width := len(e.headers)
	if width == 0 {
		width = len(row)
	}
	out := make([]string, width)
	for i := range out {
		if i < len(row) {
			out[i] = CellString(row[i])
		}
	}
	return out
}

func (e *Explorer) totalPages() int {
	n := (len(e.visible) + e.perPage - 1) / e.perPage
	return max(1, n)
}

func (e *Explorer) clampPage() {
	e.page = min(max(e.page, 1), e.totalPages())
}

// recompute rebuilds the visible index list from the full row set.
func (e *Explorer) recompute() {
	fold := cases.Fold()
	query := fold.String(e.search)

	type colFilter struct {
		idx   int
		value string
	}
	var active []colFilter
	for i, h := range e.headers {
		f := e.filters[h]
		if f.Active && f.Value != "" {
			active = append(active, colFilter{idx: i, value: fold.String(f.Value)})
		}
	}

	visible := make([]int, 0, len(e.rows))
	for i := range e.rows {
		if query != "" && !e.rowMatches(i, query) {
			continue
		}
		keep := true
		for _, f := range active {
			if !e.cellMatches(i, f.idx, f.value) {
				keep = false
				break
			}
		}
		if keep {
			visible = append(visible, i)
		}
	}

	if col := slices.Index(e.headers, e.sort.Key); e.sort.Key != "" && col >= 0 {
		desc := e.sort.Direction == Desc
		slices.SortStableFunc(visible, func(a, b int) int {
			c := strings.Compare(e.sortKey(a, col), e.sortKey(b, col))
			if desc {
				return -c
			}
			return c
		})
	}

	e.visible = visible
	e.clampPage()
}

func (e *Explorer) rowMatches(row int, query string) bool {
	for j := range e.folded[row] {
		if e.cellMatches(row, j, query) {
			return true
		}
	}
	return false
}

func (e *Explorer) cellMatches(row, col int, needle string) bool {
	if col >= len(e.folded[row]) || e.nulls[row][col] {
		return false
	}
	return strings.Contains(e.folded[row][col], needle)
}

func (e *Explorer) sortKey(row, col int) string {
	if col >= len(e.folded[row]) {
		return ""
	}
	return e.folded[row][col]
}
