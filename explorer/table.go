// Package explorer implements the in-memory table explorer used for every
// table the client renders: chat answers and standalone previews alike.
//
// An Explorer owns one immutable TableData snapshot and derives a filtered,
// sorted, paginated view from it. It performs no I/O and is safe to drive
// from a single UI loop.
package explorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Cell is a single table value as decoded from the backend:
// string, json.Number, float64, bool or nil.
type Cell = any

// TableData is the rectangular payload carried by answers and previews.
// Rows are not guaranteed to match the header count.
type TableData struct {
	Headers []string `json:"headers"`
	Rows    [][]Cell `json:"rows"`
}

// UnmarshalJSON decodes numbers as json.Number (so "9.50" stays "9.50") and
// wraps scalar rows into single-cell rows instead of failing.
func (t *TableData) UnmarshalJSON(data []byte) error {
	var raw struct {
		Headers []string          `json:"headers"`
		Rows    []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Headers = raw.Headers
	t.Rows = make([][]Cell, 0, len(raw.Rows))
	for i, r := range raw.Rows {
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()

		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		switch row := v.(type) {
		case []any:
			t.Rows = append(t.Rows, row)
		default:
			t.Rows = append(t.Rows, []Cell{row})
		}
	}
	return nil
}

// Empty reports whether the table has neither headers nor rows.
func (t *TableData) Empty() bool {
	return t == nil || (len(t.Headers) == 0 && len(t.Rows) == 0)
}

// CellString renders a cell the way it is displayed and matched.
// Null cells render as the empty string.
func CellString(c Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// resolveHeaders synthesizes "Column N" headers when none were sent, names
// blank headers the same way, and disambiguates duplicate names so each
// label addresses one column.
func resolveHeaders(headers []string, rows [][]Cell) []string {
	if len(headers) == 0 {
		if len(rows) == 0 {
			return nil
		}
		generated := make([]string, len(rows[0]))
		for i := range generated {
			generated[i] = fmt.Sprintf("Column %d", i+1)
		}
		return generated
	}

	used := make(map[string]bool, len(headers))
	out := make([]string, len(headers))
	for i, name := range headers {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		label := name
		for n := 2; used[label]; n++ {
			label = fmt.Sprintf("%s (%d)", name, n)
		}
		used[label] = true
		out[i] = label
	}
	return out
}
