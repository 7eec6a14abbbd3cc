package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
)

func TestTableString(t *testing.T) {
	e := explorer.New(explorer.TableData{
		Headers: []string{"Name", "Age"},
		Rows:    [][]explorer.Cell{{"Ann", "30"}, {"Bob", nil}},
	})
	e.SetSort("Age")

	out := TableString(e.View(), TableOptions{Sort: e.Sort(), Focus: 0, Footer: true})
	assert.Contains(t, out, "[Name]")
	assert.Contains(t, out, "Age ▲")
	assert.Contains(t, out, "Ann")
	assert.Contains(t, out, "(2 rows, page 1 of 1)")
	assert.True(t, strings.HasPrefix(out, "┌"), out)
}

func TestTable_EmptyAndTrimmed(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, explorer.View{Headers: []string{"a"}, TotalPages: 1, CurrentPage: 1}, TableOptions{Focus: -1})
	assert.Contains(t, buf.String(), "(0 rows)")

	out := TableString(explorer.View{
		Headers: []string{"text"},
		Rows:    [][]string{{strings.Repeat("x", 40)}},
	}, TableOptions{Focus: -1, MaxCellWidth: 10})
	assert.NotContains(t, out, strings.Repeat("x", 11))

	assert.Equal(t, "(no columns)\n", TableString(explorer.View{}, TableOptions{Focus: -1}))
}

func TestPager(t *testing.T) {
	assert.Equal(t, "[1] 2 3 »", Pager(1, []int{1, 2, 3}, 3))
	assert.Equal(t, "« 2 3 [4] 5 6 »", Pager(4, []int{2, 3, 4, 5, 6}, 10))
	assert.Equal(t, "« 1 [2]", Pager(2, []int{1, 2}, 2))
}

func TestMarkdown(t *testing.T) {
	md, err := NewMarkdown(60)
	require.NoError(t, err)

	out := md.Render("# Title\n\nSome **bold** text")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")

	var nilRenderer *Markdown
	assert.Equal(t, "plain", nilRenderer.Render("plain"))
	assert.Equal(t, "", md.Render(""))
}
