package tui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %02d", i)
	}
	return lines
}

func TestViewport_ScrollClamps(t *testing.T) {
	v := NewViewport(20, 5)
	v.SetContentLines(numberedLines(12))

	v.Scroll(-3)
	assert.True(t, strings.HasPrefix(v.Render(), "line 00"))

	v.PageDown()
	v.PageDown()
	assert.True(t, v.AtBottom())
	assert.True(t, strings.HasPrefix(v.Render(), "line 07"))

	v.Scroll(100)
	assert.True(t, strings.HasPrefix(v.Render(), "line 07"))
}

func TestViewport_Reveal(t *testing.T) {
	v := NewViewport(20, 4)
	v.SetContentLines(numberedLines(20))

	v.Reveal(2)
	assert.True(t, strings.HasPrefix(v.Render(), "line 00"), "visible line keeps the scroll")

	v.Reveal(9)
	assert.True(t, strings.HasPrefix(v.Render(), "line 09"))

	v.Reveal(19)
	assert.True(t, strings.HasPrefix(v.Render(), "line 16"), "clamped at the bottom")
}

func TestViewport_SplitsEmbeddedNewlines(t *testing.T) {
	v := NewViewport(10, 3)
	v.SetContentLines([]string{"a\nb", "c"})
	assert.Equal(t, "a\nb\nc", v.Render())

	v.SetContentLines([]string{"0123456789abcdef"})
	assert.NotContains(t, v.Render(), "abcdef")
}
