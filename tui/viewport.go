// viewport.go provides the scrollable text area used by the chat and
// tables screens.
//
// Lines may carry ANSI styling (glamour output, lipgloss styles), so all
// measuring and truncation goes through lipgloss.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Viewport is a scrollable text area.
type Viewport struct {
	width   int
	height  int
	content []string // lines of content
	scrollY int      // vertical scroll offset (line index)
}

// NewViewport creates a viewport with the given dimensions.
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:  width,
		height: height,
	}
}

// SetContentLines replaces the content. Entries containing newlines
// become several lines.
func (v *Viewport) SetContentLines(lines []string) {
	v.content = v.content[:0]
	for _, l := range lines {
		v.content = append(v.content, strings.Split(l, "\n")...)
	}
	v.clampScroll()
}

// SetSize updates viewport dimensions.
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampScroll()
}

// Scroll moves by delta lines; negative is up.
func (v *Viewport) Scroll(delta int) {
	v.scrollY += delta
	v.clampScroll()
}

func (v *Viewport) PageUp()   { v.Scroll(-v.height) }
func (v *Viewport) PageDown() { v.Scroll(v.height) }

// Reveal puts line at the top unless it is already visible.
func (v *Viewport) Reveal(line int) {
	if line < v.scrollY || line >= v.scrollY+v.height {
		v.scrollY = line
		v.clampScroll()
	}
}

// End scrolls to the bottom.
func (v *Viewport) End() {
	v.scrollY = v.maxScrollY()
}

// AtBottom reports whether the last line is visible.
func (v *Viewport) AtBottom() bool {
	return v.scrollY >= v.maxScrollY()
}

// Render returns the visible portion of the content.
func (v *Viewport) Render() string {
	if len(v.content) == 0 {
		return ""
	}

	end := min(v.scrollY+v.height, len(v.content))
	clip := lipgloss.NewStyle().MaxWidth(max(v.width, 1))

	visibleLines := make([]string, 0, v.height)
	for _, line := range v.content[v.scrollY:end] {
		if lipgloss.Width(line) > v.width {
			line = clip.Render(line)
		}
		visibleLines = append(visibleLines, line)
	}

	// Pad to fill viewport height
	for len(visibleLines) < v.height {
		visibleLines = append(visibleLines, "")
	}

	content := strings.Join(visibleLines, "\n")
	if indicator := v.scrollIndicator(); indicator != "" {
		return lipgloss.JoinVertical(lipgloss.Left, content, indicator)
	}
	return content
}

func (v *Viewport) clampScroll() {
	v.scrollY = min(max(v.scrollY, 0), v.maxScrollY())
}

func (v *Viewport) maxScrollY() int {
	return max(len(v.content)-v.height, 0)
}

func (v *Viewport) scrollIndicator() string {
	if len(v.content) <= v.height {
		return ""
	}

	total := len(v.content)
	pct := (v.scrollY + v.height) * 100 / total
	label := fmt.Sprintf(" %d%% (%d/%d)", min(pct, 100), v.scrollY+1, total)
	dashes := max(v.width-lipgloss.Width(label), 0)

	return StyleDimmed.Render(strings.Repeat("─", dashes) + label)
}
