// view_chat.go is the conversation screen.
//
// Questions are appended optimistically and sent from a tea.Cmd; the
// reply comes back as AskResultMsg and is applied on the update loop.
// Tables in answers get their own ExplorerPanel; Tab moves key focus
// between the input and those panels.
package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/applog"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/chat"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/config"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/render"
)

// ChatBackend is the part of the api client the chat screen calls.
type ChatBackend interface {
	chat.Asker
	chat.Clearer
	chat.Uploader
	chat.ImageProber
	URL(path string) string
}

// ChatView shows the transcript and the question input.
type ChatView struct {
	ctrl     *chat.Controller
	backend  ChatBackend
	markdown bool
	md       *render.Markdown

	input    textinput.Model
	spinner  spinner.Model
	viewport *Viewport

	rowsPerPage int
	tables      map[int]*ExplorerPanel // by transcript index
	images      map[int]string         // resolved image refs by transcript index
	rendered    map[int]string         // markdown cache, reset on resize
	anchors     map[int]int            // first viewport line of each table
	focusTable  int                    // transcript index of the focused table, -1 for the input

	status    string
	statusErr bool
	width     int
	height    int
}

// NewChatView creates the chat screen. markdown selects glamour rendering
// for bot answers.
func NewChatView(ctrl *chat.Controller, backend ChatBackend, rowsPerPage int, markdown bool) *ChatView {
	ti := textinput.New()
	ti.Placeholder = "Ask a question about your data..."
	ti.Prompt = "Ask> "
	ti.PromptStyle = StylePrompt
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorAccent)

	return &ChatView{
		ctrl:        ctrl,
		backend:     backend,
		markdown:    markdown,
		input:       ti,
		spinner:     s,
		viewport:    NewViewport(80, 20),
		rowsPerPage: rowsPerPage,
		tables:      make(map[int]*ExplorerPanel),
		images:      make(map[int]string),
		rendered:    make(map[int]string),
		anchors:     make(map[int]int),
		focusTable:  -1,
	}
}

func (v *ChatView) Name() string { return "Chat" }

func (v *ChatView) WantsTextInput() bool {
	if p, ok := v.tables[v.focusTable]; ok {
		return p.Editing()
	}
	return true
}

func (v *ChatView) SetSize(width, height int) {
	if width != v.width && v.markdown {
		if md, err := render.NewMarkdown(max(width-4, 20)); err == nil {
			v.md = md
		} else {
			applog.Error("markdown renderer: %v", err)
		}
		clear(v.rendered)
	}
	v.width = width
	v.height = height
	v.input.Width = max(width-8, 10)
	// input + status line + separator
	v.viewport.SetSize(width, max(height-4, 1))
	v.refresh(true)
}

func (v *ChatView) ShortHelp() []KeyBinding {
	if _, ok := v.tables[v.focusTable]; ok {
		return append(panelHelp(), KeyBinding{Key: "Esc", Desc: "back to input"})
	}
	return []KeyBinding{
		{Key: "Enter", Desc: "send"},
		{Key: "Tab", Desc: "tables"},
		{Key: "Ctrl+L", Desc: "clear"},
		{Key: "Ctrl+Y", Desc: "copy answer"},
		{Key: "PgUp/PgDn", Desc: "scroll"},
	}
}

func (v *ChatView) Init() tea.Cmd {
	v.refresh(true)
	return textinput.Blink
}

func (v *ChatView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case AskResultMsg:
		reply := v.ctrl.Complete(msg.Resp, msg.Err)
		idx := v.ctrl.Transcript().Len() - 1
		if reply.HasTable() {
			v.tables[idx] = NewExplorerPanel(*reply.Table, v.rowsPerPage)
		}
		v.refresh(true)
		if reply.Image != "" {
			return v, v.resolveImage(idx, reply.Image)
		}
		return v, nil

	case ImageResolvedMsg:
		v.images[msg.Index] = msg.Ref
		v.refresh(false)
		return v, nil

	case ClearResultMsg:
		if err := v.ctrl.CompleteClear(msg.Err); err != nil {
			v.setStatus(msg.Err.Error(), true)
			return v, nil
		}
		clear(v.tables)
		clear(v.images)
		clear(v.rendered)
		v.focusTable = -1
		v.setStatus("Conversation cleared.", false)
		v.refresh(true)
		return v, nil

	case UploadResultMsg:
		if msg.Err != nil {
			v.setStatus(msg.Err.Error(), true)
			return v, nil
		}
		text := "Uploaded " + filepath.Base(msg.Path)
		if msg.Resp != nil && msg.Resp.Message != "" {
			text = msg.Resp.Message
		}
		v.setStatus(text, false)
		return v, nil

	case spinner.TickMsg:
		if v.ctrl.State() != chat.Sending {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		v.refresh(v.viewport.AtBottom())
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *ChatView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	if p, ok := v.tables[v.focusTable]; ok {
		if !p.Editing() {
			switch msg.String() {
			case "esc":
				v.focusTable = -1
				v.input.Focus()
				v.refresh(false)
				return v, nil
			case "tab":
				v.cycleTable()
				return v, nil
			}
		}
		handled, cmd := p.HandleKey(msg)
		if handled {
			v.refresh(false)
		}
		return v, cmd
	}

	switch msg.String() {
	case "enter":
		return v, v.submit()
	case "tab":
		v.cycleTable()
		return v, nil
	case "ctrl+l":
		return v, v.clearCmd()
	case "ctrl+y":
		v.copyLastAnswer()
		return v, nil
	case "pgup":
		v.viewport.PageUp()
		return v, nil
	case "pgdown":
		v.viewport.PageDown()
		return v, nil
	case "ctrl+k":
		v.viewport.Scroll(-1)
		return v, nil
	case "ctrl+j":
		v.viewport.Scroll(1)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit handles the input line: a slash command or a question.
func (v *ChatView) submit() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())

	switch {
	case text == "/clear":
		v.input.Reset()
		return v.clearCmd()
	case text == "/copy":
		v.input.Reset()
		v.copyLastAnswer()
		return nil
	case text == "/connect":
		v.input.Reset()
		return func() tea.Msg { return ShowConnectMsg{} }
	case text == "/tables":
		v.input.Reset()
		return func() tea.Msg { return ShowTablesMsg{} }
	case strings.HasPrefix(text, "/upload"):
		path := strings.TrimSpace(strings.TrimPrefix(text, "/upload"))
		if path == "" {
			v.setStatus("usage: /upload <file.csv|file.xml>", true)
			return nil
		}
		v.input.Reset()
		return v.uploadCmd(config.ExpandHome(path))
	}

	q, err := v.ctrl.Begin(text)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuestion) {
			return nil
		}
		v.setStatus(err.Error(), true)
		return nil
	}
	v.input.Reset()
	v.setStatus("", false)
	v.refresh(true)

	backend := v.backend
	return tea.Batch(v.spinner.Tick, func() tea.Msg {
		resp, err := backend.Ask(context.Background(), q)
		return AskResultMsg{Resp: resp, Err: err}
	})
}

func (v *ChatView) clearCmd() tea.Cmd {
	if err := v.ctrl.BeginClear(); err != nil {
		v.setStatus("wait for the answer before clearing", true)
		return nil
	}
	v.setStatus("Clearing...", false)
	backend := v.backend
	return func() tea.Msg {
		return ClearResultMsg{Err: backend.Clear(context.Background())}
	}
}

func (v *ChatView) uploadCmd(path string) tea.Cmd {
	if _, err := v.ctrl.ValidateUpload(path); err != nil {
		v.setStatus(err.Error(), true)
		return nil
	}
	v.setStatus("Uploading "+filepath.Base(path)+"...", false)

	ctrl, backend := v.ctrl, v.backend
	return func() tea.Msg {
		resp, err := ctrl.Upload(context.Background(), backend, path)
		return UploadResultMsg{Path: path, Resp: resp, Err: err}
	}
}

func (v *ChatView) resolveImage(idx int, name string) tea.Cmd {
	backend := v.backend
	return func() tea.Msg {
		ref := chat.ImageRef(context.Background(), backend, name, time.Now())
		return ImageResolvedMsg{Index: idx, Ref: backend.URL(ref)}
	}
}

func (v *ChatView) copyLastAnswer() {
	msgs := v.ctrl.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != chat.Bot {
			continue
		}
		text := m.Content
		if ref, ok := v.images[i]; ok && text == "" {
			text = ref
		}
		if err := clipboard.WriteAll(text); err != nil {
			v.setStatus("copy failed: "+err.Error(), true)
			return
		}
		v.setStatus("Copied to clipboard.", false)
		return
	}
	v.setStatus("nothing to copy", true)
}

// cycleTable moves focus to the next table, newest first, and back to
// the input after the oldest.
func (v *ChatView) cycleTable() {
	var order []int
	for i := v.ctrl.Transcript().Len() - 1; i >= 0; i-- {
		if _, ok := v.tables[i]; ok {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return
	}

	next := order[0]
	if v.focusTable >= 0 {
		next = -1
		for i, idx := range order {
			if idx == v.focusTable && i+1 < len(order) {
				next = order[i+1]
			}
		}
	}
	v.focusTable = next
	if next < 0 {
		v.input.Focus()
	} else {
		v.input.Blur()
	}
	v.refresh(false)
	if next >= 0 {
		v.viewport.Reveal(v.anchors[next])
	}
}

func (v *ChatView) setStatus(text string, isErr bool) {
	v.status = text
	v.statusErr = isErr
}

// refresh rebuilds the transcript lines. follow scrolls to the bottom.
func (v *ChatView) refresh(follow bool) {
	v.viewport.SetContentLines(v.renderTranscript())
	if follow {
		v.viewport.End()
	}
}

func (v *ChatView) renderTranscript() []string {
	msgs := v.ctrl.Messages()
	if len(msgs) == 0 {
		return []string{
			StyleTitle.Render("askdata"),
			"Ask questions about an uploaded file or a connected database.",
			"",
			StyleDimmed.Render("  /upload <file>   send a .csv or .xml file"),
			StyleDimmed.Render("  /connect         connect to a database (F2)"),
			StyleDimmed.Render("  /tables          browse database tables (F3)"),
			StyleDimmed.Render("  /clear           start over"),
		}
	}

	var lines []string
	for i, m := range msgs {
		if m.Role == chat.User {
			lines = append(lines, StyleUserLabel.Render("You")+" "+StyleDimmed.Render(m.Timestamp))
			lines = append(lines, "  "+m.Content, "")
			continue
		}

		lines = append(lines, StyleBotLabel.Render("Bot")+" "+StyleDimmed.Render(m.Timestamp))
		switch {
		case strings.HasPrefix(m.Content, "Error: "):
			lines = append(lines, "  "+StyleError.Render(m.Content))
		case m.Content != "":
			lines = append(lines, v.renderAnswer(i, m.Content))
		}
		if p, ok := v.tables[i]; ok {
			v.anchors[i] = lineCount(lines)
			lines = append(lines, p.Render(v.width-2, i == v.focusTable))
		}
		if m.Image != "" {
			ref, ok := v.images[i]
			if !ok {
				ref = "loading image..."
			}
			lines = append(lines, StyleDimmed.Render("  image: ")+ref)
		}
		lines = append(lines, "")
	}

	if v.ctrl.State() == chat.Sending {
		lines = append(lines, v.spinner.View()+StyleDimmed.Render(" Thinking..."))
	}
	return lines
}

// lineCount counts display lines; entries may hold several.
func lineCount(lines []string) int {
	n := 0
	for _, l := range lines {
		n += strings.Count(l, "\n") + 1
	}
	return n
}

func (v *ChatView) renderAnswer(idx int, content string) string {
	if v.md == nil {
		return "  " + content
	}
	if out, ok := v.rendered[idx]; ok {
		return out
	}
	out := v.md.Render(content)
	v.rendered[idx] = out
	return out
}

func (v *ChatView) View() string {
	var status string
	switch {
	case v.status == "":
	case v.statusErr:
		status = StyleError.Render("✗ " + v.status)
	default:
		status = StyleSuccess.Render("✓ " + v.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		v.viewport.Render(),
		StyleDimmed.Render(strings.Repeat("─", max(v.width, 1))),
		v.input.View(),
		status,
	)
}
