// view_tables.go lists the tables of the connected database and hosts
// the preview panels opened from that list.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/session"
)

// TablesSession is the session surface the tables screen drives.
type TablesSession interface {
	Snapshot() session.State
	RefreshTables(ctx context.Context) ([]string, error)
	Disconnect(ctx context.Context) (string, error)
	PreviewTable(ctx context.Context, name string) (*explorer.TableData, error)
}

const listWidth = 28

type tablesFocus int

const (
	focusList tablesFocus = iota
	focusPanels
)

// TablesView shows the session's tables and open previews.
type TablesView struct {
	session  TablesSession
	state    session.State
	cursor   int
	focus    tablesFocus
	panels   *PreviewPanels
	viewport *Viewport

	busy      string // non-empty while a request runs
	statusMsg string
	err       error
	width     int
	height    int
}

func NewTablesView(s TablesSession, rowsPerPage int) *TablesView {
	return &TablesView{
		session:  s,
		state:    s.Snapshot(),
		panels:   NewPreviewPanels(rowsPerPage),
		viewport: NewViewport(60, 20),
	}
}

func (v *TablesView) Name() string { return "Tables" }

func (v *TablesView) WantsTextInput() bool {
	if v.focus == focusPanels {
		if p := v.panels.Selected(); p != nil && !p.Hidden {
			return p.Panel.Editing()
		}
	}
	return false
}

func (v *TablesView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(max(width-listWidth-3, 20), max(height-2, 1))
	v.refreshPanels()
}

func (v *TablesView) ShortHelp() []KeyBinding {
	if v.focus == focusPanels {
		return append(panelHelp(),
			KeyBinding{Key: "v", Desc: "hide/show"},
			KeyBinding{Key: "x", Desc: "close"},
			KeyBinding{Key: "Tab", Desc: "next"},
			KeyBinding{Key: "Esc", Desc: "list"},
		)
	}
	return []KeyBinding{
		{Key: "↑/↓", Desc: "select"},
		{Key: "Enter", Desc: "preview"},
		{Key: "r", Desc: "refresh"},
		{Key: "d", Desc: "disconnect"},
		{Key: "c", Desc: "connect"},
		{Key: "Tab", Desc: "previews"},
		{Key: "Esc", Desc: "chat"},
	}
}

// Init re-syncs with the session; a live session's table list is
// reloaded from the backend.
func (v *TablesView) Init() tea.Cmd {
	v.state = v.session.Snapshot()
	v.clampCursor()
	if !v.state.Connected {
		return nil
	}
	return v.refresh()
}

func (v *TablesView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.focus == focusPanels {
			return v.handlePanelKey(msg)
		}
		return v.handleListKey(msg)

	case TablesRefreshedMsg:
		v.busy = ""
		v.state = v.session.Snapshot()
		v.clampCursor()
		if msg.Err != nil {
			v.setErr(msg.Err)
			return v, nil
		}
		v.setStatus(fmt.Sprintf("%d tables", len(msg.Tables)))
		return v, nil

	case StatusCheckedMsg:
		v.state = msg.State
		v.clampCursor()
		return v, nil

	case ConnectResultMsg:
		if msg.Err == nil {
			v.state = msg.State
			v.clampCursor()
		}
		return v, nil

	case DisconnectResultMsg:
		v.busy = ""
		v.state = v.session.Snapshot()
		v.cursor = 0
		// The local session is gone either way; a server failure only
		// changes the wording.
		v.setStatus(msg.Message)
		return v, nil

	case PreviewLoadedMsg:
		v.busy = ""
		if msg.Err != nil {
			v.setErr(msg.Err)
			v.state = v.session.Snapshot()
			v.clampCursor()
			return v, nil
		}
		v.panels.Add(msg.Name, *msg.Data)
		v.focus = focusPanels
		v.setStatus("Preview of " + msg.Name)
		v.refreshPanels()
		v.viewport.End()
		return v, nil
	}
	return v, nil
}

func (v *TablesView) handleListKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		v.cursor = max(v.cursor-1, 0)
	case "down", "j":
		v.cursor = min(v.cursor+1, max(len(v.state.Tables)-1, 0))
	case "enter":
		return v, v.preview()
	case "r":
		return v, v.refresh()
	case "d":
		return v, v.disconnect()
	case "c":
		return v, func() tea.Msg { return ShowConnectMsg{} }
	case "tab":
		if v.panels.Len() > 0 {
			v.focus = focusPanels
			v.refreshPanels()
		}
	case "esc":
		return v, func() tea.Msg { return BackMsg{} }
	}
	return v, nil
}

func (v *TablesView) handlePanelKey(msg tea.KeyMsg) (View, tea.Cmd) {
	p := v.panels.Selected()
	if p == nil {
		v.focus = focusList
		return v, nil
	}

	if !p.Hidden && p.Panel.Editing() {
		_, cmd := p.Panel.HandleKey(msg)
		v.refreshPanels()
		return v, cmd
	}

	switch msg.String() {
	case "esc":
		v.focus = focusList
	case "tab":
		v.panels.Move(1)
	case "shift+tab":
		v.panels.Move(-1)
	case "v":
		v.panels.Toggle(p.ID)
	case "x":
		v.panels.Remove(p.ID)
		if v.panels.Len() == 0 {
			v.focus = focusList
		}
	case "pgup":
		v.viewport.PageUp()
		return v, nil
	case "pgdown":
		v.viewport.PageDown()
		return v, nil
	default:
		if p.Hidden {
			return v, nil
		}
		_, cmd := p.Panel.HandleKey(msg)
		v.refreshPanels()
		return v, cmd
	}
	v.refreshPanels()
	return v, nil
}

func (v *TablesView) refresh() tea.Cmd {
	if v.busy != "" {
		return nil
	}
	v.busy = "Refreshing tables..."
	s := v.session
	return func() tea.Msg {
		tables, err := s.RefreshTables(context.Background())
		return TablesRefreshedMsg{Tables: tables, Err: err}
	}
}

func (v *TablesView) disconnect() tea.Cmd {
	if v.busy != "" || !v.state.Connected {
		return nil
	}
	v.busy = "Disconnecting..."
	s := v.session
	return func() tea.Msg {
		msg, err := s.Disconnect(context.Background())
		return DisconnectResultMsg{Message: msg, Err: err}
	}
}

func (v *TablesView) preview() tea.Cmd {
	if v.busy != "" || v.cursor >= len(v.state.Tables) {
		return nil
	}
	name := v.state.Tables[v.cursor]
	v.busy = "Loading " + name + "..."
	s := v.session
	return func() tea.Msg {
		data, err := s.PreviewTable(context.Background(), name)
		return PreviewLoadedMsg{Name: name, Data: data, Err: err}
	}
}

func (v *TablesView) clampCursor() {
	v.cursor = min(max(v.cursor, 0), max(len(v.state.Tables)-1, 0))
}

func (v *TablesView) setStatus(s string) {
	v.statusMsg = s
	v.err = nil
}

func (v *TablesView) setErr(err error) {
	v.err = err
	v.statusMsg = ""
}

func (v *TablesView) refreshPanels() {
	if v.panels.Len() == 0 {
		v.viewport.SetContentLines([]string{
			StyleDimmed.Render("No previews open."),
			StyleDimmed.Render("Select a table and press Enter."),
		})
		return
	}
	v.viewport.SetContentLines([]string{
		v.panels.Render(max(v.width-listWidth-3, 20), v.focus == focusPanels),
	})
}

func (v *TablesView) View() string {
	var list []string
	if !v.state.Connected {
		list = append(list,
			StyleWarning.Render("Not connected"),
			"",
			StyleDimmed.Render("Press c to connect."),
		)
	} else {
		list = append(list, StyleTitle.Render(v.state.Database))
		if len(v.state.Tables) == 0 {
			list = append(list, StyleDimmed.Render("(no tables)"))
		}
		for i, t := range v.state.Tables {
			switch {
			case i == v.cursor && v.focus == focusList:
				list = append(list, StyleListItemActive.Render("► "+t))
			case i == v.cursor:
				list = append(list, lipgloss.NewStyle().Foreground(ColorAccent).Render("► "+t))
			default:
				list = append(list, "  "+t)
			}
		}
	}

	listBox := lipgloss.NewStyle().
		Width(listWidth).
		Height(max(v.height-2, 1)).
		MaxWidth(listWidth).
		Render(strings.Join(list, "\n"))

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		listBox,
		StyleDimmed.Render(" │ "),
		v.viewport.Render(),
	)

	var status string
	switch {
	case v.busy != "":
		status = StyleDimmed.Render("⏳ " + v.busy)
	case v.err != nil:
		status = StyleError.Render("✗ " + v.err.Error())
	case v.statusMsg != "":
		status = StyleSuccess.Render("✓ " + v.statusMsg)
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, status)
}
