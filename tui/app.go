// app.go is the top-level Bubble Tea model that orchestrates all views.
//
// Flow:
//  1. Start on the chat screen and check the backend connection status
//  2. F2 (or /connect) opens the connection form; a successful connect
//     lands on the tables screen
//  3. Disconnecting keeps the chat usable for uploaded files
//
// Key design decisions:
//   - Key presses go to the active screen only
//   - Every other message is broadcast, so replies reach a screen even
//     after the user switched away from it
//   - Command mode (`:`) for the screens that do not take text
//   - Help overlay (`?` or F4)
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/applog"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/session"
)

// Screen identifies the active view.
type Screen int

const (
	ScreenChat Screen = iota
	ScreenConnect
	ScreenTables
)

// InputMode determines what keystrokes do on screens without text input.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeCommand
)

// Session is the connection state the App and its screens drive.
type Session interface {
	Connector
	TablesSession
	CheckStatus(ctx context.Context) (session.State, error)
	IsActive() bool
}

// App is the root Bubble Tea model.
type App struct {
	session   Session
	serverURL string
	version   string

	views  []View // indexed by Screen
	active Screen
	state  session.State

	// UI state
	width     int
	height    int
	mode      InputMode
	cmdInput  string
	showHelp  bool
	statusMsg string
}

// NewApp creates the application on the chat screen.
func NewApp(s Session, serverURL string, chatView *ChatView, connectView *ConnectView, tablesView *TablesView) *App {
	return &App{
		session:   s,
		serverURL: serverURL,
		version:   "dev",
		views:     []View{ScreenChat: chatView, ScreenConnect: connectView, ScreenTables: tablesView},
		active:    ScreenChat,
		state:     s.Snapshot(),
	}
}

// Active returns the screen receiving keys.
func (a *App) Active() Screen { return a.active }

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.views[ScreenChat].Init(), a.checkStatus())
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Header(1) + Status(1) + Borders(2) = 4 lines chrome
		contentW := a.width - 2
		viewH := a.height - 4
		for _, v := range a.views {
			v.SetSize(contentW, viewH)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case ShowConnectMsg:
		return a.switchTo(ScreenConnect)
	case ShowTablesMsg:
		return a.switchTo(ScreenTables)
	case BackMsg:
		return a.switchTo(ScreenChat)

	case StatusMsg:
		a.statusMsg = string(msg)
		return a, nil

	case StatusCheckedMsg:
		a.state = msg.State
		if msg.Err != nil {
			a.statusMsg = "status check failed: " + msg.Err.Error()
		}

	case ConnectResultMsg:
		if msg.Err == nil {
			a.state = msg.State
			a.statusMsg = ""
			cmd := a.broadcast(msg)
			_, next := a.switchTo(ScreenTables)
			return a, tea.Batch(cmd, next)
		}

	case DisconnectResultMsg:
		a.state = a.session.Snapshot()
		a.statusMsg = msg.Message

	case TablesRefreshedMsg, PreviewLoadedMsg:
		a.state = a.session.Snapshot()

	case AskResultMsg:
		if recheck := a.recheckOn(msg.Err); recheck != nil {
			return a, tea.Batch(a.broadcast(msg), recheck)
		}

	case ClearResultMsg:
		if recheck := a.recheckOn(msg.Err); recheck != nil {
			return a, tea.Batch(a.broadcast(msg), recheck)
		}
	}

	return a, a.broadcast(msg)
}

// broadcast forwards a non-key message to every view.
func (a *App) broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for i, v := range a.views {
		updated, cmd := v.Update(msg)
		a.views[i] = updated
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// recheckOn returns a status check when err says the backend rejected a
// session the client still believes is live.
func (a *App) recheckOn(err error) tea.Cmd {
	if err == nil || !errors.Is(err, api.ErrSessionInvalid) || !a.session.IsActive() {
		return nil
	}
	applog.Event("SESSION", "request rejected, re-checking status")
	return a.checkStatus()
}

func (a *App) checkStatus() tea.Cmd {
	s := a.session
	return func() tea.Msg {
		st, err := s.CheckStatus(context.Background())
		return StatusCheckedMsg{State: st, Err: err}
	}
}

func (a *App) switchTo(screen Screen) (tea.Model, tea.Cmd) {
	a.active = screen
	a.mode = ModeNormal
	a.showHelp = false
	return a, a.views[screen].Init()
}

// handleKey processes keyboard input.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.mode == ModeCommand {
		return a.handleCommandMode(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "f1":
		return a.switchTo(ScreenChat)
	case "f2":
		return a.switchTo(ScreenConnect)
	case "f3":
		return a.switchTo(ScreenTables)
	case "f4":
		a.showHelp = !a.showHelp
		return a, nil
	}

	// When the active view is accepting text input, only the keys above
	// are global.
	if !a.views[a.active].WantsTextInput() {
		switch msg.String() {
		case "?":
			a.showHelp = !a.showHelp
			return a, nil
		case ":":
			a.mode = ModeCommand
			a.cmdInput = ""
			return a, nil
		case "q":
			if a.active != ScreenChat {
				return a, tea.Quit
			}
		}
	}

	if a.showHelp && msg.String() == "esc" {
		a.showHelp = false
		return a, nil
	}

	a.statusMsg = ""
	updated, cmd := a.views[a.active].Update(msg)
	a.views[a.active] = updated
	return a, cmd
}

func (a *App) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		cmd := a.executeCommand(a.cmdInput)
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, cmd

	case "esc":
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, nil

	case "backspace":
		if r := []rune(a.cmdInput); len(r) > 0 {
			a.cmdInput = string(r[:len(r)-1])
		}
		return a, nil

	default:
		if msg.Type == tea.KeyRunes {
			a.cmdInput += string(msg.Runes)
		}
		return a, nil
	}
}

func (a *App) executeCommand(input string) tea.Cmd {
	input = strings.TrimSpace(input)
	switch input {
	case "q", "quit":
		return tea.Quit
	case "chat":
		_, cmd := a.switchTo(ScreenChat)
		return cmd
	case "connect":
		_, cmd := a.switchTo(ScreenConnect)
		return cmd
	case "tables", "dt":
		_, cmd := a.switchTo(ScreenTables)
		return cmd
	case "status":
		a.statusMsg = "checking connection..."
		return a.checkStatus()
	default:
		a.statusMsg = "unknown command: " + input
		return nil
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	header := a.renderHeader()

	content := a.views[a.active].View()
	if a.showHelp {
		content = a.renderHelp()
	}

	// Frame height = Total - Header(1) - Status(1) - Borders(2)
	frame := StyleBorder.
		Width(a.width - 2).
		Height(max(a.height-4, 0)).
		Render(content)

	return header + "\n" + frame + "\n" + a.renderStatusBar()
}

// renderHeader draws a simple text bar: logo + version + connection info.
func (a *App) renderHeader() string {
	logo := StyleBold.Render("askdata")
	version := StyleDimmed.Render(" v" + a.version)
	screen := StyleTabActive.Render(a.views[a.active].Name())

	var connInfo string
	if a.state.Connected {
		connInfo = StyleSuccess.Render(fmt.Sprintf("⚡ %s (%d tables)", a.state.Database, len(a.state.Tables)))
	} else {
		connInfo = StyleDimmed.Render("○ no database")
	}

	content := logo + version + " " + screen + " " + connInfo

	right := StyleDimmed.Render(a.serverURL)
	gap := max(a.width-lipgloss.Width(content)-lipgloss.Width(right), 1)

	return lipgloss.NewStyle().
		Width(a.width).
		MaxWidth(a.width).
		Render(content + strings.Repeat(" ", gap) + right)
}

func (a *App) renderStatusBar() string {
	var content string

	switch {
	case a.mode == ModeCommand:
		content = StylePrompt.Render(":") + a.cmdInput + "█"
	case a.statusMsg != "":
		content = a.statusMsg
	default:
		var parts []string
		for _, h := range a.getHelpItems() {
			parts = append(parts,
				StyleHelpKey.Render(h.Key)+" "+StyleHelpDesc.Render(h.Desc))
		}
		content = strings.Join(parts, "  │  ")
	}

	return StyleStatusBar.Width(a.width).MaxWidth(a.width).Render(content)
}

func (a *App) getHelpItems() []KeyBinding {
	global := []KeyBinding{
		{Key: "F1-F3", Desc: "chat/connect/tables"},
		{Key: "F4", Desc: "help"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
	return append(a.views[a.active].ShortHelp(), global...)
}

func (a *App) renderHelp() string {
	help := []string{
		StyleTitle.Render("⌨ askdata Keyboard Shortcuts"),
		"",
		StyleHelpKey.Render("F1 / F2 / F3") + "     Chat, Connect, Tables",
		StyleHelpKey.Render("F4 or ?") + "          Toggle this help",
		StyleHelpKey.Render("Ctrl+C") + "           Quit",
		"",
		StyleTitle.Render("Chat"),
		"",
		StyleHelpKey.Render("Enter") + "            Send question",
		StyleHelpKey.Render("Tab") + "              Focus tables in answers",
		StyleHelpKey.Render("Ctrl+L") + "           Clear conversation",
		StyleHelpKey.Render("Ctrl+Y") + "           Copy last answer",
		StyleHelpKey.Render("/upload <file>") + "   Upload a .csv or .xml file",
		"",
		StyleTitle.Render("Tables"),
		"",
		StyleHelpKey.Render("/") + "                Search all columns",
		StyleHelpKey.Render("f / F") + "            Edit / toggle column filter",
		StyleHelpKey.Render("s / S") + "            Sort ascending-descending / descending",
		StyleHelpKey.Render("←/→") + "              Focus column",
		StyleHelpKey.Render("[ ] { }") + "          Previous, next, first, last page",
		StyleHelpKey.Render("+ / -") + "            Rows per page",
		"",
		StyleTitle.Render("Commands"),
		"",
		StyleHelpKey.Render(":status") + "          Re-check the connection",
		StyleHelpKey.Render(":tables") + "          Show tables",
		StyleHelpKey.Render(":quit") + "            Quit",
		"",
		StyleDimmed.Render("Press F4 or Esc to close"),
	}

	return lipgloss.NewStyle().
		Width(a.width-4).
		Height(max(a.height-6, 0)).
		Padding(1, 2).
		Render(strings.Join(help, "\n"))
}
