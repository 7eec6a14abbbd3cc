// view_connect.go is the database connection screen.
//
// The credentials are forwarded to the backend's /connect_db; the client
// never opens the database itself. Saved profiles keep only the server and
// database, so the username and password are typed on every connect.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/config"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/session"
)

// formField is a focusable row of the form, top to bottom.
type formField int

const (
	fieldSaved formField = iota
	fieldName
	fieldServer
	fieldDatabase
	fieldUser
	fieldPassword
	fieldConnect
	fieldSave
	fieldDelete
	fieldCount
)

var formLabels = [fieldCount]string{
	fieldSaved:    "Saved",
	fieldName:     "Profile name",
	fieldServer:   "Server",
	fieldDatabase: "Database",
	fieldUser:     "Username",
	fieldPassword: "Password",
	fieldConnect:  "Connect",
	fieldSave:     "Save",
	fieldDelete:   "Delete",
}

var textFields = []formField{fieldName, fieldServer, fieldDatabase, fieldUser, fieldPassword}

func (f formField) isText() bool   { return f >= fieldName && f <= fieldPassword }
func (f formField) isButton() bool { return f >= fieldConnect && f <= fieldDelete }

var errNoProfileStore = errors.New("saved connections are unavailable")

// Connector is the session operation the screen triggers.
type Connector interface {
	Connect(ctx context.Context, creds api.Credentials, saveAs string) (session.State, error)
}

// ConnectView is the credential form plus saved-profile picker.
type ConnectView struct {
	session Connector
	store   *config.ConnectionStore

	inputs   [fieldCount]textinput.Model // only text fields are used
	focus    formField
	editing  bool
	savedIdx int

	connecting bool
	statusMsg  string
	err        error
	width      int
	height     int
}

// NewConnectView creates the form. store may be nil when profiles are not
// persisted.
func NewConnectView(s Connector, store *config.ConnectionStore) *ConnectView {
	v := &ConnectView{session: s, store: store, focus: fieldServer}
	for _, f := range textFields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		if f == fieldPassword {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		v.inputs[f] = ti
	}
	if len(v.saved()) > 0 {
		v.loadSaved(0)
		v.focus = fieldSaved
	}
	return v
}

func (v *ConnectView) Name() string { return "Connect" }

func (v *ConnectView) WantsTextInput() bool { return v.editing }

func (v *ConnectView) SetSize(width, height int) {
	v.width = width
	v.height = height
	for _, f := range textFields {
		v.inputs[f].Width = v.inputWidth()
	}
}

func (v *ConnectView) ShortHelp() []KeyBinding {
	if v.editing {
		return []KeyBinding{
			{Key: "Enter", Desc: "confirm"},
			{Key: "Esc", Desc: "done"},
			{Key: "Ctrl+U", Desc: "clear"},
		}
	}
	return []KeyBinding{
		{Key: "↑/↓", Desc: "navigate"},
		{Key: "←/→", Desc: "saved"},
		{Key: "Enter", Desc: "edit/action"},
		{Key: "Esc", Desc: "back"},
	}
}

func (v *ConnectView) Init() tea.Cmd { return nil }

func (v *ConnectView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.editing {
			return v.updateEditing(msg)
		}
		return v.updateNavigation(msg)

	case ConnectResultMsg:
		v.connecting = false
		if msg.Err != nil {
			v.setErr(msg.Err)
			return v, nil
		}
		v.inputs[fieldPassword].Reset()
		v.setStatus(fmt.Sprintf("Connected to %s (%d tables)", msg.State.Database, len(msg.State.Tables)))
		v.selectSaved(v.value(fieldName))
		return v, nil
	}

	if v.editing {
		var cmd tea.Cmd
		v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *ConnectView) updateNavigation(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "tab", "down", "j":
		v.step(1)
	case "shift+tab", "up", "k":
		v.step(-1)
	case "left", "h":
		v.sideways(-1)
	case "right", "l":
		v.sideways(1)
	case "enter":
		return v, v.activate()
	case "esc":
		return v, func() tea.Msg { return BackMsg{} }
	}
	return v, nil
}

func (v *ConnectView) updateEditing(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		v.inputs[v.focus].Blur()
		v.editing = false
		return v, nil
	}
	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	return v, cmd
}

// step moves the focus, wrapping, and skips the saved row when there is
// nothing saved.
func (v *ConnectView) step(dir int) {
	for {
		v.focus = (v.focus + formField(dir) + fieldCount) % fieldCount
		if v.focus != fieldSaved || len(v.saved()) > 0 {
			return
		}
	}
}

// sideways cycles saved profiles on the saved row and moves between the
// buttons on the button row.
func (v *ConnectView) sideways(dir int) {
	switch {
	case v.focus == fieldSaved:
		if n := len(v.saved()); n > 0 {
			v.loadSaved((v.savedIdx + dir + n) % n)
		}
	case v.focus.isButton():
		v.focus = min(max(v.focus+formField(dir), fieldConnect), fieldDelete)
	}
}

func (v *ConnectView) activate() tea.Cmd {
	switch v.focus {
	case fieldSaved:
		// A loaded profile still needs the credentials.
		v.focus = fieldUser
		return v.startEditing()
	case fieldConnect:
		return v.connect()
	case fieldSave:
		v.saveProfile()
	case fieldDelete:
		v.deleteProfile()
	default:
		if v.focus.isText() {
			return v.startEditing()
		}
	}
	return nil
}

func (v *ConnectView) startEditing() tea.Cmd {
	v.editing = true
	v.inputs[v.focus].CursorEnd()
	return v.inputs[v.focus].Focus()
}

func (v *ConnectView) value(f formField) string {
	if f == fieldPassword {
		return v.inputs[f].Value()
	}
	return strings.TrimSpace(v.inputs[f].Value())
}

func (v *ConnectView) credentials() api.Credentials {
	return api.Credentials{
		Server:   v.value(fieldServer),
		Database: v.value(fieldDatabase),
		Username: v.value(fieldUser),
		Password: v.value(fieldPassword),
	}
}

func (v *ConnectView) connect() tea.Cmd {
	if v.connecting {
		return nil
	}
	creds := v.credentials()
	if !creds.Complete() {
		v.setErr(session.ErrMissingCredentials)
		return nil
	}

	v.connecting = true
	v.setStatus("Connecting to " + creds.Server + "...")

	s, saveAs := v.session, v.value(fieldName)
	return func() tea.Msg {
		state, err := s.Connect(context.Background(), creds, saveAs)
		return ConnectResultMsg{State: state, Err: err}
	}
}

func (v *ConnectView) saveProfile() {
	if v.store == nil {
		v.setErr(errNoProfileStore)
		return
	}
	name := v.value(fieldName)
	if name == "" {
		v.setErr(errors.New("enter a profile name first"))
		return
	}

	v.store.Add(name, v.value(fieldServer), v.value(fieldDatabase))
	if err := v.store.Save(); err != nil {
		v.setErr(err)
		return
	}
	v.setStatus(fmt.Sprintf("Connection '%s' saved!", name))
	v.selectSaved(name)
}

func (v *ConnectView) deleteProfile() {
	saved := v.saved()
	if len(saved) == 0 {
		return
	}

	c := saved[v.savedIdx]
	v.store.Delete(c.ID)
	if err := v.store.Save(); err != nil {
		v.setErr(err)
		return
	}
	v.setStatus(fmt.Sprintf("Connection '%s' deleted.", c.Name))

	if v.savedIdx >= len(v.saved()) {
		v.savedIdx = 0
	}
	if len(v.saved()) == 0 && v.focus == fieldSaved {
		v.focus = fieldName
	}
}

func (v *ConnectView) saved() []config.Connection {
	if v.store == nil {
		return nil
	}
	return v.store.List()
}

// loadSaved pre-fills the profile fields; credentials are never stored
// and are cleared.
func (v *ConnectView) loadSaved(idx int) {
	saved := v.saved()
	if idx < 0 || idx >= len(saved) {
		return
	}
	c := saved[idx]
	v.inputs[fieldName].SetValue(c.Name)
	v.inputs[fieldServer].SetValue(c.Server)
	v.inputs[fieldDatabase].SetValue(c.Database)
	v.inputs[fieldUser].Reset()
	v.inputs[fieldPassword].Reset()
	v.savedIdx = idx
}

func (v *ConnectView) selectSaved(name string) {
	for i, c := range v.saved() {
		if c.Name == name {
			v.savedIdx = i
			return
		}
	}
}

func (v *ConnectView) setStatus(s string) {
	v.statusMsg = s
	v.err = nil
}

func (v *ConnectView) setErr(err error) {
	v.err = err
	v.statusMsg = ""
}

func (v *ConnectView) panelWidth() int { return min(max(v.width-4, 40), 72) }
func (v *ConnectView) inputWidth() int { return max(v.panelWidth()-24, 10) }

func (v *ConnectView) View() string {
	width := v.panelWidth()
	var lines []string

	if saved := v.saved(); len(saved) > 0 {
		var row strings.Builder
		for i, c := range saved {
			switch {
			case i == v.savedIdx && v.focus == fieldSaved:
				row.WriteString(StyleListItemActive.Render(" ► " + c.Name + " "))
			case i == v.savedIdx:
				row.WriteString(lipgloss.NewStyle().Foreground(ColorAccent).Render(" ► " + c.Name + " "))
			default:
				row.WriteString(StyleDimmed.Render("   " + c.Name + " "))
			}
		}
		lines = append(lines, sectionRule("Saved", width-8), row.String(), "")
	}

	lines = append(lines, sectionRule("Database", width-8))
	for _, f := range textFields {
		lines = append(lines, v.fieldRow(f))
	}
	lines = append(lines, "",
		v.button(fieldConnect)+"  "+v.button(fieldSave)+"  "+v.button(fieldDelete))

	content := StyleBorder.Padding(1, 2).Width(width).
		BorderForeground(ColorAccent).
		Render(strings.Join(lines, "\n"))

	switch {
	case v.connecting:
		content = lipgloss.JoinVertical(lipgloss.Left, content, StyleDimmed.Render("⏳ "+v.statusMsg))
	case v.err != nil:
		content = lipgloss.JoinVertical(lipgloss.Left, content, StyleError.Render("✗ "+v.err.Error()))
	case v.statusMsg != "":
		content = lipgloss.JoinVertical(lipgloss.Left, content, StyleSuccess.Render("✓ "+v.statusMsg))
	}

	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, content)
}

// sectionRule renders "── label ─────" spanning width.
func sectionRule(label string, width int) string {
	rest := max(width-lipgloss.Width(label)-6, 4)
	return StyleDimmed.Render("──") + " " + StyleTitle.UnsetMarginBottom().Render(label) + " " +
		StyleDimmed.Render(strings.Repeat("─", rest))
}

// fieldRow renders label and value; the password is always masked and
// the live input is shown only while editing.
func (v *ConnectView) fieldRow(f formField) string {
	labelStyle := lipgloss.NewStyle().Width(16).Foreground(ColorDim)
	label := formLabels[f]
	if v.focus == f {
		labelStyle = labelStyle.Foreground(ColorAccent).Bold(true)
		label = "▸ " + label
	}

	var value string
	switch {
	case v.focus == f && v.editing:
		value = v.inputs[f].View()
	case f == fieldPassword:
		value = strings.Repeat("•", len([]rune(v.inputs[f].Value())))
	default:
		value = v.inputs[f].Value()
	}
	if v.focus != f {
		value = StyleDimmed.Render(value)
	}
	return labelStyle.Render(label) + " " + value
}

func (v *ConnectView) button(f formField) string {
	if v.focus == f {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorAccent).
			Padding(0, 2).
			Render("⏎ " + formLabels[f])
	}
	return StyleDimmed.Padding(0, 2).Render("  " + formLabels[f])
}
