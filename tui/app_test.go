package tui

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/chat"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/config"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/session"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/storage"
)

type fakeSession struct {
	state    session.State
	checks   int
	connects []api.Credentials
	saveAs   string
}

func (f *fakeSession) Connect(_ context.Context, creds api.Credentials, saveAs string) (session.State, error) {
	f.connects = append(f.connects, creds)
	f.saveAs = saveAs
	f.state = session.State{Connected: true, Database: creds.Database, Tables: []string{"orders"}}
	return f.state, nil
}

func (f *fakeSession) Snapshot() session.State { return f.state }

func (f *fakeSession) CheckStatus(context.Context) (session.State, error) {
	f.checks++
	f.state = session.State{}
	return f.state, nil
}

func (f *fakeSession) IsActive() bool { return f.state.Connected }

func (f *fakeSession) RefreshTables(context.Context) ([]string, error) { return f.state.Tables, nil }

func (f *fakeSession) Disconnect(context.Context) (string, error) {
	f.state = session.State{}
	return "Successfully disconnected from database", nil
}

func (f *fakeSession) PreviewTable(_ context.Context, name string) (*explorer.TableData, error) {
	return &explorer.TableData{Headers: []string{"id"}, Rows: [][]explorer.Cell{{name}}}, nil
}

type fakeChat struct {
	questions []string
	uploads   []string
}

func (f *fakeChat) Ask(_ context.Context, q string) (*api.AskResponse, error) {
	f.questions = append(f.questions, q)
	return &api.AskResponse{Answer: "ok"}, nil
}

func (f *fakeChat) Clear(context.Context) error { return nil }

func (f *fakeChat) Upload(_ context.Context, name string, _ io.Reader) (*api.MessageResponse, error) {
	f.uploads = append(f.uploads, name)
	return &api.MessageResponse{Message: "File uploaded"}, nil
}

func (f *fakeChat) ImageAvailable(context.Context, string) bool { return true }

func (f *fakeChat) URL(path string) string { return "http://backend" + path }

// collect runs cmd and every command batched inside it.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func typeInto(v View, s string) View {
	for _, r := range s {
		v, _ = v.Update(runes(string(r)))
	}
	return v
}

func newTestApp(t *testing.T, fs *fakeSession) (*App, *ChatView) {
	t.Helper()
	chatView := NewChatView(chat.NewController(0), &fakeChat{}, 5, false)
	app := NewApp(fs, "http://backend", chatView, NewConnectView(fs, nil), NewTablesView(fs, 5))
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app, chatView
}

func TestChatView_AskAndFocusTable(t *testing.T) {
	ctrl := chat.NewController(0)
	backend := &fakeChat{}
	v := NewChatView(ctrl, backend, 5, false)
	v.SetSize(100, 30)

	typeInto(v, "top customers")
	_, cmd := v.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Equal(t, chat.Sending, ctrl.State())
	require.Equal(t, 1, ctrl.Transcript().Len())

	// A second question is refused while the first is in flight.
	typeInto(v, "again")
	_, cmd = v.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Equal(t, chat.ErrRequestInFlight.Error(), v.status)

	table := explorer.TableData{Headers: []string{"name"}, Rows: [][]explorer.Cell{{"Ann"}}}
	v.Update(AskResultMsg{Resp: &api.AskResponse{Answer: "Here you go", Table: &table}})
	assert.Equal(t, chat.Idle, ctrl.State())
	require.Contains(t, v.tables, 1)
	assert.Contains(t, v.View(), "Ann")

	v.Update(key(tea.KeyTab))
	assert.Equal(t, 1, v.focusTable)
	assert.False(t, v.WantsTextInput())

	v.Update(runes("/"))
	assert.True(t, v.WantsTextInput(), "search editing captures text")
	v.Update(key(tea.KeyEsc))
	v.Update(key(tea.KeyEsc))
	assert.Equal(t, -1, v.focusTable)
	assert.True(t, v.WantsTextInput())
}

func TestChatView_ErrorReplyAndClear(t *testing.T) {
	ctrl := chat.NewController(0)
	v := NewChatView(ctrl, &fakeChat{}, 5, false)
	v.SetSize(100, 30)

	typeInto(v, "q")
	v.Update(key(tea.KeyEnter))
	v.Update(AskResultMsg{Err: &api.StatusError{Op: "ask", Code: 500, Message: "boom"}})
	assert.Equal(t, chat.ErrorShown, ctrl.State())
	assert.Contains(t, v.View(), "Error: boom")

	v.Update(ClearResultMsg{})
	assert.Equal(t, 0, ctrl.Transcript().Len())
	assert.Equal(t, chat.Idle, ctrl.State())
	assert.Equal(t, "Conversation cleared.", v.status)
}

func TestChatView_ClearWaitsForAnswer(t *testing.T) {
	ctrl := chat.NewController(0)
	v := NewChatView(ctrl, &fakeChat{}, 5, false)
	v.SetSize(100, 30)

	typeInto(v, "q")
	_, ask := v.Update(key(tea.KeyEnter))
	require.Equal(t, chat.Sending, ctrl.State())

	_, cmd := v.Update(key(tea.KeyCtrlL))
	assert.Nil(t, cmd)
	assert.True(t, v.statusErr)

	for _, m := range collect(ask) {
		if r, ok := m.(AskResultMsg); ok {
			v.Update(r)
		}
	}
	require.Equal(t, 2, ctrl.Transcript().Len())

	_, cmd = v.Update(key(tea.KeyCtrlL))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)

	// Questions wait until the clear lands.
	typeInto(v, "late")
	_, cmd = v.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Equal(t, 2, ctrl.Transcript().Len())

	v.Update(msgs[0])
	assert.Equal(t, 0, ctrl.Transcript().Len())
	assert.Equal(t, "Conversation cleared.", v.status)
}

func TestChatView_Upload(t *testing.T) {
	backend := &fakeChat{}
	v := NewChatView(chat.NewController(0), backend, 5, false)
	v.SetSize(100, 30)

	typeInto(v, "/upload notes.txt")
	_, cmd := v.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.True(t, v.statusErr)
	assert.Contains(t, v.status, "Unsupported file type")

	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	v.input.SetValue("/upload " + path)
	_, cmd = v.Update(key(tea.KeyEnter))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	v.Update(msgs[0])

	assert.Equal(t, []string{"sales.csv"}, backend.uploads)
	assert.Equal(t, "File uploaded", v.status)
	assert.False(t, v.statusErr)
}

func TestChatView_ImageResolved(t *testing.T) {
	v := NewChatView(chat.NewController(0), &fakeChat{}, 5, false)
	v.SetSize(100, 30)

	typeInto(v, "plot it")
	v.Update(key(tea.KeyEnter))
	_, cmd := v.Update(AskResultMsg{Resp: &api.AskResponse{Answer: "chart below", Image: "chart"}})
	assert.Contains(t, v.View(), "loading image...")

	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	resolved, ok := msgs[0].(ImageResolvedMsg)
	require.True(t, ok)
	assert.Equal(t, 1, resolved.Index)
	assert.Contains(t, resolved.Ref, "http://backend/assets/chart.png?t=")

	v.Update(resolved)
	assert.Contains(t, v.View(), "/assets/chart.png")
}

func TestApp_RejectedAskRechecksLiveSession(t *testing.T) {
	fs := &fakeSession{state: session.State{Connected: true, Database: "sales"}}
	app, _ := newTestApp(t, fs)

	_, cmd := app.Update(AskResultMsg{Err: &api.StatusError{Op: "ask", Code: 401}})
	msgs := collect(cmd)
	assert.Equal(t, 1, fs.checks)
	assert.Contains(t, msgs, StatusCheckedMsg{State: session.State{}})

	// Without a live session there is nothing to re-check.
	_, cmd = app.Update(AskResultMsg{Err: &api.StatusError{Op: "ask", Code: 401}})
	collect(cmd)
	assert.Equal(t, 1, fs.checks)
}

func TestApp_ConnectLandsOnTables(t *testing.T) {
	fs := &fakeSession{}
	app, _ := newTestApp(t, fs)

	app.Update(ShowConnectMsg{})
	assert.Equal(t, ScreenConnect, app.Active())

	st := session.State{Connected: true, Database: "sales", Tables: []string{"orders", "customers"}}
	fs.state = st
	app.Update(ConnectResultMsg{State: st})
	assert.Equal(t, ScreenTables, app.Active())
	assert.Contains(t, app.View(), "sales (2 tables)")

	app.Update(BackMsg{})
	assert.Equal(t, ScreenChat, app.Active())
}

func TestApp_CommandMode(t *testing.T) {
	app, _ := newTestApp(t, &fakeSession{})
	app.Update(key(tea.KeyF3))
	require.Equal(t, ScreenTables, app.Active())

	app.Update(runes(":"))
	for _, r := range "chat" {
		app.Update(runes(string(r)))
	}
	app.Update(key(tea.KeyEnter))
	assert.Equal(t, ScreenChat, app.Active())

	// The chat input keeps ':' as text.
	app.Update(runes(":"))
	assert.Equal(t, ModeNormal, app.mode)
}

func TestConnectView_SavedProfileAndConnect(t *testing.T) {
	store, err := config.NewConnectionStore(storage.NewMemory())
	require.NoError(t, err)
	store.Add("prod", "db.example.com", "sales")

	fs := &fakeSession{}
	v := NewConnectView(fs, store)
	assert.Equal(t, "db.example.com", v.value(fieldServer))
	assert.Equal(t, "sales", v.value(fieldDatabase))
	assert.Empty(t, v.value(fieldUser))

	// Connecting without credentials sends nothing.
	v.focus = fieldConnect
	_, cmd := v.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.ErrorIs(t, v.err, session.ErrMissingCredentials)

	v.focus = fieldSaved
	v.Update(key(tea.KeyEnter))
	require.True(t, v.editing)
	require.Equal(t, fieldUser, v.focus)
	typeInto(v, "bob")
	v.Update(key(tea.KeyEnter))

	v.Update(key(tea.KeyDown))
	v.Update(key(tea.KeyEnter))
	typeInto(v, "pw")
	v.Update(key(tea.KeyEnter))
	assert.Contains(t, v.View(), "••")

	v.Update(key(tea.KeyDown))
	require.Equal(t, fieldConnect, v.focus)
	_, cmd = v.Update(key(tea.KeyEnter))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)

	require.Len(t, fs.connects, 1)
	assert.Equal(t, api.Credentials{Server: "db.example.com", Database: "sales", Username: "bob", Password: "pw"}, fs.connects[0])
	assert.Equal(t, "prod", fs.saveAs)

	v.Update(msgs[0])
	assert.Empty(t, v.value(fieldPassword))
	assert.Contains(t, v.statusMsg, "Connected to sales")
}

func TestConnectView_DeleteSaved(t *testing.T) {
	store, err := config.NewConnectionStore(storage.NewMemory())
	require.NoError(t, err)
	store.Add("a", "s1", "d1")
	store.Add("b", "s2", "d2")

	v := NewConnectView(&fakeSession{}, store)
	v.Update(key(tea.KeyRight))
	assert.Equal(t, "b", v.value(fieldName))

	v.focus = fieldDelete
	v.Update(key(tea.KeyEnter))
	require.Len(t, store.List(), 1)
	assert.Equal(t, "a", store.List()[0].Name)
	assert.Equal(t, "Connection 'b' deleted.", v.statusMsg)
}

func TestTablesView_PreviewPanels(t *testing.T) {
	fs := &fakeSession{state: session.State{Connected: true, Database: "sales", Tables: []string{"orders", "customers"}}}
	v := NewTablesView(fs, 5)
	v.SetSize(120, 30)

	v.Update(key(tea.KeyDown))
	_, cmd := v.Update(key(tea.KeyEnter))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	loaded := msgs[0].(PreviewLoadedMsg)
	assert.Equal(t, "customers", loaded.Name)

	v.Update(loaded)
	require.Equal(t, 1, v.panels.Len())
	assert.Equal(t, focusPanels, v.focus)
	assert.Contains(t, v.View(), "customers")

	v.Update(runes("v"))
	assert.True(t, v.panels.Selected().Hidden)
	v.Update(runes("x"))
	assert.Equal(t, 0, v.panels.Len())
	assert.Equal(t, focusList, v.focus)
}

func TestTablesView_Disconnect(t *testing.T) {
	fs := &fakeSession{state: session.State{Connected: true, Database: "sales", Tables: []string{"orders"}}}
	v := NewTablesView(fs, 5)
	v.SetSize(120, 30)

	_, cmd := v.Update(runes("d"))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	v.Update(msgs[0])

	assert.False(t, v.state.Connected)
	assert.Equal(t, "Successfully disconnected from database", v.statusMsg)
	assert.Contains(t, v.View(), "Not connected")
}
