package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api/apitest"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/config"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/storage"
)

var creds = api.Credentials{Server: "db.local", Database: "sales", Username: "u", Password: "p"}

type fixture struct {
	backend *apitest.Backend
	kv      *storage.Memory
	conns   *config.ConnectionStore
	m       *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{backend: apitest.New(t), kv: storage.NewMemory()}

	var err error
	f.conns, err = config.NewConnectionStore(f.kv)
	require.NoError(t, err)
	f.m, err = New(f.kv, f.conns)
	require.NoError(t, err)

	client, err := api.New(api.Options{
		BaseURL:      f.backend.URL,
		Tokens:       f.m,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
	require.NoError(t, err)
	f.m.SetBackend(client)

	f.backend.JSON(http.MethodPost, "/switch_mode", http.StatusOK, map[string]string{"message": "ok"})
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	f.backend.JSON(http.MethodPost, "/connect_db", http.StatusOK, map[string]any{
		"token": "tok-1", "tables": []string{"orders", "customers"},
	})
	_, err := f.m.Connect(context.Background(), creds, "")
	require.NoError(t, err)
}

func (f *fixture) storedToken(t *testing.T) (string, bool) {
	t.Helper()
	v, ok, err := f.kv.Get(storage.KeyToken)
	require.NoError(t, err)
	return v, ok
}

func TestNew_LoadsToken(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(storage.KeyToken, "saved"))

	m, err := New(kv, nil)
	require.NoError(t, err)
	assert.Equal(t, "saved", m.Token())
	assert.Equal(t, "Bearer saved", m.AuthHeader())
	assert.False(t, m.IsActive())
}

func TestConnect(t *testing.T) {
	f := newFixture(t)
	f.backend.JSON(http.MethodPost, "/connect_db", http.StatusOK, map[string]any{
		"token": "tok-1", "tables": []string{"orders"},
	})

	st, err := f.m.Connect(context.Background(), creds, "prod")
	require.NoError(t, err)
	assert.Equal(t, State{Connected: true, Database: "sales", Tables: []string{"orders"}}, st)
	assert.True(t, f.m.IsActive())

	tok, ok := f.storedToken(t)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", tok)

	req, _ := f.backend.Last("/switch_mode")
	assert.JSONEq(t, `{"mode":"sql"}`, string(req.Body))
	assert.Equal(t, "Bearer tok-1", req.Auth)

	saved, ok := f.conns.Get("prod")
	require.True(t, ok)
	assert.Equal(t, "db.local", saved.Server)
	assert.Equal(t, "sales", saved.Database)
}

func TestConnect_ExistingProfileNotOverwritten(t *testing.T) {
	f := newFixture(t)
	f.conns.Add("prod", "old.host", "olddb")
	f.connect(t)

	_, err := f.m.Connect(context.Background(), creds, "prod")
	require.NoError(t, err)

	saved, _ := f.conns.Get("prod")
	assert.Equal(t, "old.host", saved.Server)
	assert.Len(t, f.conns.List(), 1)
}

func TestConnect_PayloadError(t *testing.T) {
	f := newFixture(t)
	f.backend.JSON(http.MethodPost, "/connect_db", http.StatusOK, map[string]string{"error": "Login failed for user 'u'"})

	st, err := f.m.Connect(context.Background(), creds, "prod")
	require.Error(t, err)
	assert.Equal(t, "Login failed for user 'u'", err.Error())
	assert.False(t, st.Connected)
	assert.False(t, f.m.IsActive())
	assert.False(t, f.conns.Has("prod"))
	assert.Equal(t, 0, f.backend.Calls("/switch_mode"))
}

func TestConnect_MissingCredentials(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Connect(context.Background(), api.Credentials{Server: "x"}, "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Empty(t, f.backend.Requests())
}

func TestCheckStatus(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		f := newFixture(t)
		f.backend.JSON(http.MethodGet, "/check_connection_status", http.StatusOK, map[string]any{
			"connected": true, "database": "sales", "tables": []string{"t1"},
		})

		st, err := f.m.CheckStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, State{Connected: true, Database: "sales", Tables: []string{"t1"}}, st)
		assert.Equal(t, 1, f.backend.Calls("/switch_mode"))
	})

	t.Run("not connected discards token", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodGet, "/check_connection_status", http.StatusOK, map[string]any{"connected": false})

		st, err := f.m.CheckStatus(context.Background())
		require.NoError(t, err)
		assert.False(t, st.Connected)
		assert.Empty(t, f.m.Token())
		_, ok := f.storedToken(t)
		assert.False(t, ok)
	})

	t.Run("failure tears down", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodGet, "/check_connection_status", http.StatusUnauthorized, nil)

		_, err := f.m.CheckStatus(context.Background())
		require.Error(t, err)
		assert.False(t, f.m.IsActive())
		assert.Empty(t, f.m.Token())
	})
}

func TestDisconnect(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodPost, "/disconnect", http.StatusOK, map[string]string{"message": "Disconnected successfully"})

		msg, err := f.m.Disconnect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Successfully disconnected from database", msg)
		assert.False(t, f.m.IsActive())

		req, _ := f.backend.Last("/switch_mode")
		assert.JSONEq(t, `{"mode":"csv"}`, string(req.Body))
		assert.Empty(t, req.Auth, "token is gone before the mode switch")
	})

	// Scenario: server fails, local state is still cleared.
	t.Run("fail open", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodPost, "/disconnect", http.StatusInternalServerError, map[string]string{"error": "x"})

		msg, err := f.m.Disconnect(context.Background())
		require.Error(t, err)
		assert.Equal(t, "Disconnected from database. Server message: x", msg)
		assert.Equal(t, State{}, f.m.Snapshot())
		_, ok := f.storedToken(t)
		assert.False(t, ok)
	})

	t.Run("transport failure", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.Close()

		msg, err := f.m.Disconnect(context.Background())
		require.Error(t, err)
		assert.Equal(t, "Error while disconnecting, but local session cleared.", msg)
		assert.False(t, f.m.IsActive())
	})
}

func TestRefreshTables(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodPost, "/refresh_tables", http.StatusOK, map[string]any{"tables": []string{"a", "b", "c"}})

		tables, err := f.m.RefreshTables(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, tables)
		assert.Equal(t, tables, f.m.Snapshot().Tables)
	})

	t.Run("retry once after recheck", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.Sequence(http.MethodPost, "/refresh_tables",
			apitest.Reply(http.StatusBadRequest, map[string]string{"error": "No database connection active"}),
			apitest.Reply(http.StatusOK, map[string]any{"tables": []string{"fresh"}}),
		)
		f.backend.JSON(http.MethodGet, "/check_connection_status", http.StatusOK, map[string]any{
			"connected": true, "database": "sales", "tables": []string{"stale"},
		})

		tables, err := f.m.RefreshTables(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"fresh"}, tables)
		assert.Equal(t, 2, f.backend.Calls("/refresh_tables"))
		assert.Equal(t, 1, f.backend.Calls("/check_connection_status"))
	})

	t.Run("never loops", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodPost, "/refresh_tables", http.StatusBadRequest, map[string]string{"error": "nope"})
		f.backend.JSON(http.MethodGet, "/check_connection_status", http.StatusOK, map[string]any{"connected": true, "database": "sales"})

		_, err := f.m.RefreshTables(context.Background())
		assert.ErrorIs(t, err, api.ErrSessionInvalid)
		assert.Equal(t, 2, f.backend.Calls("/refresh_tables"))
	})

	t.Run("no retry when recheck says disconnected", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodPost, "/refresh_tables", http.StatusBadRequest, map[string]string{"error": "nope"})
		f.backend.JSON(http.MethodGet, "/check_connection_status", http.StatusOK, map[string]any{"connected": false})

		_, err := f.m.RefreshTables(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, f.backend.Calls("/refresh_tables"))
		assert.False(t, f.m.IsActive())
	})
}

func TestPreviewTable(t *testing.T) {
	t.Run("nested shape", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodPost, "/get_table_preview", http.StatusOK, map[string]any{
			"table": map[string]any{"headers": []string{"id"}, "rows": [][]any{{1}, {2}}},
		})

		data, err := f.m.PreviewTable(context.Background(), "orders")
		require.NoError(t, err)
		assert.Len(t, data.Rows, 2)

		req, _ := f.backend.Last("/get_table_preview")
		assert.Equal(t, "Bearer tok-1", req.Auth)
	})

	t.Run("flat shape", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodPost, "/get_table_preview", http.StatusOK, map[string]any{
			"headers": []string{"id", "total"}, "rows": [][]any{{1, 9.5}, {2, nil}},
		})

		data, err := f.m.PreviewTable(context.Background(), "orders")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "total"}, data.Headers)
	})

	t.Run("shape error", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodPost, "/get_table_preview", http.StatusOK, map[string]any{"message": "?"})

		_, err := f.m.PreviewTable(context.Background(), "orders")
		assert.ErrorIs(t, err, api.ErrTableShape)
		assert.True(t, f.m.IsActive())
	})

	t.Run("rejected session", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.backend.JSON(http.MethodPost, "/get_table_preview", http.StatusBadRequest, map[string]string{"error": "No database connection active"})
		f.backend.JSON(http.MethodGet, "/check_connection_status", http.StatusOK, map[string]any{"connected": false})

		_, err := f.m.PreviewTable(context.Background(), "orders")
		assert.ErrorIs(t, err, ErrReconnectNeeded)
		assert.Equal(t, 1, f.backend.Calls("/check_connection_status"))
		assert.False(t, f.m.IsActive())
	})
}

func TestNoBackend(t *testing.T) {
	m, err := New(storage.NewMemory(), nil)
	require.NoError(t, err)

	_, err = m.CheckStatus(context.Background())
	assert.ErrorIs(t, err, ErrNoBackend)
}
