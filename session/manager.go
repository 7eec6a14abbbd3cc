// Package session owns the client's view of the backend database
// connection: whether one is live, which database and tables it exposes,
// and the bearer token that authenticates it.
//
// The Manager is shared between the UI loop and request goroutines, so
// every field is guarded by a mutex. Network calls are made without the
// lock held.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/applog"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/config"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/storage"
)

var (
	// ErrReconnectNeeded is returned when the backend rejected the session
	// during a preview; the user has to reconnect.
	ErrReconnectNeeded = errors.New("connection error, please try again after reconnecting")

	ErrMissingCredentials = errors.New("server, database, username and password are required")
	ErrNoBackend          = errors.New("session has no backend")
)

// Backend is the subset of the api client the manager drives.
type Backend interface {
	CheckStatus(ctx context.Context) (*api.StatusResponse, error)
	ConnectDB(ctx context.Context, creds api.Credentials) (*api.ConnectResponse, error)
	Disconnect(ctx context.Context) (*api.MessageResponse, error)
	RefreshTables(ctx context.Context) ([]string, error)
	SwitchMode(ctx context.Context, mode string) error
	TablePreview(ctx context.Context, table string) (*explorer.TableData, error)
}

var _ Backend = (*api.Client)(nil)

// State is a copy of the session at one instant.
type State struct {
	Connected bool
	Database  string
	Tables    []string
}

// Manager is the single connection session of the process.
type Manager struct {
	kv    storage.KV
	conns *config.ConnectionStore

	mu        sync.Mutex
	backend   Backend
	connected bool
	database  string
	tables    []string
	token     string
}

var _ api.TokenSource = (*Manager)(nil)

// New creates a disconnected manager and loads any token saved by an
// earlier run. conns may be nil when profiles are not saved.
func New(kv storage.KV, conns *config.ConnectionStore) (*Manager, error) {
	m := &Manager{kv: kv, conns: conns}
	tok, ok, err := kv.Get(storage.KeyToken)
	if err != nil {
		return m, fmt.Errorf("load token: %w", err)
	}
	if ok {
		m.token = tok
	}
	return m, nil
}

// SetBackend attaches the client used for every call. The client usually
// takes the manager itself as its TokenSource, hence the two-step setup.
func (m *Manager) SetBackend(b Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend = b
}

// Connections returns the saved-profile store, possibly nil.
func (m *Manager) Connections() *config.ConnectionStore { return m.conns }

// Token returns the bearer token, "" when none is held.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// AuthHeader returns the Authorization header value, "" without a token.
func (m *Manager) AuthHeader() string {
	if tok := m.Token(); tok != "" {
		return "Bearer " + tok
	}
	return ""
}

// IsActive reports whether a database session is live.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	return State{
		Connected: m.connected,
		Database:  m.database,
		Tables:    slices.Clone(m.tables),
	}
}

func (m *Manager) client() (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backend == nil {
		return nil, ErrNoBackend
	}
	return m.backend, nil
}

// CheckStatus asks the backend whether the session is still live. A live
// session is adopted; anything else tears the local session down and
// discards the token.
func (m *Manager) CheckStatus(ctx context.Context) (State, error) {
	b, err := m.client()
	if err != nil {
		return State{}, err
	}

	resp, err := b.CheckStatus(ctx)
	if err != nil {
		applog.Event("SESSION", "status check failed: %v", err)
		m.teardown()
		return State{}, err
	}
	if !resp.Connected {
		applog.Event("SESSION", "backend reports no connection")
		m.teardown()
		return State{}, nil
	}

	m.mu.Lock()
	m.connected = true
	m.database = resp.Database
	m.tables = slices.Clone(resp.Tables)
	st := m.snapshotLocked()
	m.mu.Unlock()

	m.switchMode(ctx, b, api.ModeSQL)
	applog.Event("SESSION", "connected to %s (%d tables)", st.Database, len(st.Tables))
	return st, nil
}

// Connect opens a database session through the backend. When saveAs is
// non-empty and no profile has that name yet, the server and database
// are saved under it. On failure the previous state is left untouched.
func (m *Manager) Connect(ctx context.Context, creds api.Credentials, saveAs string) (State, error) {
	if !creds.Complete() {
		return m.Snapshot(), ErrMissingCredentials
	}
	b, err := m.client()
	if err != nil {
		return State{}, err
	}

	resp, err := b.ConnectDB(ctx, creds)
	if err != nil {
		applog.Event("SESSION", "connect to %s/%s failed: %v", creds.Server, creds.Database, err)
		return m.Snapshot(), err
	}

	if err := m.storeToken(resp.Token); err != nil {
		applog.Error("save token: %v", err)
	}

	m.mu.Lock()
	m.connected = true
	m.database = creds.Database
	m.tables = slices.Clone(resp.Tables)
	st := m.snapshotLocked()
	m.mu.Unlock()

	m.switchMode(ctx, b, api.ModeSQL)
	m.saveProfile(saveAs, creds)

	applog.Event("SESSION", "connected to %s/%s (%d tables)", creds.Server, creds.Database, len(st.Tables))
	return st, nil
}

// Disconnect ends the session. The local session is always cleared. The
// returned message is for the user; serverErr is non-nil when the backend
// call itself failed.
func (m *Manager) Disconnect(ctx context.Context) (msg string, serverErr error) {
	b, err := m.client()
	if err != nil {
		m.teardown()
		return "Disconnected locally.", err
	}

	_, serverErr = b.Disconnect(ctx)
	m.teardown()
	m.switchMode(ctx, b, api.ModeCSV)

	var se *api.StatusError
	switch {
	case serverErr == nil:
		msg = "Successfully disconnected from database"
	case errors.As(serverErr, &se):
		reason := se.Message
		if reason == "" {
			reason = "Unknown status"
		}
		msg = "Disconnected from database. Server message: " + reason
	default:
		msg = "Error while disconnecting, but local session cleared."
	}
	applog.Event("SESSION", "disconnected (server error: %v)", serverErr)
	return msg, serverErr
}

// RefreshTables reloads the table list. A rejected session is re-checked
// once and, if still live, the refresh is retried once.
func (m *Manager) RefreshTables(ctx context.Context) ([]string, error) {
	b, err := m.client()
	if err != nil {
		return nil, err
	}

	tables, err := b.RefreshTables(ctx)
	if errors.Is(err, api.ErrSessionInvalid) {
		st, cerr := m.CheckStatus(ctx)
		if cerr == nil && st.Connected {
			tables, err = b.RefreshTables(ctx)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("refresh tables: %w", err)
	}

	m.mu.Lock()
	m.tables = slices.Clone(tables)
	m.mu.Unlock()
	return tables, nil
}

// PreviewTable fetches the first rows of name. A rejected session triggers
// a status re-check and ErrReconnectNeeded.
func (m *Manager) PreviewTable(ctx context.Context, name string) (*explorer.TableData, error) {
	b, err := m.client()
	if err != nil {
		return nil, err
	}

	data, err := b.TablePreview(ctx, name)
	if errors.Is(err, api.ErrSessionInvalid) {
		_, _ = m.CheckStatus(ctx)
		return nil, fmt.Errorf("preview %s: %w", name, ErrReconnectNeeded)
	}
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", name, err)
	}
	return data, nil
}

func (m *Manager) teardown() {
	m.mu.Lock()
	m.connected = false
	m.database = ""
	m.tables = nil
	m.mu.Unlock()

	if err := m.storeToken(""); err != nil {
		applog.Error("discard token: %v", err)
	}
}

func (m *Manager) storeToken(tok string) error {
	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	if tok == "" {
		return m.kv.Delete(storage.KeyToken)
	}
	return m.kv.Set(storage.KeyToken, tok)
}

// switchMode is best effort; failures are only logged.
func (m *Manager) switchMode(ctx context.Context, b Backend, mode string) {
	if err := b.SwitchMode(ctx, mode); err != nil {
		applog.Event("SESSION", "switch mode to %s: %v", mode, err)
	}
}

func (m *Manager) saveProfile(name string, creds api.Credentials) {
	if name == "" || m.conns == nil || m.conns.Has(name) {
		return
	}
	m.conns.Add(name, creds.Server, creds.Database)
	if err := m.conns.Save(); err != nil {
		applog.Error("save connection %q: %v", name, err)
	}
}
