package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/storage"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, 5, cfg.RowsPerPage)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes())
	assert.Equal(t, DefaultRetryMax, cfg.RetryMax)
	assert.True(t, cfg.Markdown)
	assert.Equal(t, "state.db", filepath.Base(cfg.StatePath))
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeFile(t, "server_url: http://file:1/\nrows_per_page: 25\nmarkdown: false\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://file:1", cfg.ServerURL)
	assert.Equal(t, 25, cfg.RowsPerPage)
	assert.False(t, cfg.Markdown)
	assert.Equal(t, path, cfg.ConfigFile)

	t.Setenv("ASKDATA_SERVER_URL", "http://env:2")
	t.Setenv("ASKDATA_ROWS_PER_PAGE", "50")
	cfg, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", cfg.ServerURL)
	assert.Equal(t, 50, cfg.RowsPerPage)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("server", "", "")
	flags.Int("rows-per-page", 0, "")
	require.NoError(t, flags.Parse([]string{"--server", "http://flag:3"}))

	cfg, err = Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:3", cfg.ServerURL)
	assert.Equal(t, 50, cfg.RowsPerPage, "unchanged flags must not override")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := Load(writeFile(t, "rows_per_page: 7\n"), nil)
	assert.ErrorContains(t, err, "rows_per_page")

	_, err = Load(writeFile(t, "max_upload_mb: 0\n"), nil)
	assert.ErrorContains(t, err, "max_upload_mb")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestConnectionStore(t *testing.T) {
	kv := storage.NewMemory()

	store, err := NewConnectionStore(kv)
	require.NoError(t, err)
	assert.Empty(t, store.List())

	c := store.Add("prod", "db.example.com", "sales")
	assert.NotEmpty(t, c.ID)
	assert.True(t, store.Has("prod"))
	require.NoError(t, store.Save())

	raw, ok, err := kv.Get(storage.KeyConnections)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"`+c.ID+`","name":"prod","server":"db.example.com","database":"sales"}]`, raw)

	reloaded, err := NewConnectionStore(kv)
	require.NoError(t, err)
	got, ok := reloaded.Get("prod")
	require.True(t, ok)
	assert.Equal(t, c, got)

	assert.True(t, reloaded.Delete(c.ID))
	assert.False(t, reloaded.Delete(c.ID))
	require.NoError(t, reloaded.Save())

	raw, _, err = kv.Get(storage.KeyConnections)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestConnectionStore_Corrupt(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(storage.KeyConnections, "{not json"))

	store, err := NewConnectionStore(kv)
	assert.ErrorContains(t, err, "parse connections")
	require.NotNil(t, store)
	assert.Empty(t, store.List())
}
