package chat

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api/apitest"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
}

func newTestController(maxUpload int64) *Controller {
	c := NewController(maxUpload)
	c.Now = fixedClock
	return c
}

func newClient(t *testing.T, b *apitest.Backend) *api.Client {
	t.Helper()
	client, err := api.New(api.Options{BaseURL: b.URL})
	require.NoError(t, err)
	return client
}

func TestAsk_Success(t *testing.T) {
	b := apitest.New(t)
	b.Handle(http.MethodPost, "/ask", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"Top customers","table":{"headers":["name"],"rows":[["Ann"]]},"image":"plot"}`))
	})
	c := newTestController(0)

	bot, err := c.Ask(context.Background(), newClient(t, b), "  who buys most?  ")
	require.NoError(t, err)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: User, Content: "who buys most?", Timestamp: "09:05"}, msgs[0])
	assert.Equal(t, Bot, bot.Role)
	assert.Equal(t, "Top customers", bot.Content)
	assert.True(t, bot.HasTable())
	assert.Equal(t, "plot", bot.Image)
	assert.Equal(t, Idle, c.State())
}

func TestBeginRejectsWhileSending(t *testing.T) {
	c := newTestController(0)

	q, err := c.Begin("first")
	require.NoError(t, err)
	assert.Equal(t, "first", q)
	assert.Equal(t, Sending, c.State())

	_, err = c.Begin("second")
	assert.ErrorIs(t, err, ErrRequestInFlight)
	assert.Equal(t, 1, c.Transcript().Len())

	c.Complete(&api.AskResponse{Answer: "done"}, nil)
	assert.Equal(t, 2, c.Transcript().Len())

	// One user message per completed round trip.
	_, err = c.Begin("third")
	require.NoError(t, err)
	c.Complete(&api.AskResponse{Answer: "again"}, nil)
	roles := []Role{}
	for _, m := range c.Messages() {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []Role{User, Bot, User, Bot}, roles)
}

func TestBeginRejectsEmpty(t *testing.T) {
	c := newTestController(0)
	_, err := c.Begin("   \n")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, 0, c.Transcript().Len())
	assert.Equal(t, Idle, c.State())
}

func TestAsk_PayloadErrorShownVerbatim(t *testing.T) {
	b := apitest.New(t)
	b.JSON(http.MethodPost, "/ask", http.StatusOK, map[string]any{
		"error": "no data", "table": map[string]any{"headers": []string{"x"}}, "image": "ignored",
	})
	c := newTestController(0)

	bot, err := c.Ask(context.Background(), newClient(t, b), "q")
	require.NoError(t, err)
	assert.Equal(t, "no data", bot.Content)
	assert.Nil(t, bot.Table)
	assert.Empty(t, bot.Image)
	assert.Equal(t, ErrorShown, c.State())

	// The next question is accepted after an error.
	_, err = c.Begin("retry")
	assert.NoError(t, err)
}

func TestAsk_Failures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		b := apitest.New(t)
		b.JSON(http.MethodPost, "/ask", http.StatusInternalServerError, map[string]string{"error": "agent crashed"})
		c := newTestController(0)

		bot, err := c.Ask(context.Background(), newClient(t, b), "q")
		require.NoError(t, err)
		assert.Equal(t, "Error: agent crashed (HTTP 500)", bot.Content)
		assert.Equal(t, 2, c.Transcript().Len(), "user message is kept")
	})

	t.Run("transport", func(t *testing.T) {
		b := apitest.New(t)
		client := newClient(t, b)
		b.Close()
		c := newTestController(0)

		bot, err := c.Ask(context.Background(), client, "q")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(bot.Content, "Error: ask: "), bot.Content)
		assert.Equal(t, ErrorShown, c.State())
	})

	t.Run("complete with error directly", func(t *testing.T) {
		c := newTestController(0)
		_, err := c.Begin("q")
		require.NoError(t, err)
		bot := c.Complete(nil, errors.New("offline"))
		assert.Equal(t, "Error: offline", bot.Content)
	})
}

func TestClear(t *testing.T) {
	b := apitest.New(t)
	client := newClient(t, b)
	c := newTestController(0)
	_, _ = c.Begin("q")
	c.Complete(&api.AskResponse{Answer: "a"}, nil)

	b.JSON(http.MethodPost, "/clear", http.StatusInternalServerError, nil)
	require.Error(t, c.Clear(context.Background(), client))
	assert.Equal(t, 2, c.Transcript().Len())

	b.Handle(http.MethodPost, "/clear", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("cleared"))
	})
	require.NoError(t, c.Clear(context.Background(), client))
	assert.Equal(t, 0, c.Transcript().Len())
}

func TestClear_NotWhileAsking(t *testing.T) {
	b := apitest.New(t)
	client := newClient(t, b)
	b.JSON(http.MethodPost, "/clear", http.StatusOK, map[string]string{"message": "cleared"})
	c := newTestController(0)

	_, err := c.Begin("q")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Clear(context.Background(), client), ErrRequestInFlight)
	assert.Zero(t, b.Calls("/clear"))

	c.Complete(&api.AskResponse{Answer: "a"}, nil)
	require.Equal(t, 2, c.Transcript().Len())

	// A clear in flight holds back new questions.
	require.NoError(t, c.BeginClear())
	_, err = c.Begin("next")
	assert.ErrorIs(t, err, ErrRequestInFlight)
	assert.ErrorIs(t, c.BeginClear(), ErrRequestInFlight)

	require.Error(t, c.CompleteClear(errors.New("down")))
	assert.Equal(t, 2, c.Transcript().Len())
	_, err = c.Begin("next")
	require.NoError(t, err)
}

func writeSized(t *testing.T, name string, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return path
}

func TestUpload(t *testing.T) {
	const limit = 1 << 20

	b := apitest.New(t)
	b.JSON(http.MethodPost, "/upload", http.StatusOK, map[string]string{"message": "File uploaded successfully"})
	client := newClient(t, b)
	c := newTestController(limit)

	t.Run("wrong extension", func(t *testing.T) {
		_, err := c.Upload(context.Background(), client, writeSized(t, "data.json", 10))
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, 0, b.Calls("/upload"))
	})

	t.Run("too big", func(t *testing.T) {
		_, err := c.Upload(context.Background(), client, writeSized(t, "big.csv", limit+1))
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "File size too big. Max 1 MB.", ve.Error())
		assert.Equal(t, 0, b.Calls("/upload"))
	})

	t.Run("exactly at limit", func(t *testing.T) {
		resp, err := c.Upload(context.Background(), client, writeSized(t, "edge.XML", limit))
		require.NoError(t, err)
		assert.Equal(t, "File uploaded successfully", resp.Message)
		assert.Equal(t, 1, b.Calls("/upload"))
	})

	t.Run("server error", func(t *testing.T) {
		b.JSON(http.MethodPost, "/upload", http.StatusBadRequest, map[string]string{"error": "Invalid file type"})
		_, err := c.Upload(context.Background(), client, writeSized(t, "x.csv", 3))
		assert.ErrorContains(t, err, "Invalid file type")
	})
}

func TestImageRef(t *testing.T) {
	b := apitest.New(t)
	b.AddAsset("chart.png")
	client := newClient(t, b)
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "/assets/chart.png", ImagePath("chart"))
	assert.Equal(t, "/assets/chart.png", ImagePath("chart.png"))
	assert.Empty(t, ImagePath(""))

	assert.Equal(t, "/assets/chart.png?t=1700000000123", ImageRef(context.Background(), client, "chart", at))
	assert.Equal(t, FallbackImage, ImageRef(context.Background(), client, "gone", at))
	assert.Equal(t, "/assets/gone.png?t=1700000000123", ImageRef(context.Background(), nil, "gone", at))
}
