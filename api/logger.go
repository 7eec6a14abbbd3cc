// logger.go logs every backend exchange through applog under the HTTP
// category. Bodies are truncated and credentials are never logged.
package api

import (
	"log/slog"
	"time"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/applog"
)

const maxLoggedBody = 512

// LogRequest logs an outgoing request.
func LogRequest(id, method, path string) {
	applog.Logger().Debug("request",
		slog.String("category", "HTTP"),
		slog.String("id", id),
		slog.String("method", method),
		slog.String("path", path),
	)
}

// LogResponse logs the outcome of a request.
func LogResponse(id, path string, status int, body []byte, elapsed time.Duration, err error) {
	attrs := []any{
		slog.String("category", "HTTP"),
		slog.String("id", id),
		slog.String("path", path),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil {
		applog.Logger().Error("request failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	attrs = append(attrs, slog.Int("status", status))
	if status >= 300 {
		applog.Logger().Warn("response", append(attrs, slog.String("body", truncate(body)))...)
		return
	}
	applog.Logger().Debug("response", append(attrs, slog.String("body", truncate(body)))...)
}

func truncate(body []byte) string {
	if len(body) <= maxLoggedBody {
		return string(body)
	}
	return string(body[:maxLoggedBody]) + "..."
}
