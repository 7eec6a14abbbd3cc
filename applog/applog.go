// Package applog provides general-purpose application logging.
//
// Logs are written to <home>/logs/app.log (normally ~/.askdata/logs/app.log)
// through a log/slog text handler. Until Init is called every call is
// discarded, so packages may log freely from tests.
// Covers: app start/stop, config, session changes, and HTTP exchanges.
package applog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu      sync.RWMutex
	logger  = slog.New(slog.DiscardHandler)
	logFile *os.File
)

// Init opens (appending) dir/app.log and routes all logging there.
// Calling Init again replaces the previous destination.
func Init(dir, level string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: ParseLevel(level)}))
	return nil
}

// SetOutput routes logging to w, mainly for tests and the CLI's --verbose.
func SetOutput(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps a config string to a slog level; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns the current structured logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	Logger().Debug(fmt.Sprintf(format, args...))
}

// Info logs a general info message.
func Info(format string, args ...interface{}) {
	Logger().Info(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	Logger().Error(fmt.Sprintf(format, args...))
}

// Event logs a message tagged with a category (SESSION, HTTP, CHAT, ...).
func Event(category string, format string, args ...interface{}) {
	Logger().Info(fmt.Sprintf(format, args...), slog.String("category", category))
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = slog.New(slog.DiscardHandler)
}
