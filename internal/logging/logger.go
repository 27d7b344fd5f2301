package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Diagnostics go to stderr so command output on stdout stays clean
// enough to pipe. The level can be raised or lowered at any time; the
// zero LevelVar starts at info.
var (
	levelVar slog.LevelVar
	logger   = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levelVar}))
)

// Init sets the diagnostic level: debug, info, warn or error. Unknown
// values fall back to info.
func Init(level string) {
	levelVar.Set(parseLevel(level))
	slog.SetDefault(logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Logger returns the shared logger.
func Logger() *slog.Logger {
	return logger
}

// Debug logs provider and engine internals hidden at the default level.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Info logs run progress.
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Warn logs conditions the run survives.
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs failures.
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}
