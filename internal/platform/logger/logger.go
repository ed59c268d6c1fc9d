package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Debug lowers the level so provider and
// cleanup internals become visible.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
