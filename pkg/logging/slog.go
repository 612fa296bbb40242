package logging

import (
	"log/slog"
	"os"
)

// New returns a JSON logger writing to stdout. Level defaults to info;
// set debug for development.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h)
}
