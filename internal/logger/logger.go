package logger

import (
	"io"
	"log/slog"
)

// New builds the process logger. Development gets a readable text handler at debug level.
func New(output io.Writer, development bool) *slog.Logger {
	if development {
		return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
