package logger

import (
	"io"
	"log/slog"
	"os"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New creates a new slog.Logger instance that writes JSON to os.Stdout.
// If debug is true, the log level is set to Debug. Otherwise, it's set to Info.
func New(debug bool) *slog.Logger {
	return NewWithWriter(os.Stdout, FormatJSON, debug)
}

// NewWithWriter creates a new slog.Logger instance with a specific writer and format.
// Unknown formats fall back to JSON.
func NewWithWriter(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if format == FormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
