package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup sets slog's default logger to write to stdout at the given level.
// format is "json" (default) or "text".
func Setup(level slog.Level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format)
	slog.SetDefault(logger)

	return logger
}

// SetupJSON is Setup with JSON output.
func SetupJSON(level slog.Level) *slog.Logger {
	return Setup(level, "json")
}

func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h)
}

// Or returns l, or the process default logger when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}

	return l
}
