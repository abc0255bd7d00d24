package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a console slog.Logger with provided level string. Extra handlers receive
// every record the console handler accepts.
func New(level string, extra ...slog.Handler) *slog.Logger {
	return NewWithWriter(os.Stdout, level, extra...)
}

// NewWithWriter is New with an explicit console sink.
func NewWithWriter(w io.Writer, level string, extra ...slog.Handler) *slog.Logger {
	return NewWithLevel(w, LevelFromString(level), extra...)
}

// NewWithLevel accepts any slog.Leveler, so a *slog.LevelVar can retune the console at runtime.
func NewWithLevel(w io.Writer, level slog.Leveler, extra ...slog.Handler) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	if len(extra) == 0 {
		return slog.New(handler)
	}
	return slog.New(Fanout(append([]slog.Handler{handler}, extra...)...))
}

// NewLevelVar returns a mutable level initialised from a level string.
func NewLevelVar(level string) *slog.LevelVar {
	v := new(slog.LevelVar)
	v.Set(LevelFromString(level))
	return v
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// LevelFromString maps debug/info/warn/error; anything else is debug.
func LevelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
