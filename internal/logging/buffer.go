package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

const defaultBufferSize = 100

// Buffer keeps the most recent formatted log lines for the dashboard.
type Buffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
	level slog.Leveler
}

// NewBuffer holds up to size lines (100 when size <= 0) at or above level.
func NewBuffer(size int, level slog.Leveler) *Buffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &Buffer{lines: make([]string, size), level: level}
}

// Handler returns an slog.Handler writing into the buffer.
func (b *Buffer) Handler() slog.Handler {
	return &bufferHandler{buf: b}
}

// Lines returns the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return append([]string(nil), b.lines[:b.next]...)
	}
	out := make([]string, 0, len(b.lines))
	out = append(out, b.lines[b.next:]...)
	return append(out, b.lines[:b.next]...)
}

func (b *Buffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.next] = line
	b.next++
	if b.next == len(b.lines) {
		b.next = 0
		b.full = true
	}
}

// bufferHandler formats through a TextHandler so attrs and groups render like the console.
// ops replays WithAttrs/WithGroup calls in order on each fresh TextHandler.
type bufferHandler struct {
	buf *Buffer
	ops []func(slog.Handler) slog.Handler
}

func (h *bufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.buf.level.Level()
}

func (h *bufferHandler) Handle(ctx context.Context, record slog.Record) error {
	var out bytes.Buffer
	var text slog.Handler = slog.NewTextHandler(&out, &slog.HandlerOptions{
		Level: h.buf.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05"))
			}
			return a
		},
	})
	for _, op := range h.ops {
		text = op(text)
	}
	if err := text.Handle(ctx, record); err != nil {
		return err
	}
	h.buf.append(strings.TrimRight(out.String(), "\n"))
	return nil
}

func (h *bufferHandler) with(op func(slog.Handler) slog.Handler) *bufferHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &bufferHandler{buf: h.buf, ops: append(ops, op)}
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}
