package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "debug", "info", "warning", "error"
}

// ConsoleHandler is a slog.Handler that forwards records to the server log
// and mirrors them to a render's console channel
type ConsoleHandler struct {
	next        slog.Handler
	consoleChan chan<- ConsoleMessage
	level       slog.Leveler
	attrs       []slog.Attr
	group       string
}

// NewConsoleHandler creates a console handler. next may be nil to only feed
// the console.
func NewConsoleHandler(next slog.Handler, consoleChan chan<- ConsoleMessage, level slog.Leveler) *ConsoleHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &ConsoleHandler{next: next, consoleChan: consoleChan, level: level}
}

// Enabled implements slog.Handler
func (h *ConsoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= h.level.Level() {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ConsoleHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.next != nil && h.next.Enabled(ctx, record.Level) {
		err = h.next.Handle(ctx, record)
	}

	if h.consoleChan == nil || record.Level < h.level.Level() {
		return err
	}

	var b strings.Builder
	b.WriteString(record.Message)
	for _, attr := range h.attrs {
		writeAttr(&b, "", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, h.group, attr)
		return true
	})

	// Send without blocking; a full console drops the message
	select {
	case h.consoleChan <- ConsoleMessage{
		Message:   b.String(),
		Timestamp: record.Time,
		Level:     levelName(record.Level),
	}:
	default:
	}
	return err
}

// WithAttrs implements slog.Handler
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	if h.next != nil {
		clone.next = h.next.WithAttrs(attrs)
	}
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, attr := range attrs {
		if h.group != "" {
			attr.Key = h.group + "." + attr.Key
		}
		clone.attrs = append(clone.attrs, attr)
	}
	return &clone
}

// WithGroup implements slog.Handler
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.next != nil {
		clone.next = h.next.WithGroup(name)
	}
	if h.group != "" {
		clone.group = h.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func writeAttr(b *strings.Builder, group string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if group != "" {
		key = group + "." + key
	}
	fmt.Fprintf(b, " %s=%v", key, attr.Value.Resolve())
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warning"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
