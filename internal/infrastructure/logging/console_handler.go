package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ANSI color codes
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// ConsoleHandler is a slog.Handler that writes bracketed lines:
// [LEVEL] [SYSTEM] [HH:MM:SS] message key=value key=value
//
// The "system" attribute is promoted into the bracket prefix instead of
// being printed as a trailing key=value pair.
type ConsoleHandler struct {
	w      io.Writer
	level  slog.Level
	mu     *sync.Mutex
	system string
	color  bool
	attrs  []slog.Attr
}

// NewConsoleHandler creates a console handler writing to w at the given
// minimum level. Colors are enabled only when w is a terminal.
func NewConsoleHandler(w io.Writer, level slog.Level) *ConsoleHandler {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &ConsoleHandler{
		w:     w,
		level: level,
		mu:    &sync.Mutex{},
		color: color,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes a log record
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	h.paint(&b, h.levelColor(r.Level), "["+levelName(r.Level)+"]")
	if h.system != "" {
		b.WriteString(" [" + h.system + "]")
	}
	if !r.Time.IsZero() {
		h.paint(&b, ansiGray, " ["+r.Time.Format("15:04:05")+"]")
	}
	b.WriteString(" " + r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs returns a new handler with the given attributes added
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		// system becomes part of the bracket prefix
		if a.Key == "system" {
			clone.system = a.Value.String()
			continue
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup is accepted but groups are not rendered as nesting.
func (h *ConsoleHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *ConsoleHandler) paint(b *strings.Builder, color, s string) {
	if h.color {
		b.WriteString(color)
		b.WriteString(s)
		b.WriteString(ansiReset)
		return
	}
	b.WriteString(s)
}

func (h *ConsoleHandler) levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiCyan
	default:
		return ansiGray
	}
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Key == "system" {
		return
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value.Any())
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
