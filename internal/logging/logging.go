package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"ember/hal"
)

// NewLogger creates a configured slog.Logger.
//
// level: slog level (DEBUG, INFO, WARN, ERROR)
// format: "text" (human-readable) or "json" (structured)
//
// Output goes to stderr by default (stdout is reserved for app output).
func NewLogger(level slog.Level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to the given writer.
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func ParseLevel(s string) slog.Level {
	if l, ok := LookupLevel(s); ok {
		return l
	}
	return slog.LevelInfo
}

// LookupLevel is ParseLevel that reports whether s names a level.
func LookupLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// LineWriter feeds complete lines to a HAL logger. A trailing partial line
// is held until its newline arrives.
type LineWriter struct {
	mu      sync.Mutex
	l       hal.Logger
	pending []byte
}

// NewLineWriter returns a writer logging through l.
func NewLineWriter(l hal.Logger) *LineWriter {
	return &LineWriter{l: l}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.l.WriteLineBytes(w.pending[:i])
		w.pending = w.pending[i+1:]
	}
	if len(w.pending) == 0 {
		w.pending = nil
	}
	return len(p), nil
}

// Flush logs any partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.l.WriteLineBytes(w.pending)
		w.pending = nil
	}
}
