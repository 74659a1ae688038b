// Package testutil provides test utilities for structured logging.
package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// LogRecord is a captured log line.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// LogRecorder captures records so tests can assert on what a component
// logged. It is safe for concurrent use.
type LogRecorder struct {
	mu      sync.Mutex
	records []LogRecord
}

// NewRecordingLogger returns a debug-level logger that both captures
// records and mirrors them to t.Log().
func NewRecordingLogger(t testing.TB) (*slog.Logger, *LogRecorder) {
	t.Helper()
	rec := &LogRecorder{}
	mirror := slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(&recordingHandler{rec: rec, next: mirror}), rec
}

// Records returns a copy of the captured records.
func (r *LogRecorder) Records() []LogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogRecord(nil), r.records...)
}

// Has reports whether a record at level contains msg in its message.
func (r *LogRecorder) Has(level slog.Level, msg string) bool {
	for _, rec := range r.Records() {
		if rec.Level == level && strings.Contains(rec.Message, msg) {
			return true
		}
	}
	return false
}

func (r *LogRecorder) add(rec LogRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

type recordingHandler struct {
	rec   *LogRecorder
	next  slog.Handler
	attrs []slog.Attr
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := LogRecord{Level: r.Level, Message: r.Message, Attrs: map[string]string{}}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.String()
		return true
	})
	h.rec.add(rec)
	return h.next.Handle(ctx, r)
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{
		rec:   h.rec,
		next:  h.next.WithAttrs(attrs),
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup keeps records flat; group names are not needed by tests.
func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return &recordingHandler{rec: h.rec, next: h.next.WithGroup(name), attrs: h.attrs}
}
