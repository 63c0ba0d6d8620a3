package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogRecord is one captured log line with its attributes flattened.
// Grouped attributes use dotted keys, e.g. "http.status".
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Attr returns the value recorded under key
func (r LogRecord) Attr(key string) (any, bool) {
	v, ok := r.Attrs[key]
	return v, ok
}

type recordSink struct {
	mu      sync.Mutex
	records []LogRecord
}

// BufferedSlogHandler keeps every record in memory so tests can assert on
// what a component logged. Loggers derived with With or WithGroup share the
// same buffer.
type BufferedSlogHandler struct {
	sink   *recordSink
	t      testing.TB
	attrs  []slog.Attr
	groups []string
}

// NewBufferedSlogHandler returns a handler that also echoes records to t.Logf
// when t is not nil
func NewBufferedSlogHandler(t testing.TB) *BufferedSlogHandler {
	return &BufferedSlogHandler{sink: &recordSink{}, t: t}
}

// NewTestLogger returns a logger writing into a fresh BufferedSlogHandler
func NewTestLogger(t testing.TB) (*slog.Logger, *BufferedSlogHandler) {
	h := NewBufferedSlogHandler(t)
	return slog.New(h), h
}

func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		flattenAttr(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flattenAttr(attrs, prefix, a)
		return true
	})

	h.sink.mu.Lock()
	h.sink.records = append(h.sink.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	h.sink.mu.Unlock()

	if h.t != nil {
		h.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	prefix := strings.Join(h.groups, ".")
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func flattenAttr(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, inner := range a.Value.Group() {
			flattenAttr(dst, key, inner)
		}
		return
	}
	dst[key] = a.Value.Any()
}

// Records returns a snapshot of captured records matching keep.
// A nil keep returns everything.
func (h *BufferedSlogHandler) Records(keep func(LogRecord) bool) []LogRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	out := make([]LogRecord, 0, len(h.sink.records))
	for _, r := range h.sink.records {
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// GetRecords returns every captured record
func (h *BufferedSlogHandler) GetRecords() []LogRecord {
	return h.Records(nil)
}

// GetRecordsByLevel returns the records logged at exactly level
func (h *BufferedSlogHandler) GetRecordsByLevel(level slog.Level) []LogRecord {
	return h.Records(func(r LogRecord) bool { return r.Level == level })
}

// ContainsMessage reports whether any record message contains substr
func (h *BufferedSlogHandler) ContainsMessage(substr string) bool {
	return len(h.Records(func(r LogRecord) bool { return strings.Contains(r.Message, substr) })) > 0
}

// ContainsAttr reports whether any record carries key with value.
// Values are compared by their printed form so int and int64 match.
func (h *BufferedSlogHandler) ContainsAttr(key string, value any) bool {
	want := fmt.Sprint(value)
	return len(h.Records(func(r LogRecord) bool {
		v, ok := r.Attr(key)
		return ok && fmt.Sprint(v) == want
	})) > 0
}

func (h *BufferedSlogHandler) Count() int {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return len(h.sink.records)
}

func (h *BufferedSlogHandler) Clear() {
	h.sink.mu.Lock()
	h.sink.records = nil
	h.sink.mu.Unlock()
}

// AssertLogContains fails t unless a record at level has a message containing substr
func AssertLogContains(t testing.TB, h *BufferedSlogHandler, level slog.Level, substr string) {
	t.Helper()
	matches := h.Records(func(r LogRecord) bool {
		return r.Level == level && strings.Contains(r.Message, substr)
	})
	if len(matches) == 0 {
		t.Errorf("no %s log containing %q", level, substr)
		dumpRecords(t, h)
	}
}

// AssertLogAttr fails t unless some record carries key=value
func AssertLogAttr(t testing.TB, h *BufferedSlogHandler, key string, value any) {
	t.Helper()
	if !h.ContainsAttr(key, value) {
		t.Errorf("no log with attribute %s=%v", key, value)
		dumpRecords(t, h)
	}
}

// AssertNoErrors fails t if anything was logged at error level or above
func AssertNoErrors(t testing.TB, h *BufferedSlogHandler) {
	t.Helper()
	errs := h.Records(func(r LogRecord) bool { return r.Level >= slog.LevelError })
	for _, r := range errs {
		t.Errorf("unexpected error log: %s %v", r.Message, r.Attrs)
	}
}

func dumpRecords(t testing.TB, h *BufferedSlogHandler) {
	t.Helper()
	for _, r := range h.GetRecords() {
		t.Logf("  captured [%s] %s %v", r.Level, r.Message, r.Attrs)
	}
}
