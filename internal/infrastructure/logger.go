package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ehrqa/internal/config"
)

type contextKey string

// TraceIDContextKey holds an explicit trace id set with WithTraceID
const TraceIDContextKey contextKey = "trace_id"

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// GetLogger is the fallback for components constructed without a logger
func GetLogger() *slog.Logger {
	return slog.Default()
}

// NewLogger builds the JSON logger described by cfg. Output "console"
// writes to console, "file" to cfg.FilePath and "both" to each. The file,
// when one is opened, is returned for the caller to close.
func NewLogger(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, *os.File, error) {
	var (
		w    io.Writer = console
		file *os.File
	)
	if out := strings.ToLower(cfg.Output); out == "file" || out == "both" {
		f, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		file, w = f, f
		if out == "both" {
			w = io.MultiWriter(console, f)
		}
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLogLevel(cfg.Level),
	})
	return slog.New(traceHandler{handler}), file, nil
}

// traceHandler adds trace_id to every record whose context carries one
type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{h.Handler.WithGroup(name)}
}

// parseLogLevel maps a config level name onto slog; unknown names are info
func parseLogLevel(level string) slog.Level {
	if l, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return slog.LevelInfo
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID returns the explicit trace id of ctx, falling back to the
// active span's trace id
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(TraceIDContextKey).(string); ok {
		return id
	}
	return TraceIDFromContext(ctx)
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
