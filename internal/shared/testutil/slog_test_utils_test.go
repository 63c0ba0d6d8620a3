package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler_Capture(t *testing.T) {
	logger, h := NewTestLogger(t)

	logger.Info("qa run started", slog.String("input", "admissions.csv"))
	logger.Error("step failed", slog.Int("rows", 7))

	require.Equal(t, 2, h.Count())
	assert.True(t, h.ContainsMessage("run started"))
	assert.True(t, h.ContainsAttr("input", "admissions.csv"))
	assert.True(t, h.ContainsAttr("rows", 7))
	assert.False(t, h.ContainsAttr("rows", 8))

	AssertLogContains(t, h, slog.LevelInfo, "qa run")
	AssertLogAttr(t, h, "input", "admissions.csv")
}

func TestBufferedSlogHandler_Levels(t *testing.T) {
	logger, h := NewTestLogger(t)

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")

	assert.Len(t, h.GetRecordsByLevel(slog.LevelDebug), 1)
	assert.Len(t, h.GetRecordsByLevel(slog.LevelWarn), 1)
	assert.Empty(t, h.GetRecordsByLevel(slog.LevelError))
	AssertNoErrors(t, h)

	h.Clear()
	assert.Zero(t, h.Count())
}

func TestBufferedSlogHandler_WithAttrsAndGroups(t *testing.T) {
	logger, h := NewTestLogger(t)

	stepLogger := logger.With(slog.String("step", "outliers"))
	stepLogger.Info("column checked", slog.String("column", "sbp"))
	logger.WithGroup("http").Info("request", slog.Int("status", 201))
	logger.Info("grouped", slog.Group("age", slog.Int("missing", 1)))

	records := h.GetRecords()
	require.Len(t, records, 3)

	step, ok := records[0].Attr("step")
	require.True(t, ok)
	assert.Equal(t, "outliers", step)

	AssertLogAttr(t, h, "column", "sbp")
	AssertLogAttr(t, h, "http.status", 201)
	AssertLogAttr(t, h, "age.missing", 1)

	_, ok = records[1].Attr("step")
	assert.False(t, ok, "attrs must not leak into the parent logger")
}

func TestBufferedSlogHandler_Concurrent(t *testing.T) {
	logger, h := NewTestLogger(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.With(slog.Int("worker", n)).Info("column done")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, h.Count())
}
