package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestStructuredLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("traffic-api", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-123")
	logger.Info(ctx, "[VIEW_RENDER] View rendered", Fields{"view": "weather", "rows": 42})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "[VIEW_RENDER] View rendered", entry["message"])
	assert.Equal(t, "traffic-api", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Contains(t, entry, "timestamp")

	fields, ok := entry["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "weather", fields["view"])
	assert.Equal(t, float64(42), fields["rows"])
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("traffic-api", "1.0.0", WarnLevel)
	logger.SetOutput(&buf)

	logger.Debug(context.Background(), "debug", nil)
	logger.Info(context.Background(), "info", nil)
	logger.Warn(context.Background(), "warn", nil)
	assert.Len(t, decodeLines(t, &buf), 1)

	buf.Reset()
	logger.SetLevel(DebugLevel)
	logger.Debug(context.Background(), "debug", nil)
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestStructuredLoggerError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("traffic-api", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	logger.Error(context.Background(), "[LOAD_ERROR] Dataset load failed", Fields{}, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Contains(t, entries[0]["file"], "logger_test.go")
	assert.NotContains(t, entries[0], "fields")
}

func TestContextLoggerMergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("traffic-api", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	scoped := logger.WithFields(Fields{"component": "loader", "stage": "INIT"})
	scoped.Info(context.Background(), "loading", Fields{"stage": "READ"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	fields := entries[0]["fields"].(map[string]any)
	assert.Equal(t, "loader", fields["component"])
	assert.Equal(t, "READ", fields["stage"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warn"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("anything"))
	assert.Equal(t, "FATAL", FatalLevel.String())
}
