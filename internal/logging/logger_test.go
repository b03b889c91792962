package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
		{"surrounding space", " debug\n", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
	}{
		{"info filters debug", "info", false},
		{"debug passes debug", "debug", true},
		{"trace passes debug", "trace", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, "text", &buf)

			logger.Debug("debug message")
			assert.Equal(t, tt.logAtDebug, strings.Contains(buf.String(), "debug message"))

			buf.Reset()
			logger.Info("info message")
			assert.Contains(t, buf.String(), "info message")
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", "text", &buf)
	logger.Log(t.Context(), LevelTrace, "resolved value")

	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", "json", &buf)
	logger.Info("datapoint assembled", "index", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "datapoint assembled", entry["msg"])
	assert.EqualValues(t, 3, entry["index"])
}

func TestNewLogger_JSONTraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", "JSON", &buf)
	logger.Log(t.Context(), LevelTrace, "resolved value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "TRACE", entry["level"])
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	require.NotNil(t, logger)
	logger.Error("dropped")
}

func TestNewTraceLog_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLog(dir, "info")
	assert.Nil(t, tl)

	// nil trace log should still be safe to use
	tl.Log("test", nil)

	_, err := os.Stat(filepath.Join(dir, "variation.jsonl"))
	assert.True(t, os.IsNotExist(err), "variation.jsonl should not exist at info level")
}

func TestNewTraceLog_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLog(dir, "debug")
	require.NotNil(t, tl)
	defer tl.Close()

	tl.Log("resolve", map[string]any{"parameter": "permeability", "datapoint": 2})

	data, err := os.ReadFile(filepath.Join(dir, "variation.jsonl"))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "resolve", entry["event"])
	assert.Equal(t, "permeability", entry["parameter"])
	assert.EqualValues(t, 2, entry["datapoint"])
	assert.Contains(t, entry, "time")
}

func TestTraceLog_MultipleWrites(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLog(dir, "trace")
	require.NotNil(t, tl)
	defer tl.Close()

	tl.Log("first", nil)
	tl.Log("second", nil)

	data, err := os.ReadFile(filepath.Join(dir, "variation.jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"event":"first"`)
	assert.Contains(t, lines[1], `"event":"second"`)
}

func TestTraceLog_NilSafety(t *testing.T) {
	var tl *TraceLog
	assert.False(t, tl.Enabled())
	tl.Log("should_not_panic", map[string]any{"k": 1})
	tl.Close()
}

func TestTraceLog_DoesNotMutateCallerMap(t *testing.T) {
	tl := NewTraceLog(t.TempDir(), "debug")
	require.NotNil(t, tl)
	defer tl.Close()

	fields := map[string]any{"parameter": "x"}
	tl.Log("test", fields)

	assert.NotContains(t, fields, "time")
	assert.NotContains(t, fields, "event")
}

func TestTraceLog_LogAfterClose(t *testing.T) {
	tl := NewTraceLog(t.TempDir(), "debug")
	require.NotNil(t, tl)

	assert.True(t, tl.Enabled())
	tl.Log("before_close", nil)
	tl.Close()
	assert.False(t, tl.Enabled())
	tl.Log("after_close", nil)
}

func TestNewTraceLog_CreatesDir(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "sub", "dir")

	tl := NewTraceLog(nested, "debug")
	require.NotNil(t, tl)
	defer tl.Close()

	tl.Log("dir_create_test", nil)

	info, err := os.Stat(filepath.Join(nested, "variation.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
