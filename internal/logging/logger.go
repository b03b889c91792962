// Package logging builds the loggers used by vampireman.
//
// Operational output goes through slog to stderr, as key=value text or, with
// the json format, one JSON object per line. Levels are info, debug and a
// custom trace level that also logs every resolved parameter value. At debug
// and trace a TraceLog additionally appends variation events to
// <output>/variation.jsonl.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/vampireman/internal/constants"
)

// LevelTrace is a custom slog level below Debug for full content logging.
// At this level every resolved datapoint value is logged.
const LevelTrace = slog.LevelDebug - 4

var levels = map[string]slog.Level{
	"info":  slog.LevelInfo,
	"debug": slog.LevelDebug,
	"trace": LevelTrace,
}

// ParseLevel maps info, debug or trace (any case, surrounding space ignored)
// to a slog.Level. Anything else is info.
func ParseLevel(s string) slog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// NewLogger creates a logger writing to w at the given level. format selects
// the handler: "json" or, for anything else, text.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level), ReplaceAttr: labelTrace}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// labelTrace prints LevelTrace as TRACE instead of DEBUG-4.
func labelTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// TraceLog writes structured variation events to a JSONL file.
// It is safe for concurrent use. A nil TraceLog is safe to use;
// all methods are no-ops on nil receiver.
type TraceLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewTraceLog creates a trace log writing to dir/variation.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewTraceLog(dir string, level string) *TraceLog {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}

	path := filepath.Join(dir, constants.TraceFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &TraceLog{file: f}
}

// Enabled reports whether events are written.
func (tl *TraceLog) Enabled() bool {
	return tl != nil && tl.file != nil
}

// Log writes an event as a single JSONL line.
// "event" and "time" fields are added automatically. The caller's map is not mutated.
// Safe to call on nil receiver.
func (tl *TraceLog) Log(event string, fields map[string]any) {
	if tl == nil || tl.file == nil {
		return
	}

	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	tl.mu.Lock()
	defer tl.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = tl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (tl *TraceLog) Close() {
	if tl == nil || tl.file == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.file.Close()
	tl.file = nil
}
