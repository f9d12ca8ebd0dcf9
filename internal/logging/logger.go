// Package logging provides leveled logging and decision tracing for socioscope.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A DecisionLogger for JSONL traces of disruption decisions (decisions.jsonl)
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
)

// LevelTrace is a custom slog level below Debug. At this level every pass
// logs its full inputs, including per-field and per-cluster detail.
const LevelTrace = slog.LevelDebug - 4

// DecisionsFile is the trace file name inside the state directory.
const DecisionsFile = "decisions.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}

// DecisionLogger writes one JSON object per line for every decision the
// disruption engine makes. It is safe for concurrent use. A nil
// DecisionLogger is valid; all methods are no-ops on a nil receiver.
type DecisionLogger struct {
	mu      sync.Mutex
	w       io.WriteCloser
	nowFunc func() time.Time
}

// NewDecisionLogger creates a decision logger appending to dir/decisions.jsonl.
// At "info" level (the default) it returns nil and no file is created.
// It also returns nil if the directory or file cannot be opened.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, DecisionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return NewDecisionWriter(f)
}

// NewDecisionWriter creates a decision logger over an arbitrary writer.
func NewDecisionWriter(w io.WriteCloser) *DecisionLogger {
	return &DecisionLogger{w: w, nowFunc: time.Now}
}

// Log writes a decision record as a single JSONL line. A "time" field is
// added unless the record already carries one. The caller's map is not
// mutated.
func (dl *DecisionLogger) Log(record map[string]any) {
	if dl == nil {
		return
	}

	entry := make(map[string]any, len(record)+1)
	for k, v := range record {
		entry[k] = v
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.w == nil {
		return
	}
	if _, ok := entry["time"]; !ok {
		entry["time"] = dl.nowFunc().UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = dl.w.Write(data)
}

// Close closes the underlying writer. Later calls to Log are no-ops.
func (dl *DecisionLogger) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.w != nil {
		dl.w.Close()
		dl.w = nil
	}
}
