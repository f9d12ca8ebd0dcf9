package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"Debug", slog.LevelDebug},
		{"  debug ", slog.LevelDebug},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level                      string
		wantTrace, wantDebug, want bool
	}{
		{"info", false, false, true},
		{"debug", false, true, true},
		{"trace", true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Log(context.Background(), LevelTrace, "telemetry pass")
			logger.Debug("disruption decision")
			logger.Info("disruption emitted")

			out := buf.String()
			if got := strings.Contains(out, "telemetry pass"); got != tt.wantTrace {
				t.Errorf("trace visible = %v, want %v", got, tt.wantTrace)
			}
			if got := strings.Contains(out, "disruption decision"); got != tt.wantDebug {
				t.Errorf("debug visible = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "disruption emitted"); got != tt.want {
				t.Errorf("info visible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("trace", &buf).Log(context.Background(), LevelTrace, "cluster detail", "fields", 3)
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("trace records should be labelled TRACE: %q", buf.String())
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := NewLogger("info", &bytes.Buffer{})
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return a non-nil logger unchanged")
	}
	Discard().Info("dropped")
}

func TestNewDecisionLogger(t *testing.T) {
	tests := []struct {
		level    string
		wantFile bool
	}{
		{"info", false},
		{"", false},
		{"debug", true},
		{"trace", true},
	}
	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "state")
			dl := NewDecisionLogger(dir, tt.level)
			defer dl.Close()

			if (dl != nil) != tt.wantFile {
				t.Fatalf("logger = %v, want file %v", dl, tt.wantFile)
			}
			dl.Log(map[string]any{"state": "no_action", "reason": "probability"})

			_, err := os.Stat(filepath.Join(dir, DecisionsFile))
			if tt.wantFile && err != nil {
				t.Errorf("trace file missing: %v", err)
			}
			if !tt.wantFile && err == nil {
				t.Error("trace file created at info level")
			}
		})
	}
}

func TestNewDecisionLogger_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if dl := NewDecisionLogger(filepath.Join(file, "nested"), "debug"); dl != nil {
		t.Error("expected nil logger when the directory cannot be created")
	}
}

func TestDecisionLogger_AppendsJSONL(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "debug")
	if dl == nil {
		t.Fatal("expected a decision logger at debug level")
	}
	records := []map[string]any{
		{"state": "no_action", "reason": "probability", "draw": 0.91},
		{"state": "emit", "template": "resilience_challenge", "probability": 0.72},
	}
	for _, r := range records {
		dl.Log(r)
	}
	dl.Close()

	path := filepath.Join(dir, DecisionsFile)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var got []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		got = append(got, entry)
	}
	if len(got) != 2 {
		t.Fatalf("lines = %d, want 2", len(got))
	}
	if got[0]["reason"] != "probability" || got[1]["template"] != "resilience_challenge" {
		t.Errorf("entries = %v", got)
	}
	for i, entry := range got {
		if _, ok := entry["time"]; !ok {
			t.Errorf("entry %d has no time", i)
		}
	}
	for _, r := range records {
		if _, ok := r["time"]; ok {
			t.Error("Log mutated the caller's record")
		}
	}
}

type closeBuffer struct {
	mu sync.Mutex
	bytes.Buffer
	closed bool
}

func (c *closeBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Buffer.Write(p)
}

func (c *closeBuffer) Close() error {
	c.closed = true
	return nil
}

func TestDecisionWriter_Time(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"stamped by the clock", map[string]any{"state": "emit"}, "2026-03-01T12:00:00Z"},
		{"caller time kept", map[string]any{"state": "emit", "time": "sim-clock"}, "sim-clock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf closeBuffer
			dl := NewDecisionWriter(&buf)
			dl.nowFunc = func() time.Time { return fixed }
			dl.Log(tt.record)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("bad entry: %v", err)
			}
			if entry["time"] != tt.want {
				t.Errorf("time = %v, want %s", entry["time"], tt.want)
			}
		})
	}
}

func TestDecisionWriter_CloseStopsWrites(t *testing.T) {
	var buf closeBuffer
	dl := NewDecisionWriter(&buf)
	dl.Log(map[string]any{"state": "emit"})
	dl.Close()
	dl.Close()
	if !buf.closed {
		t.Error("Close should close the underlying writer")
	}

	n := buf.Len()
	dl.Log(map[string]any{"state": "after_close"})
	if buf.Len() != n {
		t.Error("Log after Close wrote to the writer")
	}
}

func TestDecisionWriter_ConcurrentLines(t *testing.T) {
	var buf closeBuffer
	dl := NewDecisionWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dl.Log(map[string]any{"state": "no_action", "evaluation": i})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 40 {
		t.Fatalf("lines = %d, want 40", len(lines))
	}
	for _, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Errorf("interleaved line: %q", line)
		}
	}
}

func TestDecisionLogger_NilSafety(t *testing.T) {
	var dl *DecisionLogger
	dl.Log(map[string]any{"state": "no_action"})
	dl.Close()
}
