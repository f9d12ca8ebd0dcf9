package world

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/socioscope/internal/models"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestNew_Deterministic(t *testing.T) {
	a := New(Config{Population: 30, Seed: 7}, t0).Snapshot()
	b := New(Config{Population: 30, Seed: 7}, t0).Snapshot()
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed should produce the same population")
	}

	c := New(Config{Population: 30, Seed: 8}, t0).Snapshot()
	if reflect.DeepEqual(a.Agents, c.Agents) {
		t.Error("different seeds should produce different populations")
	}
}

func TestNew_AttributesInRange(t *testing.T) {
	snap := New(Config{Population: 50, Seed: 1}, t0).Snapshot()
	if len(snap.Agents) != 50 {
		t.Fatalf("agents = %d, want 50", len(snap.Agents))
	}
	for _, a := range snap.Agents {
		if n := a.OutOfRangeAttributes(); n != 0 {
			t.Errorf("%s has %d out-of-range attributes", a.ID, n)
		}
		if !a.BehaviorType.IsValid() {
			t.Errorf("%s has behavior %q", a.ID, a.BehaviorType)
		}
		if a.Position.X < 0 || a.Position.X > 800 || a.Position.Y < 0 || a.Position.Y > 600 {
			t.Errorf("%s out of bounds: %+v", a.ID, a.Position)
		}
		if _, self := a.Relationships[a.ID]; self {
			t.Errorf("%s relates to itself", a.ID)
		}
	}
}

func TestNew_EmptyPopulation(t *testing.T) {
	w := New(Config{}, t0)
	w.Step(t0.Add(time.Second))
	snap := w.Snapshot()
	if len(snap.Agents) != 0 || len(snap.Coalitions) != 0 {
		t.Errorf("unexpected content: %+v", snap)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	w := New(Config{Population: 10, Seed: 3}, t0)
	snap := w.Snapshot()
	snap.Agents[0].Trust = -1
	for k := range snap.Agents[0].Relationships {
		snap.Agents[0].Relationships[k] = -1
	}

	again := w.Snapshot()
	if again.Agents[0].Trust == -1 {
		t.Error("mutating a snapshot changed the world")
	}
	for k, v := range again.Agents[0].Relationships {
		if v == -1 {
			t.Errorf("relationship %s leaked", k)
		}
	}
}

func TestStep_AdvancesGeneration(t *testing.T) {
	w := New(Config{Population: 20, Seed: 5}, t0)
	w.Step(t0.Add(time.Second))
	w.Step(t0.Add(time.Second)) // same instant, ignored
	w.Step(t0)                  // earlier, ignored

	snap := w.Snapshot()
	if snap.Generation != 1 {
		t.Errorf("Generation = %d, want 1", snap.Generation)
	}
	if !snap.TakenAt.Equal(t0.Add(time.Second)) {
		t.Errorf("TakenAt = %v", snap.TakenAt)
	}
	for _, a := range snap.Agents {
		if n := a.OutOfRangeAttributes(); n != 0 {
			t.Errorf("%s drifted out of range", a.ID)
		}
	}
}

func TestApply_SpreadsEffectsOverDuration(t *testing.T) {
	w := New(Config{Population: 1, Seed: 9}, t0)
	w.mu.Lock()
	w.agents[0].Trust = 50
	w.agents[0].Innovation = 50
	w.mu.Unlock()

	w.Apply(models.DisruptiveEvent{
		ID:        "d1",
		Type:      "innovation_catalyst",
		Intensity: 10,
		Duration:  10 * time.Second,
		Effects:   models.Effects{Innovation: 20},
		CreatedAt: t0,
	})

	w.Step(t0.Add(5 * time.Second))
	snap := w.Snapshot()
	if len(snap.ActiveDisruptions) != 1 || snap.ActiveDisruptions[0].ID != "d1" {
		t.Fatalf("active = %+v", snap.ActiveDisruptions)
	}
	// Half the duration has passed: +10 innovation, plus at most 1 of drift.
	if got := snap.Agents[0].Innovation; got < 59 || got > 61 {
		t.Errorf("Innovation = %f, want ~60", got)
	}

	w.Step(t0.Add(20 * time.Second))
	snap = w.Snapshot()
	if len(snap.ActiveDisruptions) != 0 {
		t.Errorf("expired disruption still active: %+v", snap.ActiveDisruptions)
	}
	if got := snap.Agents[0].Innovation; got < 68 || got > 72 {
		t.Errorf("Innovation = %f, want ~70", got)
	}
}

func TestPublish_AppliesDisruptions(t *testing.T) {
	w := New(Config{Population: 3, Seed: 2}, t0)
	ev := models.DisruptiveEvent{ID: "x", Duration: time.Minute, CreatedAt: t0}

	w.Publish("metrics", ev)
	w.Publish("disruption", "not an event")
	w.Publish("disruption", ev)
	w.Publish("disruption", &models.DisruptiveEvent{ID: "y", Duration: time.Minute, CreatedAt: t0})

	if got := len(w.Snapshot().ActiveDisruptions); got != 2 {
		t.Errorf("active disruptions = %d, want 2", got)
	}
}

func TestCoalitions_FromStrongRelationships(t *testing.T) {
	w := New(Config{Seed: 4}, t0)
	w.mu.Lock()
	w.agents = []models.Agent{
		{ID: "a", Influence: 10, Relationships: map[string]float64{"b": 90, "c": 80}},
		{ID: "b", Influence: 70, Relationships: map[string]float64{"a": 90}},
		{ID: "c", Influence: 30},
		{ID: "d", Relationships: map[string]float64{"e": 95}},
		{ID: "e"},
	}
	w.formCoalitions(t0)
	w.mu.Unlock()

	snap := w.Snapshot()
	if len(snap.Coalitions) != 1 {
		t.Fatalf("coalitions = %+v, want one (pairs are too small)", snap.Coalitions)
	}
	c := snap.Coalitions[0]
	if c.ID != "coalition-a" || c.LeaderID != "b" {
		t.Errorf("coalition = %+v", c)
	}
	if !reflect.DeepEqual(c.Members, []string{"a", "b", "c"}) {
		t.Errorf("members = %v", c.Members)
	}
	for _, a := range snap.Agents {
		want := ""
		if a.ID == "a" || a.ID == "b" || a.ID == "c" {
			want = "coalition-a"
		}
		if a.CoalitionID != want {
			t.Errorf("%s CoalitionID = %q, want %q", a.ID, a.CoalitionID, want)
		}
	}

	// Re-forming later keeps the creation time.
	w.mu.Lock()
	w.formCoalitions(t0.Add(time.Hour))
	w.mu.Unlock()
	if got := w.Snapshot().Coalitions[0].CreatedAt; !got.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", got, t0)
	}
}

func TestLoadSnapshot(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "pop.yaml")
	yamlContent := `
stability: 82
agents:
  - id: a
    position: {x: 10, y: 20}
    trust: 90
    cooperation: 85
    innovation: 40
    energy: 80
    behavior_type: mediator
    relationships: {b: 70}
  - id: b
    behavior_type: leader
active_disruptions:
  - id: d1
    type: resilience_challenge
    intensity: 30
    duration: 25s
`
	if err := os.WriteFile(yamlPath, []byte(yamlContent), 0600); err != nil {
		t.Fatal(err)
	}

	snap, err := LoadSnapshot(yamlPath)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Agents) != 2 || snap.Stability != 82 {
		t.Fatalf("snap = %+v", snap)
	}
	if snap.Agents[0].RelationshipTo("b") != 70 || snap.Agents[1].BehaviorType != models.BehaviorLeader {
		t.Errorf("agents = %+v", snap.Agents)
	}
	if snap.ActiveDisruptions[0].Duration != 25*time.Second {
		t.Errorf("Duration = %v", snap.ActiveDisruptions[0].Duration)
	}

	jsonPath := filepath.Join(dir, "pop.json")
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, snap, FormatJSON); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jsonPath, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	fromJSON, err := LoadSnapshot(jsonPath)
	if err != nil {
		t.Fatalf("LoadSnapshot json: %v", err)
	}
	if !reflect.DeepEqual(fromJSON.Agents, snap.Agents) {
		t.Error("json file should decode to the same agents")
	}
}

func TestLoadSnapshot_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		sentinel error
	}{
		{"missing id", "a.yaml", "agents:\n  - trust: 5\n", ErrInvalidSnapshot},
		{"duplicate id", "b.yaml", "agents:\n  - id: x\n  - id: x\n", ErrInvalidSnapshot},
		{"broken yaml", "c.yaml", "agents: [", nil},
		{"broken json", "d.json", "{\"agents\": ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadSnapshot(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("error %v does not wrap %v", err, tt.sentinel)
			}
		})
	}
}

func TestLoadSnapshot_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("empty file should load as an empty snapshot: %v", err)
	}
	if len(snap.Agents) != 0 {
		t.Errorf("agents = %d", len(snap.Agents))
	}
}

func TestEncodeSnapshot_YAML(t *testing.T) {
	snap := New(Config{Population: 4, Seed: 11}, t0).Snapshot()
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, snap, FormatYAML); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "agent-001") {
		t.Errorf("encoded yaml missing agent id:\n%s", buf.String())
	}
	back, err := DecodeSnapshot(&buf, FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Agents) != 4 {
		t.Errorf("agents = %d, want 4", len(back.Agents))
	}
}
