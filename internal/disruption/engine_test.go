package disruption

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nvandessel/socioscope/internal/logging"
	"github.com/nvandessel/socioscope/internal/models"
)

var sessionStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seqRand returns the given draws in order, repeating the last one.
type seqRand struct {
	draws []float64
	i     int
}

func (r *seqRand) Float64() float64 {
	v := r.draws[r.i]
	if r.i < len(r.draws)-1 {
		r.i++
	}
	return v
}

// calmSnapshot has stability 90, mean stress 10, four coalitions and mean
// innovation 50.
func calmSnapshot() models.Snapshot {
	return models.Snapshot{
		Stability: 90,
		Agents: []models.Agent{
			{ID: "a", StressLevel: 5, Innovation: 40},
			{ID: "b", StressLevel: 15, Innovation: 60},
		},
		Coalitions: []models.Coalition{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}, {ID: "c4"}},
	}
}

func newTestEngine(level int, draws ...float64) *Engine {
	cfg := DefaultConfig()
	cfg.IntelligenceLevel = level
	return NewEngine(cfg, sessionStart, &seqRand{draws: draws}, nil, nil)
}

func TestTick_CalmPopulationScenario(t *testing.T) {
	e := newTestEngine(5, 0.69)
	// Adaptive interval for stability 90 at level 5 is 40s.
	now := sessionStart.Add(40 * time.Second)

	ev, d := e.Tick(now, calmSnapshot())
	if math.Abs(d.Probability-0.7) > 1e-9 {
		t.Errorf("Probability = %v, want 0.7", d.Probability)
	}
	if d.State != StateEmit || ev == nil {
		t.Fatalf("state = %s, want emit", d.State)
	}
	if ev.Type != TypeResilienceChallenge {
		t.Errorf("template = %s, want %s", ev.Type, TypeResilienceChallenge)
	}
	if !ev.CreatedAt.Equal(now) || ev.ID == "" {
		t.Errorf("event metadata = %+v", ev)
	}
	if !e.Status().LastEventAt.Equal(now) {
		t.Error("lastEventAt not updated on emit")
	}
}

func TestTick_DrawAtProbabilityIsNoAction(t *testing.T) {
	e := newTestEngine(5, 0.7)
	ev, d := e.Tick(sessionStart.Add(time.Minute), calmSnapshot())
	if ev != nil || d.State != StateNoAction || d.Reason != "probability" {
		t.Fatalf("decision = %+v, want no_action on probability", d)
	}
	if !e.Status().LastEventAt.Equal(sessionStart) {
		t.Error("lastEventAt must not move without an emission")
	}
}

func TestTick_Cooldown(t *testing.T) {
	e := newTestEngine(5, 0)
	snap := calmSnapshot()

	if ev, d := e.Tick(sessionStart.Add(39*time.Second), snap); ev != nil || d.State != StateIdle || d.Reason != "cooldown" {
		t.Fatalf("before interval: %+v", d)
	}
	if e.Status().Evaluations != 0 {
		t.Error("cooldown tick should not evaluate")
	}

	first := sessionStart.Add(40 * time.Second)
	if ev, _ := e.Tick(first, snap); ev == nil {
		t.Fatal("expected emission once interval elapsed")
	}
	if ev, d := e.Tick(first.Add(10*time.Second), snap); ev != nil || d.State != StateIdle {
		t.Fatalf("cooldown should restart after emission: %+v", d)
	}
	if ev, _ := e.Tick(first.Add(40*time.Second), snap); ev == nil {
		t.Fatal("expected second emission")
	}
}

func TestTick_Disabled(t *testing.T) {
	e := newTestEngine(5, 0)
	e.SetEnabled(false)
	ev, d := e.Tick(sessionStart.Add(time.Hour), calmSnapshot())
	if ev != nil || d.State != StateIdle || d.Reason != "disabled" {
		t.Fatalf("decision = %+v, want idle/disabled", d)
	}
}

func TestTick_NoMatchingTemplate(t *testing.T) {
	// Stability 90 alone gives p = 0.4, but stress 25 rules out resilience
	// and environmental stimulation, innovation 70 rules out the catalyst and
	// three coalitions rule out governance.
	snap := models.Snapshot{
		Stability:  90,
		Agents:     []models.Agent{{ID: "a", StressLevel: 25, Innovation: 70}},
		Coalitions: []models.Coalition{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
	}
	e := newTestEngine(5, 0.1)
	ev, d := e.Tick(sessionStart.Add(time.Minute), snap)
	if ev != nil || d.State != StateNoAction || d.Reason != "no matching template" {
		t.Fatalf("decision = %+v, want no_action without template", d)
	}
	if math.Abs(d.Probability-0.4) > 1e-9 {
		t.Errorf("Probability = %v, want 0.4", d.Probability)
	}
}

func TestTick_ContextualOffDrawsUniformly(t *testing.T) {
	// First draw passes the gate, second picks index int(0.8*4) = 3.
	e := newTestEngine(5, 0.1, 0.8)
	e.SetContextual(false)
	ev, _ := e.Tick(sessionStart.Add(time.Minute), calmSnapshot())
	if ev == nil || ev.Type != TypeEnvironmentalStimulation {
		t.Fatalf("event = %+v, want environmental stimulation", ev)
	}
}

func TestForceTrigger(t *testing.T) {
	e := newTestEngine(5, 0.99)
	e.SetEnabled(false)

	ev, d := e.ForceTrigger(sessionStart.Add(time.Second), calmSnapshot())
	if ev.Type != TypeResilienceChallenge || !ev.Forced || !d.Forced {
		t.Errorf("forced event = %+v", ev)
	}
	if e.Status().Emitted != 1 {
		t.Errorf("Emitted = %d, want 1", e.Status().Emitted)
	}
}

func TestForceTrigger_FallsBackToGenericCatalyst(t *testing.T) {
	// stability 70, stress 30, innovation 80, 3 coalitions: nothing matches.
	snap := models.Snapshot{
		Stability:  70,
		Agents:     []models.Agent{{ID: "a", StressLevel: 30, Innovation: 80}},
		Coalitions: []models.Coalition{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
	}
	if _, ok := SelectTemplate(AnalyzeTelemetry(snap), true, nil); ok {
		t.Fatal("precondition: no contextual template should match")
	}

	e := newTestEngine(2, 0.5)
	ev, _ := e.ForceTrigger(sessionStart, snap)
	if ev.Type != TypeGenericCatalyst {
		t.Fatalf("Type = %s, want generic catalyst", ev.Type)
	}
	// level 2: intensity 10+5·2, duration 10+2·2 seconds, effects +2.
	if ev.Intensity != 20 || ev.Duration != 14*time.Second || ev.Effects.Trust != 2 {
		t.Errorf("generic catalyst at level 2 = %+v", ev)
	}
}

func TestSetLevel(t *testing.T) {
	e := newTestEngine(3, 0)
	for _, bad := range []int{0, 6, -1} {
		if err := e.SetLevel(bad); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("SetLevel(%d) error = %v, want ErrInvalidLevel", bad, err)
		}
	}
	if err := e.SetLevel(5); err != nil {
		t.Fatalf("SetLevel(5): %v", err)
	}
	if e.Status().IntelligenceLevel != 5 {
		t.Errorf("level = %d, want 5", e.Status().IntelligenceLevel)
	}
}

func TestNewEngine_ClampsLevel(t *testing.T) {
	if got := newTestEngine(0, 0).Status().IntelligenceLevel; got != 1 {
		t.Errorf("level = %d, want 1", got)
	}
	if got := newTestEngine(12, 0).Status().IntelligenceLevel; got != 5 {
		t.Errorf("level = %d, want 5", got)
	}
}

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func TestDecisionTrace(t *testing.T) {
	buf := &bytes.Buffer{}
	dl := logging.NewDecisionWriter(nopCloser{buf})
	e := NewEngine(DefaultConfig(), sessionStart, &seqRand{draws: []float64{0.99}}, nil, dl)

	e.Tick(sessionStart.Add(time.Second), calmSnapshot())  // cooldown, not traced
	e.Tick(sessionStart.Add(2*time.Minute), calmSnapshot()) // evaluated, no action

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("trace lines = %d, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["state"] != "no_action" || rec["reason"] != "probability" {
		t.Errorf("trace = %v", rec)
	}
}

func TestEngine_ConcurrentTicks(t *testing.T) {
	e := newTestEngine(5, 0)
	snap := calmSnapshot()
	now := sessionStart.Add(40 * time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	emitted := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ev, _ := e.Tick(now, snap); ev != nil {
				mu.Lock()
				emitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if emitted != 1 {
		t.Errorf("emitted = %d, want exactly 1 for the same instant", emitted)
	}
}

func TestTemplateBuild_ScalesWithLevel(t *testing.T) {
	tp, ok := TemplateByType(TypeResilienceChallenge)
	if !ok {
		t.Fatal("resilience template missing")
	}
	low := tp.Build(1, sessionStart)
	high := tp.Build(5, sessionStart)
	if low.Intensity != 30 || high.Intensity != 70 {
		t.Errorf("intensity = %v/%v, want 30/70", low.Intensity, high.Intensity)
	}
	if low.Duration != 15*time.Second || high.Duration != 35*time.Second {
		t.Errorf("duration = %v/%v", low.Duration, high.Duration)
	}
	if high.Effects.Energy != -15 || high.Effects.Innovation != 5 {
		t.Errorf("effects = %+v", high.Effects)
	}
	if low.ID == high.ID {
		t.Error("each build should get a fresh id")
	}
}

func TestSelectTemplate_Priority(t *testing.T) {
	tests := []struct {
		name string
		tel  Telemetry
		want string
	}{
		{"resilience", Telemetry{Stability: 90, MeanStress: 10, MeanInnovation: 40, CoalitionCount: 1}, TypeResilienceChallenge},
		{"innovation", Telemetry{Stability: 60, MeanStress: 30, MeanInnovation: 40, CoalitionCount: 1}, TypeInnovationCatalyst},
		{"governance", Telemetry{Stability: 60, MeanStress: 30, MeanInnovation: 70, CoalitionCount: 7}, TypeGovernanceIntervention},
		{"environmental", Telemetry{Stability: 40, MeanStress: 30, MeanInnovation: 70, CoalitionCount: 3}, TypeEnvironmentalStimulation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectTemplate(tt.tel, true, nil)
			if !ok || got.Type != tt.want {
				t.Errorf("SelectTemplate = %s (%v), want %s", got.Type, ok, tt.want)
			}
		})
	}
}
