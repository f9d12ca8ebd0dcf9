package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nvandessel/socioscope/internal/config"
	"github.com/nvandessel/socioscope/internal/engine"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/relational"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePasses struct {
	mu    sync.Mutex
	calls map[string]int
	sizes []int
}

func newFakePasses() *fakePasses {
	return &fakePasses{calls: make(map[string]int)}
}

func (f *fakePasses) record(name string, snap models.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	f.sizes = append(f.sizes, len(snap.Agents))
}

func (f *fakePasses) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePasses) ClusterPass(_ time.Time, snap models.Snapshot) engine.PassResult {
	f.record(JobCluster, snap)
	return engine.PassResult{}
}

func (f *fakePasses) TelemetryPass(_ time.Time, snap models.Snapshot) relational.Metrics {
	f.record(JobTelemetry, snap)
	return relational.Metrics{}
}

func (f *fakePasses) DecisionPass(_ time.Time, snap models.Snapshot) engine.DisruptionResult {
	f.record(JobDecision, snap)
	return engine.DisruptionResult{Event: &models.DisruptiveEvent{Type: "x"}}
}

type staticSource struct{ snap models.Snapshot }

func (s staticSource) Snapshot() models.Snapshot { return s.snap }

type steppingSource struct {
	mu    sync.Mutex
	steps int
}

func (s *steppingSource) Snapshot() models.Snapshot { return models.Snapshot{} }

func (s *steppingSource) Step(time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps++
}

func schedule() config.ScheduleConfig {
	return config.ScheduleConfig{Cluster: time.Second, Decision: time.Second, Telemetry: time.Second}
}

func TestNew_RejectsSubSecondCadence(t *testing.T) {
	sched := schedule()
	sched.Cluster = 200 * time.Millisecond
	if _, err := New(sched, time.Second, newFakePasses(), staticSource{}, nil); err == nil {
		t.Error("expected error for sub-second cadence")
	}

	if _, err := New(schedule(), 0, newFakePasses(), &steppingSource{}, nil); err == nil {
		t.Error("expected error for zero step cadence")
	}
}

func TestRunNow(t *testing.T) {
	passes := newFakePasses()
	src := staticSource{snap: models.Snapshot{Agents: make([]models.Agent, 3)}}
	s, err := New(schedule(), time.Second, passes, src, nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{JobCluster, JobTelemetry, JobDecision} {
		if err := s.RunNow(name); err != nil {
			t.Fatalf("RunNow(%s): %v", name, err)
		}
		if passes.count(name) != 1 || s.Runs(name) != 1 {
			t.Errorf("%s: calls=%d runs=%d", name, passes.count(name), s.Runs(name))
		}
	}
	for _, n := range passes.sizes {
		if n != 3 {
			t.Errorf("pass saw %d agents, want 3", n)
		}
	}

	if err := s.RunNow(JobStep); err == nil {
		t.Error("a static source has no step job")
	}
}

func TestStepJob(t *testing.T) {
	src := &steppingSource{}
	s, err := New(schedule(), 2*time.Second, newFakePasses(), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RunNow(JobStep); err != nil {
		t.Fatal(err)
	}
	if src.steps != 1 {
		t.Errorf("steps = %d, want 1", src.steps)
	}
}

func TestRun_TicksAndStops(t *testing.T) {
	passes := newFakePasses()
	s, err := New(schedule(), time.Second, passes, &steppingSource{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for passes.count(JobTelemetry) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if !s.Next(JobTelemetry).After(time.Now().Add(-time.Second)) {
		t.Error("Next should report an upcoming run while started")
	}
	cancel()
	<-done

	if passes.count(JobTelemetry) == 0 {
		t.Error("telemetry job never ran")
	}
}
