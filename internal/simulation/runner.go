package simulation

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/socioscope/internal/engine"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/world"
)

// SimStart is the fake session start every run begins at.
var SimStart = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// Runner executes simulation scenarios against a real engine.
type Runner struct {
	t *testing.T
}

// NewRunner creates a runner. SOCIOSCOPE_HOME points at a per-test temp dir
// so nothing touches the real config directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	t.Setenv("SOCIOSCOPE_HOME", t.TempDir())
	return &Runner{t: t}
}

// Run executes the scenario and returns the full result. The clock only
// moves between ticks, so runs with the same seed are identical.
func (r *Runner) Run(s Scenario) SimulationResult {
	r.t.Helper()

	ticks := len(s.Snapshots)
	if s.World != nil {
		ticks = s.Ticks
	}
	if ticks == 0 {
		r.t.Fatalf("scenario %q: no snapshots and no world ticks", s.Name)
	}
	every := s.Every
	if every <= 0 {
		every = time.Second
	}

	now := SimStart
	eng, err := engine.New(engine.Options{
		Config:       s.Config,
		SessionStart: SimStart,
		Rand:         rand.New(rand.NewPCG(s.Seed, s.Seed^0x5851f42d4c957f2d)),
		Clock:        func() time.Time { return now },
	})
	if err != nil {
		r.t.Fatalf("scenario %q: engine.New: %v", s.Name, err)
	}

	var w *world.World
	if s.World != nil {
		w = world.New(*s.World, SimStart)
		eng.Subscribe(w)
	}

	result := SimulationResult{
		Name:   s.Name,
		Start:  SimStart,
		Ticks:  make([]TickResult, 0, ticks),
		Engine: eng,
	}

	var snap models.Snapshot
	for i := 0; i < ticks; i++ {
		now = SimStart.Add(time.Duration(i+1) * every)
		if w != nil {
			w.Step(now)
			snap = w.Snapshot()
		} else {
			snap = s.Snapshots[i]
		}
		if snap.TakenAt.IsZero() {
			snap.TakenAt = now
		}

		if s.BeforeTick != nil {
			s.BeforeTick(i, eng)
		}
		result.Ticks = append(result.Ticks, r.runTick(i, now, snap, eng, s.passesFor(i)))
	}

	result.Final = snap
	result.Report = eng.Report(now, snap)
	return result
}

func (s Scenario) passesFor(tick int) []Pass {
	if s.PassesAt != nil {
		return s.PassesAt(tick)
	}
	if s.Passes != nil {
		return s.Passes
	}
	return AllPasses
}

func (r *Runner) runTick(i int, now time.Time, snap models.Snapshot, eng *engine.Engine, passes []Pass) TickResult {
	r.t.Helper()

	tr := TickResult{
		Index:      i,
		At:         now,
		Population: len(snap.Agents),
		Stability:  snap.Stability,
	}
	for _, p := range passes {
		switch p {
		case PassCluster:
			res := eng.ClusterPass(now, snap)
			tr.Cluster = &res
		case PassTelemetry:
			m := eng.TelemetryPass(now, snap)
			tr.Metrics = &m
		case PassDecision:
			res := eng.DecisionPass(now, snap)
			tr.Disruption = &res
		case PassForce:
			res := eng.ForceTrigger(now, snap)
			tr.Disruption = &res
		default:
			r.t.Fatalf("tick %d: unknown pass %q", i, p)
		}
	}
	return tr
}

// FormatTickDebug returns a human-readable summary of one tick for test
// failure output.
func FormatTickDebug(tr TickResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tick %d @ %s (population %d, stability %.1f)\n",
		tr.Index, tr.At.Format(time.TimeOnly), tr.Population, tr.Stability)
	if tr.Cluster != nil {
		fmt.Fprintf(&b, "  cluster: %d groups, %d fields, %d events, %d rejected\n",
			len(tr.Cluster.Groups), len(tr.Cluster.Fields), len(tr.Cluster.Events), tr.Cluster.Rejected)
	}
	if m := tr.Metrics; m != nil {
		fmt.Fprintf(&b, "  metrics: ent=%.1f coh=%.1f sup=%.1f dec=%.1f tun=%.1f\n",
			m.Entanglement, m.Coherence, m.Superposition, m.Decoherence, m.Tunneling)
	}
	if d := tr.Disruption; d != nil {
		fmt.Fprintf(&b, "  decision: %s", d.Decision.State)
		if d.Decision.Reason != "" {
			fmt.Fprintf(&b, " (%s)", d.Decision.Reason)
		}
		fmt.Fprintf(&b, " interval=%s p=%.2f draw=%.2f", d.Decision.Interval, d.Decision.Probability, d.Decision.Draw)
		if d.Event != nil {
			fmt.Fprintf(&b, " -> %s intensity=%.1f", d.Event.Type, d.Event.Intensity)
		}
		b.WriteString("\n")
	}
	return b.String()
}
