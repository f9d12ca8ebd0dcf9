package simulation

import (
	"time"

	"github.com/nvandessel/socioscope/internal/config"
	"github.com/nvandessel/socioscope/internal/engine"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/relational"
	"github.com/nvandessel/socioscope/internal/world"
)

// Pass names a pass the runner can run on a tick.
type Pass string

const (
	PassCluster   Pass = "cluster"
	PassTelemetry Pass = "telemetry"
	PassDecision  Pass = "decision"
	PassForce     Pass = "force"
)

// AllPasses runs every scheduled pass on a tick.
var AllPasses = []Pass{PassCluster, PassTelemetry, PassDecision}

// Scenario defines a complete simulation experiment. Exactly one of
// Snapshots and World drives the population.
type Scenario struct {
	Name string

	// Config overrides the engine configuration. Nil uses config.Default().
	Config *config.SocioConfig

	// Seed feeds the engine's random source.
	Seed uint64

	// Snapshots scripts the population, one snapshot per tick.
	Snapshots []models.Snapshot

	// World evolves a demo population for Ticks ticks instead. Disruptions
	// the engine emits are applied back to it.
	World *world.Config
	Ticks int

	// Every is the fake time between ticks. Default: one second.
	Every time.Duration

	// Passes lists the passes run on each tick. Default: AllPasses.
	Passes []Pass

	// PassesAt, when non-nil, overrides Passes per tick.
	PassesAt func(tick int) []Pass

	// BeforeTick, when non-nil, is called before each tick's passes run.
	// Use it to change controller settings mid-run.
	BeforeTick func(tick int, eng *engine.Engine)
}

// TickResult captures the outcome of a single tick.
type TickResult struct {
	Index int
	At    time.Time

	Population int
	Stability  float64

	Cluster    *engine.PassResult
	Metrics    *relational.Metrics
	Disruption *engine.DisruptionResult
}

// SimulationResult captures all ticks and the final engine state.
type SimulationResult struct {
	Name   string
	Start  time.Time
	Ticks  []TickResult
	Final  models.Snapshot
	Report models.SessionReport
	Engine *engine.Engine
}

// Emitted returns the disruptions emitted over the run, forced or not.
func (r SimulationResult) Emitted() []models.DisruptiveEvent {
	var out []models.DisruptiveEvent
	for _, tr := range r.Ticks {
		if tr.Disruption != nil && tr.Disruption.Event != nil {
			out = append(out, *tr.Disruption.Event)
		}
	}
	return out
}
