// Package engine wires grouping, relational analysis, pattern detection, the
// disruption controller, the event log and the session aggregator into one
// facade with three independent entry points: the cluster pass, the
// telemetry pass and the decision pass.
//
// A single mutex serializes every pass, so a host may drive the passes from
// separate timers without further coordination.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/socioscope/internal/config"
	"github.com/nvandessel/socioscope/internal/disruption"
	"github.com/nvandessel/socioscope/internal/eventlog"
	"github.com/nvandessel/socioscope/internal/grouping"
	"github.com/nvandessel/socioscope/internal/logging"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/patterns"
	"github.com/nvandessel/socioscope/internal/relational"
	"github.com/nvandessel/socioscope/internal/session"
)

// Topics published to sinks.
const (
	TopicEvents     = "events"
	TopicMetrics    = "metrics"
	TopicDisruption = "disruption"
)

// RandSource supplies uniform draws in [0,1). It drives field phases and
// disruption draws.
type RandSource interface {
	Float64() float64
}

// Sink receives pass output. Publish must not block.
type Sink interface {
	Publish(topic string, payload any)
}

// Options configures an Engine.
type Options struct {
	Config       *config.SocioConfig
	SessionStart time.Time
	Rand         RandSource

	// Clock is the engine's notion of "now" for event validation.
	// Default: time.Now.
	Clock func() time.Time

	Logger    *slog.Logger
	Decisions *logging.DecisionLogger
}

// PassResult is the output of one cluster pass.
type PassResult struct {
	At       time.Time              `json:"at"`
	Groups   []models.DerivedGroup  `json:"groups"`
	Fields   []models.Field         `json:"fields"`
	Events   []models.AnalysisEvent `json:"events"`
	Rejected int                    `json:"rejected,omitempty"`
}

// DisruptionResult is the output of a decision pass or a forced trigger.
type DisruptionResult struct {
	Event    *models.DisruptiveEvent `json:"event,omitempty"`
	Decision disruption.Decision     `json:"decision"`
}

// Engine is the analysis facade. It is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	maxDistance float64
	detector    *patterns.Detector
	controller  *disruption.Engine
	log         *eventlog.Log
	aggregator  *session.Aggregator
	rng         RandSource
	logger      *slog.Logger

	lastMetrics relational.Metrics
	hasMetrics  bool
	sinks       []Sink
}

// New creates an engine. Options.Config defaults to config.Default() and
// Options.Rand is required.
func New(opts Options) (*Engine, error) {
	if opts.Rand == nil {
		return nil, fmt.Errorf("engine: random source is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	if opts.SessionStart.IsZero() {
		opts.SessionStart = time.Now()
	}
	logger := logging.OrDiscard(opts.Logger)

	log := eventlog.New(opts.SessionStart, cfg.Engine.Retention, logger)
	if opts.Clock != nil {
		log.SetClock(opts.Clock)
	}

	controller := disruption.NewEngine(disruption.Config{
		Enabled:            cfg.Engine.AutoMode,
		IntelligenceLevel:  cfg.Engine.IntelligenceLevel,
		AdaptiveFrequency:  cfg.Engine.AdaptiveFrequency,
		ContextualTriggers: cfg.Engine.ContextualTriggers,
	}, opts.SessionStart, opts.Rand, logger, opts.Decisions)

	return &Engine{
		maxDistance: cfg.Engine.MaxDistance,
		detector:    patterns.NewDetector(patterns.Config{ProximityThreshold: cfg.Engine.ProximityThreshold}, logger),
		controller:  controller,
		log:         log,
		aggregator:  session.NewAggregator(log),
		rng:         opts.Rand,
		logger:      logger,
	}, nil
}

// Subscribe registers a sink for pass output.
func (e *Engine) Subscribe(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

func (e *Engine) publish(topic string, payload any) {
	for _, s := range e.sinks {
		s.Publish(topic, payload)
	}
}

// ClusterPass groups agents by proximity, synthesizes a field per group,
// detects resonance and emergence patterns, and logs the resulting events.
// Only accepted events are returned.
func (e *Engine) ClusterPass(now time.Time, snap models.Snapshot) PassResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	groups := grouping.ToDerived(grouping.Group(snap.Agents, e.maxDistance), "proximity")
	fields := relational.GenerateFields(groups, models.IndexAgents(snap.Agents), e.rng)
	detected := e.detector.Detect(fields, snap, now)

	res := PassResult{At: now, Groups: groups, Fields: fields}
	for _, ev := range detected {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if err := e.log.Append(ev); err != nil {
			res.Rejected++
			continue
		}
		res.Events = append(res.Events, ev)
	}

	e.logger.Debug("cluster pass",
		"agents", len(snap.Agents),
		"groups", len(groups),
		"events", len(res.Events),
		"rejected", res.Rejected)
	if len(res.Events) > 0 {
		e.publish(TopicEvents, res.Events)
	}
	return res
}

// TelemetryPass computes the relational metrics and records them, together
// with the decision telemetry, as one session sample.
func (e *Engine) TelemetryPass(now time.Time, snap models.Snapshot) relational.Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := relational.Analyze(snap)
	t := disruption.AnalyzeTelemetry(snap)

	sample := m.Values()
	sample["stability"] = snap.Stability
	sample["mean_stress"] = t.MeanStress
	sample["mean_innovation"] = t.MeanInnovation
	sample["coalitions"] = float64(t.CoalitionCount)
	sample["population"] = float64(m.Population)
	e.aggregator.RecordMetrics(sample)

	e.lastMetrics = m
	e.hasMetrics = true

	e.logger.Log(context.Background(), logging.LevelTrace, "telemetry pass", "at", now, "metrics", sample)
	e.publish(TopicMetrics, m)
	return m
}

// DecisionPass runs one disruption decision cycle.
func (e *Engine) DecisionPass(now time.Time, snap models.Snapshot) DisruptionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, d := e.controller.Tick(now, snap)
	if ev != nil {
		e.recordDisruption(now, *ev)
	}
	return DisruptionResult{Event: ev, Decision: d}
}

// ForceTrigger emits a disruption immediately.
func (e *Engine) ForceTrigger(now time.Time, snap models.Snapshot) DisruptionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, d := e.controller.ForceTrigger(now, snap)
	e.recordDisruption(now, ev)
	return DisruptionResult{Event: &ev, Decision: d}
}

// recordDisruption logs an emitted disruption as an analysis event and
// notifies sinks. Callers hold e.mu.
func (e *Engine) recordDisruption(now time.Time, ev models.DisruptiveEvent) {
	e.aggregator.RecordDisruption()

	logged := models.AnalysisEvent{
		ID:        uuid.New().String(),
		Timestamp: now,
		Category:  models.CategoryDisruption,
		Subtype:   ev.Type,
		Severity:  models.SeverityFor(ev.Intensity),
		Strength:  ev.Intensity,
		Metrics: map[string]float64{
			"duration_s":  ev.Duration.Seconds(),
			"trust":       ev.Effects.Trust,
			"energy":      ev.Effects.Energy,
			"cooperation": ev.Effects.Cooperation,
			"innovation":  ev.Effects.Innovation,
		},
		Description: ev.Name,
	}
	if err := e.log.Append(logged); err != nil {
		e.logger.Warn("disruption not logged", "id", ev.ID, "error", err)
	}
	e.publish(TopicDisruption, ev)
}

// Report builds the session report for the given snapshot.
func (e *Engine) Report(now time.Time, snap models.Snapshot) models.SessionReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aggregator.Report(now, snap)
}

// Events queries the event log.
func (e *Engine) Events(f eventlog.Filter) []models.AnalysisEvent {
	return e.log.Query(f)
}

// Metrics returns the metrics of the most recent telemetry pass, and false
// if no pass has run yet.
func (e *Engine) Metrics() (relational.Metrics, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastMetrics, e.hasMetrics
}

// Controller exposes the disruption controller for operator settings.
func (e *Engine) Controller() *disruption.Engine {
	return e.controller
}

// SessionStart returns the start of the analysis session.
func (e *Engine) SessionStart() time.Time {
	return e.log.SessionStart()
}
