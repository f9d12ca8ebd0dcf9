package disruption

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/logging"
	"github.com/nvandessel/socioscope/internal/models"
)

// ErrInvalidLevel is returned when an intelligence level is outside 1..5.
var ErrInvalidLevel = errors.New("intelligence level out of range")

// State is a decision-cycle state.
type State string

const (
	StateIdle       State = "idle"
	StateEvaluating State = "evaluating"
	StateNoAction   State = "no_action"
	StateEmit       State = "emit"
)

// Decision describes the outcome of one Tick or ForceTrigger.
type Decision struct {
	State       State         `json:"state"`
	Reason      string        `json:"reason,omitempty"`
	Telemetry   Telemetry     `json:"telemetry"`
	Interval    time.Duration `json:"interval"`
	Probability float64       `json:"probability"`
	Draw        float64       `json:"draw"`
	Template    string        `json:"template,omitempty"`
	Forced      bool          `json:"forced,omitempty"`
}

// Config holds the operator settings of the engine.
type Config struct {
	Enabled bool

	// IntelligenceLevel scales probability, interval and template strength.
	// Range 1..5. Default: 3.
	IntelligenceLevel int

	// AdaptiveFrequency derives the cooldown from telemetry. When false the
	// cooldown is fixed at 30s.
	AdaptiveFrequency bool

	// ContextualTriggers selects templates by telemetry. When false the
	// template is drawn uniformly.
	ContextualTriggers bool
}

// DefaultConfig returns an enabled, adaptive, contextual engine at level 3.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		IntelligenceLevel:  constants.DefaultIntelligenceLevel,
		AdaptiveFrequency:  true,
		ContextualTriggers: true,
	}
}

// Status is a point-in-time view of the engine settings and counters.
type Status struct {
	Enabled            bool      `json:"enabled"`
	IntelligenceLevel  int       `json:"intelligence_level"`
	AdaptiveFrequency  bool      `json:"adaptive_frequency"`
	ContextualTriggers bool      `json:"contextual_triggers"`
	LastEventAt        time.Time `json:"last_event_at"`
	Evaluations        int       `json:"evaluations"`
	Emitted            int       `json:"emitted"`
	LastState          State     `json:"last_state"`
}

// Engine is the disruption decision state machine. It is safe for
// concurrent use; every entry point holds the engine mutex for its duration.
type Engine struct {
	mu          sync.Mutex
	config      Config
	lastEventAt time.Time
	evaluations int
	emitted     int
	lastState   State

	rng       RandSource
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// NewEngine creates an engine whose cooldown starts at sessionStart. An
// invalid level is clamped into range. A nil logger discards output and a
// nil decision logger disables tracing.
func NewEngine(config Config, sessionStart time.Time, rng RandSource, logger *slog.Logger, decisions *logging.DecisionLogger) *Engine {
	config.IntelligenceLevel = clampLevel(config.IntelligenceLevel)
	return &Engine{
		config:      config,
		lastEventAt: sessionStart,
		lastState:   StateIdle,
		rng:         rng,
		logger:      logging.OrDiscard(logger),
		decisions:   decisions,
	}
}

// Tick runs one decision cycle. It stays Idle while disabled or while the
// cooldown since the last emitted event has not elapsed. Otherwise it
// evaluates telemetry, draws against the probability and, when the draw
// passes and a template matches, emits a disruption and restarts the
// cooldown.
func (e *Engine) Tick(now time.Time, snap models.Snapshot) (*models.DisruptiveEvent, Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := Decision{State: StateIdle}
	if !e.config.Enabled {
		d.Reason = "disabled"
		return e.finish(now, nil, d)
	}

	d.Telemetry = AnalyzeTelemetry(snap)
	d.Interval = AdaptiveInterval(d.Telemetry, e.config.IntelligenceLevel, e.config.AdaptiveFrequency)
	if now.Sub(e.lastEventAt) < d.Interval {
		d.Reason = "cooldown"
		return e.finish(now, nil, d)
	}

	d.State = StateEvaluating
	e.evaluations++
	d.Probability = Probability(d.Telemetry, e.config.IntelligenceLevel)
	d.Draw = e.rng.Float64()
	if d.Draw >= d.Probability {
		d.State = StateNoAction
		d.Reason = "probability"
		return e.finish(now, nil, d)
	}

	tmpl, ok := SelectTemplate(d.Telemetry, e.config.ContextualTriggers, e.rng)
	if !ok {
		d.State = StateNoAction
		d.Reason = "no matching template"
		return e.finish(now, nil, d)
	}

	ev := tmpl.Build(e.config.IntelligenceLevel, now)
	d.State = StateEmit
	d.Template = tmpl.Type
	return e.finish(now, &ev, d)
}

// ForceTrigger emits a disruption immediately, bypassing the enabled flag,
// the cooldown and the probability draw. When no template matches the
// generic catalyst is used.
func (e *Engine) ForceTrigger(now time.Time, snap models.Snapshot) (models.DisruptiveEvent, Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := Decision{State: StateEmit, Forced: true}
	d.Telemetry = AnalyzeTelemetry(snap)
	d.Interval = AdaptiveInterval(d.Telemetry, e.config.IntelligenceLevel, e.config.AdaptiveFrequency)
	d.Probability = 1

	tmpl, ok := SelectTemplate(d.Telemetry, e.config.ContextualTriggers, e.rng)
	if !ok {
		tmpl = GenericCatalyst
	}
	ev := tmpl.Build(e.config.IntelligenceLevel, now)
	ev.Forced = true
	d.Template = tmpl.Type

	e.finish(now, &ev, d)
	return ev, d
}

// finish records the outcome and traces it. Callers hold e.mu.
func (e *Engine) finish(now time.Time, ev *models.DisruptiveEvent, d Decision) (*models.DisruptiveEvent, Decision) {
	e.lastState = d.State
	if ev != nil {
		e.lastEventAt = now
		e.emitted++
		e.logger.Info("disruption emitted",
			"type", ev.Type,
			"intensity", ev.Intensity,
			"duration", ev.Duration,
			"forced", ev.Forced)
	} else {
		e.logger.Debug("disruption decision", "state", d.State, "reason", d.Reason)
	}

	// Cooldown idles happen on every scheduler tick and are not traced.
	if d.Reason != "cooldown" {
		rec := map[string]any{
			"state":       string(d.State),
			"reason":      d.Reason,
			"stability":   d.Telemetry.Stability,
			"stress":      d.Telemetry.MeanStress,
			"innovation":  d.Telemetry.MeanInnovation,
			"coalitions":  d.Telemetry.CoalitionCount,
			"active":      d.Telemetry.ActiveDisruptions,
			"interval_s":  d.Interval.Seconds(),
			"probability": d.Probability,
			"draw":        d.Draw,
			"level":       e.config.IntelligenceLevel,
			"forced":      d.Forced,
			"time":        now.UTC().Format(time.RFC3339Nano),
		}
		if ev != nil {
			rec["event_id"] = ev.ID
			rec["template"] = ev.Type
		}
		e.decisions.Log(rec)
	}
	return ev, d
}

// SetEnabled turns automatic decisions on or off.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.Enabled = enabled
}

// SetLevel changes the intelligence level. Levels outside 1..5 are rejected.
func (e *Engine) SetLevel(level int) error {
	if level < constants.MinIntelligenceLevelSetting || level > constants.MaxIntelligenceLevelSetting {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidLevel, level,
			constants.MinIntelligenceLevelSetting, constants.MaxIntelligenceLevelSetting)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.IntelligenceLevel = level
	return nil
}

// SetAdaptive toggles adaptive cooldowns.
func (e *Engine) SetAdaptive(adaptive bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.AdaptiveFrequency = adaptive
}

// SetContextual toggles telemetry-driven template selection.
func (e *Engine) SetContextual(contextual bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.ContextualTriggers = contextual
}

// Status returns the current settings and counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Enabled:            e.config.Enabled,
		IntelligenceLevel:  e.config.IntelligenceLevel,
		AdaptiveFrequency:  e.config.AdaptiveFrequency,
		ContextualTriggers: e.config.ContextualTriggers,
		LastEventAt:        e.lastEventAt,
		Evaluations:        e.evaluations,
		Emitted:            e.emitted,
		LastState:          e.lastState,
	}
}
