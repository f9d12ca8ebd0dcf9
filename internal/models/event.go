package models

import "time"

// DerivedGroup is a transient set of agents produced by one analysis pass.
type DerivedGroup struct {
	ID      string   `json:"id"`
	Source  string   `json:"source"` // "proximity", "relationship", "coalition"
	Members []string `json:"members"`
}

// FieldKind labels the character of a synthesized field.
type FieldKind string

const (
	FieldCommand     FieldKind = "command"
	FieldCollective  FieldKind = "collective"
	FieldCreative    FieldKind = "creative"
	FieldHarmonic    FieldKind = "harmonic"
	FieldExploratory FieldKind = "exploratory"
)

// Field is the oscillatory signature attached to a derived group.
// Frequency and amplitude are deterministic in the group's attributes;
// phase is the only randomized component.
type Field struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Members   []string  `json:"members"`
	Frequency float64   `json:"frequency"` // Hz
	Amplitude float64   `json:"amplitude"` // [0, 100]
	Phase     float64   `json:"phase"`     // [0, 2π)
	Stability float64   `json:"stability"` // [0, 100]
	Kind      FieldKind `json:"kind"`
}

// EventCategory is the closed set of analysis event categories.
type EventCategory string

const (
	CategorySynchronization     EventCategory = "synchronization"
	CategoryInterference        EventCategory = "interference"
	CategoryAmplification       EventCategory = "amplification"
	CategoryIntelligenceCluster EventCategory = "intelligence_cluster"
	CategoryBehaviorEmergence   EventCategory = "behavior_emergence"
	CategoryDisruption          EventCategory = "disruption"
)

// EventCategories lists every category in display order.
var EventCategories = []EventCategory{
	CategorySynchronization,
	CategoryInterference,
	CategoryAmplification,
	CategoryIntelligenceCluster,
	CategoryBehaviorEmergence,
	CategoryDisruption,
}

// IsResonance reports whether c is a field-pair pattern category.
func (c EventCategory) IsResonance() bool {
	return c == CategorySynchronization || c == CategoryInterference || c == CategoryAmplification
}

// IsValid reports whether c belongs to the closed category set.
func (c EventCategory) IsValid() bool {
	for _, known := range EventCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity grades an event by strength.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return "unknown"
	}
	return severityNames[s]
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name; unknown names decode as low.
func (s *Severity) UnmarshalText(b []byte) error {
	*s = ParseSeverity(string(b))
	return nil
}

// ParseSeverity maps a name to a Severity. Unknown names map to low.
func ParseSeverity(name string) Severity {
	for i, n := range severityNames {
		if n == name {
			return Severity(i)
		}
	}
	return SeverityLow
}

// SeverityFor grades a [0, 100] strength into a severity band.
func SeverityFor(strength float64) Severity {
	switch {
	case strength >= 75:
		return SeverityCritical
	case strength >= 50:
		return SeverityHigh
	case strength >= 25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AnalysisEvent is an append-only record produced by pattern detection or the
// decision engine. Events are never mutated once logged.
type AnalysisEvent struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Category  EventCategory `json:"category"`
	Subtype   string        `json:"subtype,omitempty"`
	Severity  Severity      `json:"severity"`
	Strength  float64       `json:"strength"`

	AgentIDs []string `json:"agent_ids,omitempty"`
	FieldIDs []string `json:"field_ids,omitempty"`
	GroupIDs []string `json:"group_ids,omitempty"`

	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Probability is descriptive metadata shown to operators. Nothing in the
	// engine gates on it.
	Probability float64 `json:"probability,omitempty"`

	Description string `json:"description,omitempty"`
}

// Effects are per-attribute deltas a disruption applies to affected agents.
type Effects struct {
	Trust       float64 `json:"trust"`
	Energy      float64 `json:"energy"`
	Cooperation float64 `json:"cooperation"`
	Innovation  float64 `json:"innovation"`
}

// DisruptiveEvent is a perturbation proposed by the decision engine. Once
// emitted it belongs to the simulation; the engine keeps no reference.
type DisruptiveEvent struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Intensity   float64       `json:"intensity"`
	Duration    time.Duration `json:"duration"`
	Effects     Effects       `json:"effects"`
	CreatedAt   time.Time     `json:"created_at"`
	Forced      bool          `json:"forced,omitempty"`
}
