package models

import "time"

// Trend describes the direction a metric moved over the session.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// MetricTrend summarizes one telemetry metric across recorded samples.
type MetricTrend struct {
	First  float64 `json:"first"`
	Last   float64 `json:"last"`
	Mean   float64 `json:"mean"`
	Change float64 `json:"change"`
	Trend  Trend   `json:"trend"`
}

// BehaviorCount pairs a behavior type with its population count.
type BehaviorCount struct {
	Type  BehaviorType `json:"type"`
	Count int          `json:"count"`
}

// SessionReport aggregates everything the engine observed since start.
// It is built on demand and never modified after being returned.
type SessionReport struct {
	GeneratedAt     time.Time     `json:"generated_at"`
	SessionStart    time.Time     `json:"session_start"`
	SessionDuration time.Duration `json:"session_duration"`

	TotalEvents     int            `json:"total_events"`
	RejectedEvents  int            `json:"rejected_events"`
	EvictedEvents   int            `json:"evicted_events"`
	ByCategory      map[string]int `json:"by_category"`
	BySeverity      map[string]int `json:"by_severity"`
	AverageStrength float64        `json:"average_strength"`
	Disruptions     int            `json:"disruptions"`

	Population               int             `json:"population"`
	CoalitionCount           int             `json:"coalition_count"`
	AverageCoalitionLifespan time.Duration   `json:"average_coalition_lifespan"`
	DominantBehaviors        []BehaviorCount `json:"dominant_behaviors"`

	MetricSamples int                    `json:"metric_samples"`
	LatestMetrics map[string]float64     `json:"latest_metrics,omitempty"`
	Trends        map[string]MetricTrend `json:"trends,omitempty"`

	DataQuality     float64 `json:"data_quality"`
	ConfidenceLevel float64 `json:"confidence_level"`
}
