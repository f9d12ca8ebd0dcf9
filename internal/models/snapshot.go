package models

import "time"

// ActiveDisruption is a perturbation the simulation is currently applying.
type ActiveDisruption struct {
	ID        string        `json:"id" yaml:"id"`
	Type      string        `json:"type" yaml:"type"`
	Intensity float64       `json:"intensity" yaml:"intensity"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// KnowledgeRecord is a unit of knowledge the population has accumulated.
// The core only counts these for report quality scoring.
type KnowledgeRecord struct {
	ID        string    `json:"id" yaml:"id"`
	Topic     string    `json:"topic" yaml:"topic"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Phenomenon is an emergent-phenomenon record kept by the simulation.
type Phenomenon struct {
	ID         string    `json:"id" yaml:"id"`
	Kind       string    `json:"kind" yaml:"kind"`
	ObservedAt time.Time `json:"observed_at" yaml:"observed_at"`
}

// Snapshot is a read-only view of the population handed to the core for one
// analysis pass.
type Snapshot struct {
	Agents            []Agent            `json:"agents" yaml:"agents"`
	Coalitions        []Coalition        `json:"coalitions,omitempty" yaml:"coalitions,omitempty"`
	ActiveDisruptions []ActiveDisruption `json:"active_disruptions,omitempty" yaml:"active_disruptions,omitempty"`

	// Stability is the simulation's aggregate stability metric in [0, 100].
	Stability  float64 `json:"stability" yaml:"stability"`
	Generation int     `json:"generation" yaml:"generation"`

	Knowledge []KnowledgeRecord `json:"knowledge,omitempty" yaml:"knowledge,omitempty"`
	Phenomena []Phenomenon      `json:"phenomena,omitempty" yaml:"phenomena,omitempty"`

	TakenAt time.Time `json:"taken_at" yaml:"taken_at"`
}

// MeanStress returns the average stress level, or 0 for an empty population.
func (s Snapshot) MeanStress() float64 {
	return s.mean(func(a Agent) float64 { return a.StressLevel })
}

// MeanInnovation returns the average innovation, or 0 for an empty population.
func (s Snapshot) MeanInnovation() float64 {
	return s.mean(func(a Agent) float64 { return a.Innovation })
}

// TotalDisruptionIntensity sums the intensity of every active disruption.
func (s Snapshot) TotalDisruptionIntensity() float64 {
	total := 0.0
	for _, d := range s.ActiveDisruptions {
		total += d.Intensity
	}
	return total
}

func (s Snapshot) mean(f func(Agent) float64) float64 {
	if len(s.Agents) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range s.Agents {
		sum += f(a)
	}
	return sum / float64(len(s.Agents))
}
