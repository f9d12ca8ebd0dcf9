// Package disruption decides when and how to perturb a running population.
//
// The Engine is a small state machine (Idle → Evaluating → NoAction|Emit)
// gated by an adaptive cooldown and a probability computed from population
// telemetry. When it emits, it picks one of four perturbation templates by
// the same telemetry conditions and scales it by the operator's
// intelligence level.
package disruption

import (
	"time"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/models"
)

// Telemetry is the population summary that drives every decision.
type Telemetry struct {
	Stability         float64 `json:"stability"`
	MeanStress        float64 `json:"mean_stress"`
	MeanInnovation    float64 `json:"mean_innovation"`
	CoalitionCount    int     `json:"coalition_count"`
	ActiveDisruptions int     `json:"active_disruptions"`
}

// AnalyzeTelemetry summarizes a snapshot. An empty population yields zero means.
func AnalyzeTelemetry(snap models.Snapshot) Telemetry {
	return Telemetry{
		Stability:         snap.Stability,
		MeanStress:        snap.MeanStress(),
		MeanInnovation:    snap.MeanInnovation(),
		CoalitionCount:    len(snap.Coalitions),
		ActiveDisruptions: len(snap.ActiveDisruptions),
	}
}

// clampLevel forces an intelligence level into the operator range.
func clampLevel(level int) int {
	if level < constants.MinIntelligenceLevelSetting {
		return constants.MinIntelligenceLevelSetting
	}
	if level > constants.MaxIntelligenceLevelSetting {
		return constants.MaxIntelligenceLevelSetting
	}
	return level
}

// AdaptiveInterval returns the cooldown between evaluations. Stable
// populations are left alone longer; unstable, stressed ones are revisited
// sooner; higher intelligence levels shorten the wait. The result always
// lies in [MinInterval, MaxInterval]. With adaptive off the interval is fixed.
func AdaptiveInterval(t Telemetry, level int, adaptive bool) time.Duration {
	if !adaptive {
		return constants.FixedInterval
	}

	secs := constants.BaseInterval.Seconds()
	switch {
	case t.Stability > 80:
		secs *= 2
	case t.Stability < 50:
		secs *= 0.5
	}
	if t.MeanStress > 60 {
		secs *= 0.7
	}
	if t.CoalitionCount > 5 {
		secs *= 1.3
	}
	secs *= float64(6 - clampLevel(level))

	secs = models.Clamp(secs, constants.MinInterval.Seconds(), constants.MaxInterval.Seconds())
	return time.Duration(secs * float64(time.Second))
}

// Probability scores how strongly the population calls for a disruption.
// The low-stress and low-innovation boosts are alternatives: a calm
// population earns the boost once, whichever condition holds first.
// The result is scaled by level/5 and clamped to [0,1].
func Probability(t Telemetry, level int) float64 {
	p := 0.0
	if t.Stability > 85 {
		p += 0.4
	}
	if t.MeanStress < 15 {
		p += 0.3
	} else if t.MeanInnovation < 60 {
		p += 0.3
	}
	if t.CoalitionCount < 2 {
		p += 0.5
	}
	if t.Stability < 40 {
		p -= 0.6
	}
	if t.MeanStress > 70 {
		p -= 0.4
	}
	if t.ActiveDisruptions > 2 {
		p -= 0.8
	}

	p *= float64(clampLevel(level)) / float64(constants.MaxIntelligenceLevelSetting)
	return models.Clamp(p, 0, 1)
}
