// Package relational computes pairwise relational metrics over a population
// snapshot and synthesizes the oscillatory fields attached to derived groups.
//
// The externally visible metric names (entanglement, coherence, superposition,
// decoherence, tunneling) are labels only; each is a plain statistic over
// agent attributes, positions and relationships.
package relational

import (
	"math"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/models"
)

// Metrics bundles the scalar scores of one analysis pass. Every score is a
// percentage in [0, 100].
type Metrics struct {
	Entanglement  float64 `json:"entanglement"`
	Coherence     float64 `json:"coherence"`
	Superposition float64 `json:"superposition"`
	Decoherence   float64 `json:"decoherence"`
	Tunneling     float64 `json:"tunneling"`

	// WaveFunction is a visualization signal derived from the first three
	// scores. No decision logic reads it.
	WaveFunction []float64 `json:"wave_function,omitempty"`

	Population int `json:"population"`
}

// Values returns the five scalar scores keyed by name.
func (m Metrics) Values() map[string]float64 {
	return map[string]float64{
		"entanglement":  m.Entanglement,
		"coherence":     m.Coherence,
		"superposition": m.Superposition,
		"decoherence":   m.Decoherence,
		"tunneling":     m.Tunneling,
	}
}

// Analyze computes every relational metric for the snapshot.
func Analyze(snap models.Snapshot) Metrics {
	m := Metrics{
		Entanglement:  Entanglement(snap.Agents),
		Coherence:     Coherence(snap.Agents),
		Superposition: Superposition(snap.Agents),
		Decoherence:   Decoherence(snap),
		Tunneling:     Tunneling(snap.Agents),
		Population:    len(snap.Agents),
	}
	m.WaveFunction = WaveFunction(m.Entanglement, m.Coherence, m.Superposition)
	return m
}

// Entanglement is the mean over ordered pairs (i, j), i != j, of
// (rel[i][j]/100) * 1/(1 + dist(i,j)/100), as a percentage. Pairs without a
// relationship contribute zero, so only relationship entries are visited;
// the divisor is still the full n(n-1) pair count.
func Entanglement(agents []models.Agent) float64 {
	n := len(agents)
	if n < 2 {
		return 0
	}
	byID := models.IndexAgents(agents)

	sum := 0.0
	for _, a := range agents {
		for otherID, strength := range a.Relationships {
			if otherID == a.ID {
				continue
			}
			other, ok := byID[otherID]
			if !ok {
				continue
			}
			d := models.Distance(a, other)
			sum += (strength / 100) * (1 / (1 + d/constants.DistanceScale))
		}
	}

	pairs := float64(n * (n - 1))
	return models.ClampPercent(sum / pairs * 100)
}

// Coherence starts at 100 and subtracts a tenth of the mean population
// variance of the four core attributes. An empty population is fully coherent.
func Coherence(agents []models.Agent) float64 {
	if len(agents) == 0 {
		return 100
	}
	n := float64(len(agents))

	var sums, sq [4]float64
	for _, a := range agents {
		for k, v := range a.CoreAttributes() {
			sums[k] += v
			sq[k] += v * v
		}
	}

	variance := 0.0
	for k := range sums {
		mean := sums[k] / n
		v := sq[k]/n - mean*mean
		if v < 0 {
			v = 0 // rounding
		}
		variance += v
	}
	variance /= 4

	return models.ClampPercent(100 - variance/constants.CoherenceVarianceDivisor)
}

// Superposition is the population mean of 1 - (max - min)/100 over each
// agent's core attributes, as a percentage.
func Superposition(agents []models.Agent) float64 {
	if len(agents) == 0 {
		return 0
	}
	total := 0.0
	for _, a := range agents {
		attrs := a.CoreAttributes()
		lo, hi := attrs[0], attrs[0]
		for _, v := range attrs[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		total += 1 - (hi-lo)/100
	}
	return models.ClampPercent(total / float64(len(agents)) * 100)
}

// Decoherence is mean stress plus five times the summed intensity of active
// disruptions, capped at 100.
func Decoherence(snap models.Snapshot) float64 {
	raw := snap.MeanStress() + constants.DisruptionDecoherenceWeight*snap.TotalDisruptionIntensity()
	return models.ClampPercent(raw)
}

// Tunneling counts strong relationships (> 60) that are improbable, either
// because the agents are far apart (> 200) or because their behavior types
// are incompatible (< 40). The count is normalized by population size.
func Tunneling(agents []models.Agent) float64 {
	if len(agents) == 0 {
		return 0
	}
	byID := models.IndexAgents(agents)

	count := 0
	for _, a := range agents {
		for otherID, strength := range a.Relationships {
			if strength <= constants.TunnelingStrengthThreshold || otherID == a.ID {
				continue
			}
			other, ok := byID[otherID]
			if !ok {
				continue
			}
			far := models.Distance(a, other) > constants.TunnelingDistanceThreshold
			incompatible := Compatibility(a.BehaviorType, other.BehaviorType) < constants.TunnelingCompatibilityThreshold
			if far || incompatible {
				count++
			}
		}
	}
	return models.ClampPercent(float64(count) / float64(len(agents)) * 100)
}

// WaveFunction samples three superposed sinusoids weighted by the
// entanglement, coherence and superposition scores.
func WaveFunction(entanglement, coherence, superposition float64) []float64 {
	n := constants.WaveFunctionSamples
	out := make([]float64, n)
	for i := range out {
		x := 4 * math.Pi * float64(i) / float64(n-1)
		out[i] = entanglement/100*math.Sin(x) +
			coherence/100*0.5*math.Sin(2*x) +
			superposition/100*0.25*math.Cos(3*x)
	}
	return out
}
