package relational

import (
	"math"

	"github.com/nvandessel/socioscope/internal/models"
)

// RandSource supplies uniform draws in [0, 1). *rand.Rand satisfies it; tests
// pass a fixed sequence.
type RandSource interface {
	Float64() float64
}

var fieldKinds = map[models.BehaviorType]models.FieldKind{
	models.BehaviorLeader:    models.FieldCommand,
	models.BehaviorFollower:  models.FieldCollective,
	models.BehaviorInnovator: models.FieldCreative,
	models.BehaviorMediator:  models.FieldHarmonic,
	models.BehaviorExplorer:  models.FieldExploratory,
}

// GenerateFields synthesizes one field per group. Frequency, amplitude,
// stability and kind depend only on member attributes; phase is drawn from
// rng. Members missing from byID are ignored, and a group with no known
// members produces no field.
func GenerateFields(groups []models.DerivedGroup, byID map[string]models.Agent, rng RandSource) []models.Field {
	fields := make([]models.Field, 0, len(groups))
	for _, g := range groups {
		members := make([]models.Agent, 0, len(g.Members))
		for _, id := range g.Members {
			if a, ok := byID[id]; ok {
				members = append(members, a)
			}
		}
		if len(members) == 0 {
			continue
		}
		f := FieldFor(g, members)
		f.Phase = math.Mod(rng.Float64()*2*math.Pi, 2*math.Pi)
		fields = append(fields, f)
	}
	return fields
}

// FieldFor computes the deterministic part of a group's field. Phase is left
// at zero. members must be non-empty.
func FieldFor(g models.DerivedGroup, members []models.Agent) models.Field {
	n := float64(len(members))
	var trust, coop, innov, energy float64
	counts := make(map[models.BehaviorType]int)
	for _, a := range members {
		trust += a.Trust
		coop += a.Cooperation
		innov += a.Innovation
		energy += a.Energy
		counts[a.BehaviorType]++
	}
	trust /= n
	coop /= n
	innov /= n
	energy /= n

	spread := 0.0
	for _, a := range members {
		d := a.Cooperation - coop
		spread += d * d
	}
	sigma := math.Sqrt(spread / n)

	ids := make([]string, len(members))
	for i, a := range members {
		ids[i] = a.ID
	}

	return models.Field{
		ID:        "field-" + g.ID,
		GroupID:   g.ID,
		Members:   ids,
		Frequency: 0.5 + 1.5*coop/100 + 0.5*innov/100,
		Amplitude: models.ClampPercent(0.6*energy + 0.4*trust),
		Stability: models.ClampPercent(100 - 2*sigma),
		Kind:      dominantKind(counts),
	}
}

// dominantKind maps the most common behavior type to a field kind. Ties go
// to the type listed first in models.BehaviorTypes.
func dominantKind(counts map[models.BehaviorType]int) models.FieldKind {
	best := models.BehaviorType("")
	bestCount := 0
	for _, t := range models.BehaviorTypes {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	if kind, ok := fieldKinds[best]; ok {
		return kind
	}
	return models.FieldHarmonic
}
