package disruption

import (
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/socioscope/internal/models"
)

// RandSource supplies uniform draws in [0,1).
type RandSource interface {
	Float64() float64
}

// Template type tags.
const (
	TypeResilienceChallenge      = "resilience_challenge"
	TypeInnovationCatalyst       = "innovation_catalyst"
	TypeGovernanceIntervention   = "governance_intervention"
	TypeEnvironmentalStimulation = "environmental_stimulation"
	TypeGenericCatalyst          = "generic_catalyst"
)

// linear is a value of the form Base + PerLevel·level.
type linear struct {
	Base     float64
	PerLevel float64
}

func (l linear) at(level int) float64 {
	return l.Base + l.PerLevel*float64(level)
}

// Template is a perturbation recipe. Intensity, duration (seconds) and every
// effect modifier scale linearly with the intelligence level.
type Template struct {
	Type        string
	Name        string
	Description string

	// Matches reports whether the telemetry calls for this template.
	Matches func(Telemetry) bool

	intensity   linear
	durationSec linear
	trust       linear
	energy      linear
	cooperation linear
	innovation  linear
}

// Build instantiates the template at the given level.
func (tp Template) Build(level int, now time.Time) models.DisruptiveEvent {
	level = clampLevel(level)
	return models.DisruptiveEvent{
		ID:          uuid.New().String(),
		Type:        tp.Type,
		Name:        tp.Name,
		Description: tp.Description,
		Intensity:   models.ClampPercent(tp.intensity.at(level)),
		Duration:    time.Duration(tp.durationSec.at(level) * float64(time.Second)),
		Effects: models.Effects{
			Trust:       tp.trust.at(level),
			Energy:      tp.energy.at(level),
			Cooperation: tp.cooperation.at(level),
			Innovation:  tp.innovation.at(level),
		},
		CreatedAt: now,
	}
}

// Templates lists the contextual templates in priority order.
var Templates = []Template{
	{
		Type:        TypeResilienceChallenge,
		Name:        "Resilience Challenge",
		Description: "A shock that tests a calm, stable population",
		Matches:     func(t Telemetry) bool { return t.Stability > 85 && t.MeanStress < 20 },
		intensity:   linear{20, 10},
		durationSec: linear{10, 5},
		trust:       linear{0, -2},
		energy:      linear{0, -3},
		cooperation: linear{0, -1},
		innovation:  linear{0, 1},
	},
	{
		Type:        TypeInnovationCatalyst,
		Name:        "Innovation Catalyst",
		Description: "A new opportunity that rewards creative agents",
		Matches:     func(t Telemetry) bool { return t.MeanInnovation < 60 && t.Stability >= 50 },
		intensity:   linear{15, 8},
		durationSec: linear{15, 4},
		energy:      linear{0, 1},
		cooperation: linear{0, -1},
		innovation:  linear{0, 4},
	},
	{
		Type:        TypeGovernanceIntervention,
		Name:        "Governance Intervention",
		Description: "An external rule change that reshapes coalitions",
		Matches:     func(t Telemetry) bool { return t.CoalitionCount < 2 || t.CoalitionCount > 5 },
		intensity:   linear{10, 8},
		durationSec: linear{20, 5},
		trust:       linear{0, 2},
		cooperation: linear{0, 3},
		innovation:  linear{0, -1},
	},
	{
		Type:        TypeEnvironmentalStimulation,
		Name:        "Environmental Stimulation",
		Description: "A change in surroundings that energizes the population",
		Matches:     func(t Telemetry) bool { return t.MeanStress < 15 || t.Stability < 50 },
		intensity:   linear{12, 6},
		durationSec: linear{12, 3},
		trust:       linear{0, -1},
		energy:      linear{0, 3},
		innovation:  linear{0, 2},
	},
}

// GenericCatalyst is used by forced triggers when no template matches.
var GenericCatalyst = Template{
	Type:        TypeGenericCatalyst,
	Name:        "Generic Catalyst",
	Description: "A mild nudge applied on operator request",
	Matches:     func(Telemetry) bool { return true },
	intensity:   linear{10, 5},
	durationSec: linear{10, 2},
	trust:       linear{0, 1},
	energy:      linear{0, 1},
	cooperation: linear{0, 1},
	innovation:  linear{0, 1},
}

// SelectTemplate picks the first template whose condition holds. With
// contextual triggers off, the template is drawn uniformly from rng instead
// and a template is always returned.
func SelectTemplate(t Telemetry, contextual bool, rng RandSource) (Template, bool) {
	if !contextual {
		i := int(rng.Float64() * float64(len(Templates)))
		if i >= len(Templates) {
			i = len(Templates) - 1
		}
		if i < 0 {
			i = 0
		}
		return Templates[i], true
	}
	for _, tp := range Templates {
		if tp.Matches(t) {
			return tp, true
		}
	}
	return Template{}, false
}

// TemplateByType looks up a template, including the generic catalyst.
func TemplateByType(typ string) (Template, bool) {
	if typ == TypeGenericCatalyst {
		return GenericCatalyst, true
	}
	for _, tp := range Templates {
		if tp.Type == typ {
			return tp, true
		}
	}
	return Template{}, false
}
