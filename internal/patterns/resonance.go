package patterns

import (
	"math"
	"sort"
	"time"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/models"
)

// DetectResonance classifies every unordered pair of fields. A pair may match
// several rules, and each match becomes its own event. At most
// MaxResonanceEvents are returned, strongest first.
func DetectResonance(fields []models.Field, now time.Time) []models.AnalysisEvent {
	var events []models.AnalysisEvent
	for i := 0; i < len(fields); i++ {
		for j := i + 1; j < len(fields); j++ {
			events = append(events, classifyPair(fields[i], fields[j], now)...)
		}
	}
	return capByStrength(events, constants.MaxResonanceEvents)
}

// classifyPair applies the synchronization, interference and amplification
// rules to one field pair.
func classifyPair(f1, f2 models.Field, now time.Time) []models.AnalysisEvent {
	dFreq := math.Abs(f1.Frequency - f2.Frequency)
	dPhase := math.Abs(f1.Phase - f2.Phase)

	var out []models.AnalysisEvent
	metrics := func() map[string]float64 {
		return map[string]float64{
			"frequency_delta": dFreq,
			"phase_delta":     dPhase,
			"frequency_1":     f1.Frequency,
			"frequency_2":     f2.Frequency,
		}
	}

	if dFreq < constants.SyncFrequencyDelta && dPhase < math.Pi/4 {
		strength := models.ClampPercent(100 - (500*dFreq + 50*dPhase))
		out = append(out, pairEvent(models.CategorySynchronization, f1, f2, strength,
			constants.SynchronizationProbability, metrics(), now,
			"fields oscillate in step"))
	}

	if dFreq < constants.InterferenceFrequencyDelta && dPhase > 3*math.Pi/4 {
		strength := models.ClampPercent(80 - 1000*dFreq)
		out = append(out, pairEvent(models.CategoryInterference, f1, f2, strength,
			constants.InterferenceProbability, metrics(), now,
			"fields oscillate in opposition"))
	}

	if ratio, ok := harmonicRatio(f1.Frequency, f2.Frequency); ok {
		m := metrics()
		m["harmonic_ratio"] = ratio
		strength := models.ClampPercent((f1.Amplitude + f2.Amplitude) / 2)
		out = append(out, pairEvent(models.CategoryAmplification, f1, f2, strength,
			constants.AmplificationProbability, m, now,
			"field frequencies form a harmonic ratio"))
	}

	return out
}

// harmonicRatio reports whether the ratio of the two frequencies lies within
// the tolerance of a positive integer, returning that integer. The larger
// frequency is always the numerator so the result does not depend on pair order.
func harmonicRatio(f1, f2 float64) (float64, bool) {
	if f2 <= 0 || f1 <= 0 {
		return 0, false
	}
	hi, lo := math.Max(f1, f2), math.Min(f1, f2)
	ratio := hi / lo
	nearest := math.Round(ratio)
	if nearest < 1 {
		return 0, false
	}
	if math.Abs(ratio-nearest) <= constants.AmplificationRatioTolerance {
		return nearest, true
	}
	return 0, false
}

func pairEvent(cat models.EventCategory, f1, f2 models.Field, strength, probability float64,
	metrics map[string]float64, now time.Time, desc string) models.AnalysisEvent {
	agents := make([]string, 0, len(f1.Members)+len(f2.Members))
	agents = append(agents, f1.Members...)
	agents = append(agents, f2.Members...)

	return models.AnalysisEvent{
		Timestamp:   now,
		Category:    cat,
		Severity:    models.SeverityFor(strength),
		Strength:    strength,
		AgentIDs:    agents,
		FieldIDs:    []string{f1.ID, f2.ID},
		GroupIDs:    []string{f1.GroupID, f2.GroupID},
		Metrics:     metrics,
		Probability: probability,
		Description: desc,
	}
}

// capByStrength keeps the limit strongest events. The sort is stable, so among
// equal strengths the events produced earlier survive.
func capByStrength(events []models.AnalysisEvent, limit int) []models.AnalysisEvent {
	if len(events) <= limit {
		return events
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Strength > events[j].Strength
	})
	return events[:limit]
}
