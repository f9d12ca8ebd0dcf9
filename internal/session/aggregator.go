// Package session aggregates one analysis session into a report: event
// breakdowns from the event log, metric trends from recorded telemetry
// samples, and population facts from the latest snapshot.
//
// All public methods are safe for concurrent use.
package session

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/eventlog"
	"github.com/nvandessel/socioscope/internal/models"
)

// dominantBehaviorCount is how many behavior types a report lists.
const dominantBehaviorCount = 3

// metricSeries keeps running statistics for one telemetry metric.
type metricSeries struct {
	first float64
	last  float64
	sum   float64
	n     int
}

// Aggregator records session telemetry and builds reports over an event log.
type Aggregator struct {
	mu          sync.RWMutex
	log         *eventlog.Log
	series      map[string]*metricSeries
	samples     int
	disruptions int
}

// NewAggregator creates an aggregator reading from log.
func NewAggregator(log *eventlog.Log) *Aggregator {
	return &Aggregator{
		log:    log,
		series: make(map[string]*metricSeries),
	}
}

// RecordMetrics adds one telemetry sample. Non-finite values are ignored.
func (a *Aggregator) RecordMetrics(values map[string]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples++
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		s, ok := a.series[name]
		if !ok {
			s = &metricSeries{first: v}
			a.series[name] = s
		}
		s.last = v
		s.sum += v
		s.n++
	}
}

// RecordDisruption counts an emitted disruption.
func (a *Aggregator) RecordDisruption() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disruptions++
}

// Samples returns the number of recorded telemetry samples.
func (a *Aggregator) Samples() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.samples
}

// Report builds the session report as of now for the given snapshot. It
// reads but never changes recorded state, so calling it twice with the same
// arguments yields the same report.
func (a *Aggregator) Report(now time.Time, snap models.Snapshot) models.SessionReport {
	a.mu.RLock()
	defer a.mu.RUnlock()

	start := a.log.SessionStart()
	events := a.log.All()
	accepted := a.log.Accepted()
	rejected := a.log.Rejected()

	r := models.SessionReport{
		GeneratedAt:     now,
		SessionStart:    start,
		SessionDuration: nonNegative(now.Sub(start)),
		TotalEvents:     accepted,
		RejectedEvents:  rejected,
		EvictedEvents:   a.log.Evicted(),
		ByCategory:      make(map[string]int),
		BySeverity:      make(map[string]int),
		Disruptions:     a.disruptions,
		Population:      len(snap.Agents),
		CoalitionCount:  len(snap.Coalitions),
		MetricSamples:   a.samples,
	}

	strength := 0.0
	for _, ev := range events {
		r.ByCategory[string(ev.Category)]++
		r.BySeverity[ev.Severity.String()]++
		strength += ev.Strength
	}
	if len(events) > 0 {
		r.AverageStrength = strength / float64(len(events))
	}

	r.AverageCoalitionLifespan = averageLifespan(now, snap.Coalitions)
	r.DominantBehaviors = dominantBehaviors(snap.Agents)

	if len(a.series) > 0 {
		r.LatestMetrics = make(map[string]float64, len(a.series))
		r.Trends = make(map[string]models.MetricTrend, len(a.series))
		for name, s := range a.series {
			r.LatestMetrics[name] = s.last
			r.Trends[name] = trendOf(s)
		}
	}

	r.DataQuality = DataQuality(snap, a.samples, accepted, rejected)
	r.ConfidenceLevel = ConfidenceLevel(accepted, r.SessionDuration, len(snap.Agents), r.DataQuality)
	return r
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// averageLifespan is the mean of now − CreatedAt over coalitions with a
// creation time. Coalitions stamped after now count as zero.
func averageLifespan(now time.Time, coalitions []models.Coalition) time.Duration {
	var total time.Duration
	n := 0
	for _, c := range coalitions {
		if c.CreatedAt.IsZero() {
			continue
		}
		total += nonNegative(now.Sub(c.CreatedAt))
		n++
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// dominantBehaviors returns the most common behavior types, largest first.
// Ties keep the fixed behavior type order.
func dominantBehaviors(agents []models.Agent) []models.BehaviorCount {
	counts := make(map[models.BehaviorType]int)
	for _, ag := range agents {
		counts[ag.BehaviorType]++
	}

	var out []models.BehaviorCount
	for _, t := range models.BehaviorTypes {
		if counts[t] > 0 {
			out = append(out, models.BehaviorCount{Type: t, Count: counts[t]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > dominantBehaviorCount {
		out = out[:dominantBehaviorCount]
	}
	return out
}

func trendOf(s *metricSeries) models.MetricTrend {
	change := s.last - s.first
	t := models.TrendStable
	switch {
	case change >= constants.TrendStableBand:
		t = models.TrendRising
	case change <= -constants.TrendStableBand:
		t = models.TrendFalling
	}
	return models.MetricTrend{
		First:  s.first,
		Last:   s.last,
		Mean:   s.sum / float64(s.n),
		Change: change,
		Trend:  t,
	}
}

// DataQuality scores how trustworthy a report's inputs are, in [0, 100].
// It starts at 100, loses 50 for an empty population, 20 when no telemetry
// was recorded, 2 per out-of-range agent attribute (at most 30) and up to 30
// in proportion to rejected events. Coalitions, knowledge records and
// emergent phenomena each add 5.
func DataQuality(snap models.Snapshot, samples, accepted, rejected int) float64 {
	q := 100.0
	if len(snap.Agents) == 0 {
		q -= 50
	}
	if samples == 0 {
		q -= 20
	}

	outOfRange := 0
	for _, ag := range snap.Agents {
		outOfRange += ag.OutOfRangeAttributes()
	}
	q -= math.Min(30, 2*float64(outOfRange))

	if total := accepted + rejected; total > 0 {
		q -= 30 * float64(rejected) / float64(total)
	}

	if len(snap.Coalitions) > 0 {
		q += 5
	}
	if len(snap.Knowledge) > 0 {
		q += 5
	}
	if len(snap.Phenomena) > 0 {
		q += 5
	}
	return models.ClampPercent(q)
}

// ConfidenceLevel blends event volume, session length and population size
// with the data quality score. The result always lies in [60, 95].
func ConfidenceLevel(events int, duration time.Duration, population int, quality float64) float64 {
	raw := 60.0
	raw += math.Min(20, float64(events)/5)
	raw += math.Min(10, duration.Minutes())
	raw += math.Min(10, float64(population)/5)
	return models.Clamp(0.5*raw+0.5*quality, 60, 95)
}
