package simulation

import (
	"reflect"
	"testing"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/eventlog"
	"github.com/nvandessel/socioscope/internal/models"
)

// AssertMetricsInRange checks that every relational score of every tick lies
// in [0, 100].
func AssertMetricsInRange(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range result.Ticks {
		if tr.Metrics == nil {
			continue
		}
		for name, v := range tr.Metrics.Values() {
			if !models.InPercentRange(v) {
				t.Errorf("AssertMetricsInRange: tick %d %s = %f, outside [0,100]\n%s",
					tr.Index, name, v, FormatTickDebug(tr))
			}
		}
	}
}

// AssertEventCaps checks that no cluster pass produced more resonance or
// emergence events than the per-pass caps allow.
func AssertEventCaps(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range result.Ticks {
		if tr.Cluster == nil {
			continue
		}
		resonance, emergence := 0, 0
		for _, ev := range tr.Cluster.Events {
			if ev.Category.IsResonance() {
				resonance++
			} else {
				emergence++
			}
		}
		if resonance > constants.MaxResonanceEvents {
			t.Errorf("AssertEventCaps: tick %d has %d resonance events, cap %d",
				tr.Index, resonance, constants.MaxResonanceEvents)
		}
		if emergence > constants.MaxEmergenceEvents {
			t.Errorf("AssertEventCaps: tick %d has %d emergence events, cap %d",
				tr.Index, emergence, constants.MaxEmergenceEvents)
		}
	}
}

// AssertIntervalBounds checks that every evaluated decision used a cooldown
// within [MinInterval, MaxInterval], or the fixed interval.
func AssertIntervalBounds(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range result.Ticks {
		d := tr.Disruption
		if d == nil || d.Decision.Interval == 0 {
			continue
		}
		iv := d.Decision.Interval
		if iv == constants.FixedInterval {
			continue
		}
		if iv < constants.MinInterval || iv > constants.MaxInterval {
			t.Errorf("AssertIntervalBounds: tick %d interval %s outside [%s,%s]",
				tr.Index, iv, constants.MinInterval, constants.MaxInterval)
		}
	}
}

// AssertDisruptionEmitted checks that at least one disruption of the given
// type was emitted.
func AssertDisruptionEmitted(t *testing.T, result SimulationResult, typ string) {
	t.Helper()
	var seen []string
	for _, ev := range result.Emitted() {
		if ev.Type == typ {
			return
		}
		seen = append(seen, ev.Type)
	}
	t.Errorf("AssertDisruptionEmitted: no %q disruption in %q (emitted: %v)", typ, result.Name, seen)
}

// AssertNoDisruption checks that nothing was emitted over the run.
func AssertNoDisruption(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range result.Ticks {
		if tr.Disruption != nil && tr.Disruption.Event != nil {
			t.Errorf("AssertNoDisruption: unexpected %s at tick %d\n%s",
				tr.Disruption.Event.Type, tr.Index, FormatTickDebug(tr))
		}
	}
}

// AssertEmissionSpacing checks that every scheduled emission waited at least
// its cooldown after the previous emission, or after session start for the
// first one. Forced emissions restart the cooldown but are not themselves
// spaced.
func AssertEmissionSpacing(t *testing.T, result SimulationResult) {
	t.Helper()
	prev := result.Start
	for _, tr := range result.Ticks {
		d := tr.Disruption
		if d == nil || d.Event == nil {
			continue
		}
		if !d.Decision.Forced {
			if gap := tr.At.Sub(prev); gap < d.Decision.Interval {
				t.Errorf("AssertEmissionSpacing: tick %d emitted %s after the last one, cooldown %s\n%s",
					tr.Index, gap, d.Decision.Interval, FormatTickDebug(tr))
			}
		}
		prev = tr.At
	}
}

// AssertEventsOrdered checks that the engine's event log is ordered by
// timestamp.
func AssertEventsOrdered(t *testing.T, result SimulationResult) {
	t.Helper()
	events := result.Engine.Events(eventlog.Filter{})
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("AssertEventsOrdered: event %d (%s) precedes event %d (%s)",
				i, events[i].Timestamp, i-1, events[i-1].Timestamp)
		}
	}
}

// AssertReportIdempotent checks that building the report twice without
// intervening passes gives the same result.
func AssertReportIdempotent(t *testing.T, result SimulationResult) {
	t.Helper()
	last := result.Ticks[len(result.Ticks)-1].At
	a := result.Engine.Report(last, result.Final)
	b := result.Engine.Report(last, result.Final)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("AssertReportIdempotent: reports differ\nfirst:  %+v\nsecond: %+v", a, b)
	}
}

// AssertReportBounds checks the report's derived scores.
func AssertReportBounds(t *testing.T, result SimulationResult) {
	t.Helper()
	r := result.Report
	if !models.InPercentRange(r.DataQuality) {
		t.Errorf("AssertReportBounds: data quality %f outside [0,100]", r.DataQuality)
	}
	if !models.InPercentRange(r.ConfidenceLevel) {
		t.Errorf("AssertReportBounds: confidence %f outside [0,100]", r.ConfidenceLevel)
	}
	if r.TotalEvents < 0 || r.Disruptions > r.TotalEvents {
		t.Errorf("AssertReportBounds: %d disruptions of %d events", r.Disruptions, r.TotalEvents)
	}
}
