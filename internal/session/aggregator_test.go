package session

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/nvandessel/socioscope/internal/eventlog"
	"github.com/nvandessel/socioscope/internal/models"
)

var (
	start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now   = start.Add(20 * time.Minute)
)

func newTestAggregator() (*Aggregator, *eventlog.Log) {
	l := eventlog.New(start, 100, nil)
	l.SetClock(func() time.Time { return now })
	return NewAggregator(l), l
}

func population(types ...models.BehaviorType) []models.Agent {
	agents := make([]models.Agent, len(types))
	for i, t := range types {
		agents[i] = models.Agent{
			ID: string(rune('a' + i)), BehaviorType: t,
			Trust: 50, Cooperation: 50, Innovation: 50, Energy: 50,
		}
	}
	return agents
}

func TestReport_EmptySession(t *testing.T) {
	agg, _ := newTestAggregator()
	r := agg.Report(now, models.Snapshot{})

	if r.TotalEvents != 0 || r.AverageStrength != 0 || r.Population != 0 {
		t.Errorf("empty report = %+v", r)
	}
	// 100 - 50 (no agents) - 20 (no metrics) = 30
	if r.DataQuality != 30 {
		t.Errorf("DataQuality = %v, want 30", r.DataQuality)
	}
	if r.ConfidenceLevel < 60 || r.ConfidenceLevel > 95 {
		t.Errorf("ConfidenceLevel = %v out of [60,95]", r.ConfidenceLevel)
	}
	if len(r.DominantBehaviors) != 0 || r.Trends != nil {
		t.Errorf("expected no behaviors or trends, got %v / %v", r.DominantBehaviors, r.Trends)
	}
}

func TestReport_Breakdowns(t *testing.T) {
	agg, l := newTestAggregator()
	l.AppendAll([]models.AnalysisEvent{
		{Category: models.CategorySynchronization, Timestamp: start.Add(time.Minute), Severity: models.SeverityHigh, Strength: 60},
		{Category: models.CategorySynchronization, Timestamp: start.Add(2 * time.Minute), Severity: models.SeverityCritical, Strength: 90},
		{Category: models.CategoryIntelligenceCluster, Timestamp: start.Add(3 * time.Minute), Severity: models.SeverityLow, Strength: 0},
		{Category: models.CategoryInterference, Timestamp: now.Add(time.Hour)}, // rejected
	})
	agg.RecordDisruption()

	snap := models.Snapshot{
		Agents: population(models.BehaviorLeader, models.BehaviorFollower, models.BehaviorFollower,
			models.BehaviorMediator, models.BehaviorExplorer, models.BehaviorExplorer, models.BehaviorExplorer),
		Coalitions: []models.Coalition{
			{ID: "c1", CreatedAt: now.Add(-10 * time.Minute)},
			{ID: "c2", CreatedAt: now.Add(-20 * time.Minute)},
			{ID: "c3"},
		},
	}
	r := agg.Report(now, snap)

	if r.TotalEvents != 3 || r.RejectedEvents != 1 || r.Disruptions != 1 {
		t.Errorf("totals = %d/%d/%d", r.TotalEvents, r.RejectedEvents, r.Disruptions)
	}
	wantCat := map[string]int{"synchronization": 2, "intelligence_cluster": 1}
	if !reflect.DeepEqual(r.ByCategory, wantCat) {
		t.Errorf("ByCategory = %v, want %v", r.ByCategory, wantCat)
	}
	wantSev := map[string]int{"high": 1, "critical": 1, "low": 1}
	if !reflect.DeepEqual(r.BySeverity, wantSev) {
		t.Errorf("BySeverity = %v, want %v", r.BySeverity, wantSev)
	}
	if r.AverageStrength != 50 {
		t.Errorf("AverageStrength = %v, want 50", r.AverageStrength)
	}
	if r.AverageCoalitionLifespan != 15*time.Minute {
		t.Errorf("AverageCoalitionLifespan = %v, want 15m", r.AverageCoalitionLifespan)
	}
	wantDom := []models.BehaviorCount{
		{Type: models.BehaviorExplorer, Count: 3},
		{Type: models.BehaviorFollower, Count: 2},
		{Type: models.BehaviorLeader, Count: 1},
	}
	if !reflect.DeepEqual(r.DominantBehaviors, wantDom) {
		t.Errorf("DominantBehaviors = %v, want %v", r.DominantBehaviors, wantDom)
	}
}

func TestReport_Trends(t *testing.T) {
	agg, _ := newTestAggregator()
	agg.RecordMetrics(map[string]float64{"coherence": 50, "entanglement": 40, "tunneling": 10})
	agg.RecordMetrics(map[string]float64{"coherence": 53, "entanglement": 30, "tunneling": 20, "bad": math.NaN()})

	r := agg.Report(now, models.Snapshot{})
	tests := []struct {
		metric string
		want   models.Trend
	}{
		{"coherence", models.TrendStable},
		{"entanglement", models.TrendFalling},
		{"tunneling", models.TrendRising},
	}
	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			if got := r.Trends[tt.metric].Trend; got != tt.want {
				t.Errorf("trend = %s, want %s", got, tt.want)
			}
		})
	}
	if r.Trends["coherence"].Mean != 51.5 {
		t.Errorf("coherence mean = %v, want 51.5", r.Trends["coherence"].Mean)
	}
	if r.LatestMetrics["tunneling"] != 20 {
		t.Errorf("latest tunneling = %v, want 20", r.LatestMetrics["tunneling"])
	}
	if _, ok := r.Trends["bad"]; ok {
		t.Error("NaN samples should be ignored")
	}
	if r.MetricSamples != 2 {
		t.Errorf("MetricSamples = %d, want 2", r.MetricSamples)
	}
}

func TestReport_Idempotent(t *testing.T) {
	agg, l := newTestAggregator()
	l.AppendAll([]models.AnalysisEvent{
		{Category: models.CategoryAmplification, Timestamp: start.Add(time.Minute), Strength: 40},
	})
	agg.RecordMetrics(map[string]float64{"coherence": 70})
	snap := models.Snapshot{Agents: population(models.BehaviorLeader, models.BehaviorInnovator)}

	first := agg.Report(now, snap)
	second := agg.Report(now, snap)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reports differ:\n%+v\n%+v", first, second)
	}
}

func TestDataQuality(t *testing.T) {
	healthy := models.Snapshot{Agents: population(models.BehaviorLeader)}
	tests := []struct {
		name     string
		snap     models.Snapshot
		samples  int
		accepted int
		rejected int
		want     float64
	}{
		{"healthy", healthy, 1, 10, 0, 100},
		{"empty population", models.Snapshot{}, 1, 0, 0, 50},
		{"no metrics", healthy, 0, 0, 0, 80},
		{"half rejected", healthy, 1, 5, 5, 85},
		{"out-of-range attributes", models.Snapshot{Agents: []models.Agent{{Trust: 120, Energy: -5}}}, 1, 0, 0, 96},
		{"out-of-range penalty capped", models.Snapshot{Agents: func() []models.Agent {
			bad := make([]models.Agent, 5)
			for i := range bad {
				bad[i] = models.Agent{Trust: 200, Cooperation: 200, Innovation: 200, Energy: 200}
			}
			return bad
		}()}, 1, 0, 0, 70},
		{"bonuses", models.Snapshot{
			Coalitions: []models.Coalition{{ID: "c"}},
			Knowledge:  []models.KnowledgeRecord{{ID: "k"}},
			Phenomena:  []models.Phenomenon{{ID: "p"}},
		}, 0, 0, 0, 45},
		{"bonuses clamp at 100", models.Snapshot{
			Agents:     population(models.BehaviorLeader),
			Coalitions: []models.Coalition{{ID: "c"}},
			Knowledge:  []models.KnowledgeRecord{{ID: "k"}},
		}, 1, 0, 0, 100},
		{"never negative", models.Snapshot{}, 0, 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DataQuality(tt.snap, tt.samples, tt.accepted, tt.rejected)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DataQuality = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfidenceLevel(t *testing.T) {
	tests := []struct {
		name       string
		events     int
		duration   time.Duration
		population int
		quality    float64
		want       float64
	}{
		{"floor", 0, 0, 0, 0, 60},
		{"ceiling", 1000, time.Hour, 500, 100, 95},
		// raw = 60 + 10 + 5 + 4 = 79; 0.5·79 + 0.5·80 = 79.5
		{"blended", 50, 5 * time.Minute, 20, 80, 79.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfidenceLevel(tt.events, tt.duration, tt.population, tt.quality)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConfidenceLevel = %v, want %v", got, tt.want)
			}
		})
	}
}
