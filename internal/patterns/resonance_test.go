package patterns

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/nvandessel/socioscope/internal/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func field(id string, freq, phase, amp float64) models.Field {
	return models.Field{
		ID:        "field-" + id,
		GroupID:   id,
		Members:   []string{id + "-m"},
		Frequency: freq,
		Phase:     phase,
		Amplitude: amp,
	}
}

func categories(events []models.AnalysisEvent) []models.EventCategory {
	out := make([]models.EventCategory, len(events))
	for i, e := range events {
		out[i] = e.Category
	}
	return out
}

func TestClassifyPair(t *testing.T) {
	tests := []struct {
		name     string
		f1, f2   models.Field
		want     []models.EventCategory
		strength []float64
	}{
		{
			name: "synchronization and amplification at equal frequency",
			f1:   field("a", 1.0, 0.1, 60),
			f2:   field("b", 1.0, 0.3, 40),
			want: []models.EventCategory{models.CategorySynchronization, models.CategoryAmplification},
			// 100 - (0 + 50*0.2) = 90; mean(60, 40) = 50
			strength: []float64{90, 50},
		},
		{
			name:     "interference with opposite phase",
			f1:       field("a", 1.00, 0, 30),
			f2:       field("b", 1.02, math.Pi, 30),
			want:     []models.EventCategory{models.CategoryInterference, models.CategoryAmplification},
			strength: []float64{60, 30},
		},
		{
			name:     "harmonic ratio only",
			f1:       field("a", 1.0, 0, 70),
			f2:       field("b", 2.05, 2, 50),
			want:     []models.EventCategory{models.CategoryAmplification},
			strength: []float64{60},
		},
		{
			name: "no pattern",
			f1:   field("a", 1.0, 0, 70),
			f2:   field("b", 1.5, 2, 50),
			want: []models.EventCategory{},
		},
		{
			name: "phase gap between rules",
			f1:   field("a", 1.0, 0, 0),
			f2:   field("b", 1.7, math.Pi/2, 0),
			want: []models.EventCategory{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyPair(tt.f1, tt.f2, testNow)
			if !reflect.DeepEqual(categories(got), tt.want) {
				t.Fatalf("categories = %v, want %v", categories(got), tt.want)
			}
			for i, s := range tt.strength {
				if math.Abs(got[i].Strength-s) > 1e-6 {
					t.Errorf("%s strength = %f, want %f", got[i].Category, got[i].Strength, s)
				}
			}
		})
	}
}

func TestClassifyPair_Metadata(t *testing.T) {
	events := classifyPair(field("a", 1.0, 0.1, 60), field("b", 1.0, 0.2, 60), testNow)
	if len(events) == 0 {
		t.Fatal("expected events")
	}
	e := events[0]
	if e.Probability != 0.85 {
		t.Errorf("Probability = %f, want 0.85", e.Probability)
	}
	if !reflect.DeepEqual(e.FieldIDs, []string{"field-a", "field-b"}) {
		t.Errorf("FieldIDs = %v", e.FieldIDs)
	}
	if !reflect.DeepEqual(e.AgentIDs, []string{"a-m", "b-m"}) {
		t.Errorf("AgentIDs = %v", e.AgentIDs)
	}
	if !e.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp, testNow)
	}
}

func TestHarmonicRatio(t *testing.T) {
	tests := []struct {
		f1, f2 float64
		want   float64
		ok     bool
	}{
		{1, 1, 1, true},
		{1, 2, 2, true},
		{3.05, 1, 3, true},
		{1.5, 1, 0, false},
		{1, 0, 0, false},
		{-1, 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f/%.2f", tt.f1, tt.f2), func(t *testing.T) {
			got, ok := harmonicRatio(tt.f1, tt.f2)
			if ok != tt.ok || got != tt.want {
				t.Errorf("harmonicRatio = (%f, %v), want (%f, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDetectResonance_Deterministic(t *testing.T) {
	fields := []models.Field{
		field("a", 1.00, 0.2, 50),
		field("b", 1.03, 0.4, 70),
		field("c", 2.01, 3.5, 20),
		field("d", 1.01, 3.4, 90),
	}
	first := DetectResonance(fields, testNow)
	for i := 0; i < 10; i++ {
		again := DetectResonance(fields, testNow)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d produced a different pattern set", i)
		}
	}
}

func TestDetectResonance_CapsAtTwenty(t *testing.T) {
	var fields []models.Field
	for i := 0; i < 10; i++ {
		// Equal frequencies and phases: every pair synchronizes and amplifies.
		fields = append(fields, field(fmt.Sprintf("g%d", i), 1.0, 0, float64(i*10)))
	}

	events := DetectResonance(fields, testNow)
	if len(events) != 20 {
		t.Fatalf("len(events) = %d, want 20", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Strength > events[i-1].Strength {
			t.Fatalf("events not ordered by strength at %d", i)
		}
	}
	// 45 synchronization events at strength 100 exist, so the cap keeps only those.
	for _, e := range events {
		if e.Category != models.CategorySynchronization {
			t.Errorf("weaker %s event survived the cap", e.Category)
		}
	}
}

func TestDetectResonance_FewerThanTwoFields(t *testing.T) {
	if got := DetectResonance(nil, testNow); len(got) != 0 {
		t.Errorf("nil fields produced %d events", len(got))
	}
	if got := DetectResonance([]models.Field{field("a", 1, 0, 50)}, testNow); len(got) != 0 {
		t.Errorf("single field produced %d events", len(got))
	}
}
