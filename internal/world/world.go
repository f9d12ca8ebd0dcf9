// Package world is a small seeded demo population for running the analysis
// engine without an external simulation. It drifts agents, applies emitted
// disruptions over their duration and forms coalitions from strong
// relationships. It makes no claim to social realism.
package world

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/nvandessel/socioscope/internal/grouping"
	"github.com/nvandessel/socioscope/internal/models"
)

const (
	// coalitionStrength is the relationship strength that binds a coalition.
	coalitionStrength = 60.0
	// minCoalitionSize is the smallest relationship group kept as a coalition.
	minCoalitionSize = 3
	// contactRange is the distance within which agents strengthen ties.
	contactRange = 60.0
	// maxKnowledge bounds the knowledge records kept in memory.
	maxKnowledge = 200
)

// Config describes a demo population.
type Config struct {
	Population int
	Seed       uint64
	Width      float64
	Height     float64
}

type active struct {
	event   models.DisruptiveEvent
	started time.Time
}

// World is a mutable demo population. It is safe for concurrent use.
type World struct {
	mu sync.Mutex

	rng    *rand.Rand
	width  float64
	height float64

	agents     []models.Agent
	coalitions []models.Coalition
	active     []active
	knowledge  []models.KnowledgeRecord
	phenomena  []models.Phenomenon

	stability  float64
	generation int
	last       time.Time
}

// New seeds a population at time now. The same seed always yields the same
// population.
func New(cfg Config, now time.Time) *World {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	w := &World{
		rng:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		width:     cfg.Width,
		height:    cfg.Height,
		stability: 70,
		last:      now,
	}

	w.agents = make([]models.Agent, cfg.Population)
	for i := range w.agents {
		w.agents[i] = models.Agent{
			ID:                fmt.Sprintf("agent-%03d", i+1),
			Position:          models.Position{X: w.rng.Float64() * w.width, Y: w.rng.Float64() * w.height},
			Trust:             w.between(30, 90),
			Cooperation:       w.between(30, 90),
			Innovation:        w.between(20, 90),
			Energy:            w.between(40, 100),
			StressLevel:       w.between(5, 40),
			Influence:         w.between(0, 100),
			AdaptabilityScore: w.between(20, 80),
			BehaviorType:      models.BehaviorTypes[w.rng.IntN(len(models.BehaviorTypes))],
			Relationships:     make(map[string]float64),
		}
	}
	if n := len(w.agents); n > 1 {
		for i := range w.agents {
			for k := 0; k < 3; k++ {
				j := w.rng.IntN(n)
				if j == i {
					continue
				}
				w.agents[i].Relationships[w.agents[j].ID] = w.between(20, 100)
			}
		}
	}
	w.formCoalitions(now)
	return w
}

func (w *World) between(lo, hi float64) float64 {
	return lo + w.rng.Float64()*(hi-lo)
}

// Apply starts a disruption. Its effects are spread evenly over its duration.
func (w *World) Apply(ev models.DisruptiveEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := ev.CreatedAt
	if started.IsZero() {
		started = w.last
	}
	w.active = append(w.active, active{event: ev, started: started})
}

// Publish implements engine.Sink so emitted disruptions flow back into the
// population. Other topics are ignored.
func (w *World) Publish(topic string, payload any) {
	if topic != "disruption" {
		return
	}
	switch ev := payload.(type) {
	case models.DisruptiveEvent:
		w.Apply(ev)
	case *models.DisruptiveEvent:
		if ev != nil {
			w.Apply(*ev)
		}
	}
}

// Step advances the population to now. Calls with a time at or before the
// previous step are ignored.
func (w *World) Step(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !now.After(w.last) {
		return
	}
	from := w.last
	w.last = now
	w.generation++

	for i := range w.agents {
		w.drift(&w.agents[i])
	}
	w.applyDisruptions(from, now)
	w.updateRelationships()
	w.formCoalitions(now)
	w.discover(now)

	mean := 0.0
	for _, a := range w.agents {
		mean += a.StressLevel
	}
	if len(w.agents) > 0 {
		mean /= float64(len(w.agents))
	}
	intensity := 0.0
	for _, d := range w.active {
		intensity += d.event.Intensity
	}
	target := models.ClampPercent(100 - 0.6*mean - 0.3*intensity + 2*float64(len(w.coalitions)))
	w.stability += (target - w.stability) * 0.3
}

func (w *World) drift(a *models.Agent) {
	a.Position.X = models.Clamp(a.Position.X+(w.rng.Float64()-0.5)*10, 0, w.width)
	a.Position.Y = models.Clamp(a.Position.Y+(w.rng.Float64()-0.5)*10, 0, w.height)
	a.Trust = models.ClampPercent(a.Trust + (w.rng.Float64()-0.5)*2)
	a.Cooperation = models.ClampPercent(a.Cooperation + (w.rng.Float64()-0.5)*2)
	a.Innovation = models.ClampPercent(a.Innovation + (w.rng.Float64()-0.5)*2)
	a.Energy = models.ClampPercent(a.Energy + (w.rng.Float64()-0.5)*2)
	// Stress relaxes toward 20.
	a.StressLevel = models.ClampPercent(a.StressLevel + (20-a.StressLevel)*0.05)
}

// applyDisruptions applies the share of each active disruption that falls
// in (from, to] and drops the ones that have run their course.
func (w *World) applyDisruptions(from, to time.Time) {
	kept := w.active[:0]
	for _, d := range w.active {
		end := d.started.Add(d.event.Duration)
		lo, hi := from, to
		if d.started.After(lo) {
			lo = d.started
		}
		if end.Before(hi) {
			hi = end
		}
		if hi.After(lo) && d.event.Duration > 0 {
			frac := float64(hi.Sub(lo)) / float64(d.event.Duration)
			e := d.event.Effects
			for i := range w.agents {
				a := &w.agents[i]
				a.Trust = models.ClampPercent(a.Trust + e.Trust*frac)
				a.Energy = models.ClampPercent(a.Energy + e.Energy*frac)
				a.Cooperation = models.ClampPercent(a.Cooperation + e.Cooperation*frac)
				a.Innovation = models.ClampPercent(a.Innovation + e.Innovation*frac)
				a.StressLevel = models.ClampPercent(a.StressLevel + d.event.Intensity*frac*0.5)
			}
		}
		if end.After(to) {
			kept = append(kept, d)
		}
	}
	w.active = kept
}

// updateRelationships strengthens ties between nearby agents and lets
// distant ties fade.
func (w *World) updateRelationships() {
	idx := grouping.NewIndex(w.agents, contactRange)
	near := make([]map[int]bool, len(w.agents))
	for i := range w.agents {
		near[i] = make(map[int]bool)
		for _, j := range idx.Neighbors(i, contactRange) {
			near[i][j] = true
		}
	}
	pos := make(map[string]int, len(w.agents))
	for i, a := range w.agents {
		pos[a.ID] = i
	}

	for i := range w.agents {
		a := &w.agents[i]
		if a.Relationships == nil {
			a.Relationships = make(map[string]float64)
		}
		for id, s := range a.Relationships {
			if j, ok := pos[id]; ok && near[i][j] {
				a.Relationships[id] = models.ClampPercent(s + 1)
			} else {
				a.Relationships[id] = models.ClampPercent(s - 0.2)
			}
		}
		for j := range near[i] {
			id := w.agents[j].ID
			if _, ok := a.Relationships[id]; !ok {
				a.Relationships[id] = 30
			}
		}
	}
}

// formCoalitions rebuilds coalitions from relationship groups. A coalition
// keeps its id and creation time while its lowest member id is unchanged.
func (w *World) formCoalitions(now time.Time) {
	prev := make(map[string]models.Coalition, len(w.coalitions))
	for _, c := range w.coalitions {
		prev[c.ID] = c
	}
	byID := models.IndexAgents(w.agents)

	var coalitions []models.Coalition
	for _, g := range grouping.GroupByRelationship(w.agents, coalitionStrength) {
		if len(g) < minCoalitionSize {
			continue
		}
		sort.Strings(g)
		c := models.Coalition{
			ID:        "coalition-" + g[0],
			Name:      fmt.Sprintf("Coalition %s", g[0]),
			Members:   g,
			CreatedAt: now,
		}
		if old, ok := prev[c.ID]; ok {
			c.CreatedAt = old.CreatedAt
			c.Name = old.Name
		} else if w.generation > 0 {
			w.phenomena = append(w.phenomena, models.Phenomenon{
				ID:         fmt.Sprintf("phenomenon-%d", len(w.phenomena)+1),
				Kind:       "coalition_formed",
				ObservedAt: now,
			})
		}

		bestInfluence := -1.0
		total, pairs := 0.0, 0
		for _, id := range g {
			a := byID[id]
			if a.Influence > bestInfluence {
				bestInfluence, c.LeaderID = a.Influence, id
			}
			for _, other := range g {
				if other != id {
					total += a.RelationshipTo(other)
					pairs++
				}
			}
		}
		if pairs > 0 {
			c.Cohesion = total / float64(pairs)
		}
		coalitions = append(coalitions, c)
	}

	member := make(map[string]string)
	for _, c := range coalitions {
		for _, id := range c.Members {
			member[id] = c.ID
		}
	}
	for i := range w.agents {
		w.agents[i].CoalitionID = member[w.agents[i].ID]
	}
	w.coalitions = coalitions
}

// discover lets highly innovative agents add knowledge records.
func (w *World) discover(now time.Time) {
	for _, a := range w.agents {
		if a.Innovation <= 85 || w.rng.Float64() >= 0.05 {
			continue
		}
		w.knowledge = append(w.knowledge, models.KnowledgeRecord{
			ID:        fmt.Sprintf("knowledge-%d-%s", w.generation, a.ID),
			Topic:     string(a.BehaviorType),
			CreatedAt: now,
		})
	}
	if over := len(w.knowledge) - maxKnowledge; over > 0 {
		w.knowledge = append([]models.KnowledgeRecord(nil), w.knowledge[over:]...)
	}
}

// Snapshot returns a deep copy of the current population.
func (w *World) Snapshot() models.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	agents := make([]models.Agent, len(w.agents))
	for i, a := range w.agents {
		rel := make(map[string]float64, len(a.Relationships))
		for k, v := range a.Relationships {
			rel[k] = v
		}
		a.Relationships = rel
		agents[i] = a
	}

	coalitions := make([]models.Coalition, len(w.coalitions))
	for i, c := range w.coalitions {
		c.Members = append([]string(nil), c.Members...)
		coalitions[i] = c
	}

	disruptions := make([]models.ActiveDisruption, len(w.active))
	for i, d := range w.active {
		disruptions[i] = models.ActiveDisruption{
			ID:        d.event.ID,
			Type:      d.event.Type,
			Intensity: d.event.Intensity,
			StartedAt: d.started,
			Duration:  d.event.Duration,
		}
	}

	return models.Snapshot{
		Agents:            agents,
		Coalitions:        coalitions,
		ActiveDisruptions: disruptions,
		Stability:         w.stability,
		Generation:        w.generation,
		Knowledge:         append([]models.KnowledgeRecord(nil), w.knowledge...),
		Phenomena:         append([]models.Phenomenon(nil), w.phenomena...),
		TakenAt:           w.last,
	}
}
