package simulation

import (
	"fmt"
	"time"

	"github.com/nvandessel/socioscope/internal/models"
)

// AgentSpec is a compact way to declare an agent for a scripted snapshot.
type AgentSpec struct {
	ID       string
	X, Y     float64
	Behavior models.BehaviorType

	Trust, Cooperation, Innovation, Energy float64
	Stress                                 float64

	// Ties maps another agent's ID to a relationship strength.
	Ties map[string]float64
}

// ToAgent builds the models.Agent s describes.
func (s AgentSpec) ToAgent() models.Agent {
	behavior := s.Behavior
	if behavior == "" {
		behavior = models.BehaviorFollower
	}
	rels := make(map[string]float64, len(s.Ties))
	for id, v := range s.Ties {
		rels[id] = v
	}
	return models.Agent{
		ID:            s.ID,
		Position:      models.Position{X: s.X, Y: s.Y},
		Trust:         s.Trust,
		Cooperation:   s.Cooperation,
		Innovation:    s.Innovation,
		Energy:        s.Energy,
		StressLevel:   s.Stress,
		BehaviorType:  behavior,
		Relationships: rels,
	}
}

// Population builds a snapshot from agent specs.
func Population(stability float64, specs ...AgentSpec) models.Snapshot {
	agents := make([]models.Agent, len(specs))
	for i, s := range specs {
		agents[i] = s.ToAgent()
	}
	return models.Snapshot{Agents: agents, Stability: stability}
}

// CalmPopulation returns n identical, tightly packed agents in a stable,
// low-stress society with no coalitions. It invites a resilience challenge.
func CalmPopulation(n int) models.Snapshot {
	specs := make([]AgentSpec, n)
	for i := range specs {
		specs[i] = AgentSpec{
			ID:          fmt.Sprintf("calm-%02d", i),
			X:           100 + float64(i),
			Y:           100,
			Behavior:    models.BehaviorMediator,
			Trust:       90,
			Cooperation: 85,
			Innovation:  50,
			Energy:      80,
			Stress:      10,
		}
	}
	return Population(90, specs...)
}

// StressedPopulation returns n scattered, stressed agents in an unstable
// society with several active disruptions. It should suppress disruptions.
func StressedPopulation(n int) models.Snapshot {
	specs := make([]AgentSpec, n)
	for i := range specs {
		specs[i] = AgentSpec{
			ID:          fmt.Sprintf("tense-%02d", i),
			X:           float64(i) * 150,
			Y:           float64(i%3) * 150,
			Behavior:    models.BehaviorTypes[i%len(models.BehaviorTypes)],
			Trust:       20,
			Cooperation: 25,
			Innovation:  30,
			Energy:      40,
			Stress:      85,
		}
	}
	snap := Population(30, specs...)
	for i := 0; i < 3; i++ {
		snap.ActiveDisruptions = append(snap.ActiveDisruptions, models.ActiveDisruption{
			ID:        fmt.Sprintf("ongoing-%d", i),
			Type:      "environmental_stimulation",
			Intensity: 50,
			StartedAt: SimStart,
			Duration:  time.Hour,
		})
	}
	return snap
}

// InnovatorCluster returns a tight, highly innovative and cooperative group
// of n innovators whose mutual ties are all strong.
func InnovatorCluster(n int) models.Snapshot {
	specs := make([]AgentSpec, n)
	for i := range specs {
		ties := make(map[string]float64, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				ties[fmt.Sprintf("inno-%02d", j)] = 80
			}
		}
		specs[i] = AgentSpec{
			ID:          fmt.Sprintf("inno-%02d", i),
			X:           200 + float64(i)*5,
			Y:           200,
			Behavior:    models.BehaviorInnovator,
			Trust:       70,
			Cooperation: 85,
			Innovation:  90,
			Energy:      75,
			Stress:      30,
			Ties:        ties,
		}
	}
	return Population(60, specs...)
}

// WithCoalitions adds k placeholder coalitions to snap.
func WithCoalitions(snap models.Snapshot, k int) models.Snapshot {
	snap.Coalitions = make([]models.Coalition, k)
	for i := range snap.Coalitions {
		snap.Coalitions[i] = models.Coalition{
			ID:        fmt.Sprintf("coalition-%d", i),
			Name:      fmt.Sprintf("Coalition %d", i),
			CreatedAt: SimStart,
		}
	}
	return snap
}

// Repeat returns n copies of snap, one per tick.
func Repeat(n int, snap models.Snapshot) []models.Snapshot {
	out := make([]models.Snapshot, n)
	for i := range out {
		out[i] = snap
	}
	return out
}
