package models

import (
	"math"
	"time"
)

// BehaviorType classifies how an agent tends to act within the population.
type BehaviorType string

const (
	BehaviorLeader    BehaviorType = "leader"    // Directs others
	BehaviorFollower  BehaviorType = "follower"  // Aligns with a leader
	BehaviorInnovator BehaviorType = "innovator" // Introduces novelty
	BehaviorMediator  BehaviorType = "mediator"  // Resolves conflict
	BehaviorExplorer  BehaviorType = "explorer"  // Seeks new contacts
)

// BehaviorTypes lists every behavior type in its canonical order. The order
// is used wherever a deterministic tie-break between types is needed.
var BehaviorTypes = []BehaviorType{
	BehaviorLeader,
	BehaviorFollower,
	BehaviorInnovator,
	BehaviorMediator,
	BehaviorExplorer,
}

// IsValid reports whether b is one of the known behavior types.
func (b BehaviorType) IsValid() bool {
	for _, t := range BehaviorTypes {
		if b == t {
			return true
		}
	}
	return false
}

// Position is a point on the simulation plane.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Agent is one simulated social entity. Agents are owned by the external
// simulation; the analytics core only ever reads them.
type Agent struct {
	ID       string   `json:"id" yaml:"id"`
	Position Position `json:"position" yaml:"position"`

	// Core attributes, each in [0, 100].
	Trust       float64 `json:"trust" yaml:"trust"`
	Cooperation float64 `json:"cooperation" yaml:"cooperation"`
	Innovation  float64 `json:"innovation" yaml:"innovation"`
	Energy      float64 `json:"energy" yaml:"energy"`

	// Optional attributes. Zero when the simulation does not track them.
	StressLevel       float64 `json:"stress_level,omitempty" yaml:"stress_level,omitempty"`
	Influence         float64 `json:"influence,omitempty" yaml:"influence,omitempty"`
	AdaptabilityScore float64 `json:"adaptability_score,omitempty" yaml:"adaptability_score,omitempty"`

	BehaviorType BehaviorType `json:"behavior_type" yaml:"behavior_type"`

	// Relationships maps another agent's ID to a strength in [0, 100].
	// The mapping is asymmetric: a's view of b need not match b's view of a.
	Relationships map[string]float64 `json:"relationships,omitempty" yaml:"relationships,omitempty"`

	// CoalitionID is a back-reference to the coalition the agent belongs to.
	CoalitionID string `json:"coalition_id,omitempty" yaml:"coalition_id,omitempty"`
}

// CoreAttributes returns trust, cooperation, innovation and energy in that order.
func (a Agent) CoreAttributes() [4]float64 {
	return [4]float64{a.Trust, a.Cooperation, a.Innovation, a.Energy}
}

// RelationshipTo returns a's relationship strength toward id, or 0.
func (a Agent) RelationshipTo(id string) float64 {
	if a.Relationships == nil {
		return 0
	}
	return a.Relationships[id]
}

// OutOfRangeAttributes counts attributes that fall outside [0, 100].
func (a Agent) OutOfRangeAttributes() int {
	n := 0
	for _, v := range a.CoreAttributes() {
		if !InPercentRange(v) {
			n++
		}
	}
	for _, v := range []float64{a.StressLevel, a.Influence, a.AdaptabilityScore} {
		if !InPercentRange(v) {
			n++
		}
	}
	return n
}

// Coalition is a named group of agents formed by the simulation.
type Coalition struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Members   []string  `json:"members" yaml:"members"`
	Cohesion  float64   `json:"cohesion" yaml:"cohesion"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	LeaderID  string    `json:"leader_id,omitempty" yaml:"leader_id,omitempty"`
}

// Distance returns the Euclidean distance between two agents.
func Distance(a, b Agent) float64 {
	return PointDistance(a.Position, b.Position)
}

// PointDistance returns the Euclidean distance between two positions.
func PointDistance(p, q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// IndexAgents returns a lookup of agents keyed by ID.
func IndexAgents(agents []Agent) map[string]Agent {
	byID := make(map[string]Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	return byID
}
