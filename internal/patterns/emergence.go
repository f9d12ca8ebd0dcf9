package patterns

import (
	"fmt"
	"sort"
	"time"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/models"
)

// EmergenceType names the organizational form a group of agents shows.
type EmergenceType string

const (
	EmergenceHierarchical EmergenceType = "hierarchical"
	EmergenceDistributed  EmergenceType = "distributed"
	EmergenceCollective   EmergenceType = "collective"
	EmergenceSwarm        EmergenceType = "swarm"
	EmergenceHybrid       EmergenceType = "hybrid"
)

// emergenceRule ties an emergence type to the behavior type whose share drives
// it and the minimum share required.
type emergenceRule struct {
	kind     EmergenceType
	behavior models.BehaviorType
	minShare float64
}

// emergenceRules is ordered by tie-break priority.
var emergenceRules = []emergenceRule{
	{EmergenceHierarchical, models.BehaviorLeader, 0.20},
	{EmergenceDistributed, models.BehaviorInnovator, 0.25},
	{EmergenceCollective, models.BehaviorMediator, 0.25},
	{EmergenceSwarm, models.BehaviorFollower, 0.35},
	{EmergenceHybrid, models.BehaviorExplorer, 0},
}

// ClassifyEmergence picks the emergence type for a set of agents. Among the
// rules whose share threshold is met, the one whose behavior type is most
// common wins; ties go to the earlier rule. Hybrid always qualifies, so an
// empty or evenly mixed set falls through to it.
func ClassifyEmergence(agents []models.Agent) (EmergenceType, map[models.BehaviorType]float64) {
	shares := make(map[models.BehaviorType]float64, len(models.BehaviorTypes))
	if len(agents) == 0 {
		return EmergenceHybrid, shares
	}
	for _, a := range agents {
		shares[a.BehaviorType]++
	}
	for t := range shares {
		shares[t] /= float64(len(agents))
	}

	best := EmergenceHybrid
	bestShare := -1.0
	for _, r := range emergenceRules {
		share := shares[r.behavior]
		if share < r.minShare {
			continue
		}
		if share > bestShare {
			best, bestShare = r.kind, share
		}
	}
	return best, shares
}

// Cluster is an accepted intelligence cluster.
type Cluster struct {
	AnchorID          string
	Members           []string // anchor first
	IntelligenceLevel float64
	Emergence         EmergenceType
}

// FindClusters scans anchors in id order and grows a cluster from each
// unassigned anchor. A member candidate must be unassigned, related to the
// anchor above the relationship threshold, closer than proximity, and
// innovative or cooperative enough. Clusters need MinClusterMembers members
// besides the anchor and a mean intelligence above MinIntelligenceLevel.
// Accepted agents are never reused, so clusters partition the population.
func FindClusters(agents []models.Agent, proximity float64) []Cluster {
	ordered := append([]models.Agent(nil), agents...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	assigned := make(map[string]bool)
	var clusters []Cluster

	for _, anchor := range ordered {
		if assigned[anchor.ID] {
			continue
		}

		var members []models.Agent
		for _, cand := range ordered {
			if cand.ID == anchor.ID || assigned[cand.ID] {
				continue
			}
			if qualifies(anchor, cand, proximity) {
				members = append(members, cand)
			}
		}
		if len(members) < constants.MinClusterMembers {
			continue
		}

		all := append([]models.Agent{anchor}, members...)
		level := intelligenceLevel(all)
		if level <= constants.MinIntelligenceLevel {
			continue
		}

		ids := make([]string, len(all))
		for i, a := range all {
			ids[i] = a.ID
			assigned[a.ID] = true
		}
		kind, _ := ClassifyEmergence(all)
		clusters = append(clusters, Cluster{
			AnchorID:          anchor.ID,
			Members:           ids,
			IntelligenceLevel: level,
			Emergence:         kind,
		})
	}
	return clusters
}

func qualifies(anchor, cand models.Agent, proximity float64) bool {
	if anchor.RelationshipTo(cand.ID) <= constants.ClusterRelationshipThreshold {
		return false
	}
	if models.Distance(anchor, cand) >= proximity {
		return false
	}
	return cand.Innovation > constants.ClusterInnovationBar || cand.Cooperation > constants.ClusterCooperationBar
}

// intelligenceLevel is the mean over agents of mean(innovation, cooperation).
func intelligenceLevel(agents []models.Agent) float64 {
	if len(agents) == 0 {
		return 0
	}
	total := 0.0
	for _, a := range agents {
		total += (a.Innovation + a.Cooperation) / 2
	}
	return total / float64(len(agents))
}

// DetectEmergence reports intelligence clusters and the population-wide
// emergence type. At most MaxEmergenceEvents are returned, strongest first.
func DetectEmergence(snap models.Snapshot, proximity float64, now time.Time) []models.AnalysisEvent {
	var events []models.AnalysisEvent

	for i, c := range FindClusters(snap.Agents, proximity) {
		strength := models.ClampPercent(c.IntelligenceLevel)
		events = append(events, models.AnalysisEvent{
			Timestamp: now,
			Category:  models.CategoryIntelligenceCluster,
			Subtype:   string(c.Emergence),
			Severity:  models.SeverityFor(strength),
			Strength:  strength,
			AgentIDs:  c.Members,
			GroupIDs:  []string{fmt.Sprintf("cluster-%d", i+1)},
			Metrics: map[string]float64{
				"intelligence_level": c.IntelligenceLevel,
				"size":               float64(len(c.Members)),
			},
			Probability: constants.ClusterProbability,
			Description: fmt.Sprintf("%s intelligence cluster anchored by %s", c.Emergence, c.AnchorID),
		})
	}

	if len(snap.Agents) >= constants.MinEmergencePopulation {
		kind, shares := ClassifyEmergence(snap.Agents)
		metrics := make(map[string]float64, len(shares))
		for t, s := range shares {
			metrics["share_"+string(t)] = s
		}
		strength := dominantShare(kind, shares) * 100
		events = append(events, models.AnalysisEvent{
			Timestamp:   now,
			Category:    models.CategoryBehaviorEmergence,
			Subtype:     string(kind),
			Severity:    models.SeverityFor(strength),
			Strength:    strength,
			Metrics:     metrics,
			Probability: constants.EmergenceProbability,
			Description: fmt.Sprintf("population shows %s organization", kind),
		})
	}

	return capByStrength(events, constants.MaxEmergenceEvents)
}

func dominantShare(kind EmergenceType, shares map[models.BehaviorType]float64) float64 {
	for _, r := range emergenceRules {
		if r.kind == kind {
			return shares[r.behavior]
		}
	}
	return 0
}
