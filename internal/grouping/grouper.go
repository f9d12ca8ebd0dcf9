// Package grouping partitions a population into connected groups. Agents are
// nodes of an implicit graph; an edge exists when two agents are close enough
// (Group) or related strongly enough (GroupByRelationship). Components are
// found with an explicit queue so traversal depth never depends on population size.
package grouping

import (
	"fmt"
	"sort"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/models"
)

// Group returns the connected components of the graph linking every pair of
// agents closer than maxDistance. Components smaller than two are dropped.
// Neither the order of groups nor the order of members is part of the contract.
func Group(agents []models.Agent, maxDistance float64) [][]string {
	if len(agents) < constants.MinGroupSize || maxDistance <= 0 {
		return nil
	}
	idx := NewIndex(agents, maxDistance)
	return components(agents, func(i int) []int {
		return idx.Neighbors(i, maxDistance)
	})
}

// GroupByRelationship returns the connected components of the graph linking
// two agents when either holds a relationship of at least minStrength toward
// the other. Relationships pointing at agents outside the slice are ignored.
func GroupByRelationship(agents []models.Agent, minStrength float64) [][]string {
	if len(agents) < constants.MinGroupSize {
		return nil
	}

	pos := make(map[string]int, len(agents))
	for i, a := range agents {
		pos[a.ID] = i
	}

	// Symmetrize: an edge in either direction links both agents.
	adj := make([][]int, len(agents))
	for i, a := range agents {
		for otherID, strength := range a.Relationships {
			j, ok := pos[otherID]
			if !ok || j == i || strength < minStrength {
				continue
			}
			adj[i] = append(adj[i], j)
			adj[j] = append(adj[j], i)
		}
	}

	return components(agents, func(i int) []int { return adj[i] })
}

// components runs a breadth-first flood fill from every unvisited agent.
func components(agents []models.Agent, neighbors func(int) []int) [][]string {
	visited := make([]bool, len(agents))
	var groups [][]string

	for start := range agents {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []int{start}
		var members []string

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			members = append(members, agents[cur].ID)

			for _, n := range neighbors(cur) {
				if visited[n] {
					continue
				}
				visited[n] = true
				queue = append(queue, n)
			}
		}

		if len(members) >= constants.MinGroupSize {
			groups = append(groups, members)
		}
	}
	return groups
}

// ToDerived wraps raw components as derived groups with ids of the form
// "<source>-<n>". Members are sorted so ids stay meaningful across passes
// with the same membership.
func ToDerived(groups [][]string, source string) []models.DerivedGroup {
	out := make([]models.DerivedGroup, 0, len(groups))
	for i, g := range groups {
		members := append([]string(nil), g...)
		sort.Strings(members)
		out = append(out, models.DerivedGroup{
			ID:      fmt.Sprintf("%s-%d", source, i+1),
			Source:  source,
			Members: members,
		})
	}
	return out
}

// FromCoalitions turns coalitions with at least two members into derived groups.
func FromCoalitions(coalitions []models.Coalition) []models.DerivedGroup {
	var out []models.DerivedGroup
	for _, c := range coalitions {
		if len(c.Members) < constants.MinGroupSize {
			continue
		}
		members := append([]string(nil), c.Members...)
		sort.Strings(members)
		out = append(out, models.DerivedGroup{
			ID:      "coalition-" + c.ID,
			Source:  "coalition",
			Members: members,
		})
	}
	return out
}
