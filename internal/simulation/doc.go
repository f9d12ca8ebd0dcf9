// Package simulation provides a multi-tick test harness for validating the
// dynamics of the analysis engine.
//
// The harness exercises the real engine: grouping, relational metrics,
// pattern detection, the disruption controller, the event log and the
// session aggregator. No mocks. Scenarios either script a snapshot per tick
// or let the seeded demo world evolve, and the runner advances a fake clock
// so every run is deterministic.
//
// Usage:
//
//	func TestCalmPopulation(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:      "calm",
//	        Snapshots: simulation.Repeat(40, simulation.CalmPopulation(8)),
//	        Every:     5 * time.Second,
//	    })
//	    simulation.AssertDisruptionEmitted(t, result, "resilience_challenge")
//	}
package simulation
