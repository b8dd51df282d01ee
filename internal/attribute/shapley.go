// Package attribute quantifies causal contributions: per-edge arrow strength,
// intrinsic causal influence of upstream noise terms, and anomaly attribution.
// The two Shapley-style decompositions share a randomized permutation
// estimator, since exact Shapley values are exponential in the player count.
package attribute

import (
	"math/rand"
)

// Payoff evaluates one coalition, given as a membership set over players.
type Payoff func(coalition map[string]bool) float64

// ShapleyEstimate produces unbiased Monte-Carlo Shapley values by sampling
// player permutations: within each permutation, a player is credited with the
// marginal payoff change of joining the coalition of its predecessors.
func ShapleyEstimate(players []string, payoff Payoff, permutations int, rng *rand.Rand) map[string]float64 {
	values := make(map[string]float64, len(players))
	if len(players) == 0 || permutations <= 0 {
		return values
	}

	coalition := make(map[string]bool, len(players))
	for p := 0; p < permutations; p++ {
		for k := range coalition {
			delete(coalition, k)
		}
		prev := payoff(coalition)
		for _, i := range rng.Perm(len(players)) {
			player := players[i]
			coalition[player] = true
			cur := payoff(coalition)
			values[player] += cur - prev
			prev = cur
		}
	}
	for player := range values {
		values[player] /= float64(permutations)
	}
	return values
}
