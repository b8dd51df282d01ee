package attribute

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"gocause/internal/errors"
	"gocause/internal/mechanism"
	"gocause/internal/scm"
)

// IntrinsicOptions tunes the intrinsic causal influence estimate.
type IntrinsicOptions struct {
	// NumSamplesRandomization is the number of noise draws used per
	// coalition payoff evaluation.
	NumSamplesRandomization int
	// NumPermutations is the number of player permutations sampled for the
	// Shapley estimate.
	NumPermutations int
}

const (
	defaultNoiseDraws   = 500
	defaultPermutations = 10
)

// IntrinsicInfluence decomposes the target's uncertainty over the private
// noise terms of its ancestors and of the target itself. The Shapley game
// ranges over coalitions of noise terms allowed to vary; noise outside the
// coalition stays pinned at a single reference draw. The payoff is the
// variance of the target under ancestral replay, so each node is credited
// with the share of target variability its own noise is responsible for,
// as opposed to variability merely inherited from upstream.
func IntrinsicInfluence(m *scm.SCM, target string, opts IntrinsicOptions, rng *rand.Rand) (map[string]float64, error) {
	if _, ok := m.Node(target); !ok {
		return nil, errors.NotFound(fmt.Sprintf("target node %q", target))
	}
	numDraws := opts.NumSamplesRandomization
	if numDraws <= 0 {
		numDraws = defaultNoiseDraws
	}
	permutations := opts.NumPermutations
	if permutations <= 0 {
		permutations = defaultPermutations
	}

	players := append(m.Graph().Ancestors(target), target)

	// Pre-draw the noise populations once; every payoff evaluation replays
	// the same draws so coalition differences are the only signal.
	draws := make(map[string][]float64, len(players))
	reference := make(map[string]float64, len(players))
	replay := make(map[string]mechanism.Invertible, len(players))
	for _, node := range players {
		nm, _ := m.Node(node)
		inv, ok := nm.Mech.(mechanism.Invertible)
		if !ok {
			return nil, errors.MechanismNotInvertible(fmt.Sprintf("mechanism of node %q cannot replay a fixed noise term", node))
		}
		sampler, ok := nm.Mech.(mechanism.NoiseSampler)
		if !ok {
			return nil, errors.MechanismNotInvertible(fmt.Sprintf("mechanism of node %q does not expose its noise distribution", node))
		}
		replay[node] = inv
		nodeDraws := make([]float64, numDraws)
		for k := range nodeDraws {
			nodeDraws[k] = sampler.DrawNoise(rng)
		}
		draws[node] = nodeDraws
		reference[node] = sampler.DrawNoise(rng)
	}

	values := make(map[string]float64, len(players))
	targetSamples := make([]float64, numDraws)
	payoff := func(coalition map[string]bool) float64 {
		for k := 0; k < numDraws; k++ {
			for _, node := range players {
				nm, _ := m.Node(node)
				noise := reference[node]
				if coalition[node] {
					noise = draws[node][k]
				}
				raw := make([]float64, len(nm.Encoder.Parents))
				for i, p := range nm.Encoder.Parents {
					raw[i] = values[p]
				}
				values[node] = replay[node].Evaluate(nm.Encoder.Encode(raw), noise)
			}
			targetSamples[k] = values[target]
		}
		return stat.Variance(targetSamples, nil)
	}

	return ShapleyEstimate(players, payoff, permutations, rng), nil
}
