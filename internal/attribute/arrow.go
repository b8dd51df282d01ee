package attribute

import (
	"fmt"
	"math"
	"math/rand"

	"gocause/domain/table"
	"gocause/internal/errors"
	"gocause/internal/mechanism"
	"gocause/internal/scm"
	"gocause/internal/simulate"
)

// ArrowOptions tunes the arrow strength estimate.
type ArrowOptions struct {
	// NumSamples is the ancestral sample count used to estimate the target
	// distribution under the fitted and edge-severed models.
	NumSamples int
}

const defaultArrowSamples = 1000

// ArrowStrength quantifies the direct causal contribution of every edge
// parent → target. For each edge the parent's input to the target mechanism
// is replaced by an independent permutation of the parent's own marginal,
// severing the direct dependency while leaving all other edges intact, and
// the strength is a divergence between the target's draws under the intact
// and severed mechanisms. Continuous targets share the mechanism noise
// between the paired draws, so half the mean squared change isolates the
// variance the severed edge contributes directly. Categorical targets use the
// KL divergence between the two predicted level distributions. Keys are
// parent names; with a fixed target each parent identifies its edge.
func ArrowStrength(m *scm.SCM, target string, opts ArrowOptions, rng *rand.Rand) (map[string]float64, error) {
	nm, ok := m.Node(target)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("target node %q", target))
	}
	parents := m.Graph().Parents(target)
	if len(parents) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("target node %q has no incoming arrows", target))
	}
	n := opts.NumSamples
	if n <= 0 {
		n = defaultArrowSamples
	}

	var replay mechanism.Invertible
	var sampler mechanism.NoiseSampler
	if nm.Kind != table.Categorical {
		var okInv, okSampler bool
		replay, okInv = nm.Mech.(mechanism.Invertible)
		sampler, okSampler = nm.Mech.(mechanism.NoiseSampler)
		if !okInv || !okSampler {
			return nil, errors.MechanismNotInvertible(fmt.Sprintf("mechanism of node %q cannot replay a fixed noise term", target))
		}
	}

	samples, err := simulate.Sample(m, n, nil, rng)
	if err != nil {
		return nil, err
	}

	parentValues := make([][]float64, len(parents))
	for j, p := range parents {
		col, _ := samples.Column(p)
		parentValues[j] = col.Values
	}

	raw := make([]float64, len(parents))
	encodeRow := func(permuted int, perm []int, row int) []float64 {
		for j := range parents {
			idx := row
			if j == permuted {
				idx = perm[row]
			}
			raw[j] = parentValues[j][idx]
		}
		return nm.Encoder.Encode(raw)
	}

	strengths := make(map[string]float64, len(parents))
	for j, p := range parents {
		perm := rng.Perm(n)
		if nm.Kind == table.Categorical {
			base := make([]float64, n)
			severed := make([]float64, n)
			for i := 0; i < n; i++ {
				base[i] = nm.Mech.Draw(rng, encodeRow(-1, nil, i))
				severed[i] = nm.Mech.Draw(rng, encodeRow(j, perm, i))
			}
			strengths[p] = klDivergence(base, severed, len(nm.Levels))
			continue
		}
		totalSq := 0.0
		for i := 0; i < n; i++ {
			noise := sampler.DrawNoise(rng)
			intact := replay.Evaluate(encodeRow(-1, nil, i), noise)
			cut := replay.Evaluate(encodeRow(j, perm, i), noise)
			diff := intact - cut
			totalSq += diff * diff
		}
		strengths[p] = totalSq / float64(2*n)
	}
	return strengths, nil
}

// klDivergence estimates KL(base ‖ severed) over level codes with Laplace
// smoothing so unseen levels do not produce infinities.
func klDivergence(base, severed []float64, numLevels int) float64 {
	if numLevels < 1 {
		numLevels = 1
	}
	p := levelProbs(base, numLevels)
	q := levelProbs(severed, numLevels)
	kl := 0.0
	for i := range p {
		kl += p[i] * math.Log(p[i]/q[i])
	}
	return kl
}

func levelProbs(values []float64, numLevels int) []float64 {
	counts := make([]float64, numLevels)
	for _, v := range values {
		code := int(v)
		if code >= 0 && code < numLevels {
			counts[code]++
		}
	}
	probs := make([]float64, numLevels)
	total := float64(len(values) + numLevels)
	for i, c := range counts {
		probs[i] = (c + 1) / total
	}
	return probs
}
