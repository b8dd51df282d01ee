package mechanism

import (
	"fmt"
	"math/rand"

	"gocause/internal/errors"
)

// EmpiricalDistribution models a continuous root node by resampling its
// observed marginal. For counterfactual abduction the node's own value is its
// exogenous noise, which makes the mechanism trivially invertible.
type EmpiricalDistribution struct {
	Samples []float64
}

func (ed *EmpiricalDistribution) Family() string { return "empirical" }

func (ed *EmpiricalDistribution) MinSamples() int { return 2 }

func (ed *EmpiricalDistribution) Fit(_ [][]float64, target []float64) error {
	if len(target) < ed.MinSamples() {
		return errors.InsufficientData(fmt.Sprintf("empirical distribution needs at least %d observations, got %d", ed.MinSamples(), len(target)))
	}
	ed.Samples = append([]float64(nil), target...)
	return nil
}

func (ed *EmpiricalDistribution) Draw(rng *rand.Rand, _ []float64) float64 {
	return ed.Samples[rng.Intn(len(ed.Samples))]
}

func (ed *EmpiricalDistribution) Invertible() bool { return true }

func (ed *EmpiricalDistribution) Invert(_ []float64, value float64) (float64, error) {
	return value, nil
}

func (ed *EmpiricalDistribution) Evaluate(_ []float64, noise float64) float64 {
	return noise
}

func (ed *EmpiricalDistribution) NoiseSamples() []float64 { return ed.Samples }

func (ed *EmpiricalDistribution) DrawNoise(rng *rand.Rand) float64 {
	return ed.Samples[rng.Intn(len(ed.Samples))]
}

// CategoricalDistribution models a categorical root node by its observed
// level frequencies. Draws return level codes.
type CategoricalDistribution struct {
	Probs   []float64
	Samples []float64
}

func (cd *CategoricalDistribution) Family() string { return "categorical" }

func (cd *CategoricalDistribution) MinSamples() int { return 2 }

func (cd *CategoricalDistribution) Fit(_ [][]float64, target []float64) error {
	if len(target) < cd.MinSamples() {
		return errors.InsufficientData(fmt.Sprintf("categorical distribution needs at least %d observations, got %d", cd.MinSamples(), len(target)))
	}
	maxCode := 0
	for _, v := range target {
		if int(v) > maxCode {
			maxCode = int(v)
		}
	}
	counts := make([]float64, maxCode+1)
	for _, v := range target {
		code := int(v)
		if code < 0 {
			return errors.InvalidInput("categorical level codes must be non-negative")
		}
		counts[code]++
	}
	cd.Probs = make([]float64, len(counts))
	for i, c := range counts {
		cd.Probs[i] = c / float64(len(target))
	}
	cd.Samples = append([]float64(nil), target...)
	return nil
}

func (cd *CategoricalDistribution) Draw(rng *rand.Rand, _ []float64) float64 {
	return float64(sampleCategorical(rng, cd.Probs))
}

// Invertible holds for root marginals: the abducted noise is the observed
// level itself, replayed unchanged when no intervention touches the node.
func (cd *CategoricalDistribution) Invertible() bool { return true }

func (cd *CategoricalDistribution) Invert(_ []float64, value float64) (float64, error) {
	return value, nil
}

func (cd *CategoricalDistribution) Evaluate(_ []float64, noise float64) float64 {
	return noise
}

func (cd *CategoricalDistribution) NoiseSamples() []float64 { return cd.Samples }

func (cd *CategoricalDistribution) DrawNoise(rng *rand.Rand) float64 {
	return float64(sampleCategorical(rng, cd.Probs))
}

func sampleCategorical(rng *rand.Rand, probs []float64) int {
	u := rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if u < cum {
			return i
		}
	}
	return len(probs) - 1
}
