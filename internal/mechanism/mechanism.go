// Package mechanism implements the per-node generative models of a structural
// causal model: marginal distributions for root nodes and functional causal
// mechanisms (prediction model + noise term) for non-root nodes, together with
// the auto-assignment policy that picks a family per node.
package mechanism

import (
	"math/rand"
)

// Mechanism is the uniform capability surface of every model family.
// A mechanism is fitted once from observed data and then drawn from during
// ancestral sampling. Parent values arrive already encoded as a feature
// vector (see ParentEncoder); root mechanisms receive an empty vector.
type Mechanism interface {
	// Family returns the model family name for summaries and reports.
	Family() string
	// Fit trains the mechanism on encoded parent rows and target values.
	Fit(parents [][]float64, target []float64) error
	// Draw samples one target value given encoded parent values.
	Draw(rng *rand.Rand, parents []float64) float64
	// Invertible reports whether the exogenous noise can be recovered
	// exactly from (parents, value). This is a static capability of the
	// family, not a runtime property of the data.
	Invertible() bool
	// MinSamples is the smallest observation count the family can be
	// trained on.
	MinSamples() int
}

// Invertible mechanisms additionally support exact noise abduction and
// deterministic replay, the two halves of counterfactual reasoning.
type Invertible interface {
	Mechanism
	// Invert recovers the noise term that produced value under parents.
	Invert(parents []float64, value float64) (float64, error)
	// Evaluate replays the mechanism with a fixed noise term.
	Evaluate(parents []float64, noise float64) float64
}

// NoiseSampler exposes the fitted noise distribution of a mechanism. Anomaly
// scoring compares an abducted noise value against these samples.
type NoiseSampler interface {
	// NoiseSamples returns the fitted noise population.
	NoiseSamples() []float64
	// DrawNoise samples one fresh noise value.
	DrawNoise(rng *rand.Rand) float64
}

// ParentEncoder maps raw parent values (level codes for categorical parents)
// to the feature vector a mechanism was fitted on. Continuous parents pass
// through, categorical parents are one-hot encoded over their levels.
type ParentEncoder struct {
	Parents []string
	// Arity is 0 for a continuous parent, otherwise the level count.
	Arity []int
}

// Width returns the encoded feature vector length.
func (e *ParentEncoder) Width() int {
	w := 0
	for _, a := range e.Arity {
		if a == 0 {
			w++
		} else {
			w += a
		}
	}
	return w
}

// Encode expands one raw parent row into the feature vector.
func (e *ParentEncoder) Encode(raw []float64) []float64 {
	out := make([]float64, 0, e.Width())
	for i, a := range e.Arity {
		if a == 0 {
			out = append(out, raw[i])
			continue
		}
		oneHot := make([]float64, a)
		code := int(raw[i])
		if code >= 0 && code < a {
			oneHot[code] = 1
		}
		out = append(out, oneHot...)
	}
	return out
}

// EncodeAll encodes a batch of raw parent rows.
func (e *ParentEncoder) EncodeAll(raw [][]float64) [][]float64 {
	out := make([][]float64, len(raw))
	for i, r := range raw {
		out[i] = e.Encode(r)
	}
	return out
}
