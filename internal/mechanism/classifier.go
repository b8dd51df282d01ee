package mechanism

import (
	"fmt"
	"math"
	"math/rand"

	"gocause/internal/errors"
)

// ClassifierModel is the functional causal mechanism for a categorical
// non-root node: a multinomial logistic model over encoded parent values with
// a categorical draw from the predicted class distribution. General
// classification noise cannot be recovered from (parents, value), so the
// family is not invertible.
type ClassifierModel struct {
	NumClasses int
	// Weights is class-major: one row of (1 + feature width) coefficients
	// per class, intercept first.
	Weights [][]float64

	LearningRate float64
	Epochs       int
}

func (cm *ClassifierModel) Family() string { return "logistic_classifier" }

func (cm *ClassifierModel) MinSamples() int { return 8 }

func (cm *ClassifierModel) Fit(parents [][]float64, target []float64) error {
	if len(target) < cm.MinSamples() {
		return errors.InsufficientData(fmt.Sprintf("classifier mechanism needs at least %d observations, got %d", cm.MinSamples(), len(target)))
	}
	if len(parents) != len(target) {
		return errors.InvalidInput("classifier mechanism requires aligned parents and target")
	}

	maxCode := 0
	for _, v := range target {
		if int(v) > maxCode {
			maxCode = int(v)
		}
	}
	cm.NumClasses = maxCode + 1

	width := 0
	if len(parents) > 0 {
		width = len(parents[0])
	}
	cm.Weights = make([][]float64, cm.NumClasses)
	for c := range cm.Weights {
		cm.Weights[c] = make([]float64, width+1)
	}

	if cm.LearningRate == 0 {
		cm.LearningRate = 0.1
	}
	if cm.Epochs == 0 {
		cm.Epochs = 200
	}

	// Batch gradient descent on the multinomial cross-entropy.
	n := float64(len(target))
	for epoch := 0; epoch < cm.Epochs; epoch++ {
		grad := make([][]float64, cm.NumClasses)
		for c := range grad {
			grad[c] = make([]float64, width+1)
		}
		for i, row := range parents {
			probs := cm.classProbs(row)
			label := int(target[i])
			for c := 0; c < cm.NumClasses; c++ {
				delta := probs[c]
				if c == label {
					delta -= 1
				}
				grad[c][0] += delta
				for j, v := range row {
					grad[c][j+1] += delta * v
				}
			}
		}
		for c := 0; c < cm.NumClasses; c++ {
			for j := range cm.Weights[c] {
				cm.Weights[c][j] -= cm.LearningRate * grad[c][j] / n
			}
		}
	}
	return nil
}

func (cm *ClassifierModel) classProbs(features []float64) []float64 {
	logits := make([]float64, cm.NumClasses)
	maxLogit := math.Inf(-1)
	for c := 0; c < cm.NumClasses; c++ {
		z := cm.Weights[c][0]
		for j, v := range features {
			if j+1 < len(cm.Weights[c]) {
				z += cm.Weights[c][j+1] * v
			}
		}
		logits[c] = z
		if z > maxLogit {
			maxLogit = z
		}
	}
	sum := 0.0
	for c, z := range logits {
		logits[c] = math.Exp(z - maxLogit)
		sum += logits[c]
	}
	for c := range logits {
		logits[c] /= sum
	}
	return logits
}

// Probabilities returns the predicted class distribution for encoded parents.
func (cm *ClassifierModel) Probabilities(features []float64) []float64 {
	return cm.classProbs(features)
}

func (cm *ClassifierModel) Draw(rng *rand.Rand, parents []float64) float64 {
	return float64(sampleCategorical(rng, cm.classProbs(parents)))
}

func (cm *ClassifierModel) Invertible() bool { return false }
