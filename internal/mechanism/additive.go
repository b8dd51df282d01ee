package mechanism

import (
	"fmt"
	"math/rand"

	"gocause/internal/errors"
)

// AdditiveNoiseModel is the functional causal mechanism for a continuous
// non-root node: child = f(parents) + noise, with f a fitted regressor and
// noise the empirical residual distribution. Because the noise enters
// additively it can be recovered exactly, so the mechanism is invertible.
type AdditiveNoiseModel struct {
	Linear    *LinearRegressor
	KNN       *KNNRegressor
	Residuals []float64
}

// NewAdditiveNoiseModel wraps the regressor selected by auto-assignment.
func NewAdditiveNoiseModel(reg Regressor) *AdditiveNoiseModel {
	anm := &AdditiveNoiseModel{}
	switch r := reg.(type) {
	case *LinearRegressor:
		anm.Linear = r
	case *KNNRegressor:
		anm.KNN = r
	}
	return anm
}

func (anm *AdditiveNoiseModel) regressor() Regressor {
	if anm.Linear != nil {
		return anm.Linear
	}
	return anm.KNN
}

func (anm *AdditiveNoiseModel) Family() string {
	return "additive_noise_" + anm.regressor().Name()
}

func (anm *AdditiveNoiseModel) MinSamples() int { return 8 }

func (anm *AdditiveNoiseModel) Fit(parents [][]float64, target []float64) error {
	if len(target) < anm.MinSamples() {
		return errors.InsufficientData(fmt.Sprintf("additive noise model needs at least %d observations, got %d", anm.MinSamples(), len(target)))
	}
	if anm.regressor() == nil {
		anm.Linear = &LinearRegressor{}
	}
	if err := anm.regressor().Fit(parents, target); err != nil {
		return err
	}
	anm.Residuals = make([]float64, len(target))
	for i, row := range parents {
		anm.Residuals[i] = target[i] - anm.regressor().Predict(row)
	}
	return nil
}

func (anm *AdditiveNoiseModel) Draw(rng *rand.Rand, parents []float64) float64 {
	return anm.regressor().Predict(parents) + anm.DrawNoise(rng)
}

func (anm *AdditiveNoiseModel) Invertible() bool { return true }

func (anm *AdditiveNoiseModel) Invert(parents []float64, value float64) (float64, error) {
	return value - anm.regressor().Predict(parents), nil
}

func (anm *AdditiveNoiseModel) Evaluate(parents []float64, noise float64) float64 {
	return anm.regressor().Predict(parents) + noise
}

func (anm *AdditiveNoiseModel) NoiseSamples() []float64 { return anm.Residuals }

func (anm *AdditiveNoiseModel) DrawNoise(rng *rand.Rand) float64 {
	return anm.Residuals[rng.Intn(len(anm.Residuals))]
}

// Predict exposes the deterministic part of the mechanism.
func (anm *AdditiveNoiseModel) Predict(parents []float64) float64 {
	return anm.regressor().Predict(parents)
}
