package mechanism

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"gocause/internal/errors"
)

// Regressor is a point-prediction model used inside an additive noise
// mechanism. Implementations must be deterministic after fitting.
type Regressor interface {
	Name() string
	Fit(features [][]float64, target []float64) error
	Predict(features []float64) float64
}

// LinearRegressor is ordinary least squares with an intercept term.
type LinearRegressor struct {
	// Coef holds the intercept followed by one coefficient per feature.
	Coef []float64
}

func (lr *LinearRegressor) Name() string { return "linear" }

// Fit solves the least-squares problem via QR decomposition.
func (lr *LinearRegressor) Fit(features [][]float64, target []float64) error {
	n := len(features)
	if n == 0 || n != len(target) {
		return errors.InvalidInput("regression requires aligned, non-empty features and target")
	}
	p := len(features[0]) + 1
	if n < p {
		return errors.InsufficientData(fmt.Sprintf("linear regression needs at least %d rows for %d coefficients, got %d", p, p, n))
	}

	design := mat.NewDense(n, p, nil)
	for i, row := range features {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	y := mat.NewVecDense(n, append([]float64(nil), target...))

	var qr mat.QR
	qr.Factorize(design)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		return errors.Wrap(err, "singular design matrix in least-squares fit")
	}

	lr.Coef = make([]float64, p)
	for j := 0; j < p; j++ {
		lr.Coef[j] = beta.AtVec(j)
	}
	return nil
}

func (lr *LinearRegressor) Predict(features []float64) float64 {
	pred := lr.Coef[0]
	for j, v := range features {
		if j+1 < len(lr.Coef) {
			pred += lr.Coef[j+1] * v
		}
	}
	return pred
}

// KNNRegressor predicts the mean target of the K nearest training rows. It is
// the flexible nonlinear candidate evaluated against the linear model during
// auto-assignment.
type KNNRegressor struct {
	K        int
	Features [][]float64
	Target   []float64
}

func (kr *KNNRegressor) Name() string { return "knn" }

func (kr *KNNRegressor) Fit(features [][]float64, target []float64) error {
	if len(features) == 0 || len(features) != len(target) {
		return errors.InvalidInput("regression requires aligned, non-empty features and target")
	}
	kr.Features = features
	kr.Target = target
	if kr.K <= 0 {
		// sqrt(n) neighbours balances bias and variance without tuning
		kr.K = int(math.Max(1, math.Round(math.Sqrt(float64(len(target))))))
	}
	if kr.K > len(target) {
		kr.K = len(target)
	}
	return nil
}

func (kr *KNNRegressor) Predict(features []float64) float64 {
	type scored struct {
		dist  float64
		value float64
	}
	neighbours := make([]scored, len(kr.Features))
	for i, row := range kr.Features {
		neighbours[i] = scored{dist: squaredDistance(row, features), value: kr.Target[i]}
	}
	sort.Slice(neighbours, func(i, j int) bool { return neighbours[i].dist < neighbours[j].dist })

	k := kr.K
	if k > len(neighbours) {
		k = len(neighbours)
	}
	sum := 0.0
	for i := 0; i < k; i++ {
		sum += neighbours[i].value
	}
	return sum / float64(k)
}

func squaredDistance(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		if i < len(b) {
			diff := a[i] - b[i]
			d += diff * diff
		}
	}
	return d
}
