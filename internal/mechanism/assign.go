package mechanism

import (
	"fmt"
	"math"
	"math/rand"

	"gocause/domain/graph"
	"gocause/domain/table"
	"gocause/internal/errors"
)

// ModelKind selects between the two SCM variants of the build entry point.
type ModelKind string

const (
	ModelNonInvertible ModelKind = "non-invertible"
	ModelInvertible    ModelKind = "invertible"
)

// ParseModelKind validates a caller-supplied model kind string.
func ParseModelKind(s string) (ModelKind, error) {
	switch ModelKind(s) {
	case ModelNonInvertible, ModelInvertible:
		return ModelKind(s), nil
	}
	return "", errors.InvalidInput(fmt.Sprintf("unknown causal model type %q (want %q or %q)", s, ModelInvertible, ModelNonInvertible))
}

// Assignment binds a node to its selected, not-yet-trained mechanism.
type Assignment struct {
	Node    string
	Kind    table.Kind
	Mech    Mechanism
	Encoder *ParentEncoder
	// CVError is the cross-validated MSE of the winning regressor for
	// continuous non-root nodes, NaN for other families.
	CVError float64
}

const cvFolds = 5

// Assign runs the auto-assignment policy over every node of the graph:
//
//	root + continuous      → empirical marginal
//	root + categorical     → categorical marginal
//	non-root + continuous  → additive noise model, regressor picked by k-fold CV
//	non-root + categorical → logistic classifier (not invertible)
//
// Building the invertible model kind fails here, before any fitting, when a
// selected family lacks inversion.
func Assign(g *graph.CausalGraph, tbl *table.Table, kind ModelKind, rng *rand.Rand) (map[string]*Assignment, error) {
	assignments := make(map[string]*Assignment, len(g.Nodes()))
	for _, node := range g.TopologicalOrder() {
		col, ok := tbl.Column(node)
		if !ok {
			return nil, errors.MissingColumn(node)
		}

		a := &Assignment{Node: node, Kind: col.Kind, CVError: math.NaN()}
		parents := g.Parents(node)

		if len(parents) == 0 {
			if col.Kind == table.Categorical {
				a.Mech = &CategoricalDistribution{}
			} else {
				a.Mech = &EmpiricalDistribution{}
			}
			a.Encoder = &ParentEncoder{}
			assignments[node] = a
			continue
		}

		encoder, err := buildEncoder(parents, tbl)
		if err != nil {
			return nil, err
		}
		a.Encoder = encoder

		if col.Kind == table.Categorical {
			if kind == ModelInvertible {
				return nil, errors.MechanismNotInvertible(fmt.Sprintf("node %q requires a classifier mechanism, which cannot recover its noise term", node))
			}
			a.Mech = &ClassifierModel{}
			assignments[node] = a
			continue
		}

		features := encoder.EncodeAll(parentRows(parents, tbl))
		reg, cvErr := selectRegressor(features, col.Values, rng)
		a.Mech = NewAdditiveNoiseModel(reg)
		a.CVError = cvErr
		assignments[node] = a
	}
	return assignments, nil
}

func buildEncoder(parents []string, tbl *table.Table) (*ParentEncoder, error) {
	enc := &ParentEncoder{Parents: parents, Arity: make([]int, len(parents))}
	for i, p := range parents {
		col, ok := tbl.Column(p)
		if !ok {
			return nil, errors.MissingColumn(p)
		}
		if col.Kind == table.Categorical {
			enc.Arity[i] = len(col.Levels)
		}
	}
	return enc, nil
}

func parentRows(parents []string, tbl *table.Table) [][]float64 {
	rows := make([][]float64, tbl.NumRows())
	for i := range rows {
		row := make([]float64, len(parents))
		for j, p := range parents {
			v, _ := tbl.Value(i, p)
			row[j] = v
		}
		rows[i] = row
	}
	return rows
}

// selectRegressor evaluates the candidate families by k-fold cross-validated
// prediction error. Candidates are tried in order of increasing complexity and
// only a strictly lower error displaces the incumbent, so ties keep the
// simpler linear model.
func selectRegressor(features [][]float64, target []float64, rng *rand.Rand) (Regressor, float64) {
	n := len(target)
	if n < 2*cvFolds {
		return &LinearRegressor{}, math.NaN()
	}

	candidates := []func() Regressor{
		func() Regressor { return &LinearRegressor{} },
		func() Regressor { return &KNNRegressor{} },
	}

	perm := rng.Perm(n)
	best := 0
	bestErr := math.Inf(1)
	for ci, factory := range candidates {
		mse := crossValidate(factory, features, target, perm)
		if mse < bestErr {
			best = ci
			bestErr = mse
		}
	}
	return candidates[best](), bestErr
}

func crossValidate(factory func() Regressor, features [][]float64, target []float64, perm []int) float64 {
	n := len(perm)
	foldSize := n / cvFolds
	totalSE := 0.0
	count := 0
	for f := 0; f < cvFolds; f++ {
		lo := f * foldSize
		hi := lo + foldSize
		if f == cvFolds-1 {
			hi = n
		}

		var trainX [][]float64
		var trainY []float64
		for i, idx := range perm {
			if i >= lo && i < hi {
				continue
			}
			trainX = append(trainX, features[idx])
			trainY = append(trainY, target[idx])
		}

		reg := factory()
		if err := reg.Fit(trainX, trainY); err != nil {
			return math.Inf(1)
		}
		for i := lo; i < hi; i++ {
			idx := perm[i]
			diff := reg.Predict(features[idx]) - target[idx]
			totalSE += diff * diff
			count++
		}
	}
	if count == 0 {
		return math.Inf(1)
	}
	return totalSE / float64(count)
}
