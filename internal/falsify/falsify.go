// Package falsify tests whether a causal graph's implied conditional
// independence structure is supported or contradicted by observed data.
package falsify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"gocause/domain/graph"
	"gocause/domain/table"
	"gocause/internal/errors"
	"gocause/internal/mechanism"
)

// Significance is the rejection threshold before Bonferroni adjustment.
const Significance = 0.05

const minFalsifyRows = 8

// Constraint is one implied conditional independence: X ⫫ Y | Given.
type Constraint struct {
	X     string
	Y     string
	Given []string
	// PValue is filled in by the test.
	PValue float64
}

// Outcome is the falsification verdict.
type Outcome struct {
	Falsifiable    bool   `json:"falsifiable"`
	Falsified      bool   `json:"falsified"`
	Explanation    string `json:"explanation"`
	NumConstraints int    `json:"num_constraints"`
	NumRejected    int    `json:"num_rejected"`
}

// Fixed human-readable interpretations, one per verdict combination.
const (
	explanationVague = "The causal graph is too vague to test properly: it implies no nontrivial conditional independence constraints. Add more specific causal relationships to create a model that makes concrete predictions."

	explanationSupported = "The causal graph is both meaningful and supported by data. Proceed with confidence using this model for further analysis."

	explanationInconsistent = "Unexpected inconsistency in the testing procedure: an unfalsifiable graph cannot be falsified. Review the implementation, as this combination should not occur."

	explanationFalsified = "The causal model is contradicted by the data. Revise the graph structure by examining which conditional independence assumptions failed and adjust the causal relationships accordingly."
)

// Falsify derives the graph's local-Markov independence constraints and tests
// each against the data. The graph is falsifiable when it implies at least
// one nontrivial constraint (a complete DAG implies none) and falsified when
// at least one constraint is rejected at the Bonferroni-adjusted significance
// level. No fitted model is needed; the check runs on graph and data alone.
func Falsify(g *graph.CausalGraph, observations *table.Table) (*Outcome, error) {
	for _, node := range g.Nodes() {
		if _, ok := observations.Column(node); !ok {
			return nil, errors.MissingColumn(node)
		}
	}
	if observations.NumRows() < minFalsifyRows {
		return nil, errors.InsufficientData(fmt.Sprintf("falsification needs at least %d rows, got %d", minFalsifyRows, observations.NumRows()))
	}

	constraints := ImpliedConstraints(g)
	outcome := &Outcome{
		Falsifiable:    len(constraints) > 0,
		NumConstraints: len(constraints),
	}
	if !outcome.Falsifiable {
		outcome.Explanation = explanationVague
		return outcome, nil
	}

	adjusted := Significance / float64(len(constraints))
	for i := range constraints {
		p, err := conditionalIndependencePValue(observations, &constraints[i])
		if err != nil {
			return nil, err
		}
		constraints[i].PValue = p
		if p < adjusted {
			outcome.NumRejected++
		}
	}
	outcome.Falsified = outcome.NumRejected > 0

	switch {
	case !outcome.Falsifiable && outcome.Falsified:
		// Guarded above: an unfalsifiable graph has no constraints to
		// reject. Reaching this branch is an internal fault, not a
		// normal verdict.
		outcome.Explanation = explanationInconsistent
		return outcome, errors.QueryFailure("falsification verdict is internally inconsistent: unfalsifiable yet falsified")
	case outcome.Falsified:
		outcome.Explanation = explanationFalsified
	default:
		outcome.Explanation = explanationSupported
	}
	return outcome, nil
}

// ImpliedConstraints lists the local Markov constraints: every node is
// independent of its non-descendants given its parents. Constraints whose
// independent pair is already linked, or that condition on nothing while the
// pair is marginally dependent by construction, remain included; only the
// trivial case of an empty non-descendant remainder drops out.
func ImpliedConstraints(g *graph.CausalGraph) []Constraint {
	var constraints []Constraint
	for _, node := range g.TopologicalOrder() {
		parents := g.Parents(node)
		inParents := make(map[string]bool, len(parents))
		for _, p := range parents {
			inParents[p] = true
		}
		for _, other := range g.NonDescendants(node) {
			if inParents[other] {
				continue
			}
			constraints = append(constraints, Constraint{X: node, Y: other, Given: parents})
		}
	}
	return constraints
}

// conditionalIndependencePValue tests X ⫫ Y | Given via partial correlation:
// both variables are residualized against the conditioning set with least
// squares, the residuals are correlated, and the correlation is assessed with
// the Fisher z transform. Categorical columns enter through their level
// codes.
func conditionalIndependencePValue(observations *table.Table, c *Constraint) (float64, error) {
	x, _ := observations.Column(c.X)
	y, _ := observations.Column(c.Y)
	n := observations.NumRows()

	given := make([][]float64, n)
	for i := range given {
		row := make([]float64, len(c.Given))
		for j, name := range c.Given {
			v, _ := observations.Value(i, name)
			row[j] = v
		}
		given[i] = row
	}

	xRes, err := residualize(given, x.Values)
	if err != nil {
		return 0, err
	}
	yRes, err := residualize(given, y.Values)
	if err != nil {
		return 0, err
	}

	r := stat.Correlation(xRes, yRes, nil)
	if math.IsNaN(r) {
		// Zero-variance residuals carry no evidence against independence.
		return 1, nil
	}
	if r >= 1 {
		r = 1 - 1e-12
	}
	if r <= -1 {
		r = -1 + 1e-12
	}

	df := float64(n-len(c.Given)) - 3
	if df <= 0 {
		return 0, errors.InsufficientData(fmt.Sprintf("too few rows to test %s ⫫ %s given %d variables", c.X, c.Y, len(c.Given)))
	}
	z := 0.5 * math.Log((1+r)/(1-r))
	statistic := math.Sqrt(df) * math.Abs(z)
	return 2 * (1 - distuv.UnitNormal.CDF(statistic)), nil
}

func residualize(given [][]float64, values []float64) ([]float64, error) {
	if len(given) == 0 || len(given[0]) == 0 {
		mean := stat.Mean(values, nil)
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = v - mean
		}
		return out, nil
	}
	reg := &mechanism.LinearRegressor{}
	if err := reg.Fit(given, values); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, row := range given {
		out[i] = values[i] - reg.Predict(row)
	}
	return out, nil
}
