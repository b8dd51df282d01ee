package simulate

import (
	"fmt"

	"gocause/domain/table"
	"gocause/internal/errors"
	"gocause/internal/mechanism"
	"gocause/internal/scm"
)

// Counterfactual answers "what would this observed row have looked like under
// the intervention" by abduction, action, prediction: recover each node's
// exogenous noise from the observation, apply the intervention, then replay
// every non-intervened mechanism with the recovered noise. Randomness that
// the intervention does not causally touch is thereby held fixed, which is
// what separates a counterfactual from a fresh interventional sample.
func Counterfactual(m *scm.SCM, observed *table.Table, interventions []Intervention) (*table.Table, error) {
	if m.Kind() != mechanism.ModelInvertible {
		return nil, errors.MechanismNotInvertible("counterfactual queries require the invertible causal model type")
	}
	byTarget, err := indexInterventions(m, interventions)
	if err != nil {
		return nil, err
	}
	for _, node := range m.Order() {
		if _, ok := observed.Column(node); !ok {
			return nil, errors.MissingColumn(node)
		}
	}

	builder := table.NewBuilder(m.Schema())
	for i := 0; i < observed.NumRows(); i++ {
		noise, err := AbductNoise(m, observed, i)
		if err != nil {
			return nil, err
		}
		row, err := predict(m, byTarget, noise)
		if err != nil {
			return nil, err
		}
		builder.Append(row)
	}
	return builder.Table()
}

// AbductNoise recovers the exogenous noise that produced one observed row,
// visiting nodes in topological order with the observed parent values.
func AbductNoise(m *scm.SCM, observed *table.Table, row int) (map[string]float64, error) {
	noise := make(map[string]float64, len(m.Order()))
	actual := observed.Row(row)
	for _, node := range m.Order() {
		nm, _ := m.Node(node)
		inv, ok := nm.Mech.(mechanism.Invertible)
		if !ok {
			return nil, errors.MechanismNotInvertible(fmt.Sprintf("mechanism of node %q cannot recover its noise term", node))
		}
		features, err := encodedParents(m, nm, actual)
		if err != nil {
			return nil, err
		}
		n, err := inv.Invert(features, actual[node])
		if err != nil {
			return nil, errors.Wrapf(err, "noise abduction failed for node %q", node)
		}
		noise[node] = n
	}
	return noise, nil
}

// predict replays the model forward with abducted noise, taking intervention
// values where registered.
func predict(m *scm.SCM, interventions map[string]Intervention, noise map[string]float64) (map[string]float64, error) {
	resolved := make(map[string]float64, len(m.Order()))
	for _, node := range m.Order() {
		nm, _ := m.Node(node)
		features, err := encodedParents(m, nm, resolved)
		if err != nil {
			return nil, err
		}
		inv := nm.Mech.(mechanism.Invertible)
		natural := inv.Evaluate(features, noise[node])
		if iv, ok := interventions[node]; ok {
			resolved[node] = iv.apply(natural)
		} else {
			resolved[node] = natural
		}
	}
	return resolved, nil
}
