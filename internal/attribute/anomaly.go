package attribute

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gocause/domain/table"
	"gocause/internal/errors"
	"gocause/internal/mechanism"
	"gocause/internal/scm"
	"gocause/internal/simulate"
)

// AnomalyOptions tunes the anomaly attribution estimate.
type AnomalyOptions struct {
	// NumDistributionSamples is the ancestral sample count used to estimate
	// the target's marginal for outlier scoring.
	NumDistributionSamples int
	// NumEvaluationSamples is the number of redraws per coalition payoff.
	NumEvaluationSamples int
	// NumPermutations is the number of player permutations sampled for the
	// Shapley estimate.
	NumPermutations int
}

const (
	defaultDistributionSamples = 2000
	defaultEvaluationSamples   = 50
)

// AttributeAnomalies explains one anomalous observation of anomalousNode by
// decomposing its outlier score across the node and its ancestors. Noise
// terms are first abducted from the anomalous row; the Shapley game then lets
// a coalition keep its anomalous noise while the complement is redrawn from
// the fitted mechanisms and the model is re-propagated. The payoff is the
// expected outlier score of the resulting target value, so the Shapley values
// sum to the anomaly's score minus the model's baseline score.
func AttributeAnomalies(m *scm.SCM, anomalousNode string, anomaly *table.Table, opts AnomalyOptions, rng *rand.Rand) (map[string]float64, error) {
	nm, ok := m.Node(anomalousNode)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("anomalous node %q", anomalousNode))
	}
	if anomaly.NumRows() < 1 {
		return nil, errors.InvalidInput("anomaly attribution requires at least one anomalous row")
	}
	// Noise abduction walks every model node, so the anomalous rows must
	// cover the whole model, not just the target's ancestry.
	for _, node := range m.Order() {
		if _, ok := anomaly.Column(node); !ok {
			return nil, errors.MissingColumn(node)
		}
	}
	distSamples := opts.NumDistributionSamples
	if distSamples <= 0 {
		distSamples = defaultDistributionSamples
	}
	evalSamples := opts.NumEvaluationSamples
	if evalSamples <= 0 {
		evalSamples = defaultEvaluationSamples
	}
	permutations := opts.NumPermutations
	if permutations <= 0 {
		permutations = defaultPermutations
	}

	players := append(m.Graph().Ancestors(anomalousNode), anomalousNode)
	replay := make(map[string]mechanism.Invertible, len(players))
	samplers := make(map[string]mechanism.NoiseSampler, len(players))
	for _, node := range players {
		nodeModel, _ := m.Node(node)
		inv, ok := nodeModel.Mech.(mechanism.Invertible)
		if !ok {
			return nil, errors.MechanismNotInvertible(fmt.Sprintf("mechanism of node %q cannot recover its noise term", node))
		}
		sampler, ok := nodeModel.Mech.(mechanism.NoiseSampler)
		if !ok {
			return nil, errors.MechanismNotInvertible(fmt.Sprintf("mechanism of node %q does not expose its noise distribution", node))
		}
		replay[node] = inv
		samplers[node] = sampler
	}

	scorer, err := newOutlierScorer(m, nm, distSamples, rng)
	if err != nil {
		return nil, err
	}

	total := make(map[string]float64, len(players))
	for row := 0; row < anomaly.NumRows(); row++ {
		scores, err := attributeRow(m, players, replay, samplers, anomaly, row, scorer, evalSamples, permutations, rng)
		if err != nil {
			return nil, err
		}
		for k, v := range scores {
			total[k] += v
		}
	}
	if anomaly.NumRows() > 1 {
		for k := range total {
			total[k] /= float64(anomaly.NumRows())
		}
	}
	return total, nil
}

func attributeRow(
	m *scm.SCM,
	players []string,
	replay map[string]mechanism.Invertible,
	samplers map[string]mechanism.NoiseSampler,
	anomaly *table.Table,
	row int,
	scorer *outlierScorer,
	evalSamples, permutations int,
	rng *rand.Rand,
) (map[string]float64, error) {
	abducted, err := simulate.AbductNoise(m, anomaly, row)
	if err != nil {
		return nil, err
	}

	target := players[len(players)-1]
	values := make(map[string]float64, len(players))
	propagate := func(noise map[string]float64) float64 {
		for _, node := range players {
			nm, _ := m.Node(node)
			raw := make([]float64, len(nm.Encoder.Parents))
			for i, p := range nm.Encoder.Parents {
				raw[i] = values[p]
			}
			values[node] = replay[node].Evaluate(nm.Encoder.Encode(raw), noise[node])
		}
		return values[target]
	}

	noise := make(map[string]float64, len(players))
	payoff := func(coalition map[string]bool) float64 {
		// The full coalition replays the anomalous row exactly, so its
		// payoff is deterministic.
		draws := evalSamples
		if len(coalition) == len(players) {
			draws = 1
		}
		sum := 0.0
		for k := 0; k < draws; k++ {
			for _, node := range players {
				if coalition[node] {
					noise[node] = abducted[node]
				} else {
					noise[node] = samplers[node].DrawNoise(rng)
				}
			}
			sum += scorer.score(propagate(noise))
		}
		return sum / float64(draws)
	}

	return ShapleyEstimate(players, payoff, permutations, rng), nil
}

// outlierScorer turns a target value into a negative-log tail probability
// against the model's own marginal of the target: rare values score high.
type outlierScorer struct {
	center float64
	sorted []float64 // |value - center|, ascending
}

func newOutlierScorer(m *scm.SCM, nm *scm.NodeModel, numSamples int, rng *rand.Rand) (*outlierScorer, error) {
	samples, err := simulate.Sample(m, numSamples, nil, rng)
	if err != nil {
		return nil, err
	}
	col, _ := samples.Column(nm.Node)
	values := append([]float64(nil), col.Values...)
	sort.Float64s(values)
	center := values[len(values)/2]

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - center)
	}
	sort.Float64s(deviations)
	return &outlierScorer{center: center, sorted: deviations}, nil
}

// score is -log of the two-sided empirical tail probability of value, with a
// half-count correction so an in-distribution value never scores infinity.
func (s *outlierScorer) score(value float64) float64 {
	dev := math.Abs(value - s.center)
	idx := sort.SearchFloat64s(s.sorted, dev)
	tail := float64(len(s.sorted)-idx) + 0.5
	return -math.Log(tail / (float64(len(s.sorted)) + 1))
}
