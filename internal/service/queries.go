package service

import (
	"context"
	"fmt"
	"math/rand"

	"gocause/adapters/ingest"
	"gocause/internal/attribute"
	"gocause/internal/bootstrap"
	"gocause/internal/falsify"
	"gocause/internal/report"
	"gocause/internal/simulate"
)

// Intervene draws samples from the model under the requested interventions.
func (s *Service) Intervene(ctx context.Context, req InterventionRequest) InterventionResult {
	result := InterventionResult{Envelope: s.envelope(), InterventionType: req.InterventionType}

	m, err := s.loadModel(ctx, req.ModelName)
	if err != nil {
		result.fail(err)
		return result
	}
	interventions, err := convertInterventions(req.InterventionType, req.Interventions)
	if err != nil {
		result.fail(err)
		return result
	}
	s.log.Debug("intervention %s: drawing %d samples from %q", result.QueryID, req.NumSamplesToDraw, req.ModelName)
	samples, err := simulate.Sample(m, req.NumSamplesToDraw, interventions, s.rng(req.Seed))
	if err != nil {
		s.log.Warn("intervention %s failed: %v", result.QueryID, err)
		result.fail(err)
		return result
	}

	result.succeed("Intervention sampled successfully.")
	result.Samples = samples.Records()
	return result
}

// CounterfactualQuery answers "what would the observed rows have looked like
// had the interventions held", holding abducted noise fixed.
func (s *Service) CounterfactualQuery(ctx context.Context, req CounterfactualRequest) CounterfactualResult {
	result := CounterfactualResult{Envelope: s.envelope()}

	m, err := s.loadModel(ctx, req.ModelName)
	if err != nil {
		result.fail(err)
		return result
	}
	interventions, err := convertInterventions(string(simulate.Atomic), req.Interventions)
	if err != nil {
		result.fail(err)
		return result
	}
	observed, err := ingest.FromColumnMap(req.Observation)
	if err != nil {
		result.fail(err)
		return result
	}
	samples, err := simulate.Counterfactual(m, observed, interventions)
	if err != nil {
		s.log.Warn("counterfactual %s failed: %v", result.QueryID, err)
		result.fail(err)
		return result
	}

	result.succeed("Counterfactual estimated successfully.")
	result.Samples = samples.Records()
	return result
}

// ArrowStrength estimates the direct strength of every edge into the target,
// with bootstrap confidence intervals. The answer is reported twice: keyed by
// edge and keyed by the parent node alone.
func (s *Service) ArrowStrength(ctx context.Context, req ArrowStrengthRequest) ArrowStrengthResult {
	result := ArrowStrengthResult{Envelope: s.envelope(), TargetNode: req.TargetNode}

	m, err := s.loadModel(ctx, req.ModelName)
	if err != nil {
		result.fail(err)
		return result
	}
	opts := attribute.ArrowOptions{NumSamples: req.NumSamples}
	estimate, err := bootstrap.ConfidenceIntervals(func(rng *rand.Rand) (map[string]float64, error) {
		return attribute.ArrowStrength(m, req.TargetNode, opts, rng)
	}, s.bootstrapOptions(req.NumBootstrapResamples), s.rng(req.Seed))
	if err != nil {
		s.log.Warn("arrow strength %s failed: %v", result.QueryID, err)
		result.fail(err)
		return result
	}

	result.succeed("Arrow strength estimated successfully.")
	result.Nodes = payload(estimate.Median, estimate.Intervals)
	result.Edges = payload(
		edgeKeyed(estimate.Median, req.TargetNode),
		edgeKeyedIntervals(estimate.Intervals, req.TargetNode),
	)
	return result
}

// IntrinsicInfluence decomposes the target's variance over the noise terms of
// its ancestors and itself.
func (s *Service) IntrinsicInfluence(ctx context.Context, req IntrinsicInfluenceRequest) IntrinsicInfluenceResult {
	result := IntrinsicInfluenceResult{Envelope: s.envelope(), TargetNode: req.TargetNode}

	m, err := s.loadModel(ctx, req.ModelName)
	if err != nil {
		result.fail(err)
		return result
	}
	opts := attribute.IntrinsicOptions{NumSamplesRandomization: req.NumSamplesRandomization}
	estimate, err := bootstrap.ConfidenceIntervals(func(rng *rand.Rand) (map[string]float64, error) {
		return attribute.IntrinsicInfluence(m, req.TargetNode, opts, rng)
	}, s.bootstrapOptions(req.NumBootstrapResamples), s.rng(req.Seed))
	if err != nil {
		s.log.Warn("intrinsic influence %s failed: %v", result.QueryID, err)
		result.fail(err)
		return result
	}

	result.succeed("Intrinsic influence estimated successfully.")
	result.Influence = payload(estimate.Median, estimate.Intervals)
	return result
}

// AttributeAnomalies explains which upstream noise terms drove the anomalous
// observation of a node.
func (s *Service) AttributeAnomalies(ctx context.Context, req AnomalyAttributionRequest) AnomalyAttributionResult {
	result := AnomalyAttributionResult{Envelope: s.envelope(), AnomalousNode: req.AnomalousNode}

	m, err := s.loadModel(ctx, req.ModelName)
	if err != nil {
		result.fail(err)
		return result
	}
	anomaly, err := ingest.FromColumnMap(req.AnomalyData)
	if err != nil {
		result.fail(err)
		return result
	}
	opts := attribute.AnomalyOptions{}
	estimate, err := bootstrap.ConfidenceIntervals(func(rng *rand.Rand) (map[string]float64, error) {
		return attribute.AttributeAnomalies(m, req.AnomalousNode, anomaly, opts, rng)
	}, s.bootstrapOptions(req.NumBootstrapResamples), s.rng(req.Seed))
	if err != nil {
		s.log.Warn("anomaly attribution %s failed: %v", result.QueryID, err)
		result.fail(err)
		return result
	}

	result.succeed("Anomaly attribution estimated successfully.")
	result.Attribution = payload(estimate.Median, estimate.Intervals)
	return result
}

// Falsify tests whether the proposed graph is rejected by the observations.
// No fitted model is involved; the graph and data arrive with the request.
func (s *Service) Falsify(ctx context.Context, req FalsifyRequest) FalsifyResult {
	result := FalsifyResult{Envelope: s.envelope()}

	g, err := buildGraph(req.GraphEdges)
	if err != nil {
		result.fail(err)
		return result
	}
	observations, err := ingest.FromColumnMap(req.Observation)
	if err != nil {
		result.fail(err)
		return result
	}
	outcome, err := falsify.Falsify(g, observations)
	if err != nil {
		s.log.Warn("falsification %s failed: %v", result.QueryID, err)
		result.fail(err)
		return result
	}

	s.log.Debug("falsification %s: %d constraints tested, %d rejected", result.QueryID, outcome.NumConstraints, outcome.NumRejected)
	result.succeed("Graph falsification evaluated successfully.")
	result.Falsifiable = &outcome.Falsifiable
	result.Falsified = &outcome.Falsified
	result.Explanation = outcome.Explanation
	return result
}

// Evaluate renders a model summary report. When observations accompany the
// request the report includes a falsification verdict for the model's graph.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) EvaluateResult {
	result := EvaluateResult{Envelope: s.envelope()}

	m, err := s.loadModel(ctx, req.ModelName)
	if err != nil {
		result.fail(err)
		return result
	}
	var outcome *falsify.Outcome
	if len(req.Observation) > 0 {
		observations, err := ingest.FromColumnMap(req.Observation)
		if err != nil {
			result.fail(err)
			return result
		}
		outcome, err = falsify.Falsify(m.Graph(), observations)
		if err != nil {
			s.log.Warn("evaluation %s failed: %v", result.QueryID, err)
			result.fail(err)
			return result
		}
	}

	evaluation := report.Summarize(m, outcome)
	result.succeed("Model evaluated successfully.")
	result.Markdown = evaluation.Markdown()
	result.HTML = string(evaluation.HTML())
	return result
}

func (s *Service) bootstrapOptions(repetitions int) bootstrap.Options {
	if repetitions <= 0 {
		repetitions = s.bootstrapReps
	}
	return bootstrap.Options{Repetitions: repetitions}
}

func convertInterventions(kindName string, inputs []InterventionInput) ([]simulate.Intervention, error) {
	kind, err := simulate.ParseInterventionKind(kindName)
	if err != nil {
		return nil, err
	}
	converted := make([]simulate.Intervention, len(inputs))
	for i, in := range inputs {
		converted[i] = simulate.Intervention{Target: in.Variable, Kind: kind, Value: in.Value}
	}
	return converted, nil
}

func edgeKeyed(scores map[string]float64, target string) map[string]float64 {
	keyed := make(map[string]float64, len(scores))
	for parent, v := range scores {
		keyed[edgeKey(parent, target)] = v
	}
	return keyed
}

func edgeKeyedIntervals(intervals map[string][2]float64, target string) map[string][2]float64 {
	keyed := make(map[string][2]float64, len(intervals))
	for parent, iv := range intervals {
		keyed[edgeKey(parent, target)] = iv
	}
	return keyed
}

func edgeKey(parent, target string) string {
	return fmt.Sprintf("(%s, %s)", parent, target)
}
