package service

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"gocause/internal/errors"
	"gocause/internal/modelstore"
)

// chainObservation generates a→b→c data: b = 2a + noise, c = 3b + noise.
func chainObservation(n int) map[string][]any {
	rng := rand.New(rand.NewSource(7))
	a := make([]any, n)
	b := make([]any, n)
	c := make([]any, n)
	for i := 0; i < n; i++ {
		av := rng.NormFloat64()
		bv := 2*av + 0.1*rng.NormFloat64()
		cv := 3*bv + 0.1*rng.NormFloat64()
		a[i] = av
		b[i] = bv
		c[i] = cv
	}
	return map[string][]any{"a": a, "b": b, "c": c}
}

// sign maps one index bit to ±1.
func sign(i, bit int) float64 {
	if i>>bit&1 == 1 {
		return 1
	}
	return -1
}

func chainEdges() []EdgePair {
	return []EdgePair{{Parent: "a", Child: "b"}, {Parent: "b", Child: "c"}}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := modelstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return New(store, nil, 42, 10)
}

func buildChainModel(t *testing.T, svc *Service, name string) {
	t.Helper()
	result := svc.Build(context.Background(), BuildRequest{
		ModelName:       name,
		CausalModelType: "invertible",
		GraphEdges:      chainEdges(),
		Observation:     chainObservation(200),
	})
	if result.Status != statusSuccess {
		t.Fatalf("build failed: %s (%s)", result.Message, result.ErrorCode)
	}
}

func TestBuild_Success(t *testing.T) {
	svc := newTestService(t)
	result := svc.Build(context.Background(), BuildRequest{
		ModelName:       "chain",
		CausalModelType: "invertible",
		GraphEdges:      chainEdges(),
		Observation:     chainObservation(200),
	})
	assert.Equal(t, statusSuccess, result.Status)
	assert.Equal(t, "chain", result.SavedModel)
	assert.Equal(t, "invertible", result.CausalModelType)
	assert.NotEmpty(t, result.QueryID)
	assert.NotEmpty(t, result.Timestamp)
	assert.Empty(t, result.ErrorCode)

	infos, err := svc.ListModels(context.Background())
	assert.NoError(t, err)
	assert.Len(t, infos, 1)
	assert.Equal(t, "chain", infos[0].Name)
}

func TestBuild_CyclicGraph(t *testing.T) {
	svc := newTestService(t)
	result := svc.Build(context.Background(), BuildRequest{
		ModelName:       "loop",
		CausalModelType: "invertible",
		GraphEdges: []EdgePair{
			{Parent: "a", Child: "b"},
			{Parent: "b", Child: "a"},
		},
		Observation: chainObservation(200),
	})
	assert.Equal(t, statusError, result.Status)
	assert.Equal(t, errors.CodeCyclicGraph, result.ErrorCode)
	assert.Empty(t, result.SavedModel)
}

func TestBuild_MissingName(t *testing.T) {
	svc := newTestService(t)
	result := svc.Build(context.Background(), BuildRequest{
		CausalModelType: "invertible",
		GraphEdges:      chainEdges(),
		Observation:     chainObservation(200),
	})
	assert.Equal(t, statusError, result.Status)
	assert.Equal(t, errors.CodeInvalidInput, result.ErrorCode)
}

func TestIntervene_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	buildChainModel(t, svc, "chain")

	result := svc.Intervene(context.Background(), InterventionRequest{
		ModelName:        "chain",
		InterventionType: "atomic",
		Interventions:    []InterventionInput{{Variable: "a", Value: 5}},
		NumSamplesToDraw: 50,
	})
	assert.Equal(t, statusSuccess, result.Status)
	assert.Len(t, result.Samples, 50)
	for _, row := range result.Samples {
		assert.Equal(t, 5.0, row["a"])
	}
	// b = 2a downstream of the intervention, up to fit and noise error.
	mean := 0.0
	for _, row := range result.Samples {
		mean += row["b"].(float64)
	}
	mean /= float64(len(result.Samples))
	assert.InDelta(t, 10.0, mean, 0.6)
}

func TestIntervene_UnknownModel(t *testing.T) {
	svc := newTestService(t)
	result := svc.Intervene(context.Background(), InterventionRequest{
		ModelName:        "ghost",
		InterventionType: "atomic",
		Interventions:    []InterventionInput{{Variable: "a", Value: 5}},
		NumSamplesToDraw: 10,
	})
	assert.Equal(t, statusError, result.Status)
	assert.Equal(t, errors.CodeNotFound, result.ErrorCode)
	assert.Nil(t, result.Samples)
}

func TestCounterfactualQuery_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	buildChainModel(t, svc, "chain")

	result := svc.CounterfactualQuery(context.Background(), CounterfactualRequest{
		ModelName:     "chain",
		Interventions: []InterventionInput{{Variable: "a", Value: 2}},
		Observation: map[string][]any{
			"a": {1.0},
			"b": {2.0},
			"c": {6.0},
		},
	})
	assert.Equal(t, statusSuccess, result.Status)
	assert.Len(t, result.Samples, 1)
	row := result.Samples[0]
	assert.Equal(t, 2.0, row["a"])
	// Noise abducted from the observed row is preserved, so b moves with a.
	assert.InDelta(t, 4.0, row["b"].(float64), 0.5)
}

func TestArrowStrength_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	buildChainModel(t, svc, "chain")

	result := svc.ArrowStrength(context.Background(), ArrowStrengthRequest{
		ModelName:             "chain",
		TargetNode:            "c",
		NumBootstrapResamples: 4,
	})
	assert.Equal(t, statusSuccess, result.Status)
	assert.Equal(t, "c", result.TargetNode)
	if assert.NotNil(t, result.Edges) {
		assert.Contains(t, result.Edges.Scores, "(b, c)")
		assert.Greater(t, result.Edges.Scores["(b, c)"], 0.0)
	}
	if assert.NotNil(t, result.Nodes) {
		assert.Contains(t, result.Nodes.Scores, "b")
	}
}

func TestArrowStrength_RootTarget(t *testing.T) {
	svc := newTestService(t)
	buildChainModel(t, svc, "chain")

	result := svc.ArrowStrength(context.Background(), ArrowStrengthRequest{
		ModelName:             "chain",
		TargetNode:            "a",
		NumBootstrapResamples: 2,
	})
	assert.Equal(t, statusError, result.Status)
	assert.Equal(t, errors.CodeInvalidInput, result.ErrorCode)
	assert.Nil(t, result.Edges)
}

func TestIntrinsicInfluence_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	buildChainModel(t, svc, "chain")

	result := svc.IntrinsicInfluence(context.Background(), IntrinsicInfluenceRequest{
		ModelName:             "chain",
		TargetNode:            "c",
		NumBootstrapResamples: 2,
	})
	assert.Equal(t, statusSuccess, result.Status)
	if assert.NotNil(t, result.Influence) {
		assert.Contains(t, result.Influence.Scores, "a")
		assert.Contains(t, result.Influence.Scores, "b")
		assert.Contains(t, result.Influence.Scores, "c")
		assert.Len(t, result.Influence.Ranked, 3)
	}
}

func TestAttributeAnomalies_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	buildChainModel(t, svc, "chain")

	result := svc.AttributeAnomalies(context.Background(), AnomalyAttributionRequest{
		ModelName:     "chain",
		AnomalousNode: "c",
		AnomalyData: map[string][]any{
			"a": {0.0},
			"b": {0.0},
			"c": {25.0},
		},
		NumBootstrapResamples: 2,
	})
	assert.Equal(t, statusSuccess, result.Status)
	assert.Equal(t, "c", result.AnomalousNode)
	if assert.NotNil(t, result.Attribution) {
		// The anomaly is injected at c itself, so c's noise carries the blame.
		assert.Greater(t, result.Attribution.Scores["c"], result.Attribution.Scores["a"])
	}
}

func TestFalsify_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	// Sign-pattern vectors keyed to distinct index bits are exactly
	// orthogonal, so the implied constraint c ⊥ a | b holds with partial
	// correlation zero and the verdict does not depend on sampling noise.
	n := 16
	a := make([]any, n)
	b := make([]any, n)
	c := make([]any, n)
	for i := 0; i < n; i++ {
		bv := sign(i, 0)
		a[i] = bv + sign(i, 1)
		b[i] = bv
		c[i] = bv + sign(i, 2)
	}
	result := svc.Falsify(context.Background(), FalsifyRequest{
		GraphEdges:  chainEdges(),
		Observation: map[string][]any{"a": a, "b": b, "c": c},
	})
	assert.Equal(t, statusSuccess, result.Status)
	if assert.NotNil(t, result.Falsifiable) {
		assert.True(t, *result.Falsifiable)
	}
	if assert.NotNil(t, result.Falsified) {
		assert.False(t, *result.Falsified)
	}
	assert.NotEmpty(t, result.Explanation)
}

func TestEvaluate_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	buildChainModel(t, svc, "chain")

	result := svc.Evaluate(context.Background(), EvaluateRequest{
		ModelName:   "chain",
		Observation: chainObservation(200),
	})
	assert.Equal(t, statusSuccess, result.Status)
	assert.True(t, strings.Contains(result.Markdown, "| a |"))
	assert.True(t, strings.Contains(result.HTML, "<table>"))
}

func TestDeleteModel(t *testing.T) {
	svc := newTestService(t)
	buildChainModel(t, svc, "chain")

	assert.NoError(t, svc.DeleteModel(context.Background(), "chain"))
	err := svc.DeleteModel(context.Background(), "chain")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}
