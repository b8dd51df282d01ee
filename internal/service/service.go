// Package service exposes the engine's query entry points behind the
// request/response contract of the surrounding plugin harness: every call
// returns a tagged result with timestamp and status, and no failure escapes
// as an error or panic.
package service

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"gocause/adapters/ingest"
	"gocause/domain/graph"
	"gocause/internal"
	"gocause/internal/attribute"
	"gocause/internal/errors"
	"gocause/internal/mechanism"
	"gocause/internal/modelstore"
	"gocause/internal/scm"
)

const timestampLayout = "2006-01-02 15:04:05"

// Service orchestrates the causal engine against a model store.
type Service struct {
	store         modelstore.Store
	log           *internal.Logger
	defaultSeed   int64
	bootstrapReps int
}

// New wires a service. bootstrapReps is the default confidence-interval
// repetition count for attribution queries.
func New(store modelstore.Store, logger *internal.Logger, defaultSeed int64, bootstrapReps int) *Service {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if bootstrapReps <= 0 {
		bootstrapReps = 20
	}
	return &Service{store: store, log: logger, defaultSeed: defaultSeed, bootstrapReps: bootstrapReps}
}

func (s *Service) envelope() Envelope {
	return Envelope{
		QueryID:   uuid.NewString(),
		Timestamp: time.Now().Format(timestampLayout),
	}
}

func (e *Envelope) succeed(message string) {
	e.Status = statusSuccess
	e.Message = message
}

func (e *Envelope) fail(err error) {
	e.Status = statusError
	e.Message = err.Error()
	e.ErrorCode = errors.GetCode(err)
}

// rng builds the seeded generator for one query. Every operation receives an
// explicit generator; there is no global seed state.
func (s *Service) rng(seed *int64) *rand.Rand {
	v := s.defaultSeed
	if seed != nil {
		v = *seed
	}
	return rand.New(rand.NewSource(v))
}

// Build trains a causal model from edges and observations and stores it.
func (s *Service) Build(ctx context.Context, req BuildRequest) BuildResult {
	result := BuildResult{Envelope: s.envelope(), CausalModelType: req.CausalModelType}

	fitted, err := s.fit(req)
	if err != nil {
		s.log.Warn("build %s failed: %v", result.QueryID, err)
		result.fail(err)
		return result
	}

	blob, err := fitted.Encode()
	if err != nil {
		result.fail(err)
		return result
	}
	if req.ModelName == "" {
		result.fail(errors.InvalidInput("model_name is required"))
		return result
	}
	if err := s.store.Save(ctx, req.ModelName, blob); err != nil {
		result.fail(err)
		return result
	}

	s.log.Info("build %s: model %q fitted over %d nodes", result.QueryID, req.ModelName, len(fitted.Order()))
	result.succeed("Model saved successfully.")
	result.SavedModel = req.ModelName
	return result
}

func (s *Service) fit(req BuildRequest) (*scm.SCM, error) {
	kind, err := mechanism.ParseModelKind(req.CausalModelType)
	if err != nil {
		return nil, err
	}
	g, err := buildGraph(req.GraphEdges)
	if err != nil {
		return nil, err
	}
	observations, err := ingest.FromColumnMap(req.Observation)
	if err != nil {
		return nil, err
	}
	return scm.Fit(g, observations, kind, s.rng(req.Seed))
}

func (s *Service) loadModel(ctx context.Context, name string) (*scm.SCM, error) {
	if name == "" {
		return nil, errors.InvalidInput("model_name is required")
	}
	blob, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return scm.Decode(blob)
}

// ListModels returns the stored model inventory.
func (s *Service) ListModels(ctx context.Context) ([]modelstore.ModelInfo, error) {
	return s.store.List(ctx)
}

// DeleteModel removes a stored model.
func (s *Service) DeleteModel(ctx context.Context, name string) error {
	return s.store.Delete(ctx, name)
}

func buildGraph(edges []EdgePair) (*graph.CausalGraph, error) {
	if len(edges) == 0 {
		return nil, errors.InvalidInput("graph_edges must contain at least one edge")
	}
	converted := make([]graph.Edge, len(edges))
	for i, e := range edges {
		converted[i] = graph.Edge{Parent: e.Parent, Child: e.Child}
	}
	return graph.Build(converted)
}

// payload assembles the shared attribution answer shape: rounded raw scores,
// percentages, intervals, and a descending ranking.
func payload(median map[string]float64, intervals map[string][2]float64) *AttributionPayload {
	percentages := attribute.ToPercentages(median)
	p := &AttributionPayload{
		Scores:      make(map[string]float64, len(median)),
		Percentages: make(map[string]float64, len(median)),
		Intervals:   make(map[string][2]float64, len(intervals)),
	}
	for k, v := range median {
		p.Scores[k] = round2(v)
	}
	for k, v := range percentages {
		p.Percentages[k] = round2(v)
	}
	for k, iv := range intervals {
		p.Intervals[k] = [2]float64{round2(iv[0]), round2(iv[1])}
	}

	names := make([]string, 0, len(median))
	for k := range median {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if median[names[i]] != median[names[j]] {
			return median[names[i]] > median[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		p.Ranked = append(p.Ranked, RankedScore{
			Name:       name,
			Score:      round2(median[name]),
			Percentage: round2(percentages[name]),
		})
	}
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
