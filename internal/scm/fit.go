package scm

import (
	"context"
	"math/rand"
	"sync"

	"golang.org/x/sync/semaphore"

	"gocause/domain/graph"
	"gocause/domain/table"
	"gocause/internal/mechanism"
)

// maxConcurrentFits bounds the per-layer fitting fan-out.
const maxConcurrentFits = 8

// Fit auto-assigns a mechanism to every node and trains them against the
// observation table. Nodes are processed layer by layer in topological order;
// within a layer there is no data dependency between nodes, so training fans
// out under a weighted semaphore and fans back in before the next layer.
func Fit(g *graph.CausalGraph, observations *table.Table, kind mechanism.ModelKind, rng *rand.Rand) (*SCM, error) {
	assignments, err := mechanism.Assign(g, observations, kind, rng)
	if err != nil {
		return nil, err
	}

	m := &SCM{
		graph: g,
		kind:  kind,
		nodes: make(map[string]*NodeModel, len(assignments)),
		order: g.TopologicalOrder(),
	}
	for _, name := range g.TopologicalOrder() {
		col, _ := observations.Column(name)
		m.schema = append(m.schema, table.Column{Name: col.Name, Kind: col.Kind, Levels: col.Levels})
	}

	sem := semaphore.NewWeighted(maxConcurrentFits)
	ctx := context.Background()
	for _, layer := range layers(g) {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			firstErr error
		)
		for _, node := range layer {
			node := node
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				nm, err := fitNode(g, observations, assignments[node])
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				m.nodes[node] = nm
			}()
		}
		wg.Wait()
		if firstErr != nil {
			return nil, firstErr
		}
	}
	return m, nil
}

func fitNode(g *graph.CausalGraph, observations *table.Table, a *mechanism.Assignment) (*NodeModel, error) {
	col, _ := observations.Column(a.Node)

	var features [][]float64
	parents := g.Parents(a.Node)
	if len(parents) > 0 {
		raw := make([][]float64, observations.NumRows())
		for i := range raw {
			row := make([]float64, len(parents))
			for j, p := range parents {
				v, _ := observations.Value(i, p)
				row[j] = v
			}
			raw[i] = row
		}
		features = a.Encoder.EncodeAll(raw)
	} else {
		features = make([][]float64, observations.NumRows())
	}

	if err := a.Mech.Fit(features, col.Values); err != nil {
		return nil, err
	}
	return &NodeModel{
		Node:    a.Node,
		Kind:    col.Kind,
		Levels:  col.Levels,
		Mech:    a.Mech,
		Encoder: a.Encoder,
		CVError: a.CVError,
	}, nil
}

// layers groups nodes by causal depth: a node's layer is one past its deepest
// parent, so every layer depends only on layers already committed.
func layers(g *graph.CausalGraph) [][]string {
	depth := make(map[string]int)
	var out [][]string
	for _, node := range g.TopologicalOrder() {
		d := 0
		for _, p := range g.Parents(node) {
			if depth[p]+1 > d {
				d = depth[p] + 1
			}
		}
		depth[node] = d
		for len(out) <= d {
			out = append(out, nil)
		}
		out[d] = append(out[d], node)
	}
	return out
}
