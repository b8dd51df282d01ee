package graph

import (
	"fmt"
	"strings"

	"gocause/internal/errors"
)

// Edge is a directed causal link parent → child.
type Edge struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// CausalGraph is an immutable DAG of named variables. Nodes are declared
// implicitly by the edge list; declaration order is preserved so that
// topological ordering, and with it fitting and sampling, is reproducible.
type CausalGraph struct {
	nodes    []string
	edges    []Edge
	parents  map[string][]string
	children map[string][]string
	order    []string
}

// Build constructs a CausalGraph from an edge list. It fails with a
// CYCLIC_GRAPH error if the edges contain a directed cycle.
func Build(edges []Edge) (*CausalGraph, error) {
	g := &CausalGraph{
		parents:  make(map[string][]string),
		children: make(map[string][]string),
	}
	seen := make(map[string]bool)
	declare := func(name string) {
		if !seen[name] {
			seen[name] = true
			g.nodes = append(g.nodes, name)
		}
	}
	linked := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		if e.Parent == "" || e.Child == "" {
			return nil, errors.InvalidInput("edge endpoints must be non-empty variable names")
		}
		if e.Parent == e.Child {
			return nil, errors.CyclicGraph(fmt.Sprintf("self loop on %q", e.Parent))
		}
		// A repeated edge would register the same parent twice and feed the
		// child's mechanism a duplicated feature.
		if linked[e] {
			return nil, errors.InvalidInput(fmt.Sprintf("duplicate edge %s -> %s", e.Parent, e.Child))
		}
		linked[e] = true
		declare(e.Parent)
		declare(e.Child)
		g.edges = append(g.edges, e)
		g.parents[e.Child] = append(g.parents[e.Child], e.Parent)
		g.children[e.Parent] = append(g.children[e.Parent], e.Child)
	}

	order, err := g.sortTopologically()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// sortTopologically runs Kahn's algorithm; ties among independent nodes are
// broken by declaration order so the result is stable.
func (g *CausalGraph) sortTopologically() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n] = len(g.parents[n])
	}

	var ready []string
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, c := range g.children[n] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for _, n := range g.nodes {
			if indegree[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		return nil, errors.CyclicGraph(fmt.Sprintf("edge set contains a cycle through {%s}", strings.Join(stuck, ", ")))
	}
	return order, nil
}

// Nodes returns all variable names in declaration order.
func (g *CausalGraph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Edges returns the edge list in declaration order.
func (g *CausalGraph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// HasNode reports whether name is a declared variable.
func (g *CausalGraph) HasNode(name string) bool {
	_, ok := g.parents[name]
	if ok {
		return true
	}
	_, ok = g.children[name]
	if ok {
		return true
	}
	for _, n := range g.nodes {
		if n == name {
			return true
		}
	}
	return false
}

// TopologicalOrder returns every node with parents always before children.
func (g *CausalGraph) TopologicalOrder() []string {
	return append([]string(nil), g.order...)
}

// Parents returns the direct parents of node in declaration order.
func (g *CausalGraph) Parents(node string) []string {
	return append([]string(nil), g.parents[node]...)
}

// Children returns the direct children of node in declaration order.
func (g *CausalGraph) Children(node string) []string {
	return append([]string(nil), g.children[node]...)
}

// Roots returns all nodes with no parents.
func (g *CausalGraph) Roots() []string {
	var roots []string
	for _, n := range g.nodes {
		if len(g.parents[n]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// IsRoot reports whether node has no parents.
func (g *CausalGraph) IsRoot(node string) bool {
	return len(g.parents[node]) == 0
}

// Ancestors returns the transitive parents of node, in topological order.
func (g *CausalGraph) Ancestors(node string) []string {
	marked := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		for _, p := range g.parents[n] {
			if !marked[p] {
				marked[p] = true
				walk(p)
			}
		}
	}
	walk(node)
	var out []string
	for _, n := range g.order {
		if marked[n] {
			out = append(out, n)
		}
	}
	return out
}

// Descendants returns the transitive children of node, in topological order.
func (g *CausalGraph) Descendants(node string) []string {
	marked := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		for _, c := range g.children[n] {
			if !marked[c] {
				marked[c] = true
				walk(c)
			}
		}
	}
	walk(node)
	var out []string
	for _, n := range g.order {
		if marked[n] {
			out = append(out, n)
		}
	}
	return out
}

// NonDescendants returns every node that is neither node itself nor one of its
// descendants. These are the conditioning candidates for the local Markov
// independence constraints.
func (g *CausalGraph) NonDescendants(node string) []string {
	desc := make(map[string]bool)
	for _, d := range g.Descendants(node) {
		desc[d] = true
	}
	var out []string
	for _, n := range g.order {
		if n != node && !desc[n] {
			out = append(out, n)
		}
	}
	return out
}
