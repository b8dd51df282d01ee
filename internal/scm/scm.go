// Package scm holds the fitted structural causal model: the causal graph plus
// one trained mechanism per node, with a cached topological order. A fitted
// model is immutable and safe for concurrent read-only queries.
package scm

import (
	"bytes"
	"encoding/gob"

	"gocause/domain/graph"
	"gocause/domain/table"
	"gocause/internal/errors"
	"gocause/internal/mechanism"
)

func init() {
	gob.Register(&mechanism.EmpiricalDistribution{})
	gob.Register(&mechanism.CategoricalDistribution{})
	gob.Register(&mechanism.AdditiveNoiseModel{})
	gob.Register(&mechanism.ClassifierModel{})
}

// NodeModel couples one graph node with its trained mechanism.
type NodeModel struct {
	Node    string
	Kind    table.Kind
	Levels  []string
	Mech    mechanism.Mechanism
	Encoder *mechanism.ParentEncoder
	// CVError is the cross-validated MSE recorded during auto-assignment,
	// NaN for families that are not CV-selected.
	CVError float64
}

// Invertible reports whether the node's mechanism supports noise abduction.
func (nm *NodeModel) Invertible() bool {
	return nm.Mech.Invertible()
}

// SCM is a fitted structural causal model.
type SCM struct {
	graph  *graph.CausalGraph
	kind   mechanism.ModelKind
	nodes  map[string]*NodeModel
	order  []string
	schema []table.Column
}

// Graph returns the underlying causal graph.
func (m *SCM) Graph() *graph.CausalGraph { return m.graph }

// Kind returns the model kind the SCM was built as.
func (m *SCM) Kind() mechanism.ModelKind { return m.kind }

// Order returns the cached topological order.
func (m *SCM) Order() []string { return m.order }

// Node returns the model for one node.
func (m *SCM) Node(name string) (*NodeModel, bool) {
	nm, ok := m.nodes[name]
	return nm, ok
}

// Schema returns the value-less column schema of the fit data, used to give
// sampled tables the same kinds and categorical levels as the observations.
func (m *SCM) Schema() []table.Column {
	return append([]table.Column(nil), m.schema...)
}

// blob is the gob wire form of a fitted model. The graph is stored as its
// edge list and rebuilt on decode.
type blob struct {
	Edges  []graph.Edge
	Kind   mechanism.ModelKind
	Nodes  []*NodeModel
	Schema []table.Column
}

// Encode serializes the fitted model as an opaque blob.
func (m *SCM) Encode() ([]byte, error) {
	b := blob{Edges: m.graph.Edges(), Kind: m.kind, Schema: m.schema}
	for _, node := range m.order {
		b.Nodes = append(b.Nodes, m.nodes[node])
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&b); err != nil {
		return nil, errors.Wrap(err, "failed to serialize fitted model")
	}
	return buf.Bytes(), nil
}

// Decode restores a fitted model from its blob form.
func Decode(data []byte) (*SCM, error) {
	var b blob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize fitted model")
	}
	g, err := graph.Build(b.Edges)
	if err != nil {
		return nil, err
	}
	m := &SCM{
		graph:  g,
		kind:   b.Kind,
		nodes:  make(map[string]*NodeModel, len(b.Nodes)),
		order:  g.TopologicalOrder(),
		schema: b.Schema,
	}
	for _, nm := range b.Nodes {
		m.nodes[nm.Node] = nm
	}
	return m, nil
}
