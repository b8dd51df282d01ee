package falsify

import (
	"testing"

	"gocause/domain/graph"
	"gocause/domain/table"
	"gocause/internal/errors"
)

func buildGraph(t *testing.T, edges []graph.Edge) *graph.CausalGraph {
	t.Helper()
	g, err := graph.Build(edges)
	if err != nil {
		t.Fatalf("graph.Build failed: %v", err)
	}
	return g
}

// signData builds deterministic ±1 design vectors from distinct bits of the
// row index, so any two vectors are exactly orthogonal and mean-zero.
func signData(n int) (u, v, w []float64) {
	u = make([]float64, n)
	v = make([]float64, n)
	w = make([]float64, n)
	for i := 0; i < n; i++ {
		u[i] = float64(1 - 2*((i>>0)&1))
		v[i] = float64(1 - 2*((i>>1)&1))
		w[i] = float64(1 - 2*((i>>2)&1))
	}
	return u, v, w
}

func TestImpliedConstraints_CompleteDAGHasNone(t *testing.T) {
	g := buildGraph(t, []graph.Edge{
		{Parent: "a", Child: "b"},
		{Parent: "a", Child: "c"},
		{Parent: "b", Child: "c"},
	})
	if got := ImpliedConstraints(g); len(got) != 0 {
		t.Errorf("complete DAG implied %d constraints, want 0", len(got))
	}
}

func TestImpliedConstraints_Chain(t *testing.T) {
	g := buildGraph(t, []graph.Edge{
		{Parent: "a", Child: "b"},
		{Parent: "b", Child: "c"},
	})
	got := ImpliedConstraints(g)
	if len(got) != 1 {
		t.Fatalf("chain implied %d constraints, want 1", len(got))
	}
	c := got[0]
	if c.X != "c" || c.Y != "a" || len(c.Given) != 1 || c.Given[0] != "b" {
		t.Errorf("constraint = %+v, want c independent of a given b", c)
	}
}

func TestFalsify_CompleteGraphNotFalsifiable(t *testing.T) {
	g := buildGraph(t, []graph.Edge{
		{Parent: "a", Child: "b"},
		{Parent: "a", Child: "c"},
		{Parent: "b", Child: "c"},
	})
	u, v, w := signData(16)
	tbl, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: u},
		{Name: "b", Kind: table.Continuous, Values: v},
		{Name: "c", Kind: table.Continuous, Values: w},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}

	outcome, err := Falsify(g, tbl)
	if err != nil {
		t.Fatalf("Falsify failed: %v", err)
	}
	if outcome.Falsifiable {
		t.Error("complete DAG must not be falsifiable")
	}
	if outcome.Falsified {
		t.Error("an unfalsifiable graph cannot be falsified")
	}
	if outcome.Explanation != explanationVague {
		t.Errorf("explanation = %q, want the too-vague text", outcome.Explanation)
	}
	if outcome.NumConstraints != 0 {
		t.Errorf("NumConstraints = %d, want 0", outcome.NumConstraints)
	}
}

func TestFalsify_ChainSupportedByConsistentData(t *testing.T) {
	// a = b + u and c = b + v with u, v, b mutually orthogonal: the partial
	// correlation of a and c given b is zero by construction, so the chain's
	// single constraint survives.
	g := buildGraph(t, []graph.Edge{
		{Parent: "a", Child: "b"},
		{Parent: "b", Child: "c"},
	})
	u, v, b := signData(16)
	a := make([]float64, len(b))
	c := make([]float64, len(b))
	for i := range b {
		a[i] = b[i] + u[i]
		c[i] = b[i] + v[i]
	}
	tbl, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: a},
		{Name: "b", Kind: table.Continuous, Values: b},
		{Name: "c", Kind: table.Continuous, Values: c},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}

	outcome, err := Falsify(g, tbl)
	if err != nil {
		t.Fatalf("Falsify failed: %v", err)
	}
	if !outcome.Falsifiable {
		t.Error("chain must be falsifiable")
	}
	if outcome.Falsified {
		t.Errorf("consistent data must not falsify the chain (%d of %d rejected)", outcome.NumRejected, outcome.NumConstraints)
	}
	if outcome.Explanation != explanationSupported {
		t.Errorf("explanation = %q, want the supported text", outcome.Explanation)
	}
}

func TestFalsify_MissingEdgeIsRejected(t *testing.T) {
	// The fork a -> b, a -> c claims b and c are independent given a, but the
	// data has b and c perfectly coupled beyond a.
	g := buildGraph(t, []graph.Edge{
		{Parent: "a", Child: "b"},
		{Parent: "a", Child: "c"},
	})
	u, _, aVals := signData(16)
	b := make([]float64, len(aVals))
	c := make([]float64, len(aVals))
	for i := range aVals {
		b[i] = aVals[i] + u[i]
		c[i] = b[i]
	}
	tbl, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: aVals},
		{Name: "b", Kind: table.Continuous, Values: b},
		{Name: "c", Kind: table.Continuous, Values: c},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}

	outcome, err := Falsify(g, tbl)
	if err != nil {
		t.Fatalf("Falsify failed: %v", err)
	}
	if !outcome.Falsifiable {
		t.Error("fork must be falsifiable")
	}
	if !outcome.Falsified {
		t.Error("perfectly coupled b and c must falsify the fork")
	}
	if outcome.Explanation != explanationFalsified {
		t.Errorf("explanation = %q, want the falsified text", outcome.Explanation)
	}
	if outcome.NumRejected == 0 {
		t.Error("at least one constraint must be rejected")
	}
}

func TestFalsify_MissingColumn(t *testing.T) {
	g := buildGraph(t, []graph.Edge{{Parent: "a", Child: "b"}})
	tbl, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: []float64{1, 2, 3, 4, 5, 6, 7, 8}},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}
	_, err = Falsify(g, tbl)
	if !errors.HasCode(err, errors.CodeMissingColumn) {
		t.Errorf("expected %s, got %v", errors.CodeMissingColumn, err)
	}
}

func TestFalsify_TooFewRows(t *testing.T) {
	g := buildGraph(t, []graph.Edge{{Parent: "a", Child: "b"}})
	tbl, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: []float64{1, 2}},
		{Name: "b", Kind: table.Continuous, Values: []float64{1, 2}},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}
	_, err = Falsify(g, tbl)
	if !errors.HasCode(err, errors.CodeInsufficientData) {
		t.Errorf("expected %s, got %v", errors.CodeInsufficientData, err)
	}
}
