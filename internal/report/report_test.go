package report

import (
	"math/rand"
	"strings"
	"testing"

	"gocause/domain/graph"
	"gocause/domain/table"
	"gocause/internal/falsify"
	"gocause/internal/mechanism"
	"gocause/internal/scm"
)

func fitModel(t *testing.T) *scm.SCM {
	t.Helper()
	g, err := graph.Build([]graph.Edge{{Parent: "a", Child: "b"}})
	if err != nil {
		t.Fatalf("graph.Build failed: %v", err)
	}
	rng := rand.New(rand.NewSource(8))
	n := 60
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = rng.NormFloat64()
		b[i] = 2*a[i] + 0.1*rng.NormFloat64()
	}
	tbl, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: a},
		{Name: "b", Kind: table.Continuous, Values: b},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}
	m, err := scm.Fit(g, tbl, mechanism.ModelInvertible, rng)
	if err != nil {
		t.Fatalf("scm.Fit failed: %v", err)
	}
	return m
}

func TestSummarize(t *testing.T) {
	m := fitModel(t)
	eval := Summarize(m, nil)

	if eval.ModelKind != "invertible" {
		t.Errorf("ModelKind = %q, want invertible", eval.ModelKind)
	}
	if len(eval.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(eval.Nodes))
	}
	if eval.Nodes[0].Node != "a" || eval.Nodes[0].Family != "empirical" {
		t.Errorf("first node = %+v, want empirical a", eval.Nodes[0])
	}
	if eval.Nodes[1].Parents != 1 {
		t.Errorf("b has %d parents in summary, want 1", eval.Nodes[1].Parents)
	}
	if eval.Nodes[1].NoiseStd <= 0 {
		t.Errorf("b noise std = %v, want positive", eval.Nodes[1].NoiseStd)
	}
}

func TestMarkdown_ContainsTableAndVerdict(t *testing.T) {
	m := fitModel(t)
	outcome := &falsify.Outcome{
		Falsifiable:    true,
		Falsified:      false,
		Explanation:    "The causal graph is both meaningful and supported by data.",
		NumConstraints: 1,
	}
	md := Summarize(m, outcome).Markdown()

	for _, want := range []string{
		"# Causal model evaluation",
		"| Node | Parents | Family | CV error | Noise std |",
		"| a | 0 | empirical |",
		"Falsifiable: true",
		"supported by data",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestHTML_RendersTable(t *testing.T) {
	m := fitModel(t)
	out := string(Summarize(m, nil).HTML())
	if !strings.Contains(out, "<table>") {
		t.Errorf("html output missing table:\n%s", out)
	}
	if !strings.Contains(out, "<h1") {
		t.Errorf("html output missing heading:\n%s", out)
	}
}
