package simulate

import (
	"math"
	"math/rand"
	"testing"

	"gocause/domain/graph"
	"gocause/domain/table"
	"gocause/internal/errors"
	"gocause/internal/mechanism"
	"gocause/internal/scm"
)

// fitChain trains a near-deterministic a -> b -> c model with b = 2a and
// c = 3b, leaving just enough noise for the mechanisms to have residuals.
func fitChain(t *testing.T, kind mechanism.ModelKind) *scm.SCM {
	t.Helper()
	g, err := graph.Build([]graph.Edge{
		{Parent: "a", Child: "b"},
		{Parent: "b", Child: "c"},
	})
	if err != nil {
		t.Fatalf("graph.Build failed: %v", err)
	}

	rng := rand.New(rand.NewSource(17))
	n := 200
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = rng.NormFloat64()
		b[i] = 2*a[i] + 0.01*rng.NormFloat64()
		c[i] = 3*b[i] + 0.01*rng.NormFloat64()
	}
	tbl, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: a},
		{Name: "b", Kind: table.Continuous, Values: b},
		{Name: "c", Kind: table.Continuous, Values: c},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}
	m, err := scm.Fit(g, tbl, kind, rng)
	if err != nil {
		t.Fatalf("scm.Fit failed: %v", err)
	}
	return m
}

func TestSample_AtomicIntervention(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)
	rng := rand.New(rand.NewSource(1))

	out, err := Sample(m, 50, []Intervention{{Target: "a", Kind: Atomic, Value: 5}}, rng)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if out.NumRows() != 50 {
		t.Fatalf("rows = %d, want 50", out.NumRows())
	}

	for i := 0; i < out.NumRows(); i++ {
		av, _ := out.Value(i, "a")
		if av != 5 {
			t.Fatalf("row %d: a = %v, want exactly 5", i, av)
		}
		bv, _ := out.Value(i, "b")
		if math.Abs(bv-10) > 0.5 {
			t.Fatalf("row %d: b = %v, want about 10", i, bv)
		}
		cv, _ := out.Value(i, "c")
		if math.Abs(cv-30) > 1.5 {
			t.Fatalf("row %d: c = %v, want about 30", i, cv)
		}
	}
}

func TestSample_ShiftIntervention(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)

	// A large shift moves the mean of a well away from its natural range.
	out, err := Sample(m, 200, []Intervention{{Target: "a", Kind: Shift, Value: 100}}, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	mean := 0.0
	for i := 0; i < out.NumRows(); i++ {
		v, _ := out.Value(i, "a")
		mean += v
	}
	mean /= float64(out.NumRows())
	if math.Abs(mean-100) > 1 {
		t.Errorf("mean of shifted a = %v, want about 100", mean)
	}
}

func TestSample_NoDownstreamBackPropagation(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)

	// Intervening on the sink must leave upstream distributions untouched.
	out, err := Sample(m, 300, []Intervention{{Target: "c", Kind: Atomic, Value: 1000}}, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	mean := 0.0
	for i := 0; i < out.NumRows(); i++ {
		v, _ := out.Value(i, "a")
		mean += v
	}
	mean /= float64(out.NumRows())
	if math.Abs(mean) > 0.5 {
		t.Errorf("mean of a under do(c) = %v, want about 0", mean)
	}
	for i := 0; i < out.NumRows(); i++ {
		if v, _ := out.Value(i, "c"); v != 1000 {
			t.Fatalf("row %d: c = %v, want 1000", i, v)
		}
	}
}

func TestSample_ZeroRows(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)
	out, err := Sample(m, 0, nil, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if out.NumRows() != 0 {
		t.Errorf("rows = %d, want 0", out.NumRows())
	}
}

func TestSample_NegativeRows(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)
	_, err := Sample(m, -1, nil, rand.New(rand.NewSource(1)))
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Errorf("expected %s, got %v", errors.CodeInvalidInput, err)
	}
}

func TestSample_UnknownTarget(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)
	_, err := Sample(m, 10, []Intervention{{Target: "ghost", Kind: Atomic, Value: 1}}, rand.New(rand.NewSource(1)))
	if !errors.HasCode(err, errors.CodeUnknownInterventionTarget) {
		t.Errorf("expected %s, got %v", errors.CodeUnknownInterventionTarget, err)
	}
}

func TestSample_DuplicateTarget(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)
	_, err := Sample(m, 10, []Intervention{
		{Target: "a", Kind: Atomic, Value: 1},
		{Target: "a", Kind: Atomic, Value: 2},
	}, rand.New(rand.NewSource(1)))
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Errorf("expected %s, got %v", errors.CodeInvalidInput, err)
	}
}

func TestSample_Deterministic(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)
	first, err := Sample(m, 20, nil, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	second, err := Sample(m, 20, nil, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	for i := 0; i < 20; i++ {
		for _, name := range []string{"a", "b", "c"} {
			x, _ := first.Value(i, name)
			y, _ := second.Value(i, name)
			if x != y {
				t.Fatalf("same seed produced different draws at row %d column %s", i, name)
			}
		}
	}
}

func TestCounterfactual_NoOpReturnsObserved(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)
	observed, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: []float64{1}},
		{Name: "b", Kind: table.Continuous, Values: []float64{2.3}},
		{Name: "c", Kind: table.Continuous, Values: []float64{7.1}},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}

	// With no intervention, abduction then replay is the identity.
	out, err := Counterfactual(m, observed, nil)
	if err != nil {
		t.Fatalf("Counterfactual failed: %v", err)
	}
	for _, name := range []string{"a", "b", "c"} {
		want, _ := observed.Value(0, name)
		got, _ := out.Value(0, name)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want observed %v", name, got, want)
		}
	}
}

func TestCounterfactual_PropagatesDownstreamOnly(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)
	observed, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: []float64{1}},
		{Name: "b", Kind: table.Continuous, Values: []float64{2}},
		{Name: "c", Kind: table.Continuous, Values: []float64{6}},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}

	out, err := Counterfactual(m, observed, []Intervention{{Target: "a", Kind: Atomic, Value: 5}})
	if err != nil {
		t.Fatalf("Counterfactual failed: %v", err)
	}

	av, _ := out.Value(0, "a")
	if av != 5 {
		t.Errorf("a = %v, want 5", av)
	}
	// b keeps its abducted noise, so b ≈ 2·5 + (2 − 2·1) = 10.
	bv, _ := out.Value(0, "b")
	if math.Abs(bv-10) > 0.5 {
		t.Errorf("b = %v, want about 10", bv)
	}
	// c ≈ 3·b + (6 − 3·2) = 30.
	cv, _ := out.Value(0, "c")
	if math.Abs(cv-30) > 1.5 {
		t.Errorf("c = %v, want about 30", cv)
	}
}

func TestCounterfactual_RequiresInvertibleKind(t *testing.T) {
	m := fitChain(t, mechanism.ModelNonInvertible)
	observed, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: []float64{1}},
		{Name: "b", Kind: table.Continuous, Values: []float64{2}},
		{Name: "c", Kind: table.Continuous, Values: []float64{6}},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}
	_, err = Counterfactual(m, observed, nil)
	if !errors.HasCode(err, errors.CodeMechanismNotInvertible) {
		t.Errorf("expected %s, got %v", errors.CodeMechanismNotInvertible, err)
	}
}

func TestCounterfactual_MissingObservedColumn(t *testing.T) {
	m := fitChain(t, mechanism.ModelInvertible)
	observed, err := table.New([]table.Column{
		{Name: "a", Kind: table.Continuous, Values: []float64{1}},
		{Name: "b", Kind: table.Continuous, Values: []float64{2}},
	})
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}
	_, err = Counterfactual(m, observed, nil)
	if !errors.HasCode(err, errors.CodeMissingColumn) {
		t.Errorf("expected %s, got %v", errors.CodeMissingColumn, err)
	}
}

func TestSample_AtomicDrawsNoNoise(t *testing.T) {
	// An atomic target takes its constant without consulting the mechanism.
	// With every node pinned the generator must come back untouched.
	m := fitChain(t, mechanism.ModelInvertible)
	rng := rand.New(rand.NewSource(11))

	out, err := Sample(m, 5, []Intervention{
		{Target: "a", Kind: Atomic, Value: 1},
		{Target: "b", Kind: Atomic, Value: 2},
		{Target: "c", Kind: Atomic, Value: 3},
	}, rng)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	for i := 0; i < out.NumRows(); i++ {
		row := out.Row(i)
		if row["a"] != 1 || row["b"] != 2 || row["c"] != 3 {
			t.Fatalf("row %d = %v, want the pinned values", i, row)
		}
	}

	fresh := rand.New(rand.NewSource(11))
	if got, want := rng.Float64(), fresh.Float64(); got != want {
		t.Errorf("generator advanced to %v during all-atomic sampling, want %v", got, want)
	}
}
