package loo

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/gp"
	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/mean"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

func syntheticSet(t testing.TB, n, m int, seed uint64) *dataset.Set {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	grid := dataset.Grid{RMin: 0.5, RMax: 2.5, Points: m}
	r := grid.Values()
	params := mat.NewDense(n, 2, nil)
	curves := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		a, b := rng.Float64(), rng.Float64()
		params.SetRow(i, []float64{a, b})
		for k, rk := range r {
			curves.Set(i, k, 1+a*math.Exp(-rk)*math.Cos(3*b*rk)+0.01*rng.NormFloat64())
		}
	}
	set, err := dataset.New(params, curves, grid)
	if err != nil {
		t.Fatal(err)
	}
	return set
}

// relErr is relative for |b| ≥ 1 and absolute below, so scores that cross
// zero do not blow up the ratio.
func relErr(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(math.Abs(b), 1)
}

func TestClosedFormMatchesBruteForce(t *testing.T) {
	set := syntheticSet(t, 12, 8, 42)
	reg := gp.New(gp.Local{}, mean.Flat{})

	candidates := []kernel.Hyperparameters{
		{LengthScales: []float64{0.3, 0.5}, Width: 0.5, Noise: 1e-3},
		{LengthScales: []float64{1.0, 0.2}, Width: 1.0, Noise: 1e-2},
		{LengthScales: []float64{0.7, 0.7}, Width: 2.0, Noise: 1e-4},
	}

	for i, hp := range candidates {
		closed, err := ClosedForm(reg, set, hp)
		if err != nil {
			t.Fatalf("candidate %d closed form: %v", i, err)
		}
		brute, err := BruteForce(reg, set, hp)
		if err != nil {
			t.Fatalf("candidate %d brute force: %v", i, err)
		}

		if e := relErr(closed.SquaredError, brute.SquaredError); e > 1e-4 {
			t.Errorf("candidate %d: squared error %g vs %g (rel %g)", i, closed.SquaredError, brute.SquaredError, e)
		}
		if e := relErr(closed.LogPredictive, brute.LogPredictive); e > 1e-4 {
			t.Errorf("candidate %d: log predictive %g vs %g (rel %g)", i, closed.LogPredictive, brute.LogPredictive, e)
		}
		for k := range closed.PerGrid {
			if e := relErr(closed.PerGrid[k], brute.PerGrid[k]); e > 1e-4 {
				t.Errorf("candidate %d grid %d: g %g vs %g", i, k, closed.PerGrid[k], brute.PerGrid[k])
			}
		}
		if !mat.EqualApprox(closed.Predictions, brute.Predictions, 1e-6) {
			t.Errorf("candidate %d: held-out predictions differ", i)
		}
		if !mat.EqualApprox(closed.Variances, brute.Variances, 1e-6) {
			t.Errorf("candidate %d: held-out variances differ", i)
		}
	}
}

func TestClosedFormMatchesBruteForceMiePrior(t *testing.T) {
	thermal := mean.ThermalEnergy{Boltzmann: 1.380649e-26, Avogadro: 6.02214076e23, Temperature: 42.2}
	prior := mean.NewMie(thermal)
	grid := dataset.Grid{RMin: 0.25, RMax: 1.0, Points: 10}
	params := mat.NewDense(6, 3, []float64{
		12, 0.28, 0.30,
		10, 0.29, 0.28,
		14, 0.27, 0.33,
		11, 0.30, 0.25,
		13, 0.285, 0.31,
		9, 0.275, 0.29,
	})
	curves, err := mean.Curves(prior, params, grid.Values())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 6; i++ {
		for k := 0; k < 10; k++ {
			curves.Set(i, k, curves.At(i, k)+0.02*math.Sin(float64(i+k)))
		}
	}
	set, err := dataset.New(params, curves, grid)
	if err != nil {
		t.Fatal(err)
	}

	reg := gp.New(gp.Local{}, prior)
	hp := kernel.Hyperparameters{LengthScales: []float64{3, 0.02, 0.05}, Width: 0.1, Noise: 1e-4}
	closed, err := ClosedForm(reg, set, hp)
	if err != nil {
		t.Fatal(err)
	}
	brute, err := BruteForce(reg, set, hp)
	if err != nil {
		t.Fatal(err)
	}
	if e := relErr(closed.SquaredError, brute.SquaredError); e > 1e-4 {
		t.Errorf("squared error %g vs %g", closed.SquaredError, brute.SquaredError)
	}
	if e := relErr(closed.LogPredictive, brute.LogPredictive); e > 1e-4 {
		t.Errorf("log predictive %g vs %g", closed.LogPredictive, brute.LogPredictive)
	}
}

func TestClosedFormRequiresLocal(t *testing.T) {
	set := syntheticSet(t, 5, 4, 1)
	_, err := ClosedForm(gp.New(gp.Classic{}, nil), set, kernel.Hyperparameters{LengthScales: []float64{1, 1, 1}, Width: 1, Noise: 1e-3})
	var valErr *errors.ValueError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValueError, got %v", err)
	}

	res, err := BruteForce(gp.New(gp.Classic{}, nil), set, kernel.Hyperparameters{LengthScales: []float64{1, 1, 1}, Width: 1, Noise: 1e-3})
	if err != nil {
		t.Fatalf("classic brute force: %v", err)
	}
	if r, c := res.Predictions.Dims(); r != 5 || c != 4 {
		t.Errorf("predictions %dx%d, want 5x4", r, c)
	}
}

func TestBruteForceNamesSingularFold(t *testing.T) {
	grid := dataset.Grid{RMin: 0, RMax: 1, Points: 2}
	set, err := dataset.New(
		mat.NewDense(3, 1, []float64{0.5, 0.5, 2}),
		mat.NewDense(3, 2, []float64{2, 2, 2, 2, 1, 1}),
		grid,
	)
	if err != nil {
		t.Fatal(err)
	}
	hp := kernel.Hyperparameters{LengthScales: []float64{1}, Width: 1, Noise: 0}

	_, err = BruteForce(gp.New(gp.Local{}, nil), set, hp)
	var singular *errors.SingularMatrixError
	if !errors.As(err, &singular) {
		t.Fatalf("expected SingularMatrixError, got %v", err)
	}
	if singular.Fold != 2 {
		t.Errorf("Fold = %d, want 2", singular.Fold)
	}

	if _, err := ClosedForm(gp.New(gp.Local{}, nil), set, hp); !errors.Is(err, errors.ErrSingularMatrix) {
		t.Errorf("closed form on singular set: got %v", err)
	}
}

func TestResultScoring(t *testing.T) {
	r := &Result{
		Predictions: mat.NewDense(2, 1, []float64{1, 3}),
		Variances:   mat.NewDense(2, 1, []float64{1, 4}),
	}
	actual := mat.NewDense(2, 1, []float64{0, 1})
	if err := r.score(actual); err != nil {
		t.Fatal(err)
	}
	if r.SquaredError != 5 {
		t.Errorf("SquaredError = %v, want 5", r.SquaredError)
	}
	// g = (1/4)(1/1 + 4/4) + (1/4)(log 1 + log 4) + ½log2π
	want := 0.5 + 0.25*math.Log(4) + 0.5*math.Log(2*math.Pi)
	if math.Abs(r.PerGrid[0]-want) > 1e-12 {
		t.Errorf("g = %v, want %v", r.PerGrid[0], want)
	}
	if r.LogPredictive != -r.PerGrid[0] {
		t.Errorf("LogPredictive = %v, want %v", r.LogPredictive, -r.PerGrid[0])
	}
}

func TestEvaluateAndParseMethod(t *testing.T) {
	set := syntheticSet(t, 6, 3, 9)
	reg := gp.New(gp.Local{}, nil)
	hp := kernel.Hyperparameters{LengthScales: []float64{0.5, 0.5}, Width: 1, Noise: 1e-3}

	for _, s := range []string{"closed_form", "BRUTE_FORCE"} {
		m, err := ParseMethod(s)
		if err != nil {
			t.Fatal(err)
		}
		res, err := Evaluate(m, reg, set, hp)
		if err != nil {
			t.Fatal(err)
		}
		if res.Method != m {
			t.Errorf("Method = %s, want %s", res.Method, m)
		}
	}
	if _, err := ParseMethod("kfold"); err == nil {
		t.Error("expected error for unknown method")
	}
	if _, err := Evaluate("kfold", reg, set, hp); err == nil {
		t.Error("expected error from Evaluate for unknown method")
	}
}

func BenchmarkClosedForm(b *testing.B) {
	set := syntheticSet(b, 20, 50, 3)
	reg := gp.New(gp.Local{}, nil)
	hp := kernel.Hyperparameters{LengthScales: []float64{0.5, 0.5}, Width: 1, Noise: 1e-3}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ClosedForm(reg, set, hp)
	}
}
