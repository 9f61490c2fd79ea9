package mean

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// neon at 42.2 K; ε in kJ/mol, so kB in kJ/K.
var neon = ThermalEnergy{Boltzmann: 1.380649e-26, Avogadro: 6.02214076e23, Temperature: 42.2}

func grid(rMin, rMax float64, m int) []float64 {
	g := make([]float64, m)
	for i := range g {
		g[i] = rMin + (rMax-rMin)*float64(i)/float64(m-1)
	}
	return g
}

func TestThermalEnergyKT(t *testing.T) {
	want := 1.380649e-26 * 6.02214076e23 * 42.2
	if got := neon.KT(); math.Abs(got-want) > 1e-15 {
		t.Errorf("KT() = %v, want %v", got, want)
	}
	if err := (ThermalEnergy{Boltzmann: 1, Avogadro: 1}).Validate(); err == nil {
		t.Error("expected error for zero temperature")
	}
}

func TestPrefactorLennardJones(t *testing.T) {
	// n=12 reduces the Mie prefactor to the Lennard-Jones 4.
	got, err := Prefactor(12)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-4) > 1e-12 {
		t.Errorf("Prefactor(12) = %v, want 4", got)
	}
}

func TestPrefactorDegenerate(t *testing.T) {
	_, err := Prefactor(6)
	var degErr *errors.DegenerateParameterError
	if !errors.As(err, &degErr) {
		t.Fatalf("expected DegenerateParameterError, got %v", err)
	}
}

func TestMieCurveShape(t *testing.T) {
	m := NewMie(neon)
	r := grid(0.2, 1.5, 200)
	params := []float64{12, 0.28, 0.3}

	dst := make([]float64, len(r))
	if err := m.Curve(dst, params, r); err != nil {
		t.Fatal(err)
	}

	// Deep inside the core the Boltzmann factor vanishes, far away it tends to 1.
	if dst[0] > 1e-10 {
		t.Errorf("g(r_min) = %v, want ~0", dst[0])
	}
	if math.Abs(dst[len(dst)-1]-1) > 0.05 {
		t.Errorf("g(r_max) = %v, want ~1", dst[len(dst)-1])
	}

	// The maximum sits at the potential minimum r = 2^(1/6)σ for n=12.
	best := 0
	for i := range dst {
		if dst[i] > dst[best] {
			best = i
		}
	}
	rMin := math.Pow(2, 1.0/6) * 0.28
	if math.Abs(r[best]-rMin) > 2*(r[1]-r[0]) {
		t.Errorf("peak at r=%v, want near %v", r[best], rMin)
	}
	wantPeak := math.Exp(0.3 / neon.KT())
	if math.Abs(dst[best]-wantPeak)/wantPeak > 1e-2 {
		t.Errorf("peak = %v, want ≈ exp(ε/kT) = %v", dst[best], wantPeak)
	}
}

func TestMieValidateParams(t *testing.T) {
	m := NewMie(neon)
	tests := []struct {
		name    string
		rows    []float64
		cols    int
		wantErr bool
		wantRow int
	}{
		{"valid", []float64{12, 0.28, 0.3, 10, 0.3, 0.25}, 3, false, 0},
		{"n equals 6", []float64{12, 0.28, 0.3, 6, 0.3, 0.25}, 3, true, 1},
		{"n below 6", []float64{12, 0.28, 0.3, 9, 0.3, 0.25, 4, 0.3, 0.25}, 3, true, 2},
		{"infinite n", []float64{math.Inf(1), 0.28, 0.3}, 3, true, 0},
		{"zero sigma", []float64{12, 0, 0.3}, 3, true, 0},
		{"too few columns", []float64{12, 0.28}, 2, true, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := mat.NewDense(len(tt.rows)/tt.cols, tt.cols, tt.rows)
			err := m.ValidateParams(x)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			var degErr *errors.DegenerateParameterError
			if tt.wantRow >= 0 && tt.wantErr {
				if !errors.As(err, &degErr) {
					t.Fatalf("expected DegenerateParameterError, got %v", err)
				}
				if degErr.Row != tt.wantRow {
					t.Errorf("Row = %d, want %d", degErr.Row, tt.wantRow)
				}
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	if got := Fingerprint(Flat{}); got != "flat" {
		t.Errorf("Fingerprint(Flat) = %q, want flat", got)
	}

	base := NewMie(neon)
	warmer := NewMie(ThermalEnergy{Boltzmann: neon.Boltzmann, Avogadro: neon.Avogadro, Temperature: 300})
	fixed := &Mie{Thermal: neon, Columns: Columns{Exponent: -1, Sigma: 0, Epsilon: 1}, FixedExponent: 12}
	swapped := &Mie{Thermal: neon, Columns: Columns{Exponent: 0, Sigma: 2, Epsilon: 1}}

	seen := map[string]string{}
	for name, p := range map[string]Prior{"base": base, "warmer": warmer, "fixed": fixed, "swapped": swapped} {
		fp := Fingerprint(p)
		if other, ok := seen[fp]; ok {
			t.Errorf("%s and %s share fingerprint %q", name, other, fp)
		}
		seen[fp] = name
	}
	if Fingerprint(base) != Fingerprint(NewMie(neon)) {
		t.Error("identical priors should share a fingerprint")
	}
}

func TestMieFixedExponent(t *testing.T) {
	m := &Mie{Thermal: neon, Columns: Columns{Exponent: -1, Sigma: 0, Epsilon: 1}, FixedExponent: 12}
	full := NewMie(neon)
	r := grid(0.25, 1, 20)

	a := make([]float64, len(r))
	b := make([]float64, len(r))
	if err := m.Curve(a, []float64{0.28, 0.3}, r); err != nil {
		t.Fatal(err)
	}
	if err := full.Curve(b, []float64{12, 0.28, 0.3}, r); err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestCurves(t *testing.T) {
	r := grid(0.3, 1.2, 15)
	x := mat.NewDense(2, 3, []float64{12, 0.28, 0.3, 10, 0.3, 0.25})

	flat, err := Curves(Flat{}, x, r)
	if err != nil {
		t.Fatal(err)
	}
	if rows, cols := flat.Dims(); rows != 2 || cols != 15 {
		t.Fatalf("dims %dx%d", rows, cols)
	}
	for _, v := range flat.RawMatrix().Data {
		if v != 1 {
			t.Fatalf("flat prior produced %v", v)
		}
	}

	mie, err := Curves(NewMie(neon), x, r)
	if err != nil {
		t.Fatal(err)
	}
	row := make([]float64, len(r))
	if err := NewMie(neon).Curve(row, []float64{10, 0.3, 0.25}, r); err != nil {
		t.Fatal(err)
	}
	for k := range row {
		if mie.At(1, k) != row[k] {
			t.Fatalf("Curves row 1 differs at %d", k)
		}
	}

	bad := mat.NewDense(1, 3, []float64{6, 0.3, 0.3})
	if _, err := Curves(NewMie(neon), bad, r); err == nil {
		t.Error("expected degenerate-parameter error from Curves")
	}
}
