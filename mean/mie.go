package mean

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// AttractiveExponent is the fixed m of the Mie n-m potential.
const AttractiveExponent = 6.0

// degenerateTol is how close n may come to the attractive exponent before
// the Mie prefactor is considered undefined.
const degenerateTol = 1e-9

// ThermalEnergy is the k·T scale of the Boltzmann factor. Boltzmann is given
// per particle in the energy unit of ε, so kT carries the molar unit of ε.
type ThermalEnergy struct {
	Boltzmann   float64 `yaml:"boltzmann"`
	Avogadro    float64 `yaml:"avogadro"`
	Temperature float64 `yaml:"temperature"`
}

// KT returns Boltzmann · Avogadro · Temperature.
func (t ThermalEnergy) KT() float64 {
	return t.Boltzmann * t.Avogadro * t.Temperature
}

// Validate requires every constant to be finite and positive.
func (t ThermalEnergy) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"thermal.boltzmann", t.Boltzmann},
		{"thermal.avogadro", t.Avogadro},
		{"thermal.temperature", t.Temperature},
	} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) || c.v <= 0 {
			return errors.NewValidationError(c.name, "must be finite and > 0", c.v)
		}
	}
	return nil
}

// Columns maps the Mie parameters onto columns of a parameter vector. A
// negative Exponent column means every row uses FixedExponent instead.
type Columns struct {
	Exponent int
	Sigma    int
	Epsilon  int
}

// DefaultColumns is the (n, σ, ε) layout.
var DefaultColumns = Columns{Exponent: 0, Sigma: 1, Epsilon: 2}

// Mie is the physical prior exp(−V(r)/kT) with V the Mie n-6 potential
//
//	V(r) = (n/(n−6))·(n/6)^(6/(n−6))·ε·((σ/r)^n − (σ/r)^6)
type Mie struct {
	Thermal       ThermalEnergy
	Columns       Columns
	FixedExponent float64
}

// NewMie returns a Mie prior for (n, σ, ε) parameter vectors.
func NewMie(thermal ThermalEnergy) *Mie {
	return &Mie{Thermal: thermal, Columns: DefaultColumns}
}

// Name implements Prior.
func (m *Mie) Name() string { return "mie" }

// Fingerprint implements Fingerprinter. Floats contribute their exact bits.
func (m *Mie) Fingerprint() string {
	bits := func(f float64) string { return strconv.FormatUint(math.Float64bits(f), 16) }
	return fmt.Sprintf("mie:kB=%s:NA=%s:T=%s:n=%s:cols=%d,%d,%d",
		bits(m.Thermal.Boltzmann), bits(m.Thermal.Avogadro), bits(m.Thermal.Temperature),
		bits(m.FixedExponent), m.Columns.Exponent, m.Columns.Sigma, m.Columns.Epsilon)
}

func (m *Mie) dim() int {
	d := m.Columns.Sigma
	if m.Columns.Epsilon > d {
		d = m.Columns.Epsilon
	}
	if m.Columns.Exponent > d {
		d = m.Columns.Exponent
	}
	return d + 1
}

func (m *Mie) unpack(params []float64) (n, sigma, epsilon float64) {
	n = m.FixedExponent
	if m.Columns.Exponent >= 0 {
		n = params[m.Columns.Exponent]
	}
	return n, params[m.Columns.Sigma], params[m.Columns.Epsilon]
}

// Prefactor returns (n/(n−6))·(n/6)^(6/(n−6)). It fails for n = 6.
func Prefactor(n float64) (float64, error) {
	if math.Abs(n-AttractiveExponent) < degenerateTol {
		return 0, errors.NewDegenerateParameterError("n", -1, n, "repulsive exponent equals the attractive exponent")
	}
	m := AttractiveExponent
	return (n / (n - m)) * math.Pow(n/m, m/(n-m)), nil
}

// ValidateParams checks every row of x before any curve is evaluated: n
// must exceed 6, since n < 6 flips the sign of the prefactor, and σ must be
// positive.
func (m *Mie) ValidateParams(x mat.Matrix) error {
	if err := m.Thermal.Validate(); err != nil {
		return err
	}
	r, c := x.Dims()
	if need := m.dim(); c < need {
		return errors.NewDimensionError("mean.Mie.ValidateParams", need, c, 1)
	}
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, x)
		n, sigma, epsilon := m.unpack(row)
		if math.Abs(n-AttractiveExponent) < degenerateTol {
			return errors.NewDegenerateParameterError("n", i, n, "repulsive exponent equals the attractive exponent")
		}
		if math.IsNaN(n) || math.IsInf(n, 0) || n <= AttractiveExponent {
			return errors.NewDegenerateParameterError("n", i, n, "must be finite and greater than the attractive exponent")
		}
		if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0 {
			return errors.NewDegenerateParameterError("sigma", i, sigma, "must be finite and > 0")
		}
		if math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
			return errors.NewDegenerateParameterError("epsilon", i, epsilon, "must be finite")
		}
	}
	return nil
}

// Potential returns V(r) for one parameter vector at every grid point.
func (m *Mie) Potential(dst, params, grid []float64) error {
	if len(dst) != len(grid) {
		return errors.NewDimensionError("mean.Mie.Potential", len(grid), len(dst), 1)
	}
	if len(params) < m.dim() {
		return errors.NewDimensionError("mean.Mie.Potential", m.dim(), len(params), 1)
	}
	n, sigma, epsilon := m.unpack(params)
	pre, err := Prefactor(n)
	if err != nil {
		return err
	}
	for i, r := range grid {
		if r <= 0 {
			return errors.NewValueError("mean.Mie.Potential", "radial grid must be strictly positive")
		}
		s := sigma / r
		dst[i] = pre * epsilon * (math.Pow(s, n) - math.Pow(s, AttractiveExponent))
	}
	return nil
}

// Curve implements Prior: exp(−V(r)/kT).
func (m *Mie) Curve(dst, params, grid []float64) error {
	kT := m.Thermal.KT()
	if !(kT > 0) || math.IsInf(kT, 0) {
		return errors.NewValidationError("thermal", "kT must be finite and > 0", kT)
	}
	if err := m.Potential(dst, params, grid); err != nil {
		return err
	}
	for i, v := range dst {
		dst[i] = math.Exp(-v / kT)
	}
	return nil
}
