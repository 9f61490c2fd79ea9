package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// Resample fits a natural cubic spline through irregularly spaced (r, g)
// pairs and evaluates it on grid. Points need not be sorted, but r values
// must be distinct. The grid must lie inside [min r, max r]; the spline is
// never extrapolated.
func Resample(r, g []float64, grid Grid) ([]float64, error) {
	if len(r) != len(g) {
		return nil, errors.NewDimensionError("dataset.Resample", len(r), len(g), 0)
	}
	if len(r) < 3 {
		return nil, errors.NewValueError("dataset.Resample", "need at least 3 points for a cubic spline")
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	xs := append([]float64(nil), r...)
	ys := append([]float64(nil), g...)
	sort.Sort(pairs{xs, ys})
	for i := 1; i < len(xs); i++ {
		if xs[i] == xs[i-1] {
			return nil, errors.NewValueError("dataset.Resample", "duplicate r value")
		}
	}
	if grid.RMin < xs[0] || grid.RMax > xs[len(xs)-1] {
		return nil, errors.NewValueError("dataset.Resample", "grid extends beyond the measured r range")
	}

	var spline interp.NaturalCubic
	if err := spline.Fit(xs, ys); err != nil {
		return nil, errors.Wrap(err, "dataset.Resample")
	}
	values := grid.Values()
	out := make([]float64, len(values))
	for i, x := range values {
		out[i] = spline.Predict(x)
	}
	return out, nil
}

type pairs struct{ x, y []float64 }

func (p pairs) Len() int           { return len(p.x) }
func (p pairs) Less(i, j int) bool { return p.x[i] < p.x[j] }
func (p pairs) Swap(i, j int) {
	p.x[i], p.x[j] = p.x[j], p.x[i]
	p.y[i], p.y[j] = p.y[j], p.y[i]
}

// StructureFactor transforms an RDF sampled on r into the static structure
// factor at each wavenumber in q:
//
//	S(q) = 1 + 4πρ/q · ∫ r (g(r) − 1) sin(qr) dr
//
// rho is the number density in the inverse cube of r's unit. The integral
// uses the trapezoid rule on the given samples.
func StructureFactor(r, g []float64, rho float64, q []float64) ([]float64, error) {
	if len(r) != len(g) {
		return nil, errors.NewDimensionError("dataset.StructureFactor", len(r), len(g), 0)
	}
	if len(r) < 2 {
		return nil, errors.NewValueError("dataset.StructureFactor", "need at least 2 samples")
	}
	if !sort.Float64sAreSorted(r) {
		return nil, errors.NewValueError("dataset.StructureFactor", "r must be increasing")
	}
	if !(rho > 0) {
		return nil, errors.NewValidationError("rho", "must be > 0", rho)
	}

	h := make([]float64, len(r))
	for i := range r {
		h[i] = r[i] * (g[i] - 1)
	}
	f := make([]float64, len(r))
	out := make([]float64, len(q))
	for j, qj := range q {
		if qj == 0 {
			return nil, errors.NewValueError("dataset.StructureFactor", "q must be non-zero")
		}
		for i := range r {
			f[i] = h[i] * math.Sin(qj*r[i])
		}
		out[j] = 1 + 4*math.Pi*rho*integrate.Trapezoidal(r, f)/qj
	}
	return out, nil
}

// QGrid returns n wavenumbers evenly spaced from qMin to qMax inclusive.
func QGrid(qMin, qMax float64, n int) []float64 {
	return floats.Span(make([]float64, n), qMin, qMax)
}

// ToStructureFactor returns a set whose curves are the structure factors
// of s's RDFs on the wavenumber grid q, for number density rho. The
// parameters are unchanged. q must start above zero.
func (s *Set) ToStructureFactor(rho float64, q Grid) (*Set, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !(q.RMin > 0) {
		return nil, errors.NewValidationError("q_min", "must be > 0", q.RMin)
	}
	r := s.grid.Values()
	qs := QGrid(q.RMin, q.RMax, q.Points)
	curves := mat.NewDense(s.N(), q.Points, nil)
	g := make([]float64, s.M())
	for i := 0; i < s.N(); i++ {
		mat.Row(g, i, s.curves)
		sq, err := StructureFactor(r, g, rho, qs)
		if err != nil {
			return nil, errors.Wrapf(err, "curve %d", i)
		}
		curves.SetRow(i, sq)
	}
	return New(s.params, curves, q)
}
