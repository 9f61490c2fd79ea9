// Package dataset holds the immutable training and test sets consumed by
// the GP: potential-parameter vectors, the RDF curves simulated for them,
// and the radial grid those curves share.
package dataset

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// Grid is a uniform radial grid of Points values from RMin to RMax
// inclusive.
type Grid struct {
	RMin   float64 `yaml:"r_min"`
	RMax   float64 `yaml:"r_max"`
	Points int     `yaml:"points"`
}

// NewGrid validates and returns a Grid.
func NewGrid(rMin, rMax float64, points int) (Grid, error) {
	g := Grid{RMin: rMin, RMax: rMax, Points: points}
	return g, g.Validate()
}

// Validate requires at least two points and RMax > RMin.
func (g Grid) Validate() error {
	if g.Points < 2 {
		return errors.NewValidationError("grid.points", "must be >= 2", g.Points)
	}
	if math.IsNaN(g.RMin) || math.IsInf(g.RMin, 0) || math.IsNaN(g.RMax) || math.IsInf(g.RMax, 0) {
		return errors.NewValidationError("grid", "bounds must be finite", [2]float64{g.RMin, g.RMax})
	}
	if g.RMax <= g.RMin {
		return errors.NewValidationError("grid.r_max", "must be greater than r_min", g.RMax)
	}
	return nil
}

// Values returns the grid coordinates.
func (g Grid) Values() []float64 {
	if g.Points < 2 {
		return []float64{g.RMin}
	}
	return floats.Span(make([]float64, g.Points), g.RMin, g.RMax)
}

// Step returns the grid spacing.
func (g Grid) Step() float64 {
	return (g.RMax - g.RMin) / float64(g.Points-1)
}

// Set is an ordered collection of N samples: an N×D parameter matrix and
// the N×M curves on a shared grid. A Set is never mutated after New; the
// derived sets returned by Without and Subset own their own storage.
type Set struct {
	params *mat.Dense
	curves *mat.Dense
	grid   Grid
}

// New copies params (N×D) and curves (N×M) into a Set.
func New(params, curves mat.Matrix, grid Grid) (*Set, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	n, d := params.Dims()
	cn, m := curves.Dims()
	if n == 0 || d == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.New")
	}
	if cn != n {
		return nil, errors.NewDimensionError("dataset.New", n, cn, 0)
	}
	if m != grid.Points {
		return nil, errors.NewDimensionError("dataset.New", grid.Points, m, 1)
	}
	if err := errors.CheckMatrix("dataset.New params", params, n, d); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("dataset.New curves", curves, n, m); err != nil {
		return nil, err
	}
	return &Set{
		params: mat.DenseCopyOf(params),
		curves: mat.DenseCopyOf(curves),
		grid:   grid,
	}, nil
}

// N returns the number of samples.
func (s *Set) N() int {
	r, _ := s.params.Dims()
	return r
}

// D returns the parameter dimension.
func (s *Set) D() int {
	_, c := s.params.Dims()
	return c
}

// M returns the number of grid points.
func (s *Set) M() int { return s.grid.Points }

// Grid returns the radial grid.
func (s *Set) Grid() Grid { return s.grid }

// Params returns a read-only view of the parameter matrix.
func (s *Set) Params() mat.Matrix { return s.params }

// Curves returns a read-only view of the curve matrix.
func (s *Set) Curves() mat.Matrix { return s.curves }

// ParamRow returns a copy of the parameter vector of sample i.
func (s *Set) ParamRow(i int) []float64 { return mat.Row(nil, i, s.params) }

// CurveRow returns a copy of the curve of sample i.
func (s *Set) CurveRow(i int) []float64 { return mat.Row(nil, i, s.curves) }

// Without returns the set with sample i removed.
func (s *Set) Without(i int) (*Set, error) {
	n := s.N()
	if i < 0 || i >= n {
		return nil, errors.NewValueError("dataset.Set.Without", "index out of range")
	}
	if n == 1 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.Set.Without")
	}
	idx := make([]int, 0, n-1)
	for k := 0; k < n; k++ {
		if k != i {
			idx = append(idx, k)
		}
	}
	return s.Subset(idx)
}

// Subset returns the samples at idx, in that order.
func (s *Set) Subset(idx []int) (*Set, error) {
	if len(idx) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.Set.Subset")
	}
	n, d, m := s.N(), s.D(), s.M()
	params := mat.NewDense(len(idx), d, nil)
	curves := mat.NewDense(len(idx), m, nil)
	for r, i := range idx {
		if i < 0 || i >= n {
			return nil, errors.NewValueError("dataset.Set.Subset", "index out of range")
		}
		params.SetRow(r, s.params.RawRowView(i))
		curves.SetRow(r, s.curves.RawRowView(i))
	}
	return &Set{params: params, curves: curves, grid: s.grid}, nil
}
