// Package mean provides the prior mean functions of the RDF surrogate.
//
// A Prior maps one potential-parameter vector to a curve over the radial
// grid. The GP regresses the residual between the simulated curve and this
// prior and adds the prior back at query points.
package mean

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// Prior is a deterministic mean curve over the radial grid.
type Prior interface {
	// Curve writes the prior mean for params at every grid point into dst,
	// which has len(grid) elements.
	Curve(dst, params, grid []float64) error
	// Name identifies the prior in logs and artifact keys.
	Name() string
}

// ParamValidator is implemented by priors that reject some parameter
// vectors outright. Regression calls it on training and query rows before
// evaluating any curve.
type ParamValidator interface {
	ValidateParams(x mat.Matrix) error
}

// Fingerprinter is implemented by priors whose curves depend on settings
// beyond their name.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint identifies every setting of p that affects its curves, for
// use in artifact keys. Priors without settings are identified by name.
func Fingerprint(p Prior) string {
	if f, ok := p.(Fingerprinter); ok {
		return f.Fingerprint()
	}
	return p.Name()
}

// Curves evaluates p for every row of x and returns an N×M matrix.
func Curves(p Prior, x mat.Matrix, grid []float64) (*mat.Dense, error) {
	n, d := x.Dims()
	if n == 0 || len(grid) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "mean.Curves")
	}
	if v, ok := p.(ParamValidator); ok {
		if err := v.ValidateParams(x); err != nil {
			return nil, err
		}
	}

	out := mat.NewDense(n, len(grid), nil)
	params := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(params, i, x)
		if err := p.Curve(out.RawRowView(i), params, grid); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
	}
	return out, nil
}

// Flat is the constant prior mean 1, used for structure-factor GPs where
// S(q) oscillates about 1.
type Flat struct{}

// Curve implements Prior.
func (Flat) Curve(dst, _, grid []float64) error {
	if len(dst) != len(grid) {
		return errors.NewDimensionError("mean.Flat.Curve", len(grid), len(dst), 1)
	}
	for i := range dst {
		dst[i] = 1
	}
	return nil
}

// Name implements Prior.
func (Flat) Name() string { return "flat" }
