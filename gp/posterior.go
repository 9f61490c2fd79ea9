package gp

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/mean"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// Posterior is a GP conditioned on a training set.
type Posterior struct {
	formulation Formulation
	prior       mean.Prior
	hp          kernel.Hyperparameters
	grid        []float64
	d           int

	x     *mat.Dense // kernel inputs
	y     *mat.Dense // residual targets, y − μ(Xd)
	chol  mat.Cholesky
	inv   *mat.SymDense
	alpha *mat.Dense // Kdd⁻¹ · y

	logDet float64
	cond   float64
}

// Predict returns the posterior mean curve for every row of params (P×D)
// as a P×M matrix.
func (p *Posterior) Predict(params mat.Matrix) (*mat.Dense, error) {
	rows, kqd, err := p.cross("gp.Posterior.Predict", params)
	if err != nil {
		return nil, err
	}
	muQ, err := mean.Curves(p.prior, params, p.grid)
	if err != nil {
		return nil, err
	}

	var f mat.Dense
	f.Mul(kqd, p.alpha)
	out := p.formulation.unflatten(&f, rows, len(p.grid))
	out.Add(out, muQ)
	return out, nil
}

// PredictiveVariance returns w² + σn − kq·Kdd⁻¹·kqᵀ for every query, laid
// out P×M like Predict. In the local formulation all grid points of a
// query share one variance.
func (p *Posterior) PredictiveVariance(params mat.Matrix) (*mat.Dense, error) {
	rows, kqd, err := p.cross("gp.Posterior.PredictiveVariance", params)
	if err != nil {
		return nil, err
	}

	var tmp mat.Dense
	tmp.Mul(kqd, p.inv)
	q, _ := kqd.Dims()
	prior := p.hp.Width*p.hp.Width + p.hp.Noise
	v := mat.NewDense(q, 1, nil)
	for i := 0; i < q; i++ {
		s := prior - floats.Dot(tmp.RawRowView(i), kqd.RawRowView(i))
		// Round-off can push a near-zero variance slightly negative.
		v.Set(i, 0, math.Max(s, 0))
	}

	m := len(p.grid)
	if _, ok := p.formulation.(Local); ok {
		out := mat.NewDense(rows, m, nil)
		for i := 0; i < rows; i++ {
			vi := v.At(i, 0)
			row := out.RawRowView(i)
			for k := range row {
				row[k] = vi
			}
		}
		return out, nil
	}
	return p.formulation.unflatten(v, rows, m), nil
}

func (p *Posterior) cross(op string, params mat.Matrix) (int, *mat.Dense, error) {
	rows, d := params.Dims()
	if d != p.d {
		return 0, nil, errors.NewDimensionError(op, p.d, d, 1)
	}
	xq := p.formulation.query(params, p.grid)
	kqd, err := kernel.SquaredExponential(xq, p.x, p.hp.LengthScales, p.hp.Width)
	if err != nil {
		return 0, nil, err
	}
	return rows, kqd, nil
}

// Inverse returns Kdd⁻¹. The matrix is shared; callers must not modify it.
func (p *Posterior) Inverse() *mat.SymDense { return p.inv }

// Weights returns Kdd⁻¹·(y − μ(Xd)). The matrix is shared.
func (p *Posterior) Weights() *mat.Dense { return p.alpha }

// LogDet returns log |Kdd|.
func (p *Posterior) LogDet() float64 { return p.logDet }

// Condition returns the estimated 2-norm condition number of Kdd.
func (p *Posterior) Condition() float64 { return p.cond }

// Size returns the order of Kdd.
func (p *Posterior) Size() int {
	n, _ := p.x.Dims()
	return n
}

// Formulation returns the formulation the posterior was fitted with.
func (p *Posterior) Formulation() Formulation { return p.formulation }

// Grid returns a copy of the radial grid.
func (p *Posterior) Grid() []float64 { return append([]float64(nil), p.grid...) }

// LogMarginalLikelihood returns Σ_k log p(y[:,k] | Xd) over the target
// columns, treating each column as an independent GP draw.
func (p *Posterior) LogMarginalLikelihood() float64 {
	n, cols := p.y.Dims()
	var fit float64
	for k := 0; k < cols; k++ {
		for i := 0; i < n; i++ {
			fit += p.y.At(i, k) * p.alpha.At(i, k)
		}
	}
	return -0.5*fit - 0.5*float64(cols)*p.logDet - 0.5*float64(cols*n)*math.Log(2*math.Pi)
}
