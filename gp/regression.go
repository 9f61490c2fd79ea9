// Package gp implements exact Gaussian-process regression of RDF curves
// with a non-constant prior mean.
//
// Fit factorises Kdd = K(Xd, Xd) + σn·I with a Cholesky decomposition and
// keeps both the factor and the explicit inverse, which leave-one-out
// scoring needs. Predict returns the posterior mean
//
//	μ(Xq) + K(Xq, Xd) · Kdd⁻¹ · (y − μ(Xd))
//
// A Posterior is immutable once returned and is safe for concurrent use.
package gp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/mean"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/pkg/log"
)

// IllConditionedThreshold is the condition number of Kdd above which Fit
// emits an IllConditionedWarning.
const IllConditionedThreshold = 1e12

// Regression fits posteriors for one formulation and prior mean. It holds
// no data and may be shared between goroutines.
type Regression struct {
	formulation Formulation
	prior       mean.Prior
}

// New returns a Regression. A nil prior means the flat prior.
func New(formulation Formulation, prior mean.Prior) *Regression {
	if formulation == nil {
		formulation = Local{}
	}
	if prior == nil {
		prior = mean.Flat{}
	}
	return &Regression{formulation: formulation, prior: prior}
}

// Formulation returns the regression's formulation.
func (r *Regression) Formulation() Formulation { return r.formulation }

// Prior returns the regression's prior mean.
func (r *Regression) Prior() mean.Prior { return r.prior }

// Fit conditions the GP on set under hp.
//
// Errors: InvalidHyperparameterError for bad hp, DimensionError when the
// number of length-scales does not match the formulation, and
// SingularMatrixError when Kdd is not numerically positive-definite.
func (r *Regression) Fit(set *dataset.Set, hp kernel.Hyperparameters) (*Posterior, error) {
	if set == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "gp.Regression.Fit")
	}
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if want := r.formulation.KernelDim(set.D()); hp.Dim() != want {
		return nil, errors.NewDimensionError("gp.Regression.Fit", want, hp.Dim(), 1)
	}

	grid := set.Grid().Values()
	mu, err := mean.Curves(r.prior, set.Params(), grid)
	if err != nil {
		return nil, err
	}
	residual := mat.NewDense(set.N(), set.M(), nil)
	residual.Sub(set.Curves(), mu)

	x, y := r.formulation.design(set.Params(), residual, grid)
	kdd, err := kernel.Symmetric(x, hp.LengthScales, hp.Width, hp.Noise)
	if err != nil {
		return nil, err
	}

	n, _ := x.Dims()
	p := &Posterior{
		formulation: r.formulation,
		prior:       r.prior,
		hp:          hp.Clone(),
		grid:        grid,
		d:           set.D(),
		x:           x,
		y:           y,
	}
	if ok := p.chol.Factorize(kdd); !ok {
		return nil, errors.NewSingularMatrixError("gp.Regression.Fit", n, -1)
	}

	p.inv = mat.NewSymDense(n, nil)
	if err := p.chol.InverseTo(p.inv); err != nil {
		return nil, errors.Wrap(errors.NewSingularMatrixError("gp.Regression.Fit", n, -1), err.Error())
	}
	p.alpha = mat.NewDense(n, y.RawMatrix().Cols, nil)
	if err := p.chol.SolveTo(p.alpha, y); err != nil {
		return nil, errors.Wrap(errors.NewSingularMatrixError("gp.Regression.Fit", n, -1), err.Error())
	}
	if err := errors.CheckMatrix("gp.Regression.Fit", p.alpha, n, y.RawMatrix().Cols); err != nil {
		return nil, errors.Wrap(errors.NewSingularMatrixError("gp.Regression.Fit", n, -1), err.Error())
	}
	p.logDet = p.chol.LogDet()
	p.cond = p.chol.Cond()

	if p.cond > IllConditionedThreshold {
		errors.Warn(errors.NewIllConditionedWarning("gp.Regression.Fit", p.cond, n))
	}

	logger := log.GetLoggerWithName("gp")
	logger.Debug("Fitted posterior",
		log.OperationKey, log.OperationFit,
		log.FormulationKey, r.formulation.Name(),
		log.PriorKey, r.prior.Name(),
		log.MatrixSizeKey, n,
		log.ConditionKey, p.cond,
	)
	return p, nil
}
