// Package loo scores GP hyperparameters by leave-one-out cross-validation.
//
// Two evaluators produce the same Result. BruteForce refits the regression
// N times, once per held-out sample. ClosedForm derives every held-out
// prediction from the single full-set inverse Kdd⁻¹:
//
//	q = Kdd⁻¹ · r[:,k]
//	yᵢ − μ₋ᵢ = qᵢ / Kdd⁻¹ᵢᵢ      σ²₋ᵢ = 1 / Kdd⁻¹ᵢᵢ
//
// and is the one the hyperparameter search uses.
package loo

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/gp"
	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// Method selects a LOO evaluator.
type Method string

const (
	MethodClosedForm Method = "closed_form"
	MethodBruteForce Method = "brute_force"
)

// ParseMethod converts a configuration value into a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(s)); m {
	case MethodClosedForm, MethodBruteForce:
		return m, nil
	default:
		return "", errors.NewValidationError("search.loo", "must be closed_form or brute_force", s)
	}
}

// Result holds the leave-one-out outcome of one hyperparameter vector.
type Result struct {
	Method Method

	// Predictions holds the held-out prediction of every sample, N×M.
	Predictions *mat.Dense
	// Variances holds the matching predictive variances, N×M.
	Variances *mat.Dense

	// SquaredError is Σᵢ Σₖ (predicted − actual)².
	SquaredError float64
	// PerGrid holds gₖ, the negative mean LOO log predictive density at
	// grid point k.
	PerGrid []float64
	// LogPredictive is −Σₖ gₖ. Larger is better.
	LogPredictive float64
}

// Evaluate dispatches to the evaluator named by method.
func Evaluate(method Method, reg *gp.Regression, set *dataset.Set, hp kernel.Hyperparameters) (*Result, error) {
	switch method {
	case MethodClosedForm:
		return ClosedForm(reg, set, hp)
	case MethodBruteForce:
		return BruteForce(reg, set, hp)
	default:
		return nil, errors.NewValidationError("loo.method", "unknown method", string(method))
	}
}

// BruteForce refits reg on every N−1 subset and predicts the held-out
// sample. A fold whose covariance cannot be factorised fails the whole
// evaluation with a SingularMatrixError naming the fold.
func BruteForce(reg *gp.Regression, set *dataset.Set, hp kernel.Hyperparameters) (*Result, error) {
	n, m := set.N(), set.M()
	if n < 2 {
		return nil, errors.NewValueError("loo.BruteForce", "need at least 2 samples")
	}

	res := &Result{
		Method:      MethodBruteForce,
		Predictions: mat.NewDense(n, m, nil),
		Variances:   mat.NewDense(n, m, nil),
	}
	for i := 0; i < n; i++ {
		train, err := set.Without(i)
		if err != nil {
			return nil, err
		}
		post, err := reg.Fit(train, hp)
		if err != nil {
			if errors.Is(err, errors.ErrSingularMatrix) {
				return nil, errors.NewSingularMatrixError("loo.BruteForce", n-1, i)
			}
			return nil, errors.Wrapf(err, "leave-out fold %d", i)
		}

		query := mat.NewDense(1, set.D(), set.ParamRow(i))
		pred, err := post.Predict(query)
		if err != nil {
			return nil, err
		}
		variance, err := post.PredictiveVariance(query)
		if err != nil {
			return nil, err
		}
		res.Predictions.SetRow(i, pred.RawRowView(0))
		res.Variances.SetRow(i, variance.RawRowView(0))
	}

	if err := res.score(set.Curves()); err != nil {
		return nil, err
	}
	return res, nil
}

// ClosedForm computes the LOO result from one fit on the full set. It
// requires the local formulation, whose samples are single kernel rows.
func ClosedForm(reg *gp.Regression, set *dataset.Set, hp kernel.Hyperparameters) (*Result, error) {
	if _, ok := reg.Formulation().(gp.Local); !ok {
		return nil, errors.NewValueError("loo.ClosedForm", "closed-form LOO requires the local formulation; use brute_force")
	}
	n, m := set.N(), set.M()
	if n < 2 {
		return nil, errors.NewValueError("loo.ClosedForm", "need at least 2 samples")
	}

	post, err := reg.Fit(set, hp)
	if err != nil {
		return nil, err
	}
	inv := post.Inverse()
	q := post.Weights()

	res := &Result{
		Method:      MethodClosedForm,
		Predictions: mat.NewDense(n, m, nil),
		Variances:   mat.NewDense(n, m, nil),
	}
	for i := 0; i < n; i++ {
		d := inv.At(i, i)
		if !(d > 0) || math.IsInf(d, 0) {
			return nil, errors.NewSingularMatrixError("loo.ClosedForm", n, i)
		}
		for k := 0; k < m; k++ {
			res.Predictions.Set(i, k, set.Curves().At(i, k)-q.At(i, k)/d)
			res.Variances.Set(i, k, 1/d)
		}
	}

	if err := res.score(set.Curves()); err != nil {
		return nil, err
	}
	return res, nil
}

// score fills SquaredError, PerGrid and LogPredictive from Predictions and
// Variances.
func (r *Result) score(actual mat.Matrix) error {
	n, m := r.Predictions.Dims()
	r.PerGrid = make([]float64, m)
	r.SquaredError = 0

	half := 0.5 / float64(n)
	logTwoPi := 0.5 * math.Log(2*math.Pi)
	for k := 0; k < m; k++ {
		var fit, logVar float64
		for i := 0; i < n; i++ {
			e := r.Predictions.At(i, k) - actual.At(i, k)
			v := r.Variances.At(i, k)
			if !(v > 0) {
				return errors.NewSingularMatrixError("loo.score", n, i)
			}
			r.SquaredError += e * e
			fit += e * e / v
			logVar += math.Log(v)
		}
		r.PerGrid[k] = half*fit + half*logVar + logTwoPi
	}
	r.LogPredictive = -floats.Sum(r.PerGrid)

	if err := errors.CheckScalar("loo.score", r.SquaredError); err != nil {
		return err
	}
	return errors.CheckScalar("loo.score", r.LogPredictive)
}
