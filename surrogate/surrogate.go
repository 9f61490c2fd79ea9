// Package surrogate is the production predictor handed to an external
// sampler: a fitted GP posterior with a small memo of recent evaluations.
package surrogate

import (
	"encoding/binary"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/core/model"
	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/gp"
	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/metrics"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/pkg/log"
)

// Surrogate predicts an RDF curve for a parameter vector. It is safe for
// concurrent use.
type Surrogate struct {
	state  *model.StateManager
	post   *gp.Posterior
	memo   *lru.Cache[string, []float64]
	logger log.Logger
}

// New fits reg on set at hp. memo is the number of parameter vectors whose
// curves are retained; zero or less disables memoisation.
func New(reg *gp.Regression, set *dataset.Set, hp kernel.Hyperparameters, memo int) (*Surrogate, error) {
	if reg == nil {
		reg = gp.New(nil, nil)
	}
	post, err := reg.Fit(set, hp)
	if err != nil {
		return nil, errors.Wrap(err, "fit surrogate")
	}

	s := &Surrogate{
		state:  model.NewStateManager(),
		post:   post,
		logger: log.GetLoggerWithName("surrogate"),
	}
	if memo > 0 {
		cache, err := lru.New[string, []float64](memo)
		if err != nil {
			return nil, errors.Wrap(err, "create prediction memo")
		}
		s.memo = cache
	}
	s.state.SetFitted(set.N(), set.D(), set.M())

	s.logger.Info("Surrogate ready",
		log.FormulationKey, post.Formulation().Name(),
		log.PriorKey, reg.Prior().Name(),
		log.SamplesKey, set.N(),
		log.GridPointsKey, set.M(),
		log.HyperParamsKey, hp.String(),
		log.ConditionKey, post.Condition(),
	)
	return s, nil
}

func memoKey(params []float64) string {
	buf := make([]byte, 8*len(params))
	for i, v := range params {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return string(buf)
}

// Evaluate returns the predicted curve for one parameter vector. The
// returned slice is owned by the caller.
func (s *Surrogate) Evaluate(params []float64) ([]float64, error) {
	if err := s.state.RequireFeatures("Surrogate.Evaluate", len(params)); err != nil {
		return nil, err
	}

	var key string
	if s.memo != nil {
		key = memoKey(params)
		if curve, ok := s.memo.Get(key); ok {
			return append([]float64(nil), curve...), nil
		}
	}

	pred, err := s.post.Predict(mat.NewDense(1, len(params), append([]float64(nil), params...)))
	if err != nil {
		return nil, err
	}
	curve := mat.Row(nil, 0, pred)
	if s.memo != nil {
		s.memo.Add(key, append([]float64(nil), curve...))
	}
	return curve, nil
}

// EvaluateBatch predicts one curve per row of x.
func (s *Surrogate) EvaluateBatch(x mat.Matrix) (*mat.Dense, error) {
	_, d := x.Dims()
	if err := s.state.RequireFeatures("Surrogate.EvaluateBatch", d); err != nil {
		return nil, err
	}
	return s.post.Predict(x)
}

// Variance returns the predictive variance along the grid for one
// parameter vector.
func (s *Surrogate) Variance(params []float64) ([]float64, error) {
	if err := s.state.RequireFeatures("Surrogate.Variance", len(params)); err != nil {
		return nil, err
	}
	v, err := s.post.PredictiveVariance(mat.NewDense(1, len(params), append([]float64(nil), params...)))
	if err != nil {
		return nil, err
	}
	return mat.Row(nil, 0, v), nil
}

// Grid returns the radial grid of predicted curves.
func (s *Surrogate) Grid() []float64 { return s.post.Grid() }

// Posterior exposes the fitted posterior.
func (s *Surrogate) Posterior() *gp.Posterior { return s.post }

// Memoised reports how many curves are held in the memo.
func (s *Surrogate) Memoised() int {
	if s.memo == nil {
		return 0
	}
	return s.memo.Len()
}

// Validation compares surrogate predictions with held-out curves.
type Validation struct {
	metrics.Report
	Predictions *mat.Dense
	PerGridSSE  []float64
}

// Validate predicts every row of test and scores the result against the
// true curves. test must share the surrogate's grid.
func Validate(s *Surrogate, test *dataset.Set) (*Validation, error) {
	_, _, m := s.state.Shape()
	if test.M() != m {
		return nil, errors.NewDimensionError("surrogate.Validate", m, test.M(), 1)
	}
	pred, err := s.EvaluateBatch(test.Params())
	if err != nil {
		return nil, err
	}
	report, err := metrics.Evaluate(test.Curves(), pred)
	if err != nil {
		return nil, err
	}
	perGrid, err := metrics.PerGridSSE(test.Curves(), pred)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Validated surrogate",
		log.OperationKey, log.OperationValidate,
		log.SamplesKey, test.N(),
		log.SquaredErrorKey, report.SSE,
		"rmse", report.RMSE,
		"r2", report.R2,
	)
	return &Validation{Report: report, Predictions: pred, PerGridSSE: perGrid}, nil
}
