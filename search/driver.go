// Package search selects GP hyperparameters by scoring uniformly sampled
// candidates with leave-one-out cross-validation.
//
// Candidates are independent, so the driver scores them on a worker pool.
// Each worker owns the matrices of the candidate it is scoring; results are
// written into the slot of the candidate's index, so completion order never
// matters. A candidate that fails (singular covariance, invalid
// hyperparameters, even a panic) is recorded as a failure for its index and
// the rest of the batch continues.
package search

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/rdfgp/core/parallel"
	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/gp"
	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/loo"
	"github.com/YuminosukeSato/rdfgp/mean"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/pkg/log"
	"github.com/YuminosukeSato/rdfgp/store"
)

// Driver runs hyperparameter searches.
type Driver struct {
	Regression *gp.Regression
	Method     loo.Method
	Bounds     Bounds
	Trials     int
	// Workers <= 0 means one worker per CPU.
	Workers int
	Seed    uint64

	logger log.Logger
}

// NewDriver returns a driver with the package logger attached.
func NewDriver(reg *gp.Regression, method loo.Method, bounds Bounds, trials, workers int, seed uint64) *Driver {
	return &Driver{
		Regression: reg,
		Method:     method,
		Bounds:     bounds,
		Trials:     trials,
		Workers:    workers,
		Seed:       seed,
	}
}

// WithLogger returns d with logger attached.
func (d *Driver) WithLogger(logger log.Logger) *Driver {
	d.logger = logger
	return d
}

func (d *Driver) log() log.Logger {
	if d.logger != nil {
		return d.logger
	}
	return log.GetLoggerWithName("search")
}

// Run samples Trials candidates from Bounds and scores them.
func (d *Driver) Run(ctx context.Context, set *dataset.Set) (*Result, error) {
	if err := d.Bounds.Validate(); err != nil {
		return nil, err
	}
	if want := d.Regression.Formulation().KernelDim(set.D()); d.Bounds.Dim() != want {
		return nil, errors.NewDimensionError("search.Driver.Run", want, d.Bounds.Dim(), 1)
	}
	candidates, err := Sample(d.Bounds, d.Trials, d.Seed)
	if err != nil {
		return nil, err
	}
	return d.Evaluate(ctx, set, candidates)
}

// Evaluate scores the given candidates. Recoverable per-candidate failures
// are recorded in Result.Failures. A dimension mismatch is a caller bug
// and is returned as an error, as is cancellation of ctx.
func (d *Driver) Evaluate(ctx context.Context, set *dataset.Set, candidates []kernel.Hyperparameters) (*Result, error) {
	if set == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "search.Driver.Evaluate")
	}
	if len(candidates) == 0 {
		return nil, errors.NewValidationError("candidates", "at least one candidate is required", 0)
	}
	method := d.Method
	if method == "" {
		method = loo.MethodClosedForm
	}

	runID := uuid.New().String()
	logger := d.log().With(log.RunIDKey, runID)
	workers := parallel.Workers(d.Workers, len(candidates))
	logger.Info("Search started",
		log.OperationKey, log.OperationSearch,
		log.CandidatesKey, len(candidates),
		log.WorkersKey, workers,
		log.FormulationKey, d.Regression.Formulation().Name(),
		log.SamplesKey, set.N(),
	)
	start := time.Now()

	n := len(candidates)
	res := &Result{
		RunID:          runID,
		Formulation:    d.Regression.Formulation().Name(),
		Prior:          d.Regression.Prior().Name(),
		Method:         string(method),
		Candidates:     make([]kernel.Hyperparameters, n),
		SquaredErrors:  make([]float64, n),
		LogPredictives: make([]float64, n),
	}
	errs := make([]error, n)

	err := parallel.ForEach(ctx, n, workers, func(ctx context.Context, i int) {
		hp := candidates[i].Clone()
		res.Candidates[i] = hp
		res.SquaredErrors[i] = math.NaN()
		res.LogPredictives[i] = math.NaN()
		if ctx.Err() != nil {
			errs[i] = errors.NewCandidateError(i, ctx.Err())
			return
		}

		errs[i] = errors.SafeCandidate(i, "search.evaluate", func() error {
			out, err := loo.Evaluate(method, d.Regression, set, hp)
			if err != nil {
				return err
			}
			res.SquaredErrors[i] = out.SquaredError
			res.LogPredictives[i] = out.LogPredictive
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "search cancelled")
	}

	for i, e := range errs {
		if e == nil {
			continue
		}
		if !errors.IsRecoverable(e) {
			return nil, e
		}
		res.Failures = append(res.Failures, Failure{Index: i, Message: e.Error()})
		logger.Warn("Candidate failed", e, log.CandidateKey, i, log.HyperParamsKey, candidates[i].String())
	}

	logger.Info("Search finished",
		log.CandidatesKey, n,
		log.FailedKey, len(res.Failures),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// CacheKey identifies the artifact a Run on set would produce.
func (d *Driver) CacheKey(set *dataset.Set) string {
	ls := make([]float64, 0, 2*len(d.Bounds.LengthScales))
	for _, r := range d.Bounds.LengthScales {
		ls = append(ls, r.Lo, r.Hi)
	}
	return store.Key("search",
		d.Regression.Formulation().Name(),
		mean.Fingerprint(d.Regression.Prior()),
		string(d.Method),
		ls,
		[]float64{d.Bounds.Width.Lo, d.Bounds.Width.Hi, d.Bounds.Noise.Lo, d.Bounds.Noise.Hi},
		d.Trials,
		d.Seed,
		set.Params(),
		set.Curves(),
		set.Grid(),
	)
}

// RunCached returns a stored result for this driver and set, or runs the
// search and saves its result once, after every worker has finished.
func (d *Driver) RunCached(ctx context.Context, set *dataset.Set, st store.Store, attempts int) (*Result, bool, error) {
	return store.CacheOrCompute(ctx, st, d.CacheKey(set), attempts, func(ctx context.Context) (*Result, error) {
		return d.Run(ctx, set)
	})
}
