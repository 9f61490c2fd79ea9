// Package performance times the GP formulations against each other and
// projects what an external sampler would pay for repeated evaluations.
// Measurements are purely observational.
package performance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/gp"
	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/mean"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/pkg/log"
)

// MaxClassicSize caps the classic covariance order the harness will
// factorise; larger problems are skipped and reported as such.
const MaxClassicSize = 6000

// Operation names in a Report.
const (
	OpFit     = "fit"
	OpPredict = "predict"
)

// Timing summarises repeated measurements of one operation.
type Timing struct {
	Formulation string
	Operation   string
	MatrixSize  int
	Trials      int
	// Mean and StdDev are in seconds.
	Mean   float64
	StdDev float64
}

// MeanDuration returns Mean as a time.Duration.
func (t Timing) MeanDuration() time.Duration {
	return time.Duration(t.Mean * float64(time.Second))
}

// Report is the outcome of Benchmark.
type Report struct {
	RunID   string
	Trials  int
	Timings []Timing
	// Skipped lists formulations that were not timed, with the reason.
	Skipped map[string]string
}

// Options tunes Benchmark.
type Options struct {
	// GridLengthScale is the length-scale of the grid coordinate in the
	// classic formulation. Zero means five grid steps.
	GridLengthScale float64
	// Formulations defaults to local and classic.
	Formulations []gp.Formulation
}

// Benchmark times Fit and a single-query Predict for the local and classic
// formulations, trials times each, at the production hyperparameters hp
// (one length-scale per parameter).
func Benchmark(ctx context.Context, set *dataset.Set, hp kernel.Hyperparameters, prior mean.Prior, trials int) (*Report, error) {
	return BenchmarkWithOptions(ctx, set, hp, prior, trials, Options{})
}

// BenchmarkWithOptions is Benchmark with explicit Options.
func BenchmarkWithOptions(ctx context.Context, set *dataset.Set, hp kernel.Hyperparameters, prior mean.Prior, trials int, opts Options) (*Report, error) {
	if trials <= 0 {
		return nil, errors.NewValidationError("benchmark.trials", "must be > 0", trials)
	}
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if hp.Dim() != set.D() {
		return nil, errors.NewDimensionError("performance.Benchmark", set.D(), hp.Dim(), 1)
	}
	if opts.GridLengthScale == 0 {
		opts.GridLengthScale = 5 * set.Grid().Step()
	}
	if len(opts.Formulations) == 0 {
		opts.Formulations = []gp.Formulation{gp.Local{}, gp.Classic{}}
	}

	report := &Report{RunID: uuid.New().String(), Trials: trials, Skipped: map[string]string{}}
	logger := log.GetLoggerWithName("performance").With(log.RunIDKey, report.RunID)

	// A query at the centroid of the training parameters.
	query := mat.NewDense(1, set.D(), nil)
	for j := 0; j < set.D(); j++ {
		query.Set(0, j, stat.Mean(mat.Col(nil, j, set.Params()), nil))
	}

	for _, f := range opts.Formulations {
		fhp := hp
		if _, ok := f.(gp.Classic); ok {
			if size := set.N() * set.M(); size > MaxClassicSize {
				report.Skipped[f.Name()] = "covariance too large"
				logger.Warn("Skipping formulation", log.FormulationKey, f.Name(), log.MatrixSizeKey, size)
				continue
			}
			fhp = hp.WithLengthScale(opts.GridLengthScale)
		}

		reg := gp.New(f, prior)
		fit, post, err := timeFit(ctx, reg, set, fhp, trials)
		if err != nil {
			return nil, errors.Wrapf(err, "benchmark %s fit", f.Name())
		}
		predict, err := timePredict(ctx, post, query, trials)
		if err != nil {
			return nil, errors.Wrapf(err, "benchmark %s predict", f.Name())
		}
		fit.Formulation, predict.Formulation = f.Name(), f.Name()
		report.Timings = append(report.Timings, fit, predict)

		logger.Info("Benchmarked formulation",
			log.OperationKey, log.OperationBenchmark,
			log.FormulationKey, f.Name(),
			log.MatrixSizeKey, post.Size(),
			log.TrialsKey, trials,
			"fit_mean_s", fit.Mean,
			"predict_mean_s", predict.Mean,
		)
	}
	return report, nil
}

func timeFit(ctx context.Context, reg *gp.Regression, set *dataset.Set, hp kernel.Hyperparameters, trials int) (Timing, *gp.Posterior, error) {
	samples := make([]float64, trials)
	var post *gp.Posterior
	for i := range samples {
		if err := ctx.Err(); err != nil {
			return Timing{}, nil, err
		}
		start := time.Now()
		p, err := reg.Fit(set, hp)
		samples[i] = time.Since(start).Seconds()
		if err != nil {
			return Timing{}, nil, err
		}
		post = p
	}
	m, s := stat.MeanStdDev(samples, nil)
	return Timing{Operation: OpFit, MatrixSize: post.Size(), Trials: trials, Mean: m, StdDev: s}, post, nil
}

func timePredict(ctx context.Context, post *gp.Posterior, query mat.Matrix, trials int) (Timing, error) {
	samples := make([]float64, trials)
	for i := range samples {
		if err := ctx.Err(); err != nil {
			return Timing{}, err
		}
		start := time.Now()
		_, err := post.Predict(query)
		samples[i] = time.Since(start).Seconds()
		if err != nil {
			return Timing{}, err
		}
	}
	m, s := stat.MeanStdDev(samples, nil)
	return Timing{Operation: OpPredict, MatrixSize: post.Size(), Trials: trials, Mean: m, StdDev: s}, nil
}

// Lookup returns the timing for a formulation and operation.
func (r *Report) Lookup(formulation, op string) (Timing, bool) {
	for _, t := range r.Timings {
		if t.Formulation == formulation && t.Operation == op {
			return t, true
		}
	}
	return Timing{}, false
}

// Projection is the estimated cost of n surrogate evaluations.
type Projection struct {
	Formulation string
	Evaluations int
	Total       time.Duration
}

// Project estimates the wall-clock cost of n prediction calls per
// formulation, as an MCMC sampler would make them.
func (r *Report) Project(n int) []Projection {
	var out []Projection
	for _, t := range r.Timings {
		if t.Operation != OpPredict {
			continue
		}
		out = append(out, Projection{
			Formulation: t.Formulation,
			Evaluations: n,
			Total:       time.Duration(t.Mean * float64(n) * float64(time.Second)),
		})
	}
	return out
}
