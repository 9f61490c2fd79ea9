// Package rdfgp builds Gaussian-process surrogates of radial distribution
// functions (RDFs) for calibrating pair-potential parameters without
// running a molecular-dynamics simulation at every step.
//
// A surrogate maps a parameter vector (for a Mie potential: the repulsive
// exponent n, σ and ε) to an RDF sampled on a fixed radial grid. The prior
// mean is either flat or the Boltzmann factor of the Mie potential, and the
// GP models the residual. Hyperparameters are selected by leave-one-out
// cross-validation over uniformly sampled candidates.
//
// # Packages
//
//   - kernel: squared-exponential covariance and the Hyperparameters value
//   - mean: Flat and Mie prior means
//   - dataset: training sets, the radial grid, CSV loading, resampling and
//     the RDF to structure-factor transform
//   - gp: the regression core with Local and Classic formulations
//   - loo: closed-form and brute-force leave-one-out scores
//   - search: the hyperparameter search driver
//   - surrogate: the production predictor handed to a sampler
//   - performance: timing of the two formulations
//   - store: file and SQLite artifact stores with cache-or-compute
//   - config: YAML run configuration
//   - metrics: curve error metrics
//
// # Quick Start
//
//	set, err := dataset.LoadCSV("train_params.csv", "train_rdfs.csv", grid)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reg := gp.New(gp.Local{}, mean.NewMie(thermal))
//	driver := search.NewDriver(reg, loo.MethodClosedForm, bounds, 1000, 0, 1)
//	res, err := driver.Run(ctx, set)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hp, err := res.Selected(search.CriterionSquaredError)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := surrogate.New(reg, set, hp, 1024)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	curve, err := s.Evaluate([]float64{12, 0.275, 0.3})
//
// The rdfgp command (cmd/rdfgp) drives the same steps from a YAML file.
//
// # Error Handling
//
// Errors carry stack traces (github.com/cockroachdb/errors). Typed errors in
// pkg/errors distinguish invalid hyperparameters, singular covariance
// matrices, dimension mismatches and degenerate physical parameters. An
// ill-conditioned covariance is a warning, routed through pkg/log.
package rdfgp
