// Package log defines standard attribute keys for surrogate-model operations.
//
// Keys follow a hierarchical naming convention (e.g. "gp.formulation",
// "search.candidate") so search runs and benchmark reports can be filtered
// consistently in log pipelines.

package log

// Operation context.
const (
	// ComponentKey identifies which package is logging.
	// Examples: "gp", "loo", "search", "performance"
	ComponentKey = "component"

	// OperationKey specifies the operation being performed.
	OperationKey = "op"

	// RunIDKey identifies one hyperparameter search or benchmark run.
	RunIDKey = "run.id"

	// FormulationKey is "local" or "classic".
	FormulationKey = "gp.formulation"

	// PriorKey is the prior mean in use ("mie" or "flat").
	PriorKey = "gp.prior"
)

// Data shape.
const (
	// SamplesKey indicates the number of training samples N.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the potential-parameter dimension D.
	FeaturesKey = "data.features"

	// GridPointsKey indicates the number of radial grid points M.
	GridPointsKey = "data.grid_points"

	// MatrixSizeKey is the order of the covariance matrix being factorised.
	MatrixSizeKey = "data.matrix_size"
)

// Search and scoring.
const (
	// CandidateKey is the index of a hyperparameter candidate.
	CandidateKey = "search.candidate"

	// CandidatesKey is the number of candidates in a batch.
	CandidatesKey = "search.candidates"

	// FailedKey is the number of failed candidates.
	FailedKey = "search.failed"

	// WorkersKey is the size of the worker pool.
	WorkersKey = "search.workers"

	// CriterionKey is "squared_error" or "log_predictive".
	CriterionKey = "search.criterion"

	// SquaredErrorKey records a LOO squared error.
	SquaredErrorKey = "loo.squared_error"

	// LogPredictiveKey records a summed LOO log predictive density.
	LogPredictiveKey = "loo.log_predictive"

	// HyperParamsKey carries a hyperparameter vector.
	HyperParamsKey = "gp.hyperparams"

	// ConditionKey records a covariance condition number.
	ConditionKey = "gp.condition"
)

// Performance and storage.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// TrialsKey is the number of timing repetitions.
	TrialsKey = "perf.trials"

	// CacheHitKey reports whether an artifact was served from the store.
	CacheHitKey = "store.hit"

	// ArtifactKey is the store key of an artifact.
	ArtifactKey = "store.key"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationLOO       = "loo"
	OperationSearch    = "search"
	OperationBenchmark = "benchmark"
	OperationValidate  = "validate"
)
