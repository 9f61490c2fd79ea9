package search

import (
	"math"
	"sort"
	"strings"

	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// Criterion selects which LOO score picks the winning candidate. There is
// no default: the two criteria need not agree, so callers choose.
type Criterion string

const (
	// CriterionSquaredError picks the minimum LOO squared error.
	CriterionSquaredError Criterion = "squared_error"
	// CriterionLogPredictive picks the maximum summed LOO log predictive
	// density.
	CriterionLogPredictive Criterion = "log_predictive"
)

// ParseCriterion converts a configuration value into a Criterion.
func ParseCriterion(s string) (Criterion, error) {
	switch c := Criterion(strings.ToLower(s)); c {
	case CriterionSquaredError, CriterionLogPredictive:
		return c, nil
	case "":
		return "", errors.NewValidationError("search.criterion", "an explicit selection criterion is required", s)
	default:
		return "", errors.NewValidationError("search.criterion", "must be squared_error or log_predictive", s)
	}
}

// ErrNoCandidates is returned by Best when every candidate failed.
var ErrNoCandidates = errors.New("rdfgp: no successful candidates")

// Failure records why one candidate could not be scored.
type Failure struct {
	Index   int
	Message string
}

// Result is the outcome of a search: every candidate with both LOO scores.
// Failed candidates keep their slot with NaN scores. Result is a plain
// value and round-trips through the artifact store unchanged.
type Result struct {
	RunID       string
	Formulation string
	Prior       string
	Method      string

	Candidates     []kernel.Hyperparameters
	SquaredErrors  []float64
	LogPredictives []float64
	Failures       []Failure
}

// Failed returns the indices of candidates that could not be scored, in
// increasing order.
func (r *Result) Failed() []int {
	idx := make([]int, len(r.Failures))
	for i, f := range r.Failures {
		idx[i] = f.Index
	}
	sort.Ints(idx)
	return idx
}

// Succeeded returns the number of scored candidates.
func (r *Result) Succeeded() int {
	return len(r.Candidates) - len(r.Failures)
}

// Best returns the index of the winning candidate under c.
func (r *Result) Best(c Criterion) (int, error) {
	switch c {
	case CriterionSquaredError:
		return argBest(r.SquaredErrors, func(a, b float64) bool { return a < b })
	case CriterionLogPredictive:
		return argBest(r.LogPredictives, func(a, b float64) bool { return a > b })
	default:
		_, err := ParseCriterion(string(c))
		return -1, err
	}
}

// Selected returns the winning hyperparameters under c.
func (r *Result) Selected(c Criterion) (kernel.Hyperparameters, error) {
	i, err := r.Best(c)
	if err != nil {
		return kernel.Hyperparameters{}, err
	}
	return r.Candidates[i].Clone(), nil
}

func argBest(scores []float64, better func(a, b float64) bool) (int, error) {
	best := -1
	for i, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		if best < 0 || better(s, scores[best]) {
			best = i
		}
	}
	if best < 0 {
		return -1, ErrNoCandidates
	}
	return best, nil
}
