package search

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// Range is a closed sampling interval [Lo, Hi].
type Range struct {
	Lo, Hi float64
}

func (r Range) validate(name string) error {
	if math.IsNaN(r.Lo) || math.IsNaN(r.Hi) || math.IsInf(r.Lo, 0) || math.IsInf(r.Hi, 0) {
		return errors.NewValidationError(name, "bounds must be finite", r)
	}
	if r.Lo <= 0 {
		return errors.NewValidationError(name, "lower bound must be > 0", r.Lo)
	}
	if r.Hi <= r.Lo {
		return errors.NewValidationError(name, "upper bound must be greater than lower bound", r)
	}
	return nil
}

func (r Range) String() string { return fmt.Sprintf("[%g, %g]", r.Lo, r.Hi) }

// Bounds are the per-dimension sampling intervals of the search.
type Bounds struct {
	LengthScales []Range
	Width        Range
	Noise        Range
}

// Dim returns the number of length-scale intervals.
func (b Bounds) Dim() int { return len(b.LengthScales) }

// Validate requires every interval to be finite, strictly positive and
// non-empty.
func (b Bounds) Validate() error {
	if len(b.LengthScales) == 0 {
		return errors.NewValidationError("search.bounds.length_scales", "at least one interval is required", 0)
	}
	for i, r := range b.LengthScales {
		if err := r.validate(fmt.Sprintf("search.bounds.length_scales[%d]", i)); err != nil {
			return err
		}
	}
	if err := b.Width.validate("search.bounds.width"); err != nil {
		return err
	}
	return b.Noise.validate("search.bounds.noise")
}

// Sample draws t hyperparameter vectors uniformly from b. The same seed
// always yields the same candidates.
func Sample(b Bounds, t int, seed uint64) ([]kernel.Hyperparameters, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if t <= 0 {
		return nil, errors.NewValidationError("search.trials", "must be > 0", t)
	}

	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	uniform := func(r Range) distuv.Uniform {
		return distuv.Uniform{Min: r.Lo, Max: r.Hi, Src: src}
	}
	ls := make([]distuv.Uniform, len(b.LengthScales))
	for i, r := range b.LengthScales {
		ls[i] = uniform(r)
	}
	width, noise := uniform(b.Width), uniform(b.Noise)

	out := make([]kernel.Hyperparameters, t)
	for c := range out {
		hp := kernel.Hyperparameters{LengthScales: make([]float64, len(ls))}
		for i := range ls {
			hp.LengthScales[i] = ls[i].Rand()
		}
		hp.Width = width.Rand()
		hp.Noise = noise.Rand()
		out[c] = hp
	}
	return out, nil
}
