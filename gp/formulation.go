package gp

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// Formulation maps a dataset onto the inputs and targets of the kernel
// regression. Local and Classic are the two implementations; they share all
// of the covariance algebra in Regression and Posterior.
type Formulation interface {
	// Name is "local" or "classic".
	Name() string
	// KernelDim returns the number of length-scales for D parameters.
	KernelDim(d int) int

	design(params mat.Matrix, residual *mat.Dense, grid []float64) (x, y *mat.Dense)
	query(params mat.Matrix, grid []float64) *mat.Dense
	unflatten(f *mat.Dense, p, m int) *mat.Dense
}

// Local is the local/subset formulation: one kernel row per parameter
// vector and the whole curve as a multi-output target. Its covariance is
// N×N regardless of the grid size.
type Local struct{}

// Name implements Formulation.
func (Local) Name() string { return "local" }

// KernelDim implements Formulation.
func (Local) KernelDim(d int) int { return d }

func (Local) design(params mat.Matrix, residual *mat.Dense, _ []float64) (x, y *mat.Dense) {
	return mat.DenseCopyOf(params), residual
}

func (Local) query(params mat.Matrix, _ []float64) *mat.Dense {
	return mat.DenseCopyOf(params)
}

func (Local) unflatten(f *mat.Dense, _, _ int) *mat.Dense {
	return f
}

// Classic is the flattened formulation: every (parameter vector, grid
// point) pair is a kernel row with the grid coordinate appended as an extra
// feature, and the target is a single column. Its covariance is
// (N·M)×(N·M). It exists as a performance baseline.
type Classic struct{}

// Name implements Formulation.
func (Classic) Name() string { return "classic" }

// KernelDim implements Formulation.
func (Classic) KernelDim(d int) int { return d + 1 }

func (c Classic) design(params mat.Matrix, residual *mat.Dense, grid []float64) (x, y *mat.Dense) {
	x = c.query(params, grid)
	n, m := residual.Dims()
	y = mat.NewDense(n*m, 1, nil)
	for i := 0; i < n; i++ {
		for k := 0; k < m; k++ {
			y.Set(i*m+k, 0, residual.At(i, k))
		}
	}
	return x, y
}

// query lays rows out sample-major: row p*M+k holds (params[p], grid[k]).
func (Classic) query(params mat.Matrix, grid []float64) *mat.Dense {
	p, d := params.Dims()
	m := len(grid)
	x := mat.NewDense(p*m, d+1, nil)
	row := make([]float64, d+1)
	for i := 0; i < p; i++ {
		mat.Row(row[:d], i, params)
		for k, r := range grid {
			row[d] = r
			x.SetRow(i*m+k, row)
		}
	}
	return x
}

func (Classic) unflatten(f *mat.Dense, p, m int) *mat.Dense {
	out := mat.NewDense(p, m, nil)
	for i := 0; i < p; i++ {
		for k := 0; k < m; k++ {
			out.Set(i, k, f.At(i*m+k, 0))
		}
	}
	return out
}

// ParseFormulation returns the formulation named by a configuration value.
func ParseFormulation(name string) (Formulation, error) {
	switch strings.ToLower(name) {
	case "local", "subset":
		return Local{}, nil
	case "classic":
		return Classic{}, nil
	default:
		return nil, errors.NewValidationError("model.formulation", "must be local or classic", name)
	}
}
