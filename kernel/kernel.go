// Package kernel implements the anisotropic squared-exponential covariance
// function used by every GP formulation in rdfgp.
//
//	K[i,j] = w² · exp(−‖(x1ᵢ − x2ⱼ) / ℓ‖² / 2)
//
// Features are divided by their per-dimension length-scale before the
// Euclidean distance is taken. All functions are pure and safe for
// concurrent use.
package kernel

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/core/parallel"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// parallelRows is the row count above which kernel rows are filled
// concurrently. Local-form matrices stay well below it; classic-form
// matrices with N·M rows exceed it.
const parallelRows = 512

// Hyperparameters is one point of the GP hyperparameter space.
type Hyperparameters struct {
	// LengthScales holds one positive length-scale per input dimension.
	LengthScales []float64
	// Width is the kernel amplitude w; the prior variance is w².
	Width float64
	// Noise is the variance σn added to the covariance diagonal.
	Noise float64
}

// Dim returns the number of input dimensions the hyperparameters cover.
func (h Hyperparameters) Dim() int {
	return len(h.LengthScales)
}

// Validate rejects non-positive or non-finite length-scales and width, and
// negative noise.
func (h Hyperparameters) Validate() error {
	if len(h.LengthScales) == 0 {
		return errors.NewInvalidHyperparameterError("length_scale", -1, 0, "at least one length-scale is required")
	}
	if err := validateLengthScales(h.LengthScales); err != nil {
		return err
	}
	if err := validateWidth(h.Width); err != nil {
		return err
	}
	if math.IsNaN(h.Noise) || math.IsInf(h.Noise, 0) || h.Noise < 0 {
		return errors.NewInvalidHyperparameterError("noise", -1, h.Noise, "must be finite and >= 0")
	}
	return nil
}

// Clone returns a deep copy.
func (h Hyperparameters) Clone() Hyperparameters {
	return Hyperparameters{
		LengthScales: append([]float64(nil), h.LengthScales...),
		Width:        h.Width,
		Noise:        h.Noise,
	}
}

// WithLengthScale returns a copy with an extra length-scale appended. The
// classic formulation uses it for the grid-coordinate column.
func (h Hyperparameters) WithLengthScale(ls float64) Hyperparameters {
	c := h.Clone()
	c.LengthScales = append(c.LengthScales, ls)
	return c
}

func (h Hyperparameters) String() string {
	parts := make([]string, len(h.LengthScales))
	for i, l := range h.LengthScales {
		parts[i] = fmt.Sprintf("%.6g", l)
	}
	return fmt.Sprintf("ℓ=[%s] w=%.6g σn=%.6g", strings.Join(parts, " "), h.Width, h.Noise)
}

func validateLengthScales(ls []float64) error {
	for i, l := range ls {
		if math.IsNaN(l) || math.IsInf(l, 0) || l <= 0 {
			return errors.NewInvalidHyperparameterError("length_scale", i, l, "must be finite and > 0")
		}
	}
	return nil
}

func validateWidth(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return errors.NewInvalidHyperparameterError("width", -1, w, "must be finite and > 0")
	}
	return nil
}

// SquaredExponential returns the P×Q cross-covariance between the rows of
// x1 (P×D) and x2 (Q×D).
//
// It fails with an InvalidHyperparameterError if a length-scale or the
// width is not strictly positive, and with a DimensionError if x1, x2 and
// ls disagree on D.
func SquaredExponential(x1, x2 mat.Matrix, ls []float64, w float64) (*mat.Dense, error) {
	if err := checkInputs("kernel.SquaredExponential", x1, ls, w); err != nil {
		return nil, err
	}
	if _, d2 := x2.Dims(); d2 != len(ls) {
		return nil, errors.NewDimensionError("kernel.SquaredExponential", len(ls), d2, 1)
	}

	a := scaled(x1, ls)
	b := scaled(x2, ls)

	p, q := len(a), len(b)
	if p == 0 || q == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "kernel.SquaredExponential")
	}
	w2 := w * w
	out := mat.NewDense(p, q, nil)
	raw := out.RawMatrix()

	parallel.ParallelizeWithThreshold(p, parallelRows, func(start, end int) {
		for i := start; i < end; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+q]
			for j := range row {
				d := floats.Distance(a[i], b[j], 2)
				row[j] = w2 * math.Exp(-0.5*d*d)
			}
		}
	})
	return out, nil
}

// Symmetric returns K(x, x) + noise·I as a symmetric matrix. Only the upper
// triangle is computed.
func Symmetric(x mat.Matrix, ls []float64, w, noise float64) (*mat.SymDense, error) {
	if err := checkInputs("kernel.Symmetric", x, ls, w); err != nil {
		return nil, err
	}
	if math.IsNaN(noise) || math.IsInf(noise, 0) || noise < 0 {
		return nil, errors.NewInvalidHyperparameterError("noise", -1, noise, "must be finite and >= 0")
	}

	a := scaled(x, ls)
	n := len(a)
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "kernel.Symmetric")
	}
	w2 := w * w
	out := mat.NewSymDense(n, nil)
	raw := out.RawSymmetric()

	parallel.ParallelizeWithThreshold(n, parallelRows, func(start, end int) {
		for i := start; i < end; i++ {
			raw.Data[i*raw.Stride+i] = w2 + noise
			for j := i + 1; j < n; j++ {
				d := floats.Distance(a[i], a[j], 2)
				raw.Data[i*raw.Stride+j] = w2 * math.Exp(-0.5*d*d)
			}
		}
	})
	return out, nil
}

func checkInputs(op string, x mat.Matrix, ls []float64, w float64) error {
	if err := validateLengthScales(ls); err != nil {
		return err
	}
	if err := validateWidth(w); err != nil {
		return err
	}
	if _, d := x.Dims(); d != len(ls) {
		return errors.NewDimensionError(op, len(ls), d, 1)
	}
	return nil
}

// scaled copies the rows of x divided elementwise by ls.
func scaled(x mat.Matrix, ls []float64) [][]float64 {
	r, c := x.Dims()
	rows := make([][]float64, r)
	buf := make([]float64, r*c)
	for i := 0; i < r; i++ {
		row := buf[i*c : (i+1)*c]
		mat.Row(row, i, x)
		floats.Div(row, ls)
		rows[i] = row
	}
	return rows
}
