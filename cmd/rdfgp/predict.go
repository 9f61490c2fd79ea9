package main

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/mean"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/surrogate"
)

func newPredictCmd(a *app) *cobra.Command {
	var (
		paramsFile string
		variance   bool
	)
	cmd := &cobra.Command{
		Use:   "predict [params...]",
		Short: "Predict RDF curves for parameter vectors",
		Long: `Predict one RDF curve per parameter vector with the production surrogate.
Vectors are given as comma-separated arguments or as rows of a CSV file.
Output is CSV with one row per curve; the header holds the grid.

Examples:
  rdfgp predict 12,0.275,0.3
  rdfgp predict --params queries.csv --variance`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				x   *mat.Dense
				err error
			)
			switch {
			case paramsFile != "" && len(args) > 0:
				return errors.NewValidationError("params", "give vectors as arguments or --params, not both", paramsFile)
			case paramsFile != "":
				x, err = dataset.ReadMatrix(paramsFile)
			default:
				x, err = parseVectors(args)
			}
			if err != nil {
				return err
			}
			if err := a.checkExponents(x); err != nil {
				return err
			}

			s, err := a.surrogate(cmd)
			if err != nil {
				return err
			}
			pred, err := s.EvaluateBatch(x)
			if err != nil {
				return err
			}

			w := csv.NewWriter(cmd.OutOrStdout())
			header := []string{"kind", "row"}
			for _, r := range s.Grid() {
				header = append(header, strconv.FormatFloat(r, 'g', -1, 64))
			}
			if err := w.Write(header); err != nil {
				return err
			}
			rows, _ := x.Dims()
			for i := 0; i < rows; i++ {
				if err := w.Write(record("mean", i, mat.Row(nil, i, pred))); err != nil {
					return err
				}
				if !variance {
					continue
				}
				v, err := s.Variance(mat.Row(nil, i, x))
				if err != nil {
					return err
				}
				if err := w.Write(record("variance", i, v)); err != nil {
					return err
				}
			}
			w.Flush()
			return w.Error()
		},
	}
	cmd.Flags().StringVarP(&paramsFile, "params", "p", "", "CSV file of parameter vectors")
	cmd.Flags().BoolVar(&variance, "variance", false, "Also output the predictive variance")
	return cmd
}

func record(kind string, row int, values []float64) []string {
	out := make([]string, 0, len(values)+2)
	out = append(out, kind, strconv.Itoa(row))
	for _, v := range values {
		out = append(out, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return out
}

// checkExponents rejects query rows whose repulsive exponent lies outside
// the configured exponent bounds.
func (a *app) checkExponents(x mat.Matrix) error {
	m, ok := a.cfg.Prior().(*mean.Mie)
	if !ok || m.Columns.Exponent < 0 {
		return nil
	}
	r, c := x.Dims()
	if m.Columns.Exponent >= c {
		return nil
	}
	for i := 0; i < r; i++ {
		if n := x.At(i, m.Columns.Exponent); !a.cfg.ExponentInRange(n) {
			return errors.NewValidationError(fmt.Sprintf("params[%d].n", i), "outside exponent_bounds", n)
		}
	}
	return nil
}

// surrogate fits the production surrogate on the training set.
func (a *app) surrogate(cmd *cobra.Command) (*surrogate.Surrogate, error) {
	set, err := a.trainingSet()
	if err != nil {
		return nil, err
	}
	hp, err := a.hyperparameters(cmd.Context(), set)
	if err != nil {
		return nil, err
	}
	reg, err := a.cfg.Regression()
	if err != nil {
		return nil, err
	}
	return surrogate.New(reg, set, hp, a.cfg.Model.Memo)
}
