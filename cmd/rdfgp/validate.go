package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/metrics"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/surrogate"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		experimental string
		params       string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compare surrogate predictions with held-out curves",
		Long: `Predict every curve of the configured test set and report SSE, RMSE,
R² and the maximum absolute error. With --experimental and --at, the
prediction at one parameter vector is also compared with an experimental
(r, g) curve resampled onto the grid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.surrogate(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if a.cfg.Data.TestParams != "" {
				test, err := a.testSet()
				if err != nil {
					return err
				}
				v, err := surrogate.Validate(s, test)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "test curves: %d\n", test.N())
				printReport(cmd, v.Report)
			}

			if experimental == "" {
				experimental = a.cfg.Data.Experimental
			}
			if experimental == "" {
				if a.cfg.Data.TestParams == "" {
					return errors.NewValidationError("data.test_params", "nothing to validate without test data or an experimental curve", "")
				}
				return nil
			}
			if params == "" {
				return errors.NewValidationError("at", "a parameter vector is required with an experimental curve", params)
			}
			x, err := parseVectors([]string{params})
			if err != nil {
				return err
			}
			r, g, err := dataset.ReadCurve(experimental)
			if err != nil {
				return err
			}
			resampled, err := dataset.Resample(r, g, a.cfg.Grid)
			if err != nil {
				return err
			}
			target, err := a.cfg.PrepareCurve(resampled)
			if err != nil {
				return err
			}
			pred, err := s.Evaluate(mat.Row(nil, 0, x))
			if err != nil {
				return err
			}
			report, err := metrics.Evaluate(mat.NewDense(1, len(target), target), mat.NewDense(1, len(pred), pred))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "experimental: %s\n", experimental)
			printReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&experimental, "experimental", "e", "", "Experimental (r, g) curve to compare against")
	cmd.Flags().StringVar(&params, "at", "", "Parameter vector for the experimental comparison")
	return cmd
}

func printReport(cmd *cobra.Command, r metrics.Report) {
	fmt.Fprintf(cmd.OutOrStdout(), "sse: %.6g\nrmse: %.6g\nmax_abs_error: %.6g\nr2: %.6f\n",
		r.SSE, r.RMSE, r.MaxAbsError, r.R2)
}
