package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/rdfgp/loo"
)

func newLOOCmd(a *app) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "loo",
		Short: "Score the production hyperparameters by leave-one-out",
		Long: `Evaluate leave-one-out squared error and log predictive density at the
production hyperparameters, together with the log marginal likelihood of
the fit on the full training set. --method brute_force refits once per
held-out sample and can be used to check the closed-form scores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := a.trainingSet()
			if err != nil {
				return err
			}
			hp, err := a.hyperparameters(cmd.Context(), set)
			if err != nil {
				return err
			}
			m := a.cfg.Search.LOO
			if method != "" {
				m = method
			}
			parsed, err := loo.ParseMethod(m)
			if err != nil {
				return err
			}
			reg, err := a.cfg.Regression()
			if err != nil {
				return err
			}
			res, err := loo.Evaluate(parsed, reg, set, hp)
			if err != nil {
				return err
			}
			post, err := reg.Fit(set, hp)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printHyperparameters(cmd, hp)
			fmt.Fprintf(out, "method: %s\nsquared_error: %.10g\nlog_predictive: %.10g\nlog_marginal_likelihood: %.10g\n",
				res.Method, res.SquaredError, res.LogPredictive, post.LogMarginalLikelihood())
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", "", "closed_form or brute_force (default from config)")
	return cmd
}
