package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/rdfgp/mean"
	"github.com/YuminosukeSato/rdfgp/performance"
	"github.com/YuminosukeSato/rdfgp/store"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		trials  int
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time the local and classic formulations",
		Long: `Time fitting (covariance inversion) and a single prediction for the
local and classic formulations at the production hyperparameters, and
project the cost of benchmark.mcmc_evaluations surrogate calls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("trials") {
				a.cfg.Benchmark.Trials = trials
			}
			set, err := a.trainingSet()
			if err != nil {
				return err
			}
			hp, err := a.hyperparameters(cmd.Context(), set)
			if err != nil {
				return err
			}

			// Searched classic hyperparameters carry the grid length-scale
			// last; the harness takes it separately.
			opts := performance.Options{GridLengthScale: a.cfg.Model.GridLengthScale}
			if hp.Dim() == set.D()+1 {
				opts.GridLengthScale = hp.LengthScales[set.D()]
				hp.LengthScales = hp.LengthScales[:set.D()]
			}

			prior := a.cfg.Prior()
			n := a.cfg.Benchmark.Trials
			compute := func(ctx context.Context) (*performance.Report, error) {
				return performance.BenchmarkWithOptions(ctx, set, hp, prior, n, opts)
			}

			report, cached, err := a.benchmark(cmd.Context(), noCache, compute,
				store.Key("benchmark", mean.Fingerprint(prior), hp.LengthScales,
					[]float64{hp.Width, hp.Noise, opts.GridLengthScale}, n,
					set.Params(), set.Curves(), set.Grid()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s (cached=%t), %d trials\n", report.RunID, cached, report.Trials)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FORMULATION\tOPERATION\tSIZE\tMEAN\tSTDDEV")
			for _, t := range report.Timings {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.4gs\t%.2gs\n", t.Formulation, t.Operation, t.MatrixSize, t.Mean, t.StdDev)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for f, reason := range report.Skipped {
				fmt.Fprintf(out, "skipped %s: %s\n", f, reason)
			}
			if e := a.cfg.Benchmark.MCMCEvaluations; e > 0 {
				for _, p := range report.Project(e) {
					fmt.Fprintf(out, "projected %s cost for %d evaluations: %s\n", p.Formulation, p.Evaluations, p.Total)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&trials, "trials", "n", 0, "Override benchmark.trials")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Measure again instead of reusing a stored report")
	return cmd
}

func (a *app) benchmark(ctx context.Context, noCache bool, compute func(context.Context) (*performance.Report, error), key string) (*performance.Report, bool, error) {
	if noCache {
		r, err := compute(ctx)
		return r, false, err
	}
	st, err := a.openStore()
	if err != nil {
		return nil, false, err
	}
	defer st.Close()
	return store.CacheOrCompute(ctx, st, key, 1, compute)
}
