package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/rdfgp/search"
)

type searchOptions struct {
	trials  int
	workers int
	seed    uint64
	json    bool
}

func newSearchCmd(a *app) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Select hyperparameters by leave-one-out cross-validation",
		Long: `Sample candidate hyperparameters uniformly from the configured bounds,
score each by leave-one-out cross-validation on the training set and
report the best candidate under both criteria. The result is stored and
reused by later runs with the same configuration and data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("trials") {
				a.cfg.Search.Trials = opts.trials
			}
			if flags.Changed("workers") {
				a.cfg.Search.Workers = opts.workers
			}
			if flags.Changed("seed") {
				a.cfg.Search.Seed = opts.seed
			}
			return runSearch(cmd, a, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.trials, "trials", "n", 0, "Override the number of candidates")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Override the worker count (0 = one per CPU)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Override the sampling seed")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output the summary as JSON")
	return cmd
}

type searchSummary struct {
	RunID         string         `json:"run_id"`
	Cached        bool           `json:"cached"`
	Candidates    int            `json:"candidates"`
	Failed        int            `json:"failed"`
	FailedIndices []int          `json:"failed_indices"`
	Criterion     string         `json:"criterion"`
	Best          map[string]any `json:"best"`
	Formulation   string         `json:"formulation"`
	Prior         string         `json:"prior"`
}

func runSearch(cmd *cobra.Command, a *app, opts *searchOptions) error {
	set, err := a.trainingSet()
	if err != nil {
		return err
	}
	criterion, err := a.cfg.Criterion()
	if err != nil {
		return err
	}
	res, cached, err := a.searchResult(cmd.Context(), set)
	if err != nil {
		return err
	}

	if opts.json {
		summary, err := summarize(res, cached, criterion)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	return writeSearchTable(cmd.OutOrStdout(), res, cached, criterion)
}

func summarize(res *search.Result, cached bool, criterion search.Criterion) (*searchSummary, error) {
	failed := res.Failed()
	summary := &searchSummary{
		RunID:         res.RunID,
		Cached:        cached,
		Candidates:    len(res.Candidates),
		Failed:        len(failed),
		FailedIndices: failed,
		Criterion:     string(criterion),
		Best:          map[string]any{},
		Formulation:   res.Formulation,
		Prior:         res.Prior,
	}
	for _, c := range []search.Criterion{search.CriterionSquaredError, search.CriterionLogPredictive} {
		i, err := res.Best(c)
		if err != nil {
			return nil, err
		}
		hp := res.Candidates[i]
		summary.Best[string(c)] = map[string]any{
			"index":          i,
			"length_scales":  hp.LengthScales,
			"width":          hp.Width,
			"noise":          hp.Noise,
			"squared_error":  res.SquaredErrors[i],
			"log_predictive": res.LogPredictives[i],
		}
	}
	return summary, nil
}

func writeSearchTable(out io.Writer, res *search.Result, cached bool, criterion search.Criterion) error {
	failed := res.Failed()
	fmt.Fprintf(out, "run %s (%s/%s, cached=%t): %d candidates, %d failed\n",
		res.RunID, res.Formulation, res.Prior, cached, len(res.Candidates), len(failed))
	if len(failed) > 0 {
		fmt.Fprintf(out, "failed candidates: %v\n", failed)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CRITERION\tINDEX\tSQUARED_ERROR\tLOG_PREDICTIVE\tHYPERPARAMETERS")
	for _, c := range []search.Criterion{search.CriterionSquaredError, search.CriterionLogPredictive} {
		i, err := res.Best(c)
		if err != nil {
			return err
		}
		marker := ""
		if c == criterion {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s%s\t%d\t%.6g\t%.6g\t%s\n", c, marker, i,
			res.SquaredErrors[i], res.LogPredictives[i], res.Candidates[i].String())
	}
	return tw.Flush()
}
