package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/config"
	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/pkg/log"
	"github.com/YuminosukeSato/rdfgp/search"
	"github.com/YuminosukeSato/rdfgp/store"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "rdfgp.yaml"

// app carries state shared by every subcommand of one invocation.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "rdfgp",
		Short: "Gaussian-process surrogates for radial distribution functions",
		Long: `rdfgp trains a Gaussian-process surrogate that maps pair-potential
parameters to radial distribution functions, selects its hyperparameters
by leave-one-out cross-validation and serves predictions.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", DefaultConfigPath, "Path to the YAML configuration")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newSearchCmd(a),
		newLOOCmd(a),
		newPredictCmd(a),
		newValidateCmd(a),
		newBenchCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if _, err := log.Setup(cfg.LogOptions(cmd.ErrOrStderr())); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) trainingSet() (*dataset.Set, error) {
	d := a.cfg.Data
	if d.TrainParams == "" || d.TrainCurves == "" {
		return nil, errors.NewValidationError("data.train_params", "training data paths are required", d.TrainParams)
	}
	return a.load(d.TrainParams, d.TrainCurves)
}

func (a *app) testSet() (*dataset.Set, error) {
	d := a.cfg.Data
	if d.TestParams == "" || d.TestCurves == "" {
		return nil, errors.NewValidationError("data.test_params", "test data paths are required", d.TestParams)
	}
	return a.load(d.TestParams, d.TestCurves)
}

// load reads RDF curves on the configured grid and converts them to the
// configured target.
func (a *app) load(paramsPath, curvesPath string) (*dataset.Set, error) {
	set, err := dataset.LoadCSV(paramsPath, curvesPath, a.cfg.Grid)
	if err != nil {
		return nil, err
	}
	return a.cfg.PrepareSet(set)
}

func (a *app) openStore() (store.Store, error) {
	return store.Open(a.cfg.Store.Backend, a.cfg.Store.Path)
}

func (a *app) driver() (*search.Driver, error) {
	reg, err := a.cfg.Regression()
	if err != nil {
		return nil, err
	}
	method, err := a.cfg.Method()
	if err != nil {
		return nil, err
	}
	bounds, err := a.cfg.SearchBounds()
	if err != nil {
		return nil, err
	}
	s := a.cfg.Search
	return search.NewDriver(reg, method, bounds, s.Trials, s.Workers, s.Seed), nil
}

// searchResult returns the stored search for the current configuration,
// running it on a miss.
func (a *app) searchResult(ctx context.Context, set *dataset.Set) (*search.Result, bool, error) {
	d, err := a.driver()
	if err != nil {
		return nil, false, err
	}
	st, err := a.openStore()
	if err != nil {
		return nil, false, err
	}
	defer st.Close()
	return d.RunCached(ctx, set, st, a.cfg.Search.Attempts)
}

// hyperparameters returns the production hyperparameters: fixed in the
// configuration, or selected from the stored search by the configured
// criterion.
func (a *app) hyperparameters(ctx context.Context, set *dataset.Set) (kernel.Hyperparameters, error) {
	if h := a.cfg.Model.Hyperparameters; h != nil {
		return h.Kernel(), nil
	}
	res, _, err := a.searchResult(ctx, set)
	if err != nil {
		return kernel.Hyperparameters{}, err
	}
	c, err := a.cfg.Criterion()
	if err != nil {
		return kernel.Hyperparameters{}, err
	}
	return res.Selected(c)
}

// parseVectors parses "1,2,3" arguments into the rows of a matrix.
func parseVectors(args []string) (*mat.Dense, error) {
	var rows [][]float64
	for _, arg := range args {
		var row []float64
		for _, field := range strings.Split(arg, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.NewValidationError("params", "must be comma-separated numbers", arg)
			}
			row = append(row, v)
		}
		if len(rows) > 0 && len(row) != len(rows[0]) {
			return nil, errors.NewDimensionError("parseVectors", len(rows[0]), len(row), 1)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no parameter vectors given")
	}
	x := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		x.SetRow(i, r)
	}
	return x, nil
}

func formatFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func printHyperparameters(cmd *cobra.Command, hp kernel.Hyperparameters) {
	fmt.Fprintf(cmd.OutOrStdout(), "length_scales: %s\nwidth: %g\nnoise: %g\n",
		formatFloats(hp.LengthScales), hp.Width, hp.Noise)
}
