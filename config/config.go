// Package config loads the YAML run configuration.
//
// The physical constants (for the mie prior) and the selection criterion
// have no defaults and must be present in the file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/gp"
	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/loo"
	"github.com/YuminosukeSato/rdfgp/mean"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/pkg/log"
	"github.com/YuminosukeSato/rdfgp/search"
)

// Config is the full run configuration.
type Config struct {
	Thermal        mean.ThermalEnergy `yaml:"thermal"`
	Grid           dataset.Grid       `yaml:"grid"`
	Model          Model              `yaml:"model"`
	Target         Target             `yaml:"target"`
	ExponentBounds []float64          `yaml:"exponent_bounds"`
	Search         Search             `yaml:"search"`
	Store          Store              `yaml:"store"`
	Benchmark      Benchmark          `yaml:"benchmark"`
	Log            Log                `yaml:"log"`
	Data           Data               `yaml:"data"`
}

// Model selects the regression strategy and prior.
type Model struct {
	Formulation string `yaml:"formulation"`
	Prior       string `yaml:"prior"`
	// MieExponent fixes the repulsive exponent when parameter vectors are
	// (σ, ε) only. Zero means the exponent is the first parameter column.
	MieExponent float64 `yaml:"mie_exponent"`
	// GridLengthScale is the length-scale of the grid coordinate in the
	// classic formulation when it is not searched.
	GridLengthScale float64 `yaml:"grid_length_scale"`
	// Memo is the number of curves the production surrogate retains.
	Memo int `yaml:"memo"`
	// Hyperparameters fixes the production hyperparameters. When empty they
	// come from the stored search result.
	Hyperparameters *Hyperparameters `yaml:"hyperparameters,omitempty"`
}

// Target selects the curves the GP regresses on.
type Target struct {
	// Kind is rdf, the curves as loaded, or structure_factor, their
	// Fourier transform S(q) on the q grid below.
	Kind    string  `yaml:"kind"`
	Density float64 `yaml:"density"`
	QMin    float64 `yaml:"q_min"`
	QMax    float64 `yaml:"q_max"`
	QPoints int     `yaml:"q_points"`
}

// Target kinds.
const (
	TargetRDF             = "rdf"
	TargetStructureFactor = "structure_factor"
)

// Hyperparameters is the YAML form of kernel.Hyperparameters.
type Hyperparameters struct {
	LengthScales []float64 `yaml:"length_scales"`
	Width        float64   `yaml:"width"`
	Noise        float64   `yaml:"noise"`
}

// Search configures the hyperparameter search.
type Search struct {
	Trials    int    `yaml:"trials"`
	Workers   int    `yaml:"workers"`
	Seed      uint64 `yaml:"seed"`
	Criterion string `yaml:"criterion"`
	LOO       string `yaml:"loo"`
	// Attempts caps how often a failed search is recomputed before the
	// error is returned.
	Attempts int    `yaml:"attempts"`
	Bounds   Bounds `yaml:"bounds"`
}

// Bounds are [lo, hi] pairs.
type Bounds struct {
	LengthScales [][]float64 `yaml:"length_scales"`
	Width        []float64   `yaml:"width"`
	Noise        []float64   `yaml:"noise"`
}

// Store selects the artifact backend.
type Store struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Benchmark configures the timing harness.
type Benchmark struct {
	Trials          int `yaml:"trials"`
	MCMCEvaluations int `yaml:"mcmc_evaluations"`
}

// Log configures pkg/log.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Data holds input and output file paths.
type Data struct {
	TrainParams string `yaml:"train_params"`
	TrainCurves string `yaml:"train_curves"`
	TestParams  string `yaml:"test_params"`
	TestCurves  string `yaml:"test_curves"`
	// Experimental is an optional (r, g) reference curve resampled onto
	// the grid.
	Experimental string `yaml:"experimental"`
}

// Default returns a configuration with every optional field filled in.
// Thermal and Search.Criterion are left empty.
func Default() *Config {
	return &Config{
		Grid:   dataset.Grid{RMin: 0.2, RMax: 1.2, Points: 100},
		Model:  Model{Formulation: "local", Prior: "mie", Memo: 1024},
		Target: Target{Kind: TargetRDF},
		Search: Search{
			Trials:   1000,
			Seed:     1,
			LOO:      string(loo.MethodClosedForm),
			Attempts: 1,
			Bounds: Bounds{
				Width: []float64{0.1, 10},
				Noise: []float64{1e-10, 1e-2},
			},
		},
		Store:     Store{Backend: "file", Path: "artifacts"},
		Benchmark: Benchmark{Trials: 10, MCMCEvaluations: 100000},
		Log:       Log{Level: "info", Format: "json"},
	}
}

// Load reads and validates the configuration at path on top of Default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: open %s", path)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses YAML from r on top of Default and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "config: parse")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error
	add := func(param, reason string, value interface{}) {
		errs = append(errs, errors.NewValidationError(param, reason, value))
	}

	mie := strings.ToLower(c.Model.Prior) == "mie"
	if mie && c.Thermal == (mean.ThermalEnergy{}) {
		add("thermal", "physical constants are required by the mie prior", c.Thermal)
	} else if mie || c.Thermal != (mean.ThermalEnergy{}) {
		if err := c.Thermal.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Grid.Validate(); err != nil {
		errs = append(errs, err)
	}

	if _, err := gp.ParseFormulation(c.Model.Formulation); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Model.Prior) {
	case "mie", "flat":
	default:
		add("model.prior", "must be mie or flat", c.Model.Prior)
	}
	if c.Model.MieExponent != 0 && c.Model.MieExponent <= mean.AttractiveExponent {
		add("model.mie_exponent", fmt.Sprintf("must be > %g", mean.AttractiveExponent), c.Model.MieExponent)
	}
	if c.Model.GridLengthScale < 0 {
		add("model.grid_length_scale", "must be >= 0", c.Model.GridLengthScale)
	}
	if c.Model.Hyperparameters != nil {
		if err := c.Model.Hyperparameters.Kernel().Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToLower(c.Target.Kind) {
	case TargetRDF:
	case TargetStructureFactor:
		if strings.ToLower(c.Model.Prior) != "flat" {
			add("target.kind", "structure_factor needs the flat prior", c.Model.Prior)
		}
		if !(c.Target.Density > 0) {
			add("target.density", "must be > 0", c.Target.Density)
		}
		if err := c.QGrid().Validate(); err != nil {
			errs = append(errs, errors.Wrap(err, "target q grid"))
		}
		if !(c.Target.QMin > 0) {
			add("target.q_min", "must be > 0", c.Target.QMin)
		}
	default:
		add("target.kind", "must be rdf or structure_factor", c.Target.Kind)
	}

	if c.ExponentBounds != nil {
		switch {
		case len(c.ExponentBounds) != 2 || c.ExponentBounds[1] <= c.ExponentBounds[0]:
			add("exponent_bounds", "must be [lo, hi] with hi > lo", c.ExponentBounds)
		case c.ExponentBounds[0] <= mean.AttractiveExponent:
			add("exponent_bounds", fmt.Sprintf("must lie above %g", mean.AttractiveExponent), c.ExponentBounds)
		}
	}

	if c.Search.Trials <= 0 {
		add("search.trials", "must be > 0", c.Search.Trials)
	}
	if c.Search.Workers < 0 {
		add("search.workers", "must be >= 0", c.Search.Workers)
	}
	if c.Search.Attempts < 1 {
		add("search.attempts", "must be >= 1", c.Search.Attempts)
	}
	if _, err := search.ParseCriterion(c.Search.Criterion); err != nil {
		errs = append(errs, err)
	}
	if _, err := loo.ParseMethod(c.Search.LOO); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SearchBounds(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.Store.Backend) {
	case "file", "sqlite":
	default:
		add("store.backend", "must be file or sqlite", c.Store.Backend)
	}
	if c.Store.Path == "" {
		add("store.path", "must not be empty", c.Store.Path)
	}

	if c.Benchmark.Trials <= 0 {
		add("benchmark.trials", "must be > 0", c.Benchmark.Trials)
	}
	if c.Benchmark.MCMCEvaluations < 0 {
		add("benchmark.mcmc_evaluations", "must be >= 0", c.Benchmark.MCMCEvaluations)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		add("log.format", "must be json or console", c.Log.Format)
	}

	return errors.Join(errs...)
}

func pair(name string, v []float64) (search.Range, error) {
	if len(v) != 2 {
		return search.Range{}, errors.NewValidationError(name, "must be [lo, hi]", v)
	}
	return search.Range{Lo: v[0], Hi: v[1]}, nil
}

// SearchBounds converts the configured bounds.
func (c *Config) SearchBounds() (search.Bounds, error) {
	var b search.Bounds
	for i, ls := range c.Search.Bounds.LengthScales {
		r, err := pair(fmt.Sprintf("search.bounds.length_scales[%d]", i), ls)
		if err != nil {
			return search.Bounds{}, err
		}
		b.LengthScales = append(b.LengthScales, r)
	}
	var err error
	if b.Width, err = pair("search.bounds.width", c.Search.Bounds.Width); err != nil {
		return search.Bounds{}, err
	}
	if b.Noise, err = pair("search.bounds.noise", c.Search.Bounds.Noise); err != nil {
		return search.Bounds{}, err
	}
	if err := b.Validate(); err != nil {
		return search.Bounds{}, err
	}
	return b, nil
}

// Prior builds the configured prior mean.
func (c *Config) Prior() mean.Prior {
	if strings.ToLower(c.Model.Prior) == "flat" {
		return mean.Flat{}
	}
	m := mean.NewMie(c.Thermal)
	if c.Model.MieExponent != 0 {
		m.FixedExponent = c.Model.MieExponent
		m.Columns = mean.Columns{Exponent: -1, Sigma: 0, Epsilon: 1}
	}
	return m
}

// QGrid returns the wavenumber grid of the structure-factor target.
func (c *Config) QGrid() dataset.Grid {
	return dataset.Grid{RMin: c.Target.QMin, RMax: c.Target.QMax, Points: c.Target.QPoints}
}

// PrepareSet converts a loaded RDF set into the configured target.
func (c *Config) PrepareSet(set *dataset.Set) (*dataset.Set, error) {
	if strings.ToLower(c.Target.Kind) != TargetStructureFactor {
		return set, nil
	}
	return set.ToStructureFactor(c.Target.Density, c.QGrid())
}

// PrepareCurve converts one RDF sampled on Grid into the configured target.
func (c *Config) PrepareCurve(g []float64) ([]float64, error) {
	if strings.ToLower(c.Target.Kind) != TargetStructureFactor {
		return g, nil
	}
	q := c.QGrid()
	return dataset.StructureFactor(c.Grid.Values(), g, c.Target.Density, dataset.QGrid(q.RMin, q.RMax, q.Points))
}

// Regression builds the configured regression core.
func (c *Config) Regression() (*gp.Regression, error) {
	f, err := gp.ParseFormulation(c.Model.Formulation)
	if err != nil {
		return nil, err
	}
	return gp.New(f, c.Prior()), nil
}

// Criterion returns the parsed selection criterion.
func (c *Config) Criterion() (search.Criterion, error) {
	return search.ParseCriterion(c.Search.Criterion)
}

// Method returns the parsed LOO method.
func (c *Config) Method() (loo.Method, error) {
	return loo.ParseMethod(c.Search.LOO)
}

// ExponentInRange reports whether a repulsive exponent lies within
// ExponentBounds. It is always true when no bounds are configured.
func (c *Config) ExponentInRange(n float64) bool {
	if len(c.ExponentBounds) != 2 {
		return true
	}
	return n >= c.ExponentBounds[0] && n <= c.ExponentBounds[1]
}

// LogOptions returns the options for log.Setup.
func (c *Config) LogOptions(w io.Writer) log.Options {
	return log.Options{Level: c.Log.Level, Format: c.Log.Format, Writer: w}
}

// Kernel converts to kernel.Hyperparameters.
func (h *Hyperparameters) Kernel() kernel.Hyperparameters {
	return kernel.Hyperparameters{
		LengthScales: append([]float64(nil), h.LengthScales...),
		Width:        h.Width,
		Noise:        h.Noise,
	}
}
