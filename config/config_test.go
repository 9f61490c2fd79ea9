package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/dataset"
	"github.com/YuminosukeSato/rdfgp/gp"
	"github.com/YuminosukeSato/rdfgp/mean"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/search"
)

const minimal = `
thermal:
  boltzmann: 1.380649e-26
  avogadro: 6.02214076e23
  temperature: 42.2
search:
  criterion: log_predictive
  bounds:
    length_scales: [[0.1, 1], [0.2, 2]]
`

func TestDecodeAppliesDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(minimal))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Grid, cfg.Grid)
	assert.Equal(t, def.Search.Trials, cfg.Search.Trials)
	assert.Equal(t, "closed_form", cfg.Search.LOO)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.InDelta(t, 1.380649e-26*6.02214076e23*42.2, cfg.Thermal.KT(), 1e-12)

	c, err := cfg.Criterion()
	require.NoError(t, err)
	assert.Equal(t, search.CriterionLogPredictive, c)

	b, err := cfg.SearchBounds()
	require.NoError(t, err)
	assert.Equal(t, []search.Range{{Lo: 0.1, Hi: 1}, {Lo: 0.2, Hi: 2}}, b.LengthScales)
	assert.Equal(t, search.Range{Lo: 1e-10, Hi: 1e-2}, b.Noise)
}

func TestLoadExampleFile(t *testing.T) {
	cfg, err := Load("example.yaml")
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Grid.Points)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, uint64(20231017), cfg.Search.Seed)
	assert.True(t, cfg.ExponentInRange(12))
	assert.False(t, cfg.ExponentInRange(6))

	reg, err := cfg.Regression()
	require.NoError(t, err)
	assert.Equal(t, gp.Local{}, reg.Formulation())
	assert.Equal(t, "mie", reg.Prior().Name())
}

func TestCriterionHasNoDefault(t *testing.T) {
	doc := strings.Replace(minimal, "  criterion: log_predictive\n", "", 1)
	_, err := Decode(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.criterion")
}

func TestMiePriorRequiresThermal(t *testing.T) {
	doc := `
search:
  criterion: squared_error
  bounds:
    length_scales: [[0.1, 1]]
`
	_, err := Decode(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thermal")

	flat := doc + "model:\n  prior: flat\n"
	cfg, err := Decode(strings.NewReader(flat))
	require.NoError(t, err)
	assert.Equal(t, mean.Flat{}, cfg.Prior())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Thermal = mean.ThermalEnergy{Boltzmann: 1, Avogadro: 1, Temperature: 1}
	cfg.Search.Criterion = "squared_error"
	cfg.Search.Bounds.LengthScales = [][]float64{{0.1, 1}}

	cfg.Grid.Points = 1
	cfg.Model.Formulation = "dense"
	cfg.ExponentBounds = []float64{4, 8}
	cfg.Search.Bounds.Noise = []float64{0, 1e-3}
	cfg.Store.Backend = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	var validation *errors.ValidationError
	assert.True(t, errors.As(err, &validation))
	for _, want := range []string{"grid", "model.formulation", "exponent_bounds", "search.bounds.noise", "store.backend"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader(minimal + "surrogate:\n  memo: 3\n"))
	require.Error(t, err)
}

func TestFixedMieExponent(t *testing.T) {
	cfg, err := Decode(strings.NewReader(minimal + "model:\n  mie_exponent: 12\n"))
	require.NoError(t, err)

	m, ok := cfg.Prior().(*mean.Mie)
	require.True(t, ok)
	assert.Equal(t, 12.0, m.FixedExponent)
	assert.Equal(t, -1, m.Columns.Exponent)

	_, err = Decode(strings.NewReader(minimal + "model:\n  mie_exponent: 6\n"))
	require.Error(t, err)
}

func TestExponentMessagesNameTheAttractiveExponent(t *testing.T) {
	_, err := Decode(strings.NewReader(minimal + "model:\n  mie_exponent: 4\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be > 6")
	assert.NotContains(t, err.Error(), "%!")

	for _, bounds := range []string{"[4, 8]", "[2, 5]", "[6, 12]"} {
		_, err := Decode(strings.NewReader(minimal + "exponent_bounds: " + bounds + "\n"))
		require.Error(t, err, "bounds %s", bounds)
		assert.Contains(t, err.Error(), "must lie above 6")
		assert.NotContains(t, err.Error(), "%!")
	}

	_, err = Decode(strings.NewReader(minimal + "exponent_bounds: [6.5, 12]\n"))
	assert.NoError(t, err)
}

func TestStructureFactorTarget(t *testing.T) {
	sq := `
target:
  kind: structure_factor
  density: 0.05
  q_min: 0.5
  q_max: 5
  q_points: 8
`
	_, err := Decode(strings.NewReader(minimal + sq))
	require.Error(t, err, "the mie prior is an RDF mean")
	assert.Contains(t, err.Error(), "target.kind")

	cfg, err := Decode(strings.NewReader(minimal + "model:\n  prior: flat\n" + sq))
	require.NoError(t, err)
	assert.Equal(t, dataset.Grid{RMin: 0.5, RMax: 5, Points: 8}, cfg.QGrid())

	r := cfg.Grid.Values()
	params := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	curves := mat.NewDense(2, len(r), nil)
	for k := range r {
		curves.Set(0, k, 1)
		curves.Set(1, k, 1)
	}
	set, err := dataset.New(params, curves, cfg.Grid)
	require.NoError(t, err)
	out, err := cfg.PrepareSet(set)
	require.NoError(t, err)
	assert.Equal(t, 8, out.M())
	assert.InDelta(t, 1.0, out.Curves().At(1, 3), 1e-12, "g = 1 has S(q) = 1")

	one, err := cfg.PrepareCurve(set.CurveRow(0))
	require.NoError(t, err)
	assert.Equal(t, out.CurveRow(0), one)

	for _, bad := range []string{
		"  kind: sq\n",
		"  kind: structure_factor\n  density: 0\n  q_min: 0.5\n  q_max: 5\n  q_points: 8\n",
		"  kind: structure_factor\n  density: 1\n  q_min: 0\n  q_max: 5\n  q_points: 8\n",
	} {
		_, err := Decode(strings.NewReader(minimal + "model:\n  prior: flat\ntarget:\n" + bad))
		assert.Error(t, err, bad)
	}

	def, err := Decode(strings.NewReader(minimal))
	require.NoError(t, err)
	same, err := def.PrepareSet(set)
	require.NoError(t, err)
	assert.Same(t, set, same)
}

func TestFixedHyperparameters(t *testing.T) {
	doc := minimal + `
model:
  hyperparameters:
    length_scales: [0.5, 0.7]
    width: 1.2
    noise: 1.0e-6
`
	cfg, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.NotNil(t, cfg.Model.Hyperparameters)

	hp := cfg.Model.Hyperparameters.Kernel()
	assert.Equal(t, []float64{0.5, 0.7}, hp.LengthScales)
	assert.Equal(t, 1.2, hp.Width)
	require.NoError(t, hp.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
