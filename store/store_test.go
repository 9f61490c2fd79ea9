package store_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/kernel"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/search"
	"github.com/YuminosukeSato/rdfgp/store"
)

func sampleResult() *search.Result {
	return &search.Result{
		RunID:       "run-1",
		Formulation: "local",
		Prior:       "mie",
		Method:      "closed_form",
		Candidates: []kernel.Hyperparameters{
			{LengthScales: []float64{0.1, 0.2, 0.30000000000000004}, Width: 1.5, Noise: 1e-9},
			{LengthScales: []float64{math.Nextafter(1, 2), 2, 3}, Width: 2, Noise: 1e-3},
		},
		SquaredErrors:  []float64{0.125, math.NaN()},
		LogPredictives: []float64{-3.25, math.NaN()},
		Failures:       []search.Failure{{Index: 1, Message: "singular covariance"}},
	}
}

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	dir := t.TempDir()

	fs, err := store.NewFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)
	mem, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	disk, err := store.NewSQLiteStore(filepath.Join(dir, "db", "artifacts.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = mem.Close()
		_ = disk.Close()
	})
	return map[string]store.Store{"file": fs, "sqlite-memory": mem, "sqlite-file": disk}
}

func TestRoundTripIsBitExact(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleResult()
			require.NoError(t, st.Save(ctx, "search-a", want))

			var got search.Result
			hit, err := st.Lookup(ctx, "search-a", &got)
			require.NoError(t, err)
			require.True(t, hit)

			assert.Equal(t, want.RunID, got.RunID)
			assert.Equal(t, want.Failures, got.Failures)
			require.Len(t, got.Candidates, 2)
			for i := range want.Candidates {
				for j, ls := range want.Candidates[i].LengthScales {
					assert.Equal(t, math.Float64bits(ls), math.Float64bits(got.Candidates[i].LengthScales[j]))
				}
				assert.Equal(t, math.Float64bits(want.Candidates[i].Noise), math.Float64bits(got.Candidates[i].Noise))
			}
			assert.Equal(t, 0.125, got.SquaredErrors[0])
			assert.True(t, math.IsNaN(got.SquaredErrors[1]))
			assert.True(t, math.IsNaN(got.LogPredictives[1]))
			assert.Equal(t, []int{1}, got.Failed())
		})
	}
}

func TestLookupMissIsExplicit(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var got search.Result
			hit, err := st.Lookup(ctx, "search-missing", &got)
			require.NoError(t, err)
			assert.False(t, hit)
		})
	}
}

func TestSaveReplaces(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Save(ctx, "k", []float64{1}))
			require.NoError(t, st.Save(ctx, "k", []float64{2, 3}))

			var got []float64
			hit, err := st.Lookup(ctx, "k", &got)
			require.NoError(t, err)
			require.True(t, hit)
			assert.Equal(t, []float64{2, 3}, got)
		})
	}
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	var validation *errors.ValidationError
	err = fs.Save(context.Background(), "../escape", 1)
	assert.True(t, errors.As(err, &validation), "got %v", err)
	_, err = fs.Lookup(context.Background(), "a/b", new(int))
	assert.True(t, errors.As(err, &validation), "got %v", err)
}

func TestSQLiteKeys(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Save(ctx, "b", 1))
	require.NoError(t, st.Save(ctx, "a", 2))

	keys, err := st.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestCacheOrCompute(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer st.Close()

	calls := 0
	compute := func(context.Context) (*search.Result, error) {
		calls++
		return sampleResult(), nil
	}

	first, hit, err := store.CacheOrCompute(ctx, st, "search-x", 1, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)

	second, hit, err := store.CacheOrCompute(ctx, st, "search-x", 1, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls, "a hit must not recompute")
	assert.Equal(t, first.RunID, second.RunID)
}

func TestCacheOrComputeAttempts(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	calls := 0
	flaky := func(context.Context) ([]float64, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return []float64{42}, nil
	}

	_, _, err = store.CacheOrCompute(ctx, st, "flaky", 2, flaky)
	require.Error(t, err)
	assert.Equal(t, 2, calls, "compute must be capped at the attempt limit")

	var stored []float64
	hit, err := st.Lookup(ctx, "flaky", &stored)
	require.NoError(t, err)
	assert.False(t, hit, "a failed compute must not be persisted")

	got, hit, err := store.CacheOrCompute(ctx, st, "flaky", 0, flaky)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []float64{42}, got)
	assert.Equal(t, 3, calls)
}

func TestKey(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{1, 2, 3, math.Nextafter(4, 5)})

	k1 := store.Key("search", "local", a, []float64{0.1, 0.2}, 10)
	k2 := store.Key("search", "local", mat.DenseCopyOf(a), []float64{0.1, 0.2}, 10)
	assert.Equal(t, k1, k2, "keys must be stable across equal inputs")
	assert.Regexp(t, `^search-[0-9a-f-]{36}$`, k1)

	assert.NotEqual(t, k1, store.Key("search", "local", b, []float64{0.1, 0.2}, 10), "one ulp must change the key")
	assert.NotEqual(t, k1, store.Key("search", "classic", a, []float64{0.1, 0.2}, 10))
	assert.NotEqual(t, k1, store.Key("benchmark", "local", a, []float64{0.1, 0.2}, 10))
	// A 1x4 matrix with the same values is a different artifact.
	assert.NotEqual(t, k1, store.Key("search", "local", mat.NewDense(1, 4, []float64{1, 2, 3, 4}), []float64{0.1, 0.2}, 10))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	fs, err := store.Open("file", filepath.Join(dir, "f"))
	require.NoError(t, err)
	assert.IsType(t, &store.FileStore{}, fs)

	db, err := store.Open("SQLite", filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, db)
	require.NoError(t, db.Close())

	_, err = store.Open("redis", dir)
	var validation *errors.ValidationError
	assert.True(t, errors.As(err, &validation), "got %v", err)
}
