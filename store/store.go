// Package store persists search results and benchmark reports so repeated
// runs can skip recomputation.
//
// A lookup reports presence explicitly (hit or miss); a missing artifact is
// never signalled by a decode failure. CacheOrCompute builds the
// cache-or-compute strategy on top of that.
package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
	"github.com/YuminosukeSato/rdfgp/pkg/log"
)

// Store is a keyed artifact store. Values are gob-encoded; v passed to
// Lookup must be a pointer.
type Store interface {
	// Lookup decodes the artifact stored under key into v and reports
	// whether it was present.
	Lookup(ctx context.Context, key string, v any) (bool, error)
	// Save stores v under key, replacing any earlier value.
	Save(ctx context.Context, key string, v any) error
	// Close releases the store's resources.
	Close() error
}

// namespace roots every artifact key.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/YuminosukeSato/rdfgp/artifacts"))

// Key derives a stable artifact key from a kind ("search", "benchmark")
// and the inputs that determine the artifact. Matrices and float slices
// contribute their exact bits, so two datasets that differ in one ulp get
// different keys.
func Key(kind string, parts ...any) string {
	var buf bytes.Buffer
	buf.WriteString(kind)
	for _, p := range parts {
		buf.WriteByte(0)
		switch v := p.(type) {
		case mat.Matrix:
			r, c := v.Dims()
			writeInts(&buf, r, c)
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					writeFloat(&buf, v.At(i, j))
				}
			}
		case []float64:
			writeInts(&buf, len(v))
			for _, f := range v {
				writeFloat(&buf, f)
			}
		case float64:
			writeFloat(&buf, v)
		default:
			fmt.Fprintf(&buf, "%v", v)
		}
	}
	return kind + "-" + uuid.NewSHA1(namespace, buf.Bytes()).String()
}

func writeInts(buf *bytes.Buffer, vs ...int) {
	for _, v := range vs {
		_ = binary.Write(buf, binary.LittleEndian, int64(v))
	}
}

func writeFloat(buf *bytes.Buffer, f float64) {
	_ = binary.Write(buf, binary.LittleEndian, math.Float64bits(f))
}

// CacheOrCompute returns the artifact stored under key, or computes it on a
// miss. A failed compute is retried up to attempts times in total (at least
// once); the first success is saved once and returned. The bool reports
// whether the value came from the store.
func CacheOrCompute[T any](ctx context.Context, s Store, key string, attempts int, compute func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	logger := log.GetLoggerWithName("store").With(log.ArtifactKey, key)

	var cached T
	hit, err := s.Lookup(ctx, key, &cached)
	if err != nil {
		return zero, false, errors.Wrapf(err, "store: lookup %s", key)
	}
	if hit {
		logger.Info("Artifact loaded", log.CacheHitKey, true)
		return cached, true, nil
	}

	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}
		v, err := compute(ctx)
		if err != nil {
			lastErr = err
			logger.Warn("Artifact compute failed", err, "attempt", attempt, "max_attempts", attempts)
			continue
		}
		if err := s.Save(ctx, key, v); err != nil {
			return zero, false, errors.Wrapf(err, "store: save %s", key)
		}
		logger.Info("Artifact computed", log.CacheHitKey, false, "attempt", attempt)
		return v, false, nil
	}
	return zero, false, errors.Wrapf(lastErr, "store: compute %s failed after %d attempt(s)", key, attempts)
}
