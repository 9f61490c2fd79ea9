package store

import (
	"strings"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// Open returns the store for a configured backend ("file" or "sqlite").
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, errors.NewValidationError("store.backend", "must be file or sqlite", backend)
	}
}
