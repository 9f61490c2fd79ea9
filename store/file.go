package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/rdfgp/core/model"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// FileStore keeps one gob file per artifact in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.NewValidationError("store.path", "must not be empty", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "store: create %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", errors.NewValidationError("store.key", "must be a plain file name", key)
	}
	return filepath.Join(f.dir, key+".gob"), nil
}

// Lookup implements Store.
func (f *FileStore) Lookup(ctx context.Context, key string, v any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := f.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "store: stat")
	}
	if err := model.LoadFile(v, p); err != nil {
		return false, err
	}
	return true, nil
}

// Save implements Store. The file is replaced atomically.
func (f *FileStore) Save(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	return model.SaveFile(v, p)
}

// Close implements Store.
func (f *FileStore) Close() error { return nil }
