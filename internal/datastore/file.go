package datastore

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/ledger"
)

const (
	filePermissions = 0o644
	dirPermissions  = 0o755
)

// replaceFile writes path through write into a temporary file in the same
// directory, syncs it, then renames it over path. On failure path is left
// untouched and the temporary file is removed.
func replaceFile(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err = tmp.Chmod(filePermissions); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

// openStoreFile opens path for reading. A missing file is reported as
// ledger.ErrStoreNotFound; other failures go through fileError.
func openStoreFile(path string, fileError func(error) error) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.New(fmt.Errorf("%w: %s", ledger.ErrStoreNotFound, path)).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("path", path).
			Build()
	}
	if err != nil {
		return nil, fileError(err)
	}
	return f, nil
}
