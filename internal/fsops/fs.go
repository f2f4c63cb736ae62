// Package fsops provides the file writes testloop performs in a workspace.
//
// Writes are atomic (temp file + rename in the target directory) so a
// config watcher never observes a partially written file.
package fsops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrExists indicates the target file already exists.
var ErrExists = errors.New("file already exists")

// FS provides an abstraction for filesystem operations.
type FS interface {
	// AtomicWrite writes data to path atomically using temp file + rename.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// WriteNew is AtomicWrite that fails with ErrExists when path exists,
	// unless overwrite is set.
	WriteNew(path string, data []byte, perm os.FileMode, overwrite bool) error

	// Exists checks if a path exists.
	Exists(path string) (bool, error)
}

// RealFS implements FS using actual OS operations.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

// AtomicWrite writes data to path atomically using temp file + rename.
func (fs *RealFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	// The temp file lives next to the target so the rename stays on one
	// filesystem.
	tmpFile, err := os.CreateTemp(dir, ".testloop-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	tmpFile = nil
	return nil
}

// WriteNew writes path unless it exists and overwrite is false.
func (fs *RealFS) WriteNew(path string, data []byte, perm os.FileMode, overwrite bool) error {
	if !overwrite {
		exists, err := fs.Exists(path)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
	}
	return fs.AtomicWrite(path, data, perm)
}

// Exists checks if a path exists.
func (fs *RealFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
