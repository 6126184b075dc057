// Package fileutil writes the tool's private state and export files.
//
// Private files (tokens, sessions, the cache database) are owner-only. On
// Windows the mode bits are advisory, so an owner-only DACL is applied too.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// MkdirPrivate creates dir and its parents with mode 0700.
func MkdirPrivate(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return restrict(dir)
}

// WritePrivate atomically replaces path with data, readable only by the
// current user. The parent directory must exist.
func WritePrivate(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return restrict(path)
}

// CreateNoFollow creates or truncates path for writing. A symlink at the
// final path component is refused where the platform supports it.
func CreateNoFollow(path string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|noFollow, perm)
}
