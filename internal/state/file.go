package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	FilePermission = 0600
	DirPermission  = 0700
)

// FileStore keeps the address as plain text in a single file
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store. The file is not created until
// the first Write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Read returns the stored address. A missing or blank file is reported as absent.
func (s *FileStore) Read(_ context.Context) (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state file: %w", err)
	}

	addr := strings.TrimSpace(string(data))
	if addr == "" {
		return "", false, nil
	}
	return addr, true, nil
}

// Write replaces the stored address. The value is written to a temporary
// file in the same directory and renamed over the old one.
func (s *FileStore) Write(_ context.Context, addr string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirPermission); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(addr); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Chmod(FilePermission); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to chmod state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}
