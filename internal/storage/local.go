package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage stores files under a root directory on the local filesystem.
type LocalStorage struct {
	root string
}

// NewLocalStorage returns a LocalStorage rooted at dir, creating it if
// missing.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: dir}, nil
}

// resolve joins a relative path under the root and rejects traversal.
func (s *LocalStorage) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage path %q", relPath)
	}
	return filepath.Join(s.root, cleaned), nil
}

func (s *LocalStorage) Save(_ context.Context, relPath string, data []byte) error {
	abs, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return err
	}
	return os.WriteFile(abs, data, 0o600)
}

func (s *LocalStorage) Read(_ context.Context, relPath string) ([]byte, error) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	// #nosec G304: abs is constrained to the storage root by resolve
	return os.ReadFile(abs)
}

func (s *LocalStorage) Exists(_ context.Context, relPath string) (bool, error) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStorage) Delete(_ context.Context, relPath string) error {
	abs, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStorage) DeletePrefix(_ context.Context, relPrefix string) error {
	abs, err := s.resolve(relPrefix)
	if err != nil {
		return err
	}
	return os.RemoveAll(abs)
}

func (s *LocalStorage) AbsolutePath(relPath string) (string, bool) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return "", false
	}
	return abs, true
}
