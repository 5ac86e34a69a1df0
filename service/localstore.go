package service

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore is the local filesystem blob backend. It is the fallback
// written to when the cloud store is unconfigured or failing, and the
// final resolution strategy for reads. All names are relative to root.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = "./data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Write persists data under name, overwriting any previous content so
// retried writes stay idempotent.
func (s *LocalStore) Write(name string, data []byte) error {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Read returns the bytes stored under name. A missing file is reported
// as ErrNotFound.
func (s *LocalStore) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// path joins name under root. Cleaning with a leading separator strips
// any traversal segments before the join.
func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.Clean(string(filepath.Separator)+name))
}
