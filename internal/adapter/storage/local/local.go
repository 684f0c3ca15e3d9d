// Package local stores original uploaded documents on the local filesystem so
// they can be downloaded later.
package local

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hrselector/backend/internal/domain"
)

// Store writes files into a single flat directory under random names.
type Store struct {
	dir string
}

// New creates the upload directory if needed and returns a Store.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("op=filestore.init: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save persists data under a generated name, keeping only the original
// extension. Returns the stored name for later retrieval.
func (s *Store) Save(_ domain.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.New().String() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("op=filestore.save: %w", err)
	}
	return name, nil
}

// Path resolves a stored name to an on-disk path. Names are opaque tokens
// generated by Save; anything resembling a path is rejected.
func (s *Store) Path(stored string) (string, error) {
	if stored == "" || strings.ContainsAny(stored, `/\`) || strings.Contains(stored, "..") {
		return "", fmt.Errorf("op=filestore.path: %w: bad stored name", domain.ErrInvalidArgument)
	}
	p := filepath.Join(s.dir, stored)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("op=filestore.path: %w", domain.ErrNotFound)
	}
	return p, nil
}
