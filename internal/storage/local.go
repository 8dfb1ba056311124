package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxNameAttempts bounds the search for a free "name (n).ext" slot.
const maxNameAttempts = 1000

// LocalStorage implements Storage on a local output directory.
// Existing files are never overwritten; a clashing name gets a " (n)" suffix.
type LocalStorage struct {
	dir string
	mu  sync.Mutex
}

// NewLocalStorage creates a new LocalStorage instance.
// If dir is empty, "out" in the working directory is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = "out"
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &LocalStorage{dir: dir}, nil
}

// Dir returns the output directory path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Save writes data to a temporary file in the output directory and renames it
// to the first free variant of name. It returns the final path.
func (s *LocalStorage) Save(ctx context.Context, name, _ string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	base, err := cleanName(name)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.dir, "."+base+"_*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	tmpName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write output file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close output file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.freePath(base)
	if err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename output file: %w", err)
	}

	return target, nil
}

// freePath returns the first path in the directory not taken by an existing file:
// "song.mov", "song (1).mov", "song (2).mov", ...
func (s *LocalStorage) freePath(base string) (string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		p := filepath.Join(s.dir, candidate)
		if _, err := os.Lstat(p); os.IsNotExist(err) {
			return p, nil
		} else if err != nil {
			return "", fmt.Errorf("stat output file: %w", err)
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", base, s.dir)
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)
