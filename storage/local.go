package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for track names that are empty or contain
// path elements.
var ErrInvalidName = errors.New("invalid track name")

// ValidateName rejects names that could escape the catalog directory.
func ValidateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// DirSource serves track payloads from a local directory.
type DirSource struct {
	dir string
}

// NewDirSource creates dir if needed.
func NewDirSource(dir string) (*DirSource, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory %s: %w", dir, err)
	}
	return &DirSource{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *DirSource) Dir() string {
	return s.dir
}

// List returns the regular files of the directory in name order.
func (s *DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio directory %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Read returns the payload of name.
func (s *DirSource) Read(_ context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read track %s: %w", name, err)
	}
	return data, nil
}

// Handle returns the file path of name.
func (s *DirSource) Handle(name string) string {
	return filepath.Join(s.dir, name)
}

// Add writes payload atomically so a concurrent Read never sees a partial file.
func (s *DirSource) Add(_ context.Context, name string, payload []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write track %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close track %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to save track %s: %w", name, err)
	}
	return nil
}

// Remove deletes name. Missing files report an error wrapping os.ErrNotExist.
func (s *DirSource) Remove(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to delete track %s: %w", name, err)
	}
	return nil
}
