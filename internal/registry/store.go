package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/models"
	"github.com/starford/mukti/internal/storage"
)

// Store loads and saves a registry document through a storage.Provider.
type Store struct {
	fs   storage.Provider
	name string
}

// NewStore creates a store for the file name inside fs.
func NewStore(fs storage.Provider, name string) *Store {
	return &Store{fs: fs, name: name}
}

// Open creates a store for the registry at path. Nothing is created on
// disk: missing parent directories are made by the first Save, and until
// then Load yields an empty registry.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("registry: resolve %s: %w", path, err)
	}
	root := existingDir(filepath.Dir(abs))
	name, err := filepath.Rel(root, abs)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	fs, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return NewStore(fs, name), nil
}

// existingDir returns dir or its closest ancestor that exists.
func existingDir(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// Path returns the absolute path of the registry document.
func (s *Store) Path() string {
	return filepath.Join(s.fs.Root(), s.name)
}

// Load reads the registry. A missing file yields an empty registry; a file
// that does not parse or holds invalid records fails with
// apperr.ErrCorruptRegistry.
func (s *Store) Load() (*Registry, error) {
	data, err := s.fs.Read(s.name)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrCorruptRegistry, s.Path(), err)
	}
	if reg.Releases == nil {
		reg.Releases = []models.Release{}
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrCorruptRegistry, s.Path(), err)
	}
	return &reg, nil
}

// Save atomically rewrites the registry document. On failure the previous
// content is left intact and the error wraps apperr.ErrWrite.
func (s *Store) Save(reg *Registry) error {
	err := s.fs.WriteFunc(s.name, func(w io.Writer) error {
		return Encode(w, reg)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrWrite, s.Path(), err)
	}
	return nil
}

// Encode writes reg in the canonical on-disk form: two-space indentation and
// a trailing newline.
func Encode(w io.Writer, reg *Registry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(reg)
}
