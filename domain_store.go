package modhost

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BindingStore persists the domain binding table as one YAML document.
// Writes go through a temp file and an atomic rename, so a failed write
// leaves the previous persisted state intact.
type BindingStore struct {
	path string
}

// NewBindingStore creates a store over the given file path.
func NewBindingStore(path string) *BindingStore {
	return &BindingStore{path: path}
}

// Path returns the backing file path.
func (s *BindingStore) Path() string { return s.path }

type bindingFile struct {
	Bindings []*DomainBinding `yaml:"bindings"`
}

// Load reads the binding table. A missing file yields an empty table.
func (s *BindingStore) Load() ([]*DomainBinding, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading binding table: %w", err)
	}
	var bf bindingFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBindingInvalid, err)
	}
	return bf.Bindings, nil
}

// Save writes the binding table atomically.
func (s *BindingStore) Save(bindings []*DomainBinding) error {
	data, err := yaml.Marshal(bindingFile{Bindings: bindings})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnwritable, err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnwritable, err)
	}
	tmp, err := os.CreateTemp(dir, ".bindings-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnwritable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnwritable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnwritable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnwritable, err)
	}
	return nil
}
