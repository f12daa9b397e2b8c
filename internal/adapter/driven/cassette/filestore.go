package cassette

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CassetteStore = (*FileStore)(nil)

// FileStore persists cassettes as indented JSON files under a directory.
type FileStore struct {
	dir       string
	transform func(string) string
}

// NewFileStore creates a FileStore rooted at dir. transform maps a cassette
// name to its file name; nil means EnsureSuffix(".json").
func NewFileStore(dir string, transform func(string) string) *FileStore {
	if transform == nil {
		transform = EnsureSuffix(".json")
	}
	return &FileStore{dir: dir, transform: transform}
}

// Dir returns the directory cassettes are stored in.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) (string, error) {
	file := filepath.FromSlash(s.transform(name))
	if name == "" || !filepath.IsLocal(file) {
		return "", fmt.Errorf("invalid cassette name %q", name)
	}
	return filepath.Join(s.dir, file), nil
}

// Load reads the named cassette.
func (s *FileStore) Load(_ context.Context, name string) (*model.Cassette, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", driven.ErrCassetteNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading cassette %q: %w", name, err)
	}

	var cas model.Cassette
	if err := json.Unmarshal(data, &cas); err != nil {
		return nil, fmt.Errorf("decoding cassette %q: %w", name, err)
	}
	if cas.Name == "" {
		cas.Name = name
	}
	return &cas, nil
}

// Save writes the cassette atomically by renaming a temporary file into place.
func (s *FileStore) Save(_ context.Context, cas *model.Cassette) error {
	p, err := s.path(cas.Name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cas, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cassette %q: %w", cas.Name, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating cassette directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".cassette-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing cassette %q: %w", cas.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cassette %q: %w", cas.Name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("renaming cassette %q: %w", cas.Name, err)
	}
	return nil
}

// List returns the names of all cassettes under the directory, sorted. A
// missing directory yields an empty list.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	ext := filepath.Ext(s.transform("x"))
	names := []string{}

	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if ext != "" && filepath.Ext(p) != ext {
			return nil
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		names = append(names, strings.TrimSuffix(filepath.ToSlash(rel), ext))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing cassettes in %s: %w", s.dir, err)
	}

	slices.Sort(names)
	return names, nil
}

// Delete removes the named cassette file.
func (s *FileStore) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting cassette %q: %w", name, err)
	}
	return nil
}
