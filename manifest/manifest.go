// Package manifest tracks named indexes and where their artifacts live.
//
// A Manifest ties an index name to its graph snapshot and page file so
// that a reader can open both without out-of-band coordination. Stores
// persist manifests either on the local filesystem or in DynamoDB.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/vecscan/distance"
)

var (
	// ErrNotFound is returned when no manifest exists under the given name.
	ErrNotFound = errors.New("manifest: index not found")

	// ErrAlreadyExists is returned by Create when the name is taken.
	ErrAlreadyExists = errors.New("manifest: index already exists")

	// ErrInvalidName is returned for names that cannot serve as keys.
	ErrInvalidName = errors.New("manifest: invalid index name")
)

// Manifest describes one searchable index.
type Manifest struct {
	Name           string          `json:"name"`
	Dimension      int             `json:"dimension"`
	Metric         distance.Metric `json:"metric"`
	M              int             `json:"m"`
	EFConstruction int             `json:"ef_construction"`
	GraphKey       string          `json:"graph_key"`
	PagesKey       string          `json:"pages_key"`
	RecordCount    uint64          `json:"record_count"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Store persists manifests keyed by index name.
type Store interface {
	// Create stores a new manifest. ErrAlreadyExists is returned when the
	// name is taken.
	Create(ctx context.Context, m *Manifest) error

	// Put stores a manifest, replacing any existing one with the same name.
	Put(ctx context.Context, m *Manifest) error

	// Get returns the manifest stored under name.
	Get(ctx context.Context, name string) (*Manifest, error)

	// Delete removes the manifest stored under name. Deleting a missing
	// manifest is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all manifests sorted by name.
	List(ctx context.Context) ([]*Manifest, error)
}

// ValidateName reports whether name can serve as a manifest key.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// FileStore keeps one JSON file per manifest inside a directory.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("manifest: failed to create store directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Create implements Store.
func (s *FileStore) Create(_ context.Context, m *Manifest) error {
	if err := ValidateName(m.Name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(m.Name)); err == nil {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, m.Name)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("manifest: failed to stat %q: %w", m.Name, err)
	}

	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	return s.write(m)
}

// Put implements Store.
func (s *FileStore) Put(_ context.Context, m *Manifest) error {
	if err := ValidateName(m.Name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	return s.write(m)
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, name string) (*Manifest, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to read %q: %w", name, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: failed to decode %q: %w", name, err)
	}

	return &m, nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("manifest: failed to delete %q: %w", name, err)
	}

	return nil
}

// List implements Store.
func (s *FileStore) List(_ context.Context) ([]*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to list store directory: %w", err)
	}

	var manifests []*Manifest

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("manifest: failed to read %q: %w", entry.Name(), err)
		}

		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("manifest: failed to decode %q: %w", entry.Name(), err)
		}

		manifests = append(manifests, &m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].Name < manifests[j].Name
	})

	return manifests, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// write persists m under a temp name and renames it into place so readers
// never observe a partial file.
func (s *FileStore) write(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: failed to encode %q: %w", m.Name, err)
	}

	f, err := os.CreateTemp(s.dir, m.Name+".json.tmp-*")
	if err != nil {
		return fmt.Errorf("manifest: failed to create temp file: %w", err)
	}

	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("manifest: failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("manifest: failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("manifest: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(m.Name)); err != nil {
		return fmt.Errorf("manifest: failed to rename temp file: %w", err)
	}

	return nil
}
