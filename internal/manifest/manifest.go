// Package manifest persists the snapshot of entry file digests and reconciles
// it against the files currently on disk.
package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tailscale/hujson"

	"github.com/starford/kbclaude/internal/storage"
)

// Version is written into every manifest.
const Version = "1.0.0"

// Entry records the state of one file at the last sync.
type Entry struct {
	Hash         string    `json:"hash"`
	LastModified time.Time `json:"last_modified"`
}

// Manifest maps root-relative slash paths to their last known state.
type Manifest struct {
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
	Files     map[string]Entry `json:"files"`
}

// New returns an empty manifest stamped with now.
func New(now time.Time) *Manifest {
	return &Manifest{
		Version:   Version,
		Timestamp: stamp(now),
		Files:     map[string]Entry{},
	}
}

// Store loads and saves the manifest file through a storage provider.
type Store struct {
	fs   storage.Provider
	path string
}

// NewStore creates a Store for the manifest at path (relative to the root).
func NewStore(fs storage.Provider, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path is the manifest location relative to the root.
func (s *Store) Path() string { return s.path }

// Load reads the manifest. A missing file yields an empty manifest stamped
// with now; a file that cannot be parsed is an error.
func (s *Store) Load(now time.Time) (*Manifest, error) {
	ok, err := s.fs.Exists(s.path)
	if err != nil {
		return nil, fmt.Errorf("manifest: load: %w", err)
	}
	if !ok {
		return New(now), nil
	}
	data, err := s.fs.Read(s.path)
	if err != nil {
		return nil, fmt.Errorf("manifest: load: %w", err)
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", s.path, err)
	}
	var m Manifest
	if err := json.Unmarshal(std, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", s.path, err)
	}
	if m.Files == nil {
		m.Files = map[string]Entry{}
	}
	return &m, nil
}

// Save writes m as indented JSON, replacing the previous file atomically.
func (s *Store) Save(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	data = append(data, '\n')
	if err := s.fs.Write(s.path, data); err != nil {
		return fmt.Errorf("manifest: save: %w", err)
	}
	return nil
}

func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
