package buildcache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// manifestVersion is bumped when the manifest format changes.
const manifestVersion = "1"

// manifestFile is the name of the manifest inside the cache directory.
const manifestFile = "manifest.json"

// Manifest is the top-level structure persisted as manifest.json.
type Manifest struct {
	Version string           `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// ManifestStore keeps entries in memory and persists them to a JSON manifest
// on Close, so unchanged pages skip image work on the next build. All methods
// are safe for concurrent use.
type ManifestStore struct {
	mu       sync.Mutex
	dir      string
	manifest Manifest
	dirty    bool
	closed   bool
}

// NewManifestStore creates a ManifestStore rooted at dir. If a manifest.json
// already exists there it is loaded; otherwise an empty manifest is
// initialised.
func NewManifestStore(dir string) (*ManifestStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s := &ManifestStore{
		dir: dir,
		manifest: Manifest{
			Version: manifestVersion,
			Entries: make(map[string]Entry),
		},
	}

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading cache manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		// Corrupt manifest, start fresh.
		return s, nil
	}
	if m.Version != manifestVersion {
		// Version mismatch, start fresh.
		return s, nil
	}
	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}
	s.manifest = m
	return s, nil
}

// Get returns the entry for key.
func (s *ManifestStore) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.manifest.Entries[key]
	return e, ok
}

// Put adds or replaces the entry for key. The manifest is written on Close.
func (s *ManifestStore) Put(key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.manifest.Entries[key] = e
	s.dirty = true
	return nil
}

// Len reports the number of entries.
func (s *ManifestStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.manifest.Entries)
}

// saveLocked writes the manifest if it changed since it was loaded.
func (s *ManifestStore) saveLocked() error {
	if !s.dirty {
		return nil
	}
	data, err := json.MarshalIndent(s.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling cache manifest: %w", err)
	}
	if err := atomic.WriteFile(filepath.Join(s.dir, manifestFile), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing cache manifest: %w", err)
	}
	s.dirty = false
	return nil
}

// Close saves the manifest. Later Puts fail with ErrClosed.
func (s *ManifestStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.saveLocked()
}
