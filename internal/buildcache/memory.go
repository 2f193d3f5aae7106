package buildcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore keeps entries in a bounded in-process LRU. Nothing survives the
// process, which makes it a good fit for watch mode and tests.
type MemoryStore struct {
	entries *lru.Cache[string, Entry]
}

// NewMemoryStore creates a MemoryStore holding at most size entries. A
// non-positive size falls back to 4096.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = 4096
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	return &MemoryStore{entries: entries}, nil
}

// Get returns the entry for key.
func (m *MemoryStore) Get(key string) (Entry, bool) {
	return m.entries.Get(key)
}

// Put stores e under key, evicting the least recently used entry when full.
func (m *MemoryStore) Put(key string, e Entry) error {
	m.entries.Add(key, e)
	return nil
}

// Len reports the number of cached entries.
func (m *MemoryStore) Len() int {
	return m.entries.Len()
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
