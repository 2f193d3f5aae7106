// Package buildcache provides the generic build cache used to memoize
// expensive rendering work across pages and across builds. Values are keyed by
// a string and tagged with a staleness timestamp; a lookup only hits when the
// stored timestamp matches the caller's.
package buildcache

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/aellingwood/respimg/internal/config"
	"golang.org/x/sync/singleflight"
)

// Entry is a cached value together with the staleness timestamp it was
// computed for.
type Entry struct {
	Staleness int64  `json:"staleness"`
	Value     string `json:"value"`
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	Get(key string) (Entry, bool)
	Put(key string, e Entry) error
	Close() error
}

// Cache adds a compute-on-miss contract to a Store. Concurrent callers asking
// for the same key and staleness share a single computation.
type Cache struct {
	store   Store
	flights singleflight.Group
}

// New wraps store in a Cache.
func New(store Store) *Cache {
	return &Cache{store: store}
}

// Open creates the Cache selected by cfg. Relative cache paths are resolved
// against projectRoot.
func Open(cfg config.CacheConfig, projectRoot string) (*Cache, error) {
	path := cfg.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(projectRoot, path)
	}

	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case config.CacheMemory, "":
		store, err = NewMemoryStore(cfg.Size)
	case config.CacheManifest:
		store, err = NewManifestStore(path)
	case config.CacheSQLite:
		store, err = NewSQLiteStore(filepath.Join(path, "cache.db"))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s cache: %w", cfg.Backend, err)
	}
	return New(store), nil
}

// GetOrCompute returns the value stored under key when it was computed for
// the same staleness. Otherwise compute is invoked once, its result stored
// and returned. Errors from compute are returned and never cached.
func (c *Cache) GetOrCompute(key string, staleness int64, compute func() (string, error)) (string, error) {
	if e, ok := c.store.Get(key); ok && e.Staleness == staleness {
		return e.Value, nil
	}

	flight := key + "\x00" + strconv.FormatInt(staleness, 10)
	v, err, _ := c.flights.Do(flight, func() (any, error) {
		// A flight that finished between our lookup and Do has already
		// stored the value.
		if e, ok := c.store.Get(key); ok && e.Staleness == staleness {
			return e.Value, nil
		}
		value, err := compute()
		if err != nil {
			return "", err
		}
		if err := c.store.Put(key, Entry{Staleness: staleness, Value: value}); err != nil {
			return "", fmt.Errorf("storing cache entry: %w", err)
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Close flushes and releases the underlying store.
func (c *Cache) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("buildcache: store is closed")
