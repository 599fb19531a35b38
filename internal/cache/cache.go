// Package cache implements the response cache used for player scripts.
//
// Entries are keyed by a hash of the request URL and a cache format
// version, so bumping the version invalidates everything at once. Only
// successful (HTTP 200) responses are stored. Concurrent lookups of one
// key share a single fetch.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ytget/ytlinks/internal/logger"
)

// DefaultVersion is the cache format version used when none is configured.
const DefaultVersion = "v3"

// Entry is a cached response.
type Entry struct {
	URL      string    `json:"url"`
	Version  string    `json:"version"`
	Status   int       `json:"status"`
	Body     []byte    `json:"body"`
	StoredAt time.Time `json:"storedAt"`
}

// Store persists entries by key. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(key string) (Entry, bool)
	Set(key string, e Entry) error
	Delete(key string) error
	// Range calls fn for every entry until fn returns false.
	Range(fn func(key string, e Entry) bool) error
}

// Clock returns the current time.
type Clock func() time.Time

// FetchFunc performs the network request for a cache miss.
type FetchFunc func(ctx context.Context, url string) (status int, body []byte, err error)

// Options configures a Cache. Zero values use defaults: an in-memory
// store, no expiry, DefaultVersion and the wall clock.
type Options struct {
	Store   Store
	TTL     time.Duration
	Version string
	Clock   Clock
}

// Cache is a versioned response cache with optional expiry.
type Cache struct {
	store   Store
	ttl     time.Duration
	version string
	clock   Clock
	group   singleflight.Group
	log     *logger.ComponentLogger
}

// New creates a cache from opts.
func New(opts Options) *Cache {
	c := &Cache{
		store:   opts.Store,
		ttl:     opts.TTL,
		version: opts.Version,
		clock:   opts.Clock,
		log:     logger.WithComponent(logger.ComponentCache),
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.version == "" {
		c.version = DefaultVersion
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

// Version returns the cache format version.
func (c *Cache) Version() string { return c.version }

// Key derives the storage key for url.
func (c *Cache) Key(url string) string {
	sum := sha256.Sum256([]byte(url + "|" + c.version))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) fresh(e Entry) bool {
	if e.Version != c.version || e.Status != http.StatusOK {
		return false
	}
	return c.ttl <= 0 || c.clock().Sub(e.StoredAt) < c.ttl
}

// Get returns the fresh entry for url, if any.
func (c *Cache) Get(url string) (Entry, bool) {
	e, ok := c.store.Get(c.Key(url))
	if !ok || !c.fresh(e) {
		return Entry{}, false
	}
	return e, true
}

// GetOrFetch returns the cached entry for url or calls fetch to fill it.
// Concurrent callers for the same url wait for one fetch. Non-200
// responses are returned but not stored. hit reports whether the entry
// came from the store.
//
// The shared fetch runs detached from any single caller's cancellation;
// each caller stops waiting when its own ctx is done.
func (c *Cache) GetOrFetch(ctx context.Context, url string, fetch FetchFunc) (e Entry, hit bool, err error) {
	if e, ok := c.Get(url); ok {
		c.log.Debug("cache hit", map[string]interface{}{"url": url})
		return e, true, nil
	}

	key := c.Key(url)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Another flight may have filled the key meanwhile.
		if e, ok := c.Get(url); ok {
			return e, nil
		}
		status, body, err := fetch(context.WithoutCancel(ctx), url)
		if err != nil {
			return nil, err
		}
		e := Entry{URL: url, Version: c.version, Status: status, Body: body, StoredAt: c.clock()}
		if status == http.StatusOK {
			if err := c.store.Set(key, e); err != nil {
				c.log.Warn("cache write failed", map[string]interface{}{"url": url, "error": err.Error()})
			}
		}
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, false, res.Err
		}
		return res.Val.(Entry), false, nil
	case <-ctx.Done():
		return Entry{}, false, ctx.Err()
	}
}

// Prune deletes expired entries and entries of other versions. It
// returns the number of entries removed.
func (c *Cache) Prune() (int, error) {
	var stale []string
	err := c.store.Range(func(key string, e Entry) bool {
		if !c.fresh(e) {
			stale = append(stale, key)
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range stale {
		if err := c.store.Delete(key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
