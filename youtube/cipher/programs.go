package cipher

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultProgramTTL is how long a compiled program is kept when no TTL is given.
const DefaultProgramTTL = 6 * time.Hour

// ProgramCache memoises compiled programs by player script URL and
// cache format version. Player scripts are immutable per URL, so a hit
// skips both the script fetch and the compilation.
type ProgramCache struct {
	version string
	items   *gocache.Cache
}

// NewProgramCache returns a cache whose entries expire after ttl.
// A negative ttl keeps entries forever.
func NewProgramCache(version string, ttl time.Duration) *ProgramCache {
	if ttl == 0 {
		ttl = DefaultProgramTTL
	}
	cleanup := ttl
	if ttl < 0 {
		ttl = gocache.NoExpiration
		cleanup = 0
	}
	return &ProgramCache{version: version, items: gocache.New(ttl, cleanup)}
}

func (c *ProgramCache) key(playerURL string) string {
	return playerURL + "|" + c.version
}

// Get returns the compiled program for playerURL, if cached.
func (c *ProgramCache) Get(playerURL string) (*Compiled, bool) {
	v, ok := c.items.Get(c.key(playerURL))
	if !ok {
		return nil, false
	}
	compiled, ok := v.(*Compiled)
	return compiled, ok
}

// Put stores compiled for playerURL.
func (c *ProgramCache) Put(playerURL string, compiled *Compiled) {
	c.items.Set(c.key(playerURL), compiled, gocache.DefaultExpiration)
}

// Len returns the number of cached programs, including expired ones not yet cleaned up.
func (c *ProgramCache) Len() int {
	return c.items.ItemCount()
}
