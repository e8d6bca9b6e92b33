// Package cache is a thread-safe store for ledger read results. Entries are
// never deleted on invalidation, only marked stale: a stale value is still
// servable while a refresh is in flight or the RPC is down.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry holds one cached read result and its freshness state.
type Entry struct {
	Value     any
	FetchedAt time.Time
	Stale     bool
}

// Cache maps read keys ("pattern:arg:arg") to entries.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	logger  zerolog.Logger
}

// New creates an empty Cache.
func New(logger zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
		logger:  logger.With().Str("component", "cache").Logger(),
	}
}

// Key joins a pattern and its arguments into a cache key.
func Key(pattern string, args ...string) string {
	if len(args) == 0 {
		return pattern
	}
	return pattern + ":" + strings.Join(args, ":")
}

// Put stores a fresh value under key.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &Entry{
		Value:     value,
		FetchedAt: time.Now(),
		Stale:     false,
	}
}

// Get returns the value stored under key along with whether it exists and
// whether it is stale.
func (c *Cache) Get(key string) (value any, ok bool, stale bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	return entry.Value, true, entry.Stale
}

// Invalidate marks every entry matching one of the patterns as stale. A key
// matches a pattern when it equals the pattern or begins with "pattern:".
// Returns the number of entries marked.
func (c *Cache) Invalidate(patterns ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	marked := 0
	for key, entry := range c.entries {
		if entry.Stale {
			continue
		}
		for _, p := range patterns {
			if key == p || strings.HasPrefix(key, p+":") {
				entry.Stale = true
				marked++
				break
			}
		}
	}

	if marked > 0 {
		c.logger.Debug().
			Int("marked", marked).
			Strs("patterns", patterns).
			Msg("cache entries invalidated")
	}
	return marked
}

// InvalidateAll marks every entry stale. Used by the periodic sweep.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	marked := 0
	for _, entry := range c.entries {
		if !entry.Stale {
			entry.Stale = true
			marked++
		}
	}
	return marked
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
