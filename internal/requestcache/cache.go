// Package requestcache holds short-lived responses for read requests and
// collapses concurrent identical requests into a single underlying call.
package requestcache

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultTTL applies when Set is called without an explicit max age.
const DefaultTTL = 2 * time.Minute

// authEndpoints are never cached, regardless of caller intent.
var authEndpoints = []string{"/auth/login", "/auth/logout", "/auth/change-password"}

// Config tunes cache behavior; zero values fall back to defaults.
type Config struct {
	DefaultTTL time.Duration
	Clock      func() time.Time
}

// Cache is a TTL cache keyed by endpoint plus encoded params, with one
// shared in-flight entry per de-duplication key.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	flights    map[string]*flight
	defaultTTL time.Duration
	clock      func() time.Time
}

type entry struct {
	value     any
	expiresAt time.Time
}

type flight struct {
	done  chan struct{}
	value any
	err   error
}

// New constructs a request cache.
func New(cfg Config) *Cache {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		entries:    make(map[string]entry),
		flights:    make(map[string]*flight),
		defaultTTL: ttl,
		clock:      clock,
	}
}

// Key derives the cache key from an endpoint and its params.
func Key(endpoint string, params any) string {
	if params == nil {
		return endpoint
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return endpoint
	}
	return endpoint + string(encoded)
}

// Cacheable reports whether a request may enter the cache. Mutating verbs
// and authentication endpoints are always excluded; this is a hard rule,
// not a default.
func Cacheable(method, endpoint string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return false
	}
	for _, excluded := range authEndpoints {
		if strings.Contains(endpoint, excluded) {
			return false
		}
	}
	return true
}

// Get returns the cached value for an endpoint and params, if fresh.
func (c *Cache) Get(endpoint string, params any) (any, bool) {
	key := Key(endpoint, params)
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.After(stored.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return stored.value, true
}

// Set stores a response value. Requests excluded by Cacheable never produce
// an entry.
func (c *Cache) Set(method, endpoint string, params any, value any, maxAge time.Duration) {
	if !Cacheable(method, endpoint) {
		return
	}
	if maxAge <= 0 {
		maxAge = c.defaultTTL
	}
	key := Key(endpoint, params)

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.clock().Add(maxAge)}
	c.mu.Unlock()
}

// Deduplicate runs factory at most once per key across concurrent callers.
// Every caller observes the same value or the same error; the in-flight
// entry is removed exactly once, when the original call settles.
func (c *Cache) Deduplicate(key string, factory func() (any, error)) (any, error) {
	c.mu.Lock()
	if existing, ok := c.flights[key]; ok {
		c.mu.Unlock()
		<-existing.done
		return existing.value, existing.err
	}
	current := &flight{done: make(chan struct{})}
	c.flights[key] = current
	c.mu.Unlock()

	current.value, current.err = factory()

	c.mu.Lock()
	delete(c.flights, key)
	c.mu.Unlock()
	close(current.done)

	return current.value, current.err
}

// ClearPattern evicts every entry whose key contains the substring. Used
// for coarse invalidation by resource family.
func (c *Cache) ClearPattern(substring string) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.Contains(key, substring) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Clear evicts every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
