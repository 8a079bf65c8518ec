// Package offlinecache persists versioned, TTL-bounded snapshots of REST
// responses in a durable local store so reads can survive connectivity
// loss. Caching here is an optimization, never a correctness dependency:
// every failure degrades to a miss.
package offlinecache

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SchemaVersion invalidates every stored entry when the envelope layout
// changes.
const SchemaVersion = 1

const keyNamespace = "evermore:"

// Per-bucket default TTLs; shorter TTLs reflect higher write frequency.
const (
	TTLAlbums      = 2 * time.Hour
	TTLInvitations = time.Hour
	TTLRSVP        = 30 * time.Minute
	TTLStats       = 15 * time.Minute
)

// Bucket names for the cached resource families.
const (
	BucketAlbums      = "albums"
	BucketInvitations = "invitations"
	BucketRSVP        = "rsvp"
	BucketStats       = "stats"
)

// DefaultTTL returns the bucket's staleness budget.
func DefaultTTL(bucket string) time.Duration {
	switch bucket {
	case BucketAlbums:
		return TTLAlbums
	case BucketInvitations:
		return TTLInvitations
	case BucketRSVP:
		return TTLRSVP
	case BucketStats:
		return TTLStats
	default:
		return TTLStats
	}
}

// Store is the durable key/value backing. Implementations report success
// with a bool instead of an error: callers are expected to ignore failure.
type Store interface {
	Read(key string) ([]byte, bool)
	Write(key string, payload []byte) bool
	Delete(key string) bool
	Keys() []string
}

type envelope struct {
	Value         json.RawMessage `json:"value"`
	CapturedAt    int64           `json:"capturedAt"`
	MaxAgeMs      int64           `json:"maxAgeMs"`
	SchemaVersion int             `json:"schemaVersion"`
}

// Cache wraps a durable store with TTL and schema-version bookkeeping. A
// nil store degrades every operation to a no-op miss.
type Cache struct {
	store  Store
	clock  func() time.Time
	logger *zap.Logger
}

// Config configures the cache; Store may be nil when no durable store is
// available.
type Config struct {
	Store  Store
	Clock  func() time.Time
	Logger *zap.Logger
}

// New constructs an offline cache.
func New(cfg Config) *Cache {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: cfg.Store, clock: clock, logger: logger}
}

// Set stores a value under a namespaced key with the given staleness
// budget. Serialization or store failures are logged and swallowed.
func (c *Cache) Set(key string, value any, maxAge time.Duration) {
	if c.store == nil || key == "" {
		return
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("offline cache serialization failed", zap.String("key", key), zap.Error(err))
		return
	}
	payload, err := json.Marshal(envelope{
		Value:         encoded,
		CapturedAt:    c.clock().UnixMilli(),
		MaxAgeMs:      maxAge.Milliseconds(),
		SchemaVersion: SchemaVersion,
	})
	if err != nil {
		c.logger.Warn("offline cache serialization failed", zap.String("key", key), zap.Error(err))
		return
	}
	if !c.store.Write(keyNamespace+key, payload) {
		c.logger.Warn("offline cache write failed", zap.String("key", key))
	}
}

// Get decodes the stored value into out. Entries with a stale schema
// version or an exceeded staleness budget are deleted and reported absent.
func (c *Cache) Get(key string, out any) bool {
	if c.store == nil || key == "" {
		return false
	}
	payload, ok := c.store.Read(keyNamespace + key)
	if !ok {
		return false
	}
	var stored envelope
	if err := json.Unmarshal(payload, &stored); err != nil {
		c.logger.Warn("offline cache entry unreadable", zap.String("key", key), zap.Error(err))
		c.store.Delete(keyNamespace + key)
		return false
	}
	if stored.SchemaVersion != SchemaVersion || c.expired(stored) {
		c.store.Delete(keyNamespace + key)
		return false
	}
	if out == nil {
		return true
	}
	if err := json.Unmarshal(stored.Value, out); err != nil {
		c.logger.Warn("offline cache value decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Remove deletes a single entry.
func (c *Cache) Remove(key string) {
	if c.store == nil || key == "" {
		return
	}
	c.store.Delete(keyNamespace + key)
}

// ClearPrefix deletes every entry in the bucket identified by the prefix.
func (c *Cache) ClearPrefix(prefix string) {
	if c.store == nil || prefix == "" {
		return
	}
	for _, key := range c.store.Keys() {
		if strings.HasPrefix(key, keyNamespace+prefix) {
			c.store.Delete(key)
		}
	}
}

// Clear deletes every namespaced entry.
func (c *Cache) Clear() {
	if c.store == nil {
		return
	}
	for _, key := range c.store.Keys() {
		if strings.HasPrefix(key, keyNamespace) {
			c.store.Delete(key)
		}
	}
}

// Keys lists the stored keys without the namespace prefix.
func (c *Cache) Keys() []string {
	if c.store == nil {
		return nil
	}
	var keys []string
	for _, key := range c.store.Keys() {
		if strings.HasPrefix(key, keyNamespace) {
			keys = append(keys, strings.TrimPrefix(key, keyNamespace))
		}
	}
	return keys
}

// Stats reports the entry count and the approximate stored byte size.
func (c *Cache) Stats() (int, int64) {
	if c.store == nil {
		return 0, 0
	}
	var count int
	var bytes int64
	for _, key := range c.store.Keys() {
		if !strings.HasPrefix(key, keyNamespace) {
			continue
		}
		count++
		if payload, ok := c.store.Read(key); ok {
			bytes += int64(len(payload))
		}
	}
	return count, bytes
}

func (c *Cache) expired(stored envelope) bool {
	age := c.clock().UnixMilli() - stored.CapturedAt
	return age > stored.MaxAgeMs
}
