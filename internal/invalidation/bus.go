// Package invalidation coordinates cross-cache eviction: one call clears a
// resource family from both cache tiers and notifies everyone who asked to
// hear about it.
package invalidation

import (
	"sync"
	"time"

	"github.com/evermore-app/evermore/backend/internal/offlinecache"
	"github.com/evermore-app/evermore/backend/internal/requestcache"
	"go.uber.org/zap"
)

// Resource keys for the four well-known data families.
const (
	ResourceInvitations = "/invitations"
	ResourceAlbums      = "/albums"
	ResourceRSVP        = "/rsvp"
	ResourceStats       = "/stats"
)

// offlineBuckets maps resource keys to offline cache buckets. Unmapped
// keys skip the offline-clear step.
var offlineBuckets = map[string]string{
	ResourceInvitations: offlinecache.BucketInvitations,
	ResourceAlbums:      offlinecache.BucketAlbums,
	ResourceRSVP:        offlinecache.BucketRSVP,
	ResourceStats:       offlinecache.BucketStats,
}

// Callback receives the reason an invalidation fired.
type Callback func(reason string)

// Config wires the bus to the two cache tiers; either may be nil.
type Config struct {
	Requests *requestcache.Cache
	Offline  *offlinecache.Cache
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Bus is the pub/sub registry mapping resource keys to subscribers.
type Bus struct {
	requests *requestcache.Cache
	offline  *offlinecache.Cache
	clock    func() time.Time
	logger   *zap.Logger

	mu              sync.Mutex
	subscribers     map[string]map[int64]Callback
	lastInvalidated map[string]time.Time
	nextID          int64
}

// New constructs an invalidation bus.
func New(cfg Config) *Bus {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		requests:        cfg.Requests,
		offline:         cfg.Offline,
		clock:           clock,
		logger:          logger,
		subscribers:     make(map[string]map[int64]Callback),
		lastInvalidated: make(map[string]time.Time),
	}
}

// Invalidate clears the request cache for the key pattern, clears the
// mapped offline bucket, records the invalidation time and synchronously
// invokes every subscriber. A panicking callback never stops the rest.
func (b *Bus) Invalidate(resourceKey, reason string) {
	if resourceKey == "" {
		return
	}

	if b.requests != nil {
		b.requests.ClearPattern(resourceKey)
	}
	if bucket, mapped := offlineBuckets[resourceKey]; mapped && b.offline != nil {
		b.offline.ClearPrefix(bucket)
	}

	b.mu.Lock()
	b.lastInvalidated[resourceKey] = b.clock()
	callbacks := make([]Callback, 0, len(b.subscribers[resourceKey]))
	for _, callback := range b.subscribers[resourceKey] {
		callbacks = append(callbacks, callback)
	}
	b.mu.Unlock()

	b.logger.Debug("cache invalidated",
		zap.String("resource", resourceKey),
		zap.String("reason", reason))
	for _, callback := range callbacks {
		b.invoke(resourceKey, callback, reason)
	}
}

// OnInvalidate registers a subscriber for a resource key and returns its
// unsubscribe function.
func (b *Bus) OnInvalidate(resourceKey string, callback Callback) func() {
	if resourceKey == "" || callback == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	subscriberID := b.nextID
	if _, ok := b.subscribers[resourceKey]; !ok {
		b.subscribers[resourceKey] = make(map[int64]Callback)
	}
	b.subscribers[resourceKey][subscriberID] = callback
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		if callbacks, ok := b.subscribers[resourceKey]; ok {
			delete(callbacks, subscriberID)
			if len(callbacks) == 0 {
				delete(b.subscribers, resourceKey)
			}
		}
		b.mu.Unlock()
	}
}

// IsStale reports whether the last invalidation for the key is older than
// the threshold. A key that never invalidated is stale.
func (b *Bus) IsStale(resourceKey string, threshold time.Duration) bool {
	b.mu.Lock()
	last, ok := b.lastInvalidated[resourceKey]
	b.mu.Unlock()
	if !ok {
		return true
	}
	return b.clock().Sub(last) > threshold
}

// ForceRefresh is a named convenience over Invalidate for the four
// well-known data types ("invitations", "albums", "rsvp", "stats").
func (b *Bus) ForceRefresh(dataType string) {
	b.Invalidate("/"+dataType, "force_refresh")
}

func (b *Bus) invoke(resourceKey string, callback Callback, reason string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Error("invalidation callback panicked",
				zap.String("resource", resourceKey),
				zap.Any("panic", recovered))
		}
	}()
	callback(reason)
}
