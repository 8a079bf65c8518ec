package invalidation

import (
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/evermore-app/evermore/backend/internal/offlinecache"
	"github.com/evermore-app/evermore/backend/internal/requestcache"
)

type mapStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string][]byte)}
}

func (s *mapStore) Read(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.entries[key]
	return payload, ok
}

func (s *mapStore) Write(key string, payload []byte) bool {
	s.mu.Lock()
	s.entries[key] = payload
	s.mu.Unlock()
	return true
}

func (s *mapStore) Delete(key string) bool {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return true
}

func (s *mapStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestInvalidateClearsBothTiers(t *testing.T) {
	requests := requestcache.New(requestcache.Config{})
	requests.Set(http.MethodGet, "/invitations", nil, "a", time.Minute)
	requests.Set(http.MethodGet, "/invitations/inv-1", nil, "b", time.Minute)
	requests.Set(http.MethodGet, "/albums", nil, "c", time.Minute)

	offline := offlinecache.New(offlinecache.Config{Store: newMapStore()})
	offline.Set("invitations:/invitations", "cached", offlinecache.TTLInvitations)
	offline.Set("albums:/albums", "cached", offlinecache.TTLAlbums)

	bus := New(Config{Requests: requests, Offline: offline})
	bus.Invalidate(ResourceInvitations, "mutation")

	if _, ok := requests.Get("/invitations", nil); ok {
		t.Fatalf("request cache entry survived invalidation")
	}
	if _, ok := requests.Get("/invitations/inv-1", nil); ok {
		t.Fatalf("nested request cache entry survived invalidation")
	}
	if _, ok := requests.Get("/albums", nil); !ok {
		t.Fatalf("unrelated request cache entry was evicted")
	}

	if offline.Get("invitations:/invitations", nil) {
		t.Fatalf("offline bucket entry survived invalidation")
	}
	if !offline.Get("albums:/albums", nil) {
		t.Fatalf("unrelated offline bucket was cleared")
	}
}

func TestInvalidateNotifiesSubscribersSynchronously(t *testing.T) {
	bus := New(Config{})

	var reasons []string
	unsubscribe := bus.OnInvalidate(ResourceAlbums, func(reason string) {
		reasons = append(reasons, reason)
	})
	bus.OnInvalidate(ResourceRSVP, func(string) {
		t.Error("subscriber for another resource must not fire")
	})

	bus.Invalidate(ResourceAlbums, "mutation")
	if len(reasons) != 1 || reasons[0] != "mutation" {
		t.Fatalf("unexpected callback reasons %v", reasons)
	}

	unsubscribe()
	unsubscribe() // idempotent
	bus.Invalidate(ResourceAlbums, "mutation")
	if len(reasons) != 1 {
		t.Fatalf("unsubscribed callback still firing, reasons %v", reasons)
	}
}

func TestInvalidateIsolatesPanickingCallbacks(t *testing.T) {
	bus := New(Config{})

	var healthyCalls int
	bus.OnInvalidate(ResourceStats, func(string) {
		panic("boom")
	})
	bus.OnInvalidate(ResourceStats, func(string) {
		healthyCalls++
	})

	bus.Invalidate(ResourceStats, "force_refresh")
	if healthyCalls != 1 {
		t.Fatalf("healthy callback must still run, got %d calls", healthyCalls)
	}
}

func TestIsStale(t *testing.T) {
	clock := struct {
		mu  sync.Mutex
		now time.Time
	}{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	readClock := func() time.Time {
		clock.mu.Lock()
		defer clock.mu.Unlock()
		return clock.now
	}

	bus := New(Config{Clock: readClock})

	if !bus.IsStale(ResourceRSVP, time.Minute) {
		t.Fatalf("a never-invalidated key must be stale")
	}

	bus.Invalidate(ResourceRSVP, "initial")
	if bus.IsStale(ResourceRSVP, time.Minute) {
		t.Fatalf("a just-invalidated key must be fresh")
	}

	clock.mu.Lock()
	clock.now = clock.now.Add(2 * time.Minute)
	clock.mu.Unlock()
	if !bus.IsStale(ResourceRSVP, time.Minute) {
		t.Fatalf("the key must go stale past the threshold")
	}
}

func TestForceRefreshMapsDataTypeToResourceKey(t *testing.T) {
	bus := New(Config{})

	var fired bool
	bus.OnInvalidate(ResourceInvitations, func(reason string) {
		if reason != "force_refresh" {
			t.Errorf("unexpected reason %q", reason)
		}
		fired = true
	})

	bus.ForceRefresh("invitations")
	if !fired {
		t.Fatalf("force refresh must invalidate the mapped resource key")
	}
}

func TestInvalidateIgnoresEmptyKey(t *testing.T) {
	bus := New(Config{})
	bus.Invalidate("", "noop") // must not panic or record anything
	if !bus.IsStale("", 0) {
		t.Fatalf("empty key must stay unrecorded")
	}
}
