package requestcache

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGetHonorsTTL(t *testing.T) {
	clock := newFakeClock()
	cache := New(Config{Clock: clock.Now})

	cache.Set(http.MethodGet, "/invitations", nil, "payload", time.Minute)

	if value, ok := cache.Get("/invitations", nil); !ok || value != "payload" {
		t.Fatalf("expected fresh hit, got %v %v", value, ok)
	}

	clock.Advance(59 * time.Second)
	if _, ok := cache.Get("/invitations", nil); !ok {
		t.Fatalf("entry expired before its max age")
	}

	clock.Advance(2 * time.Second)
	if _, ok := cache.Get("/invitations", nil); ok {
		t.Fatalf("entry survived past its max age")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry should be evicted on read, len %d", cache.Len())
	}
}

func TestSetAppliesDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	cache := New(Config{Clock: clock.Now})

	cache.Set(http.MethodGet, "/albums", nil, "payload", 0)

	clock.Advance(DefaultTTL - time.Second)
	if _, ok := cache.Get("/albums", nil); !ok {
		t.Fatalf("entry expired before the default max age")
	}
	clock.Advance(2 * time.Second)
	if _, ok := cache.Get("/albums", nil); ok {
		t.Fatalf("entry survived past the default max age")
	}
}

func TestKeyIncludesParams(t *testing.T) {
	cache := New(Config{})
	cache.Set(http.MethodGet, "/albums", map[string]string{"page": "1"}, "first", time.Minute)
	cache.Set(http.MethodGet, "/albums", map[string]string{"page": "2"}, "second", time.Minute)

	if value, ok := cache.Get("/albums", map[string]string{"page": "2"}); !ok || value != "second" {
		t.Fatalf("params must participate in the key, got %v %v", value, ok)
	}
	if _, ok := cache.Get("/albums", nil); ok {
		t.Fatalf("bare endpoint must not alias a parameterized entry")
	}
}

func TestMutationsAndAuthEndpointsNeverCache(t *testing.T) {
	cache := New(Config{})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		cache.Set(method, "/invitations", nil, "payload", time.Minute)
	}
	cache.Set(http.MethodGet, "/auth/login", nil, "token", time.Minute)
	cache.Set(http.MethodGet, "/auth/logout", nil, "ok", time.Minute)
	cache.Set(http.MethodGet, "/auth/change-password", nil, "ok", time.Minute)

	if cache.Len() != 0 {
		t.Fatalf("excluded requests produced %d entries", cache.Len())
	}
}

func TestCacheable(t *testing.T) {
	if Cacheable(http.MethodPost, "/albums") {
		t.Fatalf("mutating verb must not be cacheable")
	}
	if Cacheable(http.MethodGet, "/api/auth/login") {
		t.Fatalf("auth endpoint must not be cacheable")
	}
	if !Cacheable(http.MethodGet, "/albums") {
		t.Fatalf("plain read must be cacheable")
	}
}

func TestDeduplicateCollapsesConcurrentCalls(t *testing.T) {
	cache := New(Config{})

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int

	factory := func() (any, error) {
		calls++
		close(started)
		<-release
		return "shared", nil
	}

	results := make(chan any, 2)
	go func() {
		value, err := cache.Deduplicate("albums", factory)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		results <- value
	}()

	<-started
	go func() {
		value, err := cache.Deduplicate("albums", func() (any, error) {
			t.Error("second factory must not run")
			return nil, nil
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		results <- value
	}()

	close(release)
	for i := 0; i < 2; i++ {
		if value := <-results; value != "shared" {
			t.Fatalf("expected both callers to share one result, got %v", value)
		}
	}
	if calls != 1 {
		t.Fatalf("factory ran %d times", calls)
	}

	// The flight settled; a later call runs fresh.
	value, err := cache.Deduplicate("albums", func() (any, error) {
		return "fresh", nil
	})
	if err != nil || value != "fresh" {
		t.Fatalf("expected a fresh run after settlement, got %v %v", value, err)
	}
}

func TestDeduplicateSharesErrors(t *testing.T) {
	cache := New(Config{})
	wantErr := errors.New("upstream down")

	value, err := cache.Deduplicate("rsvps", func() (any, error) {
		return nil, wantErr
	})
	if value != nil || !errors.Is(err, wantErr) {
		t.Fatalf("expected the factory error, got %v %v", value, err)
	}
}

func TestClearPattern(t *testing.T) {
	cache := New(Config{})
	cache.Set(http.MethodGet, "/invitations", nil, "a", time.Minute)
	cache.Set(http.MethodGet, "/invitations/inv-1", nil, "b", time.Minute)
	cache.Set(http.MethodGet, "/albums", nil, "c", time.Minute)

	cache.ClearPattern("/invitations")

	if _, ok := cache.Get("/invitations", nil); ok {
		t.Fatalf("family entry survived pattern clear")
	}
	if _, ok := cache.Get("/invitations/inv-1", nil); ok {
		t.Fatalf("nested family entry survived pattern clear")
	}
	if _, ok := cache.Get("/albums", nil); !ok {
		t.Fatalf("unrelated entry was evicted")
	}
}

func TestClearEvictsEverything(t *testing.T) {
	cache := New(Config{})
	cache.Set(http.MethodGet, "/invitations", nil, "a", time.Minute)
	cache.Set(http.MethodGet, "/albums", nil, "b", time.Minute)

	cache.Clear()

	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, len %d", cache.Len())
	}
}
