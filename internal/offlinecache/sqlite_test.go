package offlinecache

import (
	"path/filepath"
	"testing"
)

func mustOpenStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), nil)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close failed: %v", err)
		}
	})
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := mustOpenStore(t)

	if !store.Write("evermore:albums:list", []byte(`{"value":1}`)) {
		t.Fatalf("write reported failure")
	}
	payload, ok := store.Read("evermore:albums:list")
	if !ok || string(payload) != `{"value":1}` {
		t.Fatalf("unexpected read %q %v", payload, ok)
	}

	if !store.Write("evermore:albums:list", []byte(`{"value":2}`)) {
		t.Fatalf("overwrite reported failure")
	}
	payload, ok = store.Read("evermore:albums:list")
	if !ok || string(payload) != `{"value":2}` {
		t.Fatalf("expected replacement, got %q %v", payload, ok)
	}
}

func TestSQLiteStoreMissAndDelete(t *testing.T) {
	store := mustOpenStore(t)

	if _, ok := store.Read("evermore:missing"); ok {
		t.Fatalf("expected a miss for an absent key")
	}

	store.Write("evermore:rsvp:list", []byte("x"))
	if !store.Delete("evermore:rsvp:list") {
		t.Fatalf("delete reported failure")
	}
	if _, ok := store.Read("evermore:rsvp:list"); ok {
		t.Fatalf("deleted key still readable")
	}
	if !store.Delete("evermore:rsvp:list") {
		t.Fatalf("deleting an absent key must not report failure")
	}
}

func TestSQLiteStoreKeysSorted(t *testing.T) {
	store := mustOpenStore(t)

	store.Write("evermore:b", []byte("2"))
	store.Write("evermore:a", []byte("1"))
	store.Write("evermore:c", []byte("3"))

	keys := store.Keys()
	if len(keys) != 3 || keys[0] != "evermore:a" || keys[1] != "evermore:b" || keys[2] != "evermore:c" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestSQLiteStoreBacksOfflineCache(t *testing.T) {
	store := mustOpenStore(t)
	cache := New(Config{Store: store})

	cache.Set("invitations:list", []string{"inv-1"}, TTLInvitations)

	var decoded []string
	if !cache.Get("invitations:list", &decoded) {
		t.Fatalf("expected a hit through the sqlite store")
	}
	if len(decoded) != 1 || decoded[0] != "inv-1" {
		t.Fatalf("unexpected decoded value %v", decoded)
	}
}
