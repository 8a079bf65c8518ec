package realtime

import (
	"testing"
	"time"

	"github.com/evermore-app/evermore/backend/internal/docstore"
	"github.com/evermore-app/evermore/backend/internal/wedding"
)

func TestStatsListenerRecomputesOnAnySourceChange(t *testing.T) {
	store := docstore.NewMemoryStore()
	store.Put(wedding.CollectionInvitations, "inv-1", map[string]any{"guestName": "Ada", "qrCode": "tok-1", "isActive": true})
	store.Put(wedding.CollectionAlbums, "album-1", map[string]any{"name": "Ceremony", "isPublic": true})

	fixedNow := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	service, err := NewService(ServiceConfig{
		Store: store,
		Clock: func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	defer service.RemoveAllListeners()

	var emissions []wedding.Stats
	if err := service.AddStatsListener(KeyStats, func(stats wedding.Stats) {
		emissions = append(emissions, stats)
	}); err != nil {
		t.Fatalf("unexpected stats listener error: %v", err)
	}

	// Three initial snapshots, one per backing collection.
	if len(emissions) != 3 {
		t.Fatalf("expected three initial emissions, got %d", len(emissions))
	}
	settled := emissions[2]
	if settled.Invitations.Total != 1 || settled.Albums.TotalAlbums != 1 || settled.Media.TotalMedia != 0 {
		t.Fatalf("unexpected settled stats %+v", settled)
	}

	store.Put(wedding.CollectionMedia, "media-1", map[string]any{
		"albumId": "album-1", "mediaType": wedding.MediaTypeImage, "isApproved": true,
	})

	if len(emissions) != 4 {
		t.Fatalf("expected one recomputation after the media write, got %d emissions", len(emissions))
	}
	latest := emissions[3]
	if latest.Media.TotalMedia != 1 || latest.Media.ImageCount != 1 {
		t.Fatalf("unexpected media stats %+v", latest.Media)
	}
	if latest.Invitations.Total != 1 || latest.Albums.TotalAlbums != 1 {
		t.Fatalf("unrelated counters must stay put, got %+v", latest)
	}
	if !latest.LastUpdated.Equal(fixedNow) {
		t.Fatalf("unexpected last updated %v", latest.LastUpdated)
	}

	if service.ActiveListeners() != 1 {
		t.Fatalf("composite should register as one listener, got %d", service.ActiveListeners())
	}
}

func TestStatsListenerTearsDownAllThreeWatches(t *testing.T) {
	store := docstore.NewMemoryStore()
	service := mustService(t, store)

	var count int
	if err := service.AddStatsListener(KeyStats, func(wedding.Stats) {
		count++
	}); err != nil {
		t.Fatalf("unexpected stats listener error: %v", err)
	}
	settled := count

	service.RemoveListener(KeyStats)
	store.Put(wedding.CollectionInvitations, "inv-1", map[string]any{"guestName": "Ada", "qrCode": "tok-1"})
	store.Put(wedding.CollectionAlbums, "album-1", map[string]any{"name": "Ceremony"})
	store.Put(wedding.CollectionMedia, "media-1", map[string]any{"albumId": "album-1", "mediaType": "image"})

	if count != settled {
		t.Fatalf("expected no emission after teardown, count went %d -> %d", settled, count)
	}
	if service.ActiveListeners() != 0 {
		t.Fatalf("expected zero listeners, got %d", service.ActiveListeners())
	}
}

func TestStatsListenerReplaceSemantics(t *testing.T) {
	store := docstore.NewMemoryStore()
	service := mustService(t, store)
	defer service.RemoveAllListeners()

	var firstCount, secondCount int
	if err := service.AddStatsListener(KeyStats, func(wedding.Stats) {
		firstCount++
	}); err != nil {
		t.Fatalf("unexpected stats listener error: %v", err)
	}
	if err := service.AddStatsListener(KeyStats, func(wedding.Stats) {
		secondCount++
	}); err != nil {
		t.Fatalf("unexpected stats listener error: %v", err)
	}

	firstAfterReplace := firstCount
	store.Put(wedding.CollectionMedia, "media-1", map[string]any{"albumId": "album-1", "mediaType": "image"})

	if firstCount != firstAfterReplace {
		t.Fatalf("replaced composite still delivering, count went %d -> %d", firstAfterReplace, firstCount)
	}
	if secondCount != 4 {
		t.Fatalf("expected three initial emissions plus one recomputation, got %d", secondCount)
	}
	if service.ActiveListeners() != 1 {
		t.Fatalf("expected exactly one listener after replace, got %d", service.ActiveListeners())
	}
}
