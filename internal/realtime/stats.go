package realtime

import (
	"context"
	"sync"

	"github.com/evermore-app/evermore/backend/internal/docstore"
	"github.com/evermore-app/evermore/backend/internal/wedding"
)

// StatsHandler receives every recomputed stats projection.
type StatsHandler func(stats wedding.Stats)

// statsAggregator combines the latest snapshots of the three underlying
// collections and recomputes the projection on every emission from any of
// them.
type statsAggregator struct {
	service *Service
	deliver func(wedding.Stats)

	mu          sync.Mutex
	invitations []wedding.Invitation
	albums      []wedding.Album
	media       []wedding.Media
}

// AddStatsListener opens the composite stats listener under the given key.
// Three unfiltered, unordered watches back it; tearing the key down cancels
// all three together. Registration uses the same replace semantics as
// AddListener.
func (s *Service) AddStatsListener(key string, onStats StatsHandler) error {
	if key == "" {
		return errMissingKey
	}

	handle := &listenerHandle{}

	s.mu.Lock()
	previous := s.listeners[key]
	s.listeners[key] = handle
	s.mu.Unlock()
	if previous != nil {
		previous.close()
	}

	aggregator := &statsAggregator{
		service: s,
		deliver: func(stats wedding.Stats) {
			if handle.closed.Load() || onStats == nil {
				return
			}
			onStats(stats)
		},
	}

	watches := []struct {
		query  docstore.Query
		accept docstore.SnapshotFunc
	}{
		{docstore.Query{Collection: wedding.CollectionInvitations}, aggregator.acceptInvitations},
		{docstore.Query{Collection: wedding.CollectionAlbums}, aggregator.acceptAlbums},
		{docstore.Query{Collection: wedding.CollectionMedia}, aggregator.acceptMedia},
	}

	cancels := make([]func(), 0, len(watches))
	cancelAll := func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
	for _, watch := range watches {
		cancel, err := s.store.Watch(context.Background(), watch.query, watch.accept)
		if err != nil {
			// Setup failure must not leave a partial composite behind.
			cancelAll()
			s.mu.Lock()
			if s.listeners[key] == handle {
				delete(s.listeners, key)
			}
			s.mu.Unlock()
			handle.closed.Store(true)
			return err
		}
		cancels = append(cancels, cancel)
	}

	handle.cancel = cancelAll
	if handle.closed.Load() {
		cancelAll()
	}
	return nil
}

func (a *statsAggregator) acceptInvitations(documents []docstore.Document) {
	a.mu.Lock()
	a.invitations = MapInvitations(documents, a.service.logger)
	stats := a.computeLocked()
	a.mu.Unlock()
	a.deliver(stats)
}

func (a *statsAggregator) acceptAlbums(documents []docstore.Document) {
	a.mu.Lock()
	a.albums = MapAlbums(documents, a.service.logger)
	stats := a.computeLocked()
	a.mu.Unlock()
	a.deliver(stats)
}

func (a *statsAggregator) acceptMedia(documents []docstore.Document) {
	a.mu.Lock()
	a.media = MapMedia(documents, a.service.logger)
	stats := a.computeLocked()
	a.mu.Unlock()
	a.deliver(stats)
}

func (a *statsAggregator) computeLocked() wedding.Stats {
	return wedding.ComputeStats(a.invitations, a.albums, a.media, a.service.clock())
}
