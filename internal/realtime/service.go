// Package realtime maintains one live document-store listener per logical
// subscription key and fans every snapshot out to the listener owner plus
// any independently subscribed callbacks.
package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evermore-app/evermore/backend/internal/docstore"
	"go.uber.org/zap"
)

var (
	errMissingStore = errors.New("realtime: document store is required")
	errMissingKey   = errors.New("realtime: subscription key is required")
)

// SnapshotHandler receives every snapshot emitted for a subscription key.
type SnapshotHandler func(documents []docstore.Document)

// ServiceConfig configures the subscription service.
type ServiceConfig struct {
	Store  docstore.Store
	Clock  func() time.Time
	Logger *zap.Logger
}

// Service is the subscription registry. Each key holds at most one live
// listener; registering a key that is already active tears the old listener
// down first (last registration wins).
type Service struct {
	store  docstore.Store
	clock  func() time.Time
	logger *zap.Logger

	mu          sync.Mutex
	listeners   map[string]*listenerHandle
	subscribers map[string]map[int64]SnapshotHandler
	nextID      int64
}

type listenerHandle struct {
	cancel func()
	closed atomic.Bool
}

func (h *listenerHandle) close() {
	h.closed.Store(true)
	if h.cancel != nil {
		h.cancel()
	}
}

// NewService constructs a subscription service over the provided store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       cfg.Store,
		clock:       clock,
		logger:      logger,
		listeners:   make(map[string]*listenerHandle),
		subscribers: make(map[string]map[int64]SnapshotHandler),
	}, nil
}

// AddListener opens a listener for the query under the given key. A failed
// listener setup is terminal for that key: the error is returned once and
// nothing is retried here; transport-level reconnection belongs to the
// store.
func (s *Service) AddListener(key string, query docstore.Query, onSnapshot SnapshotHandler) error {
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

	deliver := func(documents []docstore.Document) {
		if handle.closed.Load() {
			return
		}
		if onSnapshot != nil {
			s.invokeHandler(key, onSnapshot, documents)
		}
		for _, subscriber := range s.subscribersFor(key) {
			s.invokeHandler(key, subscriber, documents)
		}
	}

	cancel, err := s.store.Watch(context.Background(), query, deliver)
	if err != nil {
		s.mu.Lock()
		if s.listeners[key] == handle {
			delete(s.listeners, key)
		}
		s.mu.Unlock()
		handle.closed.Store(true)
		s.logger.Warn("listener setup failed", zap.String("key", key), zap.Error(err))
		return err
	}
	handle.cancel = cancel
	if handle.closed.Load() {
		// Lost a replace race while the watch was opening.
		cancel()
	}
	return nil
}

// Subscribe registers an additional callback for a key, independent of the
// listener owner. The returned function unsubscribes exactly that callback.
func (s *Service) Subscribe(key string, handler SnapshotHandler) func() {
	if key == "" || handler == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	subscriberID := s.nextID
	if _, ok := s.subscribers[key]; !ok {
		s.subscribers[key] = make(map[int64]SnapshotHandler)
	}
	s.subscribers[key][subscriberID] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if handlers, ok := s.subscribers[key]; ok {
			delete(handlers, subscriberID)
			if len(handlers) == 0 {
				delete(s.subscribers, key)
			}
		}
		s.mu.Unlock()
	}
}

// RemoveListener tears down the listener registered under the key, if any.
func (s *Service) RemoveListener(key string) {
	s.mu.Lock()
	handle := s.listeners[key]
	delete(s.listeners, key)
	s.mu.Unlock()
	if handle != nil {
		handle.close()
	}
}

// RemoveAllListeners tears down every active listener and clears all
// subscriber sets. This is the mandatory full-teardown hook; no snapshot is
// delivered for any key afterwards even if the transport still emits.
func (s *Service) RemoveAllListeners() {
	s.mu.Lock()
	handles := make([]*listenerHandle, 0, len(s.listeners))
	for _, handle := range s.listeners {
		handles = append(handles, handle)
	}
	s.listeners = make(map[string]*listenerHandle)
	s.subscribers = make(map[string]map[int64]SnapshotHandler)
	s.mu.Unlock()

	for _, handle := range handles {
		handle.close()
	}
}

// ActiveListeners reports the number of live listeners, stats composites
// included.
func (s *Service) ActiveListeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Service) subscribersFor(key string) []SnapshotHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	handlers := s.subscribers[key]
	if len(handlers) == 0 {
		return nil
	}
	copies := make([]SnapshotHandler, 0, len(handlers))
	for _, handler := range handlers {
		copies = append(copies, handler)
	}
	return copies
}

// invokeHandler isolates handler panics so one faulty callback cannot stop
// the remaining deliveries.
func (s *Service) invokeHandler(key string, handler SnapshotHandler, documents []docstore.Document) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("snapshot handler panicked",
				zap.String("key", key),
				zap.Any("panic", recovered))
		}
	}()
	handler(documents)
}
