// Package binding adapts subscription-service listeners into state holders
// a view layer can poll or stream: data, loading and error, updated on
// every snapshot until closed.
package binding

import (
	"errors"
	"sync"

	"github.com/evermore-app/evermore/backend/internal/realtime"
	"go.uber.org/zap"
)

var errMissingService = errors.New("binding: subscription service is required")

// Watcher owns exactly one subscription-service listener. Data starts
// empty, loading starts true and flips false on the first emission or
// error, error is set only by a terminal setup fault. Close always
// releases the listener, on every exit path.
type Watcher[T any] struct {
	service *realtime.Service
	key     string

	mu      sync.RWMutex
	data    T
	loading bool
	err     error

	updates   chan struct{}
	closeOnce sync.Once
}

func newWatcher[T any](service *realtime.Service, key string, open func(deliver func(T)) error) (*Watcher[T], error) {
	watcher := &Watcher[T]{
		service: service,
		key:     key,
		loading: true,
		updates: make(chan struct{}, 1),
	}
	if err := open(watcher.accept); err != nil {
		// Terminal setup fault: the watcher is still returned so the
		// owner can observe {loading:false, error}.
		watcher.mu.Lock()
		watcher.loading = false
		watcher.err = err
		watcher.mu.Unlock()
		watcher.notify()
		return watcher, err
	}
	return watcher, nil
}

// Key returns the deterministic subscription key this watcher owns.
func (w *Watcher[T]) Key() string {
	return w.key
}

// State returns the current data, loading flag and error.
func (w *Watcher[T]) State() (T, bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.data, w.loading, w.err
}

// Snapshot returns the same state as State with the data untyped, for
// callers that handle watchers of different entity types uniformly.
func (w *Watcher[T]) Snapshot() (any, bool, error) {
	data, loading, err := w.State()
	return data, loading, err
}

// Updates signals after every accepted snapshot. Signals coalesce; readers
// should re-read State rather than count them.
func (w *Watcher[T]) Updates() <-chan struct{} {
	return w.updates
}

// Close tears the underlying listener down. Safe to call more than once.
func (w *Watcher[T]) Close() {
	w.closeOnce.Do(func() {
		w.service.RemoveListener(w.key)
	})
}

func (w *Watcher[T]) accept(data T) {
	w.mu.Lock()
	w.data = data
	w.loading = false
	w.err = nil
	w.mu.Unlock()
	w.notify()
}

func (w *Watcher[T]) notify() {
	select {
	case w.updates <- struct{}{}:
	default:
	}
}

// Binder constructs entity watchers over one subscription service. When a
// watch parameter changes (a different album, a different QR token), close
// the old watcher before opening the new one; no listener may outlive its
// owning binding.
type Binder struct {
	service *realtime.Service
	logger  *zap.Logger
}

// BinderConfig wires the binder.
type BinderConfig struct {
	Service *realtime.Service
	Logger  *zap.Logger
}

// NewBinder constructs a binder.
func NewBinder(cfg BinderConfig) (*Binder, error) {
	if cfg.Service == nil {
		return nil, errMissingService
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{service: cfg.Service, logger: logger}, nil
}
