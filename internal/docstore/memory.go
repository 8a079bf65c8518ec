package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errMissingCollection = errors.New("docstore: collection name is required")

// MemoryStore is an in-process document store used for tests and local
// development. Watches receive their initial snapshot before Watch returns
// and a fresh snapshot after every mutation to the watched collection.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	watchers    map[int64]*memoryWatcher
	nextID      int64
}

type memoryWatcher struct {
	id        int64
	query     Query
	deliver   SnapshotFunc
	cancelled bool
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		watchers:    make(map[int64]*memoryWatcher),
	}
}

// Watch registers a query watch and synchronously delivers the current
// snapshot.
func (s *MemoryStore) Watch(ctx context.Context, query Query, deliver SnapshotFunc) (func(), error) {
	if query.Collection == "" {
		return nil, errMissingCollection
	}

	s.mu.Lock()
	s.nextID++
	watcher := &memoryWatcher{id: s.nextID, query: query, deliver: deliver}
	s.watchers[watcher.id] = watcher
	initial := s.evaluateLocked(query)
	s.mu.Unlock()

	deliver(initial)

	cancel := func() {
		s.mu.Lock()
		if registered, ok := s.watchers[watcher.id]; ok {
			registered.cancelled = true
			delete(s.watchers, watcher.id)
		}
		s.mu.Unlock()
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return cancel, nil
}

// Put writes a document under an explicit identifier and notifies watchers
// of the collection.
func (s *MemoryStore) Put(collection, id string, data map[string]any) {
	s.mu.Lock()
	documents, ok := s.collections[collection]
	if !ok {
		documents = make(map[string]map[string]any)
		s.collections[collection] = documents
	}
	documents[id] = cloneData(data)
	pending := s.snapshotsForLocked(collection)
	s.mu.Unlock()

	dispatch(pending)
}

// Insert writes a document under a generated identifier and returns it.
func (s *MemoryStore) Insert(collection string, data map[string]any) string {
	id := uuid.NewString()
	s.Put(collection, id, data)
	return id
}

// Delete removes a document and notifies watchers of the collection.
func (s *MemoryStore) Delete(collection, id string) {
	s.mu.Lock()
	if documents, ok := s.collections[collection]; ok {
		delete(documents, id)
	}
	pending := s.snapshotsForLocked(collection)
	s.mu.Unlock()

	dispatch(pending)
}

type pendingDelivery struct {
	deliver   SnapshotFunc
	documents []Document
}

// snapshotsForLocked collects deliveries under the lock so the callbacks can
// run outside it.
func (s *MemoryStore) snapshotsForLocked(collection string) []pendingDelivery {
	var pending []pendingDelivery
	for _, watcher := range s.watchers {
		if watcher.cancelled || watcher.query.Collection != collection {
			continue
		}
		pending = append(pending, pendingDelivery{
			deliver:   watcher.deliver,
			documents: s.evaluateLocked(watcher.query),
		})
	}
	return pending
}

func dispatch(pending []pendingDelivery) {
	for _, delivery := range pending {
		delivery.deliver(delivery.documents)
	}
}

func (s *MemoryStore) evaluateLocked(query Query) []Document {
	var matched []Document
	for id, data := range s.collections[query.Collection] {
		if !matchesFilters(data, query.Filters) {
			continue
		}
		matched = append(matched, Document{ID: id, Data: cloneData(data)})
	}
	if query.OrderBy != "" {
		sort.SliceStable(matched, func(left, right int) bool {
			ordering := compareValues(matched[left].Data[query.OrderBy], matched[right].Data[query.OrderBy])
			if query.Descending {
				return ordering > 0
			}
			return ordering < 0
		})
	} else {
		sort.SliceStable(matched, func(left, right int) bool {
			return matched[left].ID < matched[right].ID
		})
	}
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched
}

func matchesFilters(data map[string]any, filters []Filter) bool {
	for _, filter := range filters {
		if filter.Op != OpEqual {
			return false
		}
		if !valuesEqual(data[filter.Field], filter.Value) {
			return false
		}
	}
	return true
}

func valuesEqual(left, right any) bool {
	return compareValues(left, right) == 0
}

func compareValues(left, right any) int {
	switch leftValue := left.(type) {
	case time.Time:
		rightValue, ok := right.(time.Time)
		if !ok {
			return -1
		}
		switch {
		case leftValue.Before(rightValue):
			return -1
		case leftValue.After(rightValue):
			return 1
		default:
			return 0
		}
	case string:
		rightValue, ok := right.(string)
		if !ok {
			return -1
		}
		switch {
		case leftValue < rightValue:
			return -1
		case leftValue > rightValue:
			return 1
		default:
			return 0
		}
	case bool:
		rightValue, ok := right.(bool)
		if !ok {
			return -1
		}
		if leftValue == rightValue {
			return 0
		}
		if !leftValue {
			return -1
		}
		return 1
	default:
		leftNumber, leftOK := numericValue(left)
		rightNumber, rightOK := numericValue(right)
		if leftOK && rightOK {
			switch {
			case leftNumber < rightNumber:
				return -1
			case leftNumber > rightNumber:
				return 1
			default:
				return 0
			}
		}
		if left == nil && right == nil {
			return 0
		}
		return -1
	}
}

func numericValue(value any) (float64, bool) {
	switch number := value.(type) {
	case int:
		return float64(number), true
	case int64:
		return float64(number), true
	case float64:
		return number, true
	default:
		return 0, false
	}
}

func cloneData(data map[string]any) map[string]any {
	cloned := make(map[string]any, len(data))
	for key, value := range data {
		if nested, ok := value.(map[string]any); ok {
			cloned[key] = cloneData(nested)
			continue
		}
		cloned[key] = value
	}
	return cloned
}
