package docstore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

var errMissingFirestoreClient = errors.New("docstore: firestore client is required")

// FirestoreStore adapts a Cloud Firestore client to the Store interface.
// Snapshot reconnection and backoff belong to the SDK; this adapter only
// translates queries and forwards snapshots.
type FirestoreStore struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client, logger *zap.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, errMissingFirestoreClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreStore{client: client, logger: logger}, nil
}

// Watch opens a snapshot listener for the query. Snapshots arrive on a
// background goroutine until the returned cancel function is called.
func (s *FirestoreStore) Watch(ctx context.Context, query Query, deliver SnapshotFunc) (func(), error) {
	if query.Collection == "" {
		return nil, errMissingCollection
	}

	firestoreQuery := s.client.Collection(query.Collection).Query
	for _, filter := range query.Filters {
		firestoreQuery = firestoreQuery.Where(filter.Field, filter.Op, filter.Value)
	}
	if query.OrderBy != "" {
		direction := firestore.Asc
		if query.Descending {
			direction = firestore.Desc
		}
		firestoreQuery = firestoreQuery.OrderBy(query.OrderBy, direction)
	}
	if query.Limit > 0 {
		firestoreQuery = firestoreQuery.Limit(query.Limit)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	watchCtx, cancel := context.WithCancel(ctx)
	snapshots := firestoreQuery.Snapshots(watchCtx)

	go func() {
		defer snapshots.Stop()
		for {
			snapshot, err := snapshots.Next()
			if err != nil {
				if watchCtx.Err() == nil {
					s.logger.Warn("firestore snapshot stream ended",
						zap.String("collection", query.Collection),
						zap.Error(err))
				}
				return
			}
			documents, err := collectDocuments(snapshot)
			if err != nil {
				s.logger.Warn("firestore snapshot read failed",
					zap.String("collection", query.Collection),
					zap.Error(err))
				continue
			}
			deliver(documents)
		}
	}()

	return cancel, nil
}

func collectDocuments(snapshot *firestore.QuerySnapshot) ([]Document, error) {
	var documents []Document
	for {
		document, err := snapshot.Documents.Next()
		if errors.Is(err, iterator.Done) {
			return documents, nil
		}
		if err != nil {
			return nil, err
		}
		documents = append(documents, Document{ID: document.Ref.ID, Data: document.Data()})
	}
}
