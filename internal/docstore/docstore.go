// Package docstore abstracts the collection-oriented document database the
// application observes. The store pushes a full result snapshot to every
// registered watch on each change; all writes happen elsewhere, through the
// upstream REST API.
package docstore

import "context"

// OpEqual is the only comparison operator the application issues.
const OpEqual = "=="

// Document is a raw record annotated with its database-assigned identifier.
type Document struct {
	ID   string
	Data map[string]any
}

// Filter narrows a query to documents whose field equals a value.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query describes a read-only collection query: equality filters, a single
// ordering field and an optional result limit.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// SnapshotFunc receives the full result set for a watched query. Delivery
// order follows the underlying transport; no reordering is introduced.
type SnapshotFunc func(documents []Document)

// Store opens push-based query watches. Watch returns a cancel function
// that releases the underlying listener; snapshots may keep arriving until
// cancel is called. Transient connectivity loss is the store's own problem
// to recover from, never the caller's.
type Store interface {
	Watch(ctx context.Context, query Query, deliver SnapshotFunc) (func(), error)
}
