// Package store defines the narrow contract the synchronization core has
// with the remote document store, plus the typed normalization layer that
// sits at that boundary.
//
// The store is assumed to offer per-document CRUD and cursor-based range
// queries only: no compare-and-swap, no multi-document transactions, no
// server-side constraints. Everything stronger (bounded featured sets, slot
// uniqueness, rollback on failed writes) is built client-side on top of this
// interface by pkg/paginate, pkg/optimistic, pkg/featured and pkg/booking.
//
// Two implementations ship with the repository:
//   - pkg/store/surreal: SurrealDB over the official Go SDK
//   - pkg/store/memstore: in-memory store for tests and local development
package store

import (
	"context"
	"time"
)

// Fields is the untyped field set of a document as the remote store sees it.
// The id and creation timestamp are not part of Fields; they travel
// separately on [Record] so that ordering and identity stay out of the
// schema-specific payload.
type Fields map[string]any

// Record is a single document returned by the store, before normalization
// into a per-collection schema type.
type Record struct {
	ID        string
	CreatedAt time.Time
	Fields    Fields
}

// RemoteStore is the complete surface the core consumes. Implementations
// provide ordered collections keyed by (CreatedAt desc, ID asc); the tie-break
// on ID makes the order total so pagination is deterministic and restartable.
//
// Every call is a suspension point in the sense of the optimistic mutation
// protocol: local state is already visible to callers before any of these
// methods return.
type RemoteStore interface {
	// Get fetches a single document. A missing document is ErrNotFound.
	Get(ctx context.Context, collection, id string) (Record, error)

	// QueryPage returns up to pageSize records ordered by
	// (CreatedAt desc, ID asc), starting strictly after the cursor position
	// when after is non-nil. The returned cursor points past the last record
	// of the page and is exhausted when fewer than pageSize records exist
	// beyond it.
	QueryPage(ctx context.Context, collection string, pageSize int, after *Cursor) ([]Record, *Cursor, error)

	// QueryExact returns every record whose fields equal all entries of
	// match. Used by the slot availability guard for (date, time) lookups.
	QueryExact(ctx context.Context, collection string, match Fields) ([]Record, error)

	// Create inserts a new document and returns the store-assigned id.
	// The store also assigns CreatedAt. Fails with *WriteRejectedError.
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// Update replaces the fields of an existing document. The creation
	// timestamp is not touched. Fails with *WriteRejectedError.
	Update(ctx context.Context, collection, id string, fields Fields) error

	// Delete removes a document. Fails with *WriteRejectedError.
	Delete(ctx context.Context, collection, id string) error
}

// Cursor is an opaque position in the total order of a collection. A cursor
// is either live, pointing just past a previously returned record, or
// exhausted, meaning the query that produced it hit the end of data.
//
// Cursors serialize to an opaque text token (see MarshalText) so a stateless
// HTTP layer can hand them to a client and accept them back.
type Cursor struct {
	createdAt time.Time
	id        string
	exhausted bool
}

// CursorAfter returns a live cursor positioned just past the record with the
// given ordering key. Store implementations use it to build the next-page
// cursor; other packages treat cursors as opaque.
func CursorAfter(createdAt time.Time, id string) *Cursor {
	return &Cursor{createdAt: createdAt, id: id}
}

// NewExhaustedCursor returns a cursor in the exhausted state.
func NewExhaustedCursor() *Cursor {
	return &Cursor{exhausted: true}
}

// Position returns the ordering key the cursor points past. Only meaningful
// for live cursors.
func (c *Cursor) Position() (createdAt time.Time, id string) {
	return c.createdAt, c.id
}

// Exhausted reports whether the cursor is past the end of data. A nil cursor
// counts as exhausted so a caller that never loaded a first page cannot
// accidentally page from the start again.
func (c *Cursor) Exhausted() bool {
	return c == nil || c.exhausted
}

// Less reports whether key (aCreated, aID) orders before (bCreated, bID) in
// the collection order: CreatedAt descending, ID ascending.
func Less(aCreated time.Time, aID string, bCreated time.Time, bID string) bool {
	if !aCreated.Equal(bCreated) {
		return aCreated.After(bCreated)
	}
	return aID < bID
}
