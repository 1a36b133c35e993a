// Package memstore implements the [store.RemoteStore] contract in memory.
//
// It exists for tests and for running the console locally without a SurrealDB
// instance. It mimics the remote store's observable behavior: store-assigned
// ids and creation timestamps, total (CreatedAt desc, ID asc) order, keyset
// pagination, and no cross-document atomicity. A per-operation failure hook
// lets tests simulate rejected writes and unreachable stores.
package memstore

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumacafe/console/pkg/store"
)

// Op names accepted by Fail.
const (
	OpGet        = "get"
	OpQueryPage  = "query_page"
	OpQueryExact = "query_exact"
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
)

// Store is an in-memory document store.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]store.Record
	lastCreated time.Time
	failures    map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]store.Record),
		failures:    make(map[string]error),
	}
}

// Fail arranges for every subsequent call of the named operation to return
// err until cleared with Fail(op, nil). Write failures come back wrapped in
// *store.WriteRejectedError exactly as a remote rejection would.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Seed inserts a record with caller-chosen id and timestamp, bypassing
// assignment. Tests use it to construct exact orderings and ties.
func (s *Store) Seed(collection string, rec store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coll(collection)[rec.ID] = store.Record{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Fields:    cloneFields(rec.Fields),
	}
}

// Len reports the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.coll(collection))
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[OpGet]; err != nil {
		return store.Record{}, err
	}
	rec, ok := s.coll(collection)[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *Store) QueryPage(ctx context.Context, collection string, pageSize int, after *store.Cursor) ([]store.Record, *store.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[OpQueryPage]; err != nil {
		return nil, nil, err
	}

	ordered := s.ordered(collection)
	start := 0
	if after != nil {
		at, id := after.Position()
		for start < len(ordered) && !store.Less(at, id, ordered[start].CreatedAt, ordered[start].ID) {
			start++
		}
	}

	end := start + pageSize
	if end > len(ordered) {
		end = len(ordered)
	}
	page := make([]store.Record, 0, end-start)
	for _, rec := range ordered[start:end] {
		page = append(page, cloneRecord(rec))
	}

	if len(page) < pageSize {
		return page, store.NewExhaustedCursor(), nil
	}
	last := page[len(page)-1]
	return page, store.CursorAfter(last.CreatedAt, last.ID), nil
}

func (s *Store) QueryExact(ctx context.Context, collection string, match store.Fields) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[OpQueryExact]; err != nil {
		return nil, err
	}

	var out []store.Record
	for _, rec := range s.ordered(collection) {
		if matches(rec.Fields, match) {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[OpCreate]; err != nil {
		return "", &store.WriteRejectedError{Op: "create", Collection: collection, Err: err}
	}

	id := uuid.NewString()
	s.coll(collection)[id] = store.Record{
		ID:        id,
		CreatedAt: s.nextCreated(),
		Fields:    cloneFields(fields),
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[OpUpdate]; err != nil {
		return &store.WriteRejectedError{Op: "update", Collection: collection, ID: id, Err: err}
	}

	rec, ok := s.coll(collection)[id]
	if !ok {
		return &store.WriteRejectedError{Op: "update", Collection: collection, ID: id, Err: store.ErrNotFound}
	}
	rec.Fields = cloneFields(fields)
	s.coll(collection)[id] = rec
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[OpDelete]; err != nil {
		return &store.WriteRejectedError{Op: "delete", Collection: collection, ID: id, Err: err}
	}
	delete(s.coll(collection), id)
	return nil
}

// coll returns the named collection, creating it on first touch. Callers hold mu.
func (s *Store) coll(name string) map[string]store.Record {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]store.Record)
		s.collections[name] = c
	}
	return c
}

// nextCreated assigns a monotonically non-decreasing creation timestamp.
// Callers hold mu.
func (s *Store) nextCreated() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastCreated) {
		now = s.lastCreated.Add(time.Nanosecond)
	}
	s.lastCreated = now
	return now
}

// ordered returns the collection sorted by (CreatedAt desc, ID asc). Callers hold mu.
func (s *Store) ordered(name string) []store.Record {
	c := s.coll(name)
	out := make([]store.Record, 0, len(c))
	for _, rec := range c {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return store.Less(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out
}

func matches(fields, match store.Fields) bool {
	for k, want := range match {
		got, ok := fields[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func cloneFields(fields store.Fields) store.Fields {
	out := make(store.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func cloneRecord(rec store.Record) store.Record {
	rec.Fields = cloneFields(rec.Fields)
	return rec
}
