package paginate

import (
	"sync"

	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/store"
)

// View is the accumulated in-memory list of one collection, in
// (CreatedAt desc, ID asc) order except where the session-consistency policy
// deliberately breaks it: entities created by this client are prepended so
// they show up immediately, wherever a full reload would eventually place
// them.
//
// The view is owned jointly by the paginator (which replaces and appends
// pages) and the mutation coordinator (which applies optimistic changes).
// All other components read it through Snapshot.
type View[T models.Keyed[T]] struct {
	mu    sync.RWMutex
	items []T
}

// NewView returns an empty view.
func NewView[T models.Keyed[T]]() *View[T] {
	return &View[T]{}
}

// Replace discards the accumulated list and installs page as the new content.
func (v *View[T]) Replace(page []T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = append(v.items[:0:0], page...)
}

// Append adds a loaded page to the end of the accumulated list.
func (v *View[T]) Append(page []T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = append(v.items, page...)
}

// Prepend puts a locally created entity at the head of the list.
func (v *View[T]) Prepend(e T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = append([]T{e}, v.items...)
}

// Insert places an entity at the position the collection order dictates.
// Used to restore an optimistically deleted entity after a rejected remote
// delete: it returns to where it was, not to the end of the list.
func (v *View[T]) Insert(e T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	at := 0
	for at < len(v.items) &&
		store.Less(v.items[at].CreatedTime(), v.items[at].EntityID(), e.CreatedTime(), e.EntityID()) {
		at++
	}
	v.items = append(v.items, e)
	copy(v.items[at+1:], v.items[at:])
	v.items[at] = e
}

// Get returns the entity with the given id.
func (v *View[T]) Get(id string) (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, e := range v.items {
		if e.EntityID() == id {
			return e, true
		}
	}
	var zero T
	return zero, false
}

// Set replaces the entity with the given id in place, preserving position.
func (v *View[T]) Set(id string, e T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.items {
		if v.items[i].EntityID() == id {
			v.items[i] = e
			return true
		}
	}
	return false
}

// Rekey substitutes a store-assigned id for a temporary local one, keeping
// the entity's position. Returns the rekeyed entity.
func (v *View[T]) Rekey(oldID, newID string) (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.items {
		if v.items[i].EntityID() == oldID {
			v.items[i] = v.items[i].WithEntityID(newID)
			return v.items[i], true
		}
	}
	var zero T
	return zero, false
}

// Remove deletes the entity with the given id and returns it.
func (v *View[T]) Remove(id string) (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.items {
		if v.items[i].EntityID() == id {
			e := v.items[i]
			v.items = append(v.items[:i], v.items[i+1:]...)
			return e, true
		}
	}
	var zero T
	return zero, false
}

// Snapshot returns a copy of the accumulated list.
func (v *View[T]) Snapshot() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]T(nil), v.items...)
}

// Len returns the number of accumulated entities.
func (v *View[T]) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items)
}
