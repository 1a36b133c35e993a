// Package featured enforces the bounded featured set: at most K entities of
// a collection may carry the featured flag at once.
//
// The remote store cannot check this across documents atomically, so the
// check runs against client-visible state before any mutation is permitted.
// That makes it a weak guarantee: another client's concurrent toggle can
// still push the collection past K transiently, because the snapshot this
// client counts may be stale. The store exposes no primitive that would
// close that window from this layer, so the gap is documented rather than
// papered over; within one client the cap is never exceeded.
//
// K is configuration per collection, not a constant: reviews cap at 3 on the
// front page, products and offers at 6.
package featured

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/optimistic"
)

// ErrLimitExceeded is wrapped in *LimitError; match with errors.Is.
var ErrLimitExceeded = errors.New("featured limit exceeded")

// LimitError reports a rejected featured toggle. No mutation occurred.
type LimitError struct {
	Collection string
	Limit      int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: at most %d entities may be featured", e.Collection, e.Limit)
}

func (e *LimitError) Is(target error) bool { return target == ErrLimitExceeded }

// Entity is what the quota check and the toggle need: identity plus the
// featured flag and a way to produce the toggled copy.
type Entity[T any] interface {
	models.Keyed[T]
	models.Flagged
	WithFeatured(v bool) T
}

// Quota is the per-collection featured cap.
type Quota struct {
	Collection string
	Limit      int
}

// Allow decides whether setting the entity's featured flag to newValue keeps
// the collection within the cap, judged against the client-visible snapshot.
//
// Clearing the flag is always permitted. Setting it counts currently
// featured entities other than the target; the target being featured already
// means the toggle is a no-op and stays permitted. On rejection no state has
// changed; the actual mutation is the coordinator's job and only happens
// when Allow returns nil.
func Allow[T Entity[T]](q Quota, snapshot []T, id string, newValue bool) error {
	if !newValue {
		return nil
	}
	count := 0
	for _, e := range snapshot {
		if e.IsFeatured() && e.EntityID() != id {
			count++
		}
	}
	if count >= q.Limit {
		return &LimitError{Collection: q.Collection, Limit: q.Limit}
	}
	return nil
}

// Gate serializes featured toggles for one collection. Allow on its own
// suffices only when toggles arrive one at a time; handlers run on concurrent
// goroutines, and two toggles counting the same snapshot would both pass and
// push the visible featured count past the cap. The gate holds its lock from
// the quota check through the mutation, so every check sees the outcome of
// the toggle before it.
type Gate[T Entity[T]] struct {
	quota Quota
	coord *optimistic.Coordinator[T]
	mu    sync.Mutex
}

// NewGate returns the toggle gate for one collection.
func NewGate[T Entity[T]](quota Quota, coord *optimistic.Coordinator[T]) *Gate[T] {
	return &Gate[T]{quota: quota, coord: coord}
}

// Set toggles the entity's featured flag through the coordinator, enforcing
// the cap against the client-visible snapshot. On rejection no mutation has
// occurred.
func (g *Gate[T]) Set(ctx context.Context, id string, value bool, commit optimistic.CommitUpdate[T]) (T, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := Allow(g.quota, g.coord.View().Snapshot(), id, value); err != nil {
		var zero T
		return zero, err
	}
	return g.coord.Update(ctx, id, func(e T) T { return e.WithFeatured(value) }, commit)
}
