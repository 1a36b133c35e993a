// Package optimistic makes every create, update and delete feel synchronous
// to its caller while the remote round-trip is still in flight.
//
// The protocol per mutation: snapshot the current local state of the target
// entity, apply the change to the shared view immediately, then issue the
// remote commit. On success local state is already correct (a create
// additionally swaps the temporary local id for the store-assigned one); on
// failure the snapshot is restored exactly and the failure surfaces as
// *UpdateRejectedError. Local state is never left half-applied.
//
// Mutations against the same entity id are serialized FIFO in issuance
// order: a second mutation queues behind the first instead of racing it, so
// a delete cannot complete under a concurrent edit and two edits cannot
// commit out of order. Mutations on different ids run fully in parallel.
//
// The coordinator never retries a failed commit; retry policy belongs to the
// caller. Every commit runs under a timeout so a remote call that never
// resolves cannot leave an entity unconfirmed forever: expiry counts as a
// rejected write and rolls back.
package optimistic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/paginate"
)

// TempIDPrefix marks ids that exist only locally, before the first
// successful create assigns a real one.
const TempIDPrefix = "local:"

// NewTempID returns a fresh temporary local id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id is a temporary local id.
func IsTempID(id string) bool {
	return len(id) >= len(TempIDPrefix) && id[:len(TempIDPrefix)] == TempIDPrefix
}

// Op identifies the kind of mutation an error belongs to.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// UpdateRejectedError reports a mutation whose remote commit failed. By the
// time it surfaces, rollback has already restored the pre-mutation snapshot;
// RolledBack exists so callers can assert that without knowing the protocol.
type UpdateRejectedError struct {
	Op         Op
	EntityID   string
	RolledBack bool
	Err        error
}

func (e *UpdateRejectedError) Error() string {
	return fmt.Sprintf("%s of %s rejected (rolled back): %v", e.Op, e.EntityID, e.Err)
}

func (e *UpdateRejectedError) Unwrap() error { return e.Err }

// CommitCreate performs the remote create for an optimistically added entity
// and returns the store-assigned id.
type CommitCreate[T any] func(ctx context.Context, e T) (string, error)

// CommitUpdate performs the remote write for an updated entity.
type CommitUpdate[T any] func(ctx context.Context, e T) error

// CommitDelete performs the remote delete.
type CommitDelete func(ctx context.Context, id string) error

// Coordinator applies optimistic mutations to a shared view and reconciles
// them with the remote store. One coordinator serves one collection.
type Coordinator[T models.Keyed[T]] struct {
	view    *paginate.View[T]
	timeout time.Duration
	log     zerolog.Logger

	mu    sync.Mutex
	tails map[string]chan struct{}
}

// New returns a coordinator over the given view. timeout bounds every remote
// commit; it must be positive.
func New[T models.Keyed[T]](view *paginate.View[T], timeout time.Duration, log zerolog.Logger) *Coordinator[T] {
	if timeout <= 0 {
		panic("optimistic: commit timeout must be positive")
	}
	return &Coordinator[T]{
		view:    view,
		timeout: timeout,
		log:     log,
		tails:   make(map[string]chan struct{}),
	}
}

// View returns the shared view the coordinator mutates.
func (c *Coordinator[T]) View() *paginate.View[T] { return c.view }

// enter serializes mutations per entity id. It chains onto the current tail
// for the id and waits for it, so mutations run in the order enter was
// reached. The returned release must be called when the mutation finishes.
func (c *Coordinator[T]) enter(id string) (release func()) {
	c.mu.Lock()
	prev := c.tails[id]
	done := make(chan struct{})
	c.tails[id] = done
	c.mu.Unlock()

	if prev != nil {
		<-prev
	}
	return func() {
		close(done)
		c.mu.Lock()
		if c.tails[id] == done {
			delete(c.tails, id)
		}
		c.mu.Unlock()
	}
}

// Create adds the entity to the view immediately under a temporary local id,
// then issues the remote create. On success the temporary id is replaced by
// the store-assigned one in place; on failure the local entity is removed
// again. Returns the entity as it exists locally after reconciliation.
//
// The per-id queue guarantees at most one outstanding remote create per
// temporary id, so a caller-driven retry after a transient failure cannot
// produce a duplicate.
func (c *Coordinator[T]) Create(ctx context.Context, e T, commit CommitCreate[T]) (T, error) {
	var zero T
	tempID := NewTempID()
	e = e.WithEntityID(tempID)
	if e.CreatedTime().IsZero() {
		// Provisional ordering key until the next full reload replaces it
		// with the store-assigned timestamp.
		e = e.WithCreated(time.Now().UTC())
	}

	release := c.enter(tempID)
	defer release()

	c.view.Prepend(e)
	c.log.Debug().Str("op", string(OpCreate)).Str("id", tempID).Msg("applied locally")

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	id, err := commit(cctx, e)
	if err != nil {
		c.view.Remove(tempID)
		c.log.Warn().Str("op", string(OpCreate)).Str("id", tempID).Err(err).Msg("rolled back")
		return zero, &UpdateRejectedError{Op: OpCreate, EntityID: tempID, RolledBack: true, Err: err}
	}

	confirmed, ok := c.view.Rekey(tempID, id)
	if !ok {
		// The view was replaced by a reload while the create was in flight;
		// the reload already contains the stored entity.
		confirmed = e.WithEntityID(id)
	}
	c.log.Debug().Str("op", string(OpCreate)).Str("id", id).Msg("confirmed")
	return confirmed, nil
}

// Update applies transform to the entity's current local value immediately,
// then issues the remote commit with the transformed entity. On failure the
// captured snapshot is restored exactly. The entity's id and creation
// timestamp cannot be changed by transform.
func (c *Coordinator[T]) Update(ctx context.Context, id string, transform func(T) T, commit CommitUpdate[T]) (T, error) {
	var zero T
	release := c.enter(id)
	defer release()

	prev, ok := c.view.Get(id)
	if !ok {
		return zero, &UpdateRejectedError{Op: OpUpdate, EntityID: id, RolledBack: true, Err: fmt.Errorf("entity not loaded")}
	}

	next := transform(prev).WithEntityID(id).WithCreated(prev.CreatedTime())
	c.view.Set(id, next)
	c.log.Debug().Str("op", string(OpUpdate)).Str("id", id).Msg("applied locally")

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := commit(cctx, next); err != nil {
		c.view.Set(id, prev)
		c.log.Warn().Str("op", string(OpUpdate)).Str("id", id).Err(err).Msg("rolled back")
		return zero, &UpdateRejectedError{Op: OpUpdate, EntityID: id, RolledBack: true, Err: err}
	}

	c.log.Debug().Str("op", string(OpUpdate)).Str("id", id).Msg("confirmed")
	return next, nil
}

// Delete removes the entity from the view immediately, then issues the
// remote delete. On failure the entity is reinserted at its original
// position in collection order, not appended.
func (c *Coordinator[T]) Delete(ctx context.Context, id string, commit CommitDelete) error {
	release := c.enter(id)
	defer release()

	prev, ok := c.view.Remove(id)
	if !ok {
		return &UpdateRejectedError{Op: OpDelete, EntityID: id, RolledBack: true, Err: fmt.Errorf("entity not loaded")}
	}
	c.log.Debug().Str("op", string(OpDelete)).Str("id", id).Msg("applied locally")

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := commit(cctx, id); err != nil {
		c.view.Insert(prev)
		c.log.Warn().Str("op", string(OpDelete)).Str("id", id).Err(err).Msg("rolled back")
		return &UpdateRejectedError{Op: OpDelete, EntityID: id, RolledBack: true, Err: err}
	}

	c.log.Debug().Str("op", string(OpDelete)).Str("id", id).Msg("confirmed")
	return nil
}
