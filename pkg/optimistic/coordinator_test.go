package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/paginate"
)

func newTestCoordinator(t *testing.T) (*Coordinator[models.Product], *paginate.View[models.Product]) {
	t.Helper()
	view := paginate.NewView[models.Product]()
	return New(view, time.Second, zerolog.Nop()), view
}

func product(id string, createdAt time.Time, name string, price int) models.Product {
	return models.Product{
		Meta:       models.Meta{ID: id, CreatedAt: createdAt},
		Name:       name,
		PriceCents: price,
	}
}

func TestCreateSubstitutesStoreAssignedID(t *testing.T) {
	c, view := newTestCoordinator(t)

	var seenTempID string
	confirmed, err := c.Create(context.Background(), models.Product{Name: "flat white", PriceCents: 450},
		func(ctx context.Context, e models.Product) (string, error) {
			seenTempID = e.EntityID()
			return "p-1", nil
		})
	require.NoError(t, err)

	assert.True(t, IsTempID(seenTempID), "commit must see the temporary id")
	assert.Equal(t, "p-1", confirmed.EntityID())

	// Exactly one entity, under the store-assigned id; the temp id is gone.
	require.Equal(t, 1, view.Len())
	_, ok := view.Get(seenTempID)
	assert.False(t, ok)
	got, ok := view.Get("p-1")
	require.True(t, ok)
	assert.Equal(t, "flat white", got.Name)
}

func TestCreateRollsBackOnRejectedWrite(t *testing.T) {
	c, view := newTestCoordinator(t)

	_, err := c.Create(context.Background(), models.Product{Name: "mocha"},
		func(ctx context.Context, e models.Product) (string, error) {
			return "", fmt.Errorf("permission denied")
		})

	var rejected *UpdateRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, OpCreate, rejected.Op)
	assert.True(t, rejected.RolledBack)
	assert.Equal(t, 0, view.Len(), "optimistically added entity must be removed")
}

func TestUpdateRollbackRestoresSnapshotExactly(t *testing.T) {
	c, view := newTestCoordinator(t)
	before := product("p-1", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), "espresso", 300)
	before.Description = "double shot"
	before.Rating = 4.5
	view.Replace([]models.Product{before})

	_, err := c.Update(context.Background(), "p-1",
		func(p models.Product) models.Product {
			p.Name = "ristretto"
			p.PriceCents = 350
			p.Rating = 1
			return p
		},
		func(ctx context.Context, e models.Product) error {
			return fmt.Errorf("network down")
		})

	var rejected *UpdateRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.True(t, rejected.RolledBack)

	after, ok := view.Get("p-1")
	require.True(t, ok)
	assert.Equal(t, before, after, "visible state must equal the pre-mutation snapshot exactly")
}

func TestUpdateAppliesLocallyBeforeCommitResolves(t *testing.T) {
	c, view := newTestCoordinator(t)
	view.Replace([]models.Product{product("p-1", time.Now(), "espresso", 300)})

	commitStarted := make(chan struct{})
	releaseCommit := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Update(context.Background(), "p-1",
			func(p models.Product) models.Product { p.PriceCents = 999; return p },
			func(ctx context.Context, e models.Product) error {
				close(commitStarted)
				<-releaseCommit
				return nil
			})
		done <- err
	}()

	<-commitStarted
	got, ok := view.Get("p-1")
	require.True(t, ok)
	assert.Equal(t, 999, got.PriceCents, "new value must be visible while the commit is in flight")

	close(releaseCommit)
	require.NoError(t, <-done)
}

func TestUpdateCannotChangeIdentity(t *testing.T) {
	c, view := newTestCoordinator(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	view.Replace([]models.Product{product("p-1", created, "espresso", 300)})

	updated, err := c.Update(context.Background(), "p-1",
		func(p models.Product) models.Product {
			p.ID = "p-other"
			p.CreatedAt = p.CreatedAt.Add(time.Hour)
			return p
		},
		func(ctx context.Context, e models.Product) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, "p-1", updated.EntityID())
	assert.True(t, created.Equal(updated.CreatedTime()))
}

func TestSameEntityMutationsSerializeInIssuanceOrder(t *testing.T) {
	c, view := newTestCoordinator(t)
	view.Replace([]models.Product{product("p-1", time.Now(), "espresso", 100)})

	m1Started := make(chan struct{})
	releaseM1 := make(chan struct{})
	m1Done := make(chan error, 1)
	go func() {
		_, err := c.Update(context.Background(), "p-1",
			func(p models.Product) models.Product { p.PriceCents = 200; return p },
			func(ctx context.Context, e models.Product) error {
				close(m1Started)
				<-releaseM1
				return nil
			})
		m1Done <- err
	}()
	<-m1Started

	tail := func() chan struct{} {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.tails["p-1"]
	}
	m1Tail := tail()

	var m2Input int
	m2Done := make(chan error, 1)
	go func() {
		_, err := c.Update(context.Background(), "p-1",
			func(p models.Product) models.Product {
				m2Input = p.PriceCents
				p.PriceCents = p.PriceCents + 50
				return p
			},
			func(ctx context.Context, e models.Product) error { return nil })
		m2Done <- err
	}()

	// enter registers the new tail before blocking on the previous one, so
	// the tail channel changing means m2 is in line. Only then let the first
	// commit finish. If serialization were broken, m2 would have read the
	// pre-m1 price already.
	require.Eventually(t, func() bool { return tail() != m1Tail }, time.Second, time.Millisecond)
	close(releaseM1)
	require.NoError(t, <-m1Done)
	require.NoError(t, <-m2Done)

	assert.Equal(t, 200, m2Input, "second transform must see the first mutation's result")
	got, _ := view.Get("p-1")
	assert.Equal(t, 250, got.PriceCents)
}

func TestDifferentEntitiesMutateInParallel(t *testing.T) {
	c, view := newTestCoordinator(t)
	view.Replace([]models.Product{
		product("p-1", time.Now(), "espresso", 100),
		product("p-2", time.Now(), "latte", 200),
	})

	p1Blocked := make(chan struct{})
	releaseP1 := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = c.Update(context.Background(), "p-1",
			func(p models.Product) models.Product { return p },
			func(ctx context.Context, e models.Product) error {
				close(p1Blocked)
				<-releaseP1
				return nil
			})
	}()
	<-p1Blocked

	p2Done := make(chan struct{})
	go func() {
		defer wg.Done()
		_, err := c.Update(context.Background(), "p-2",
			func(p models.Product) models.Product { p.PriceCents = 1; return p },
			func(ctx context.Context, e models.Product) error { return nil })
		assert.NoError(t, err)
		close(p2Done)
	}()

	select {
	case <-p2Done:
		// p-2 completed while p-1's commit was still blocked.
	case <-time.After(time.Second):
		t.Fatal("mutation on a different entity was blocked by an unrelated in-flight mutation")
	}
	close(releaseP1)
	wg.Wait()
}

func TestDeleteReinsertsAtOriginalPositionOnFailure(t *testing.T) {
	c, view := newTestCoordinator(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	newest := product("p-3", base.Add(2*time.Hour), "c", 3)
	middle := product("p-2", base.Add(time.Hour), "b", 2)
	oldest := product("p-1", base, "a", 1)
	view.Replace([]models.Product{newest, middle, oldest})

	err := c.Delete(context.Background(), "p-2", func(ctx context.Context, id string) error {
		return fmt.Errorf("store unavailable")
	})
	var rejected *UpdateRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, OpDelete, rejected.Op)

	snapshot := view.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "p-2", snapshot[1].EntityID(), "reinserted entity must return to its ordered position")
}

func TestCommitTimeoutTriggersRollback(t *testing.T) {
	view := paginate.NewView[models.Product]()
	c := New(view, 20*time.Millisecond, zerolog.Nop())
	before := product("p-1", time.Now(), "espresso", 300)
	view.Replace([]models.Product{before})

	_, err := c.Update(context.Background(), "p-1",
		func(p models.Product) models.Product { p.PriceCents = 0; return p },
		func(ctx context.Context, e models.Product) error {
			// A commit that never resolves on its own.
			<-ctx.Done()
			return ctx.Err()
		})

	var rejected *UpdateRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorIs(t, rejected.Err, context.DeadlineExceeded)

	after, ok := view.Get("p-1")
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestUpdateOnUnloadedEntityIsRejected(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, err := c.Update(context.Background(), "ghost",
		func(p models.Product) models.Product { return p },
		func(ctx context.Context, e models.Product) error { return nil })

	var rejected *UpdateRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.True(t, rejected.RolledBack)
}

func TestTempIDs(t *testing.T) {
	id := NewTempID()
	assert.True(t, IsTempID(id))
	assert.False(t, IsTempID("p-1"))
	assert.NotEqual(t, id, NewTempID())
}
