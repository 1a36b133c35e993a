package paginate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/store"
	"github.com/lumacafe/console/pkg/store/memstore"
)

func seedProducts(t *testing.T, ms *memstore.Store, n int) []string {
	t.Helper()
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p-%02d", i)
		ms.Seed(models.CollectionProducts, store.Record{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Fields:    store.Fields{"name": fmt.Sprintf("item %d", i), "price_cents": 100 + i},
		})
		ids = append(ids, id)
	}
	// Descending CreatedAt puts the last seeded entity first.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

func newTestPaginator(ms *memstore.Store) *Paginator[models.Product] {
	col := store.NewCollection[models.Product](ms, models.CollectionProducts)
	return New(col, NewView[models.Product](), zerolog.Nop())
}

func TestPaginationTotality(t *testing.T) {
	ms := memstore.New()
	want := seedProducts(t, ms, 12)
	p := newTestPaginator(ms)
	ctx := context.Background()

	page, cursor, err := p.LoadFirstPage(ctx, 5)
	require.NoError(t, err)
	require.Len(t, page, 5)
	require.False(t, cursor.Exhausted())

	page2, cursor, err := p.LoadNextPage(ctx, cursor, 5)
	require.NoError(t, err)
	require.Len(t, page2, 5)
	require.False(t, cursor.Exhausted())

	page3, cursor, err := p.LoadNextPage(ctx, cursor, 5)
	require.NoError(t, err)
	require.Len(t, page3, 2)
	require.True(t, cursor.Exhausted())

	_, _, err = p.LoadNextPage(ctx, cursor, 5)
	assert.ErrorIs(t, err, store.ErrCursorExhausted)

	// Every entity exactly once, in collection order.
	var got []string
	for _, e := range p.View().Snapshot() {
		got = append(got, e.EntityID())
	}
	assert.Equal(t, want, got)
}

func TestOrderingTieBreakByIDAscending(t *testing.T) {
	ms := memstore.New()
	at := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	for _, id := range []string{"b", "c", "a", "d"} {
		ms.Seed(models.CollectionProducts, store.Record{
			ID:        id,
			CreatedAt: at, // identical timestamps force the tie-break
			Fields:    store.Fields{"name": id},
		})
	}
	p := newTestPaginator(ms)
	ctx := context.Background()

	page1, cursor, err := p.LoadFirstPage(ctx, 2)
	require.NoError(t, err)
	page2, _, err := p.LoadNextPage(ctx, cursor, 2)
	require.NoError(t, err)

	var got []string
	for _, e := range append(page1, page2...) {
		got = append(got, e.EntityID())
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got, "equal timestamps order by id ascending")
}

func TestExhaustedOnShortFirstPage(t *testing.T) {
	ms := memstore.New()
	seedProducts(t, ms, 3)
	p := newTestPaginator(ms)

	page, cursor, err := p.LoadFirstPage(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.True(t, cursor.Exhausted())
}

func TestNilCursorCountsAsExhausted(t *testing.T) {
	p := newTestPaginator(memstore.New())
	_, _, err := p.LoadNextPage(context.Background(), nil, 5)
	assert.ErrorIs(t, err, store.ErrCursorExhausted)
}

func TestLoadFirstPageReplacesAccumulatedList(t *testing.T) {
	ms := memstore.New()
	seedProducts(t, ms, 8)
	p := newTestPaginator(ms)
	ctx := context.Background()

	_, cursor, err := p.LoadFirstPage(ctx, 5)
	require.NoError(t, err)
	_, _, err = p.LoadNextPage(ctx, cursor, 5)
	require.NoError(t, err)
	require.Equal(t, 8, p.View().Len())

	_, _, err = p.LoadFirstPage(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, p.View().Len(), "reload must replace, not append")
}

func TestLocalInsertsStayVisibleWithoutRefetch(t *testing.T) {
	ms := memstore.New()
	seedProducts(t, ms, 6)
	p := newTestPaginator(ms)
	ctx := context.Background()

	_, cursor, err := p.LoadFirstPage(ctx, 5)
	require.NoError(t, err)

	// A same-client create lands at the head of the accumulated view.
	local := models.Product{Meta: models.Meta{ID: "local:new", CreatedAt: time.Now()}, Name: "new"}
	p.View().Prepend(local)

	_, _, err = p.LoadNextPage(ctx, cursor, 5)
	require.NoError(t, err)

	snapshot := p.View().Snapshot()
	require.Equal(t, 7, len(snapshot))
	assert.Equal(t, "local:new", snapshot[0].EntityID(), "local insert survives later page loads at the head")
}
