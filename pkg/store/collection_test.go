package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/store"
	"github.com/lumacafe/console/pkg/store/memstore"
)

func TestCreateThenGetRoundTripsSchema(t *testing.T) {
	ms := memstore.New()
	products := store.NewCollection[models.Product](ms, models.CollectionProducts)
	ctx := context.Background()

	id, err := products.Create(ctx, models.Product{
		Name:       "Flat White",
		PriceCents: 420,
		Category:   "coffee",
		Featured:   true,
		Rating:     4.5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := products.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.False(t, got.CreatedAt.IsZero(), "store assigns the creation timestamp")
	assert.Equal(t, "Flat White", got.Name)
	assert.Equal(t, 420, got.PriceCents)
	assert.True(t, got.Featured)
	assert.Equal(t, 4.5, got.Rating)
}

func TestEncodeStripsIdentityAttributes(t *testing.T) {
	ms := memstore.New()
	products := store.NewCollection[models.Product](ms, models.CollectionProducts)
	ctx := context.Background()

	stale := models.Product{
		Meta: models.Meta{ID: "stale-id", CreatedAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		Name: "Mocha",
	}
	id, err := products.Create(ctx, stale)
	require.NoError(t, err)
	assert.NotEqual(t, "stale-id", id)

	rec, err := ms.Get(ctx, models.CollectionProducts, id)
	require.NoError(t, err)
	assert.NotContains(t, rec.Fields, "id")
	assert.NotContains(t, rec.Fields, "created_at")
	assert.True(t, rec.CreatedAt.After(stale.CreatedAt), "client-supplied timestamp must not leak into the store")
}

func TestUpdateKeepsCreatedAt(t *testing.T) {
	ms := memstore.New()
	products := store.NewCollection[models.Product](ms, models.CollectionProducts)
	ctx := context.Background()

	id, err := products.Create(ctx, models.Product{Name: "Cortado", PriceCents: 380})
	require.NoError(t, err)
	before, err := products.Get(ctx, id)
	require.NoError(t, err)

	edited := before
	edited.PriceCents = 400
	require.NoError(t, products.Update(ctx, edited))

	after, err := products.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 400, after.PriceCents)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
}

func TestDecodeRejectsMalformedRecords(t *testing.T) {
	ms := memstore.New()
	products := store.NewCollection[models.Product](ms, models.CollectionProducts)
	ctx := context.Background()

	ms.Seed(models.CollectionProducts, store.Record{
		ID:        "bad-1",
		CreatedAt: time.Now().UTC(),
		Fields:    store.Fields{"name": "Espresso", "price_cents": "four hundred"},
	})

	_, err := products.Get(ctx, "bad-1")
	var malformed *store.MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, models.CollectionProducts, malformed.Collection)
	assert.Equal(t, "bad-1", malformed.ID)
}

func TestQueryPageDecodesInOrder(t *testing.T) {
	ms := memstore.New()
	reviews := store.NewCollection[models.Review](ms, models.CollectionReviews)
	ctx := context.Background()

	for _, author := range []string{"ana", "ben", "chu"} {
		_, err := reviews.Create(ctx, models.Review{Author: author, Text: "great", Stars: 5})
		require.NoError(t, err)
	}

	page, cursor, err := reviews.QueryPage(ctx, 10, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)
	// Newest first.
	assert.Equal(t, "chu", page[0].Author)
	assert.Equal(t, "ana", page[2].Author)
	assert.True(t, cursor.Exhausted())
}
