package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

func listing(name string) catalog.Listing {
	return catalog.Listing{
		URL:           "https://shop.test/" + name + "-product7.html",
		Name:          name,
		OriginalPrice: decimal.RequireFromString("40.00"),
		DiscountPrice: decimal.RequireFromString("30.00"),
		Discount:      25,
	}
}

func TestProductStoreUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewProductStore()
	ctx := context.Background()
	patch := catalog.ListingPatch(7, listing("hoodie"))

	require.NoError(t, store.UpsertMany(ctx, []catalog.Patch{patch}))
	require.NoError(t, store.UpsertMany(ctx, []catalog.Patch{patch}))

	assert.Equal(t, 1, store.Len())
	got, ok := store.Get(7)
	require.True(t, ok)
	assert.Equal(t, "hoodie", got.Name)
	assert.False(t, got.ReviewsParsed)
}

func TestProductStoreUpsertTouchesOnlyPatchedFields(t *testing.T) {
	t.Parallel()

	store := NewProductStore()
	ctx := context.Background()
	info := "Material:Cotton"
	require.NoError(t, store.UpsertMany(ctx, []catalog.Patch{catalog.ListingPatch(7, listing("hoodie"))}))
	require.NoError(t, store.UpsertMany(ctx, []catalog.Patch{{
		ID: 7,
		Detail: &catalog.Detail{
			Rating:      decimal.NewNullDecimal(decimal.RequireFromString("4.5")),
			ProductInfo: &info,
		},
	}}))
	require.NoError(t, store.UpsertMany(ctx, []catalog.Patch{{
		ID:      7,
		Reviews: &catalog.ReviewSet{Items: []catalog.Review{{Rating: 5, Text: "nice"}}},
	}}))

	// A fresh listing pass must not clear detail or reviews.
	renamed := listing("hoodie v2")
	require.NoError(t, store.UpsertMany(ctx, []catalog.Patch{catalog.ListingPatch(7, renamed)}))

	got, ok := store.Get(7)
	require.True(t, ok)
	assert.Equal(t, "hoodie v2", got.Name)
	assert.True(t, got.DetailParsed)
	assert.Equal(t, "4.5", got.Rating.Decimal.String())
	require.NotNil(t, got.ProductInfo)
	assert.Equal(t, info, *got.ProductInfo)
	assert.True(t, got.ReviewsParsed)
	assert.Len(t, got.Reviews, 1)
}

func TestProductStoreSelections(t *testing.T) {
	t.Parallel()

	store := NewProductStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertMany(ctx, []catalog.Patch{
		catalog.ListingPatch(3, listing("a")),
		catalog.ListingPatch(1, listing("b")),
		catalog.ListingPatch(2, listing("c")),
	}))
	require.NoError(t, store.UpsertMany(ctx, []catalog.Patch{
		// empty reviews are a terminal state
		{ID: 1, Reviews: &catalog.ReviewSet{}},
		{ID: 2, Reviews: &catalog.ReviewSet{}, Detail: &catalog.Detail{}},
	}))

	unparsed, err := store.FindUnparsed(ctx)
	require.NoError(t, err)
	require.Len(t, unparsed, 1)
	assert.Equal(t, int64(3), unparsed[0].ID)
	assert.Equal(t, "https://shop.test/a-product7.html", unparsed[0].URL)

	missing, err := store.FindMissingDetail(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, int64(1), missing[0].ID)
}

func TestProductStoreListReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewProductStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertMany(ctx, []catalog.Patch{
		{ID: 2, Reviews: &catalog.ReviewSet{Items: []catalog.Review{{Text: "ok"}}}},
		catalog.ListingPatch(1, listing("a")),
	}))

	products, err := store.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)
	products[1].Reviews[0].Text = "changed"

	stored, _ := store.Get(2)
	assert.Equal(t, "ok", stored.Reviews[0].Text)
}

func TestProductStoreEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	store := NewProductStore()
	require.NoError(t, store.UpsertMany(context.Background(), nil))
	assert.Zero(t, store.Writes())
}
