package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *ProductStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "products")
	require.NoError(t, err)
	return mock, store
}

func TestUpsertManyWritesOnlyPatchedColumns(t *testing.T) {
	t.Parallel()
	mock, store := newMockStore(t)

	color := "Red"
	patches := []catalog.Patch{
		catalog.ListingPatch(7, catalog.Listing{
			URL:           "https://shop.test/hoodie-product7.html",
			Name:          "hoodie",
			OriginalPrice: decimal.RequireFromString("40.00"),
			DiscountPrice: decimal.RequireFromString("30.00"),
			Discount:      25,
		}),
		{ID: 8, Detail: &catalog.Detail{}},
		{ID: 9, Reviews: &catalog.ReviewSet{Items: []catalog.Review{{Rating: 5, Timestamp: 1, Text: "great", Color: &color}}}},
		{ID: 10, Reviews: &catalog.ReviewSet{}},
		{ID: 11},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO products (product_id, product_url, name, original_price, discounted_price, discount) "+
			"VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6) ON CONFLICT (product_id) DO UPDATE SET "+
			"product_url = EXCLUDED.product_url, name = EXCLUDED.name")).
		WithArgs(int64(7), "https://shop.test/hoodie-product7.html", "hoodie", "40", "30", 25).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO products (product_id, rating, product_info, detail_parsed) VALUES ($1, $2::numeric, $3, $4)")).
		WithArgs(int64(8), (*string)(nil), (*string)(nil), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO products (product_id, reviews) VALUES ($1, $2::jsonb) ON CONFLICT (product_id) DO UPDATE SET reviews = EXCLUDED.reviews")).
		WithArgs(int64(9), []byte(`[{"rating":5,"timestamp":1,"text":"great","size":null,"color":"Red"}]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products (product_id, reviews)")).
		WithArgs(int64(10), []byte(`[]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpsertMany(context.Background(), patches))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertManyRollsBackOnError(t *testing.T) {
	t.Parallel()
	mock, store := newMockStore(t)

	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products (product_id, reviews)")).
		WithArgs(int64(1), []byte(`[]`)).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := store.UpsertMany(context.Background(), []catalog.Patch{{ID: 1, Reviews: &catalog.ReviewSet{}}})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertManyEmptyBatchSkipsTransaction(t *testing.T) {
	t.Parallel()
	mock, store := newMockStore(t)

	require.NoError(t, store.UpsertMany(context.Background(), []catalog.Patch{{ID: 1}}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUnparsedSelectsNullReviews(t *testing.T) {
	t.Parallel()
	mock, store := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE reviews IS NULL ORDER BY product_id")).
		WillReturnRows(mock.NewRows([]string{"product_id", "product_url"}).
			AddRow(int64(3), "https://shop.test/c-product3.html").
			AddRow(int64(4), "https://shop.test/d-product4.html"))

	refs, err := store.FindUnparsed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []catalog.Ref{
		{ID: 3, URL: "https://shop.test/c-product3.html"},
		{ID: 4, URL: "https://shop.test/d-product4.html"},
	}, refs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMissingDetail(t *testing.T) {
	t.Parallel()
	mock, store := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE reviews IS NOT NULL AND NOT detail_parsed")).
		WillReturnRows(mock.NewRows([]string{"product_id", "product_url"}))

	refs, err := store.FindMissingDetail(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListProductsDecodesRows(t *testing.T) {
	t.Parallel()
	mock, store := newMockStore(t)

	rating := "4.70"
	info := "Material:Cotton;Style:Casual"
	mock.ExpectQuery("SELECT product_id").
		WillReturnRows(mock.NewRows([]string{
			"product_id", "product_url", "name", "original_price", "discounted_price",
			"discount", "rating", "product_info", "detail_parsed", "reviews",
		}).
			AddRow(int64(1), "https://shop.test/a-product1.html", "a", "8.00", "5.00", 38,
				&rating, &info, true, []byte(`[{"rating":4,"timestamp":1546347723,"text":"ok","size":"M","color":null}]`)).
			AddRow(int64(2), "https://shop.test/b-product2.html", "b", "0", "0", 0,
				nil, nil, false, nil))

	products, err := store.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	a := products[0]
	assert.Equal(t, "8", a.OriginalPrice.String())
	assert.Equal(t, "5", a.DiscountPrice.String())
	assert.Equal(t, 38, a.Discount)
	require.True(t, a.Rating.Valid)
	assert.Equal(t, "4.7", a.Rating.Decimal.String())
	assert.Equal(t, info, *a.ProductInfo)
	assert.True(t, a.ReviewsParsed)
	require.Len(t, a.Reviews, 1)
	assert.Equal(t, "M", *a.Reviews[0].Size)
	assert.Nil(t, a.Reviews[0].Color)

	b := products[1]
	assert.False(t, b.Rating.Valid)
	assert.Nil(t, b.ProductInfo)
	assert.False(t, b.ReviewsParsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()
	mock, store := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "products; DROP TABLE x")
	require.Error(t, err)
	_, err = NewWithPool(nil, "products")
	require.Error(t, err)
	_, err = New(context.Background(), Config{})
	require.Error(t, err)
}
