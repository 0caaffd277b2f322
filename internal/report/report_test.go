package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/storage/memory"
)

func str(s string) *string { return &s }

func seed(t *testing.T) *memory.ProductStore {
	t.Helper()
	store := memory.NewProductStore()
	listing := func(name string) catalog.Listing {
		return catalog.Listing{
			URL:           "https://shop.test/" + name + ".html",
			Name:          name,
			OriginalPrice: decimal.RequireFromString("40"),
			DiscountPrice: decimal.RequireFromString("30.5"),
			Discount:      24,
		}
	}
	require.NoError(t, store.UpsertMany(context.Background(), []catalog.Patch{
		{
			ID:      1,
			Listing: &catalog.Listing{URL: "https://shop.test/a.html", Name: "Zip, Hoodie", OriginalPrice: decimal.RequireFromString("40"), DiscountPrice: decimal.RequireFromString("30.5"), Discount: 24},
			Detail:  &catalog.Detail{Rating: decimal.NewNullDecimal(decimal.RequireFromString("4.5")), ProductInfo: str("Material:Cotton")},
			Reviews: &catalog.ReviewSet{Items: []catalog.Review{
				{Rating: 5, Timestamp: 1614953039, Text: "warm", Size: str("M"), Color: str("Black")},
				{Rating: 3, Timestamp: 1614953040, Text: "ok"},
			}},
		},
		{ID: 2, Listing: ptr(listing("b")), Detail: &catalog.Detail{}, Reviews: &catalog.ReviewSet{}},
		{ID: 3, Listing: ptr(listing("c"))},
	}))
	return store
}

func ptr[T any](v T) *T { return &v }

func readAll(t *testing.T, body []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteProductsOnlyDetailParsed(t *testing.T) {
	t.Parallel()

	products, err := seed(t).ListProducts(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := WriteProducts(&buf, products)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := readAll(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, ProductHeader, rows[0])
	assert.Equal(t, []string{"1", "https://shop.test/a.html", "Zip, Hoodie", "24", "30.50", "40.00", "4.5", "Material:Cotton"}, rows[1])
	assert.Equal(t, "", rows[2][6], "unrated product has empty rating")
	assert.Equal(t, "", rows[2][7])
}

func TestWriteReviewsFlattens(t *testing.T) {
	t.Parallel()

	products, err := seed(t).ListProducts(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := WriteReviews(&buf, products)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := readAll(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, ReviewHeader, rows[0])
	assert.Equal(t, []string{"1", "5", "1614953039", "warm", "M", "Black"}, rows[1])
	assert.Equal(t, []string{"1", "3", "1614953040", "ok", "", ""}, rows[2])
}

func TestExportWritesToEverySink(t *testing.T) {
	t.Parallel()

	first, second := memory.NewBlobStore(), memory.NewBlobStore()
	exp, err := NewExporter(Config{ProductsFile: "p.csv", ReviewsFile: "r.csv"}, seed(t), nil, first, second)
	require.NoError(t, err)

	res, err := exp.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Products)
	assert.Equal(t, 2, res.Reviews)
	assert.ElementsMatch(t, []string{"memory://p.csv", "memory://r.csv", "memory://p.csv", "memory://r.csv"}, res.URIs)

	for _, sink := range []*memory.BlobStore{first, second} {
		body, ok := sink.Object("r.csv")
		require.True(t, ok)
		assert.Len(t, readAll(t, body), 3)
	}
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1)
}

func TestExportPropagatesSinkError(t *testing.T) {
	t.Parallel()

	sink := new(mockSink)
	sink.On("PutObject", mock.Anything, mock.Anything, contentType, mock.Anything).
		Return("", errors.New("bucket missing"))

	exp, err := NewExporter(Config{}, seed(t), nil, sink)
	require.NoError(t, err)
	_, err = exp.Export(context.Background())
	require.ErrorContains(t, err, "bucket missing")
	sink.AssertNumberOfCalls(t, "PutObject", 1)
}

func TestNewExporterValidates(t *testing.T) {
	t.Parallel()

	_, err := NewExporter(Config{}, nil, nil, memory.NewBlobStore())
	require.Error(t, err)
	_, err = NewExporter(Config{}, memory.NewProductStore(), nil)
	require.Error(t, err)
}
