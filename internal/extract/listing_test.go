package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/htmldoc"
	"github.com/JakeFAU/catalog-crawler/internal/testsite"
)

const base = "https://shop.test"

func mustParse(t *testing.T, body string) htmldoc.Node {
	t.Helper()
	doc, err := htmldoc.ParseString(body)
	require.NoError(t, err)
	return doc
}

func TestDiscount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		orig, disc string
		want       int
	}{
		{"40.00", "30.00", 25},
		{"10", "10", 0},
		{"33.99", "20.39", 40},
		{"8", "7", 12},  // 12.5 rounds to even
		{"8", "5", 38},  // 37.5 rounds to even
		{"100", "0", 100},
	}
	for _, tc := range cases {
		got, err := Discount(decimal.RequireFromString(tc.orig), decimal.RequireFromString(tc.disc))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "orig=%s disc=%s", tc.orig, tc.disc)
	}

	_, err := Discount(decimal.Zero, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.True(t, catalog.IsExtraction(err))
}

func TestListing(t *testing.T) {
	t.Parallel()

	page := mustParse(t, testsite.CategoryPage(base, []testsite.Card{
		{ID: 4711, Name: "Zip Hoodie", OriginalPrice: "40.00", DiscountPrice: "30.00"},
		{ID: 4712, Name: "Pullover", OriginalPrice: "25.50", DiscountPrice: "20.40"},
	}, 3))

	items := ListingItems(page)
	require.Len(t, items, 2)

	id, listing, err := Listing(items[0])
	require.NoError(t, err)
	assert.Equal(t, int64(4711), id)
	assert.Equal(t, base+"/hoodie-4711-product4711.html", listing.URL)
	assert.Equal(t, "Zip Hoodie", listing.Name)
	assert.True(t, listing.OriginalPrice.Equal(decimal.RequireFromString("40")))
	assert.True(t, listing.DiscountPrice.Equal(decimal.RequireFromString("30")))
	assert.Equal(t, 25, listing.Discount)

	_, second, err := Listing(items[1])
	require.NoError(t, err)
	assert.Equal(t, 20, second.Discount)
}

func TestListingStructuralFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no anchor": `<div class="card"><span>nothing</span></div>`,
		"bad id":    `<div class="card"><a href="/hoodie-productABC.html">x</a></div>`,
		"no price": `<div class="card"><a href="/x-product1.html"></a>
<a class="goods-name-link js_logsss_click_delegate_ps">n</a></div>`,
		"bad price": `<div class="card"><a href="/x-product1.html"></a>
<a class="goods-name-link js_logsss_click_delegate_ps">n</a>
<span class="my-shop-price category-good-price-market dl-has-rrp-tag" data-orgp="n/a"></span>
<span class="js-dlShopPrice my-shop-price category-good-price-sale" data-orgp="1"></span></div>`,
	}
	for name, fragment := range cases {
		card, ok := mustParse(t, fragment).Find("div.card")
		require.True(t, ok, name)
		_, _, err := Listing(card)
		require.Error(t, err, name)
		assert.True(t, catalog.IsExtraction(err), name)
	}
}

func TestIDFromURL(t *testing.T) {
	t.Parallel()

	id, err := IDFromURL("https://www.shop.test/a-product-line-product7788.html")
	require.NoError(t, err)
	assert.Equal(t, int64(7788), id)

	_, err = IDFromURL("https://www.shop.test/about.html")
	assert.Error(t, err)
}
