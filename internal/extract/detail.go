package extract

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/htmldoc"
)

// Detail extracts the enrichment fields of a product page.
func Detail(page htmldoc.Node) (catalog.Detail, error) {
	rating, err := Rating(page)
	if err != nil {
		return catalog.Detail{}, err
	}
	return catalog.Detail{
		Rating:      rating,
		ProductInfo: ProductInfo(page),
	}, nil
}

// Rating returns the average rating; an invalid NullDecimal means unrated.
func Rating(page htmldoc.Node) (decimal.NullDecimal, error) {
	span, ok := page.Find(selRating)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	rating, err := decimal.NewFromString(strings.TrimSpace(span.Text()))
	if err != nil {
		return decimal.NullDecimal{}, catalog.NewExtractionError("rating", err)
	}
	return decimal.NewNullDecimal(rating), nil
}

// ProductInfo serializes the attribute table as "key:value" pairs joined by ";".
// Keys keep first-seen order; a repeated key takes the later value. It
// returns nil when the page has no attribute block.
func ProductInfo(page htmldoc.Node) *string {
	block, ok := page.Find(selInfoBlock)
	if !ok {
		return nil
	}
	var keys []string
	values := make(map[string]string)
	for _, label := range block.FindAll(selInfoLabel) {
		key := strings.TrimSpace(strings.ReplaceAll(label.Text(), ":", ""))
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = strings.TrimSpace(label.FollowingText())
	}
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+values[k])
	}
	info := strings.Join(pairs, infoSeparator)
	return &info
}
