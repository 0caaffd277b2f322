package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/htmldoc"
)

var hundred = decimal.NewFromInt(100)

// ListingItems returns the product cards on a category page.
func ListingItems(page htmldoc.Node) []htmldoc.Node {
	return page.FindAll(selListingItem)
}

// Listing extracts the stub fields of one product card.
func Listing(item htmldoc.Node) (int64, catalog.Listing, error) {
	id, err := ProductID(item)
	if err != nil {
		return 0, catalog.Listing{}, err
	}
	url, err := ProductURL(item)
	if err != nil {
		return 0, catalog.Listing{}, err
	}
	name, err := ProductName(item)
	if err != nil {
		return 0, catalog.Listing{}, err
	}
	orig, disc, discount, err := Prices(item)
	if err != nil {
		return 0, catalog.Listing{}, err
	}
	return id, catalog.Listing{
		URL:           url,
		Name:          name,
		OriginalPrice: orig,
		DiscountPrice: disc,
		Discount:      discount,
	}, nil
}

// ProductURL returns the href of the card's first anchor.
func ProductURL(item htmldoc.Node) (string, error) {
	link, ok := item.Find(selListingLink)
	if !ok {
		return "", catalog.NewExtractionError("url", errors.New("anchor not found"))
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", catalog.NewExtractionError("url", errors.New("anchor has no href"))
	}
	return href, nil
}

// ProductID derives the numeric id from the canonical product URL, which
// ends in "product<id>.html".
func ProductID(item htmldoc.Node) (int64, error) {
	href, err := ProductURL(item)
	if err != nil {
		return 0, err
	}
	return IDFromURL(href)
}

// IDFromURL parses the id out of a product URL.
func IDFromURL(href string) (int64, error) {
	idx := strings.LastIndex(href, "product")
	if idx < 0 {
		return 0, catalog.NewExtractionError("id", fmt.Errorf("no product marker in %q", href))
	}
	raw := strings.ReplaceAll(href[idx+len("product"):], ".html", "")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, catalog.NewExtractionError("id", err)
	}
	return id, nil
}

// ProductName returns the card's title text.
func ProductName(item htmldoc.Node) (string, error) {
	link, ok := item.Find(selListingName)
	if !ok {
		return "", catalog.NewExtractionError("name", errors.New("name link not found"))
	}
	return link.Text(), nil
}

// Prices reads the original and discounted price and computes the discount.
func Prices(item htmldoc.Node) (decimal.Decimal, decimal.Decimal, int, error) {
	orig, err := priceAttr(item, selPriceOriginal, "original_price")
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	disc, err := priceAttr(item, selPriceSale, "discount_price")
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	discount, err := Discount(orig, disc)
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	return orig, disc, discount, nil
}

func priceAttr(item htmldoc.Node, selector, field string) (decimal.Decimal, error) {
	span, ok := item.Find(selector)
	if !ok {
		return decimal.Zero, catalog.NewExtractionError(field, errors.New("price element not found"))
	}
	raw, ok := span.Attr(attrPrice)
	if !ok {
		return decimal.Zero, catalog.NewExtractionError(field, fmt.Errorf("missing %s attribute", attrPrice))
	}
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, catalog.NewExtractionError(field, err)
	}
	return price, nil
}

// Discount returns round(100*(orig-disc)/orig) as a whole percent. Halves
// round to the nearest even integer.
func Discount(orig, disc decimal.Decimal) (int, error) {
	if !orig.IsPositive() {
		return 0, catalog.NewExtractionError("discount", fmt.Errorf("original price %s is not positive", orig))
	}
	pct := orig.Sub(disc).Mul(hundred).Div(orig).RoundBank(0)
	return int(pct.IntPart()), nil
}
