package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the stored view of one category item, including nested reviews.
type Product struct {
	ID            int64
	URL           string
	Name          string
	OriginalPrice decimal.Decimal
	DiscountPrice decimal.Decimal
	Discount      int

	// Rating is invalid when the detail page has not been parsed yet or the
	// site shows no rating. DetailParsed tells the two apart.
	Rating       decimal.NullDecimal
	ProductInfo  *string
	DetailParsed bool

	// Reviews is meaningful only when ReviewsParsed is set; an empty slice is
	// a valid terminal state.
	Reviews       []Review
	ReviewsParsed bool
}

// Ref returns the identity projection of the product.
func (p Product) Ref() Ref {
	return Ref{ID: p.ID, URL: p.URL}
}

// Review is a single customer review embedded under a Product.
type Review struct {
	Rating    int     `json:"rating"`
	Timestamp int64   `json:"timestamp"`
	Text      string  `json:"text"`
	Size      *string `json:"size"`
	Color     *string `json:"color"`
}

// Ref is the identity+url projection used to schedule remaining work.
type Ref struct {
	ID  int64
	URL string
}

// Listing holds the fields scraped from a category page.
type Listing struct {
	URL           string
	Name          string
	OriginalPrice decimal.Decimal
	DiscountPrice decimal.Decimal
	Discount      int
}

// Detail holds the fields scraped from a product page.
type Detail struct {
	Rating      decimal.NullDecimal
	ProductInfo *string
}

// ReviewSet replaces the reviews field of a product.
type ReviewSet struct {
	Items []Review
}

// Patch is a $set-style update for one product. Nil sections are left
// untouched by the store; unknown IDs are created.
type Patch struct {
	ID      int64
	Listing *Listing
	Detail  *Detail
	Reviews *ReviewSet
}

// Apply merges the patch into p and returns the result.
func (pt Patch) Apply(p Product) Product {
	p.ID = pt.ID
	if l := pt.Listing; l != nil {
		p.URL = l.URL
		p.Name = l.Name
		p.OriginalPrice = l.OriginalPrice
		p.DiscountPrice = l.DiscountPrice
		p.Discount = l.Discount
	}
	if d := pt.Detail; d != nil {
		p.Rating = d.Rating
		p.ProductInfo = d.ProductInfo
		p.DetailParsed = true
	}
	if r := pt.Reviews; r != nil {
		p.Reviews = append(make([]Review, 0, len(r.Items)), r.Items...)
		p.ReviewsParsed = true
	}
	return p
}

// ListingPatch wraps a listing into a stub upsert.
func ListingPatch(id int64, l Listing) Patch {
	return Patch{ID: id, Listing: &l}
}

// RunSummary reports what one pipeline run did.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Discovered     int       `json:"discovered"`
	Unparsed       int       `json:"unparsed"`
	Chunks         int       `json:"chunks"`
	DetailParsed   int       `json:"detail_parsed"`
	DetailFailed   int       `json:"detail_failed"`
	ReviewsParsed  int       `json:"reviews_parsed"`
	ReviewsFailed  int       `json:"reviews_failed"`
	ReviewsTotal   int       `json:"reviews_total"`
	MissingDetails int       `json:"missing_details"`
}
