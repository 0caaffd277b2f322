package scrape

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	"github.com/JakeFAU/catalog-crawler/internal/htmldoc"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// ReviewCrawler collects every review of a product.
type ReviewCrawler struct {
	site   Site
	loader loader
	logger *zap.Logger
}

// NewReviewCrawler constructs a ReviewCrawler. A nil parse uses htmldoc.Parse.
func NewReviewCrawler(site Site, fetcher catalog.Fetcher, parse htmldoc.ParseFunc, logger *zap.Logger) *ReviewCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewCrawler{
		site:   site,
		loader: newLoader(fetcher, parse, kindReview),
		logger: logger,
	}
}

// Crawl returns the product's reviews across all review pages. Products with
// few reviews have no pager, which simply means one page.
//
// When the first page cannot be fetched it returns an empty slice and an
// error wrapping catalog.ErrNoFirstPage instead of treating the product as
// having no reviews. The error is never fatal: it tells callers "reviews
// unknown" apart from "no reviews", and the pipeline leaves the reviews field
// unset so the product is selected again on the next run. Later pages are
// fetched one after another; a failing page contributes nothing.
func (c *ReviewCrawler) Crawl(ctx context.Context, productID int64) ([]catalog.Review, error) {
	logger := c.logger.With(zap.Int64("product_id", productID))
	first, err := c.loader.load(ctx, c.site.ReviewURL(productID, 1))
	if err != nil {
		logger.Info("no first review page", zap.Error(err))
		return []catalog.Review{}, fmt.Errorf("product %d: %w: %w", productID, catalog.ErrNoFirstPage, err)
	}
	reviews := c.scrapePage(first, logger, 1)

	pages, err := extract.PageCount(first, true)
	if err != nil {
		logger.Error("unreadable review pager", zap.Error(err))
		return reviews, nil
	}
	for page := 2; page <= pages; page++ {
		doc, err := c.loader.load(ctx, c.site.ReviewURL(productID, page))
		if err != nil {
			logger.Warn("review page skipped", zap.Int("page", page), zap.Error(err))
			continue
		}
		reviews = append(reviews, c.scrapePage(doc, logger, page)...)
	}
	return reviews, nil
}

func (c *ReviewCrawler) scrapePage(doc htmldoc.Node, logger *zap.Logger, page int) []catalog.Review {
	items := extract.ReviewItems(doc)
	reviews := make([]catalog.Review, 0, len(items))
	for i, item := range items {
		review, err := extract.Review(item, c.site.location(), logger)
		if err != nil {
			metrics.ObserveSkipped(kindReview)
			logger.Error("review skipped", zap.Int("page", page), zap.Int("position", i), zap.Error(err))
			continue
		}
		reviews = append(reviews, review)
	}
	return reviews
}
