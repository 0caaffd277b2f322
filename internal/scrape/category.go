package scrape

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	"github.com/JakeFAU/catalog-crawler/internal/htmldoc"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/pool"
)

// CategoryCrawler collects stub records from every page of the category.
type CategoryCrawler struct {
	site    Site
	loader  loader
	workers int
	logger  *zap.Logger
}

// NewCategoryCrawler constructs a CategoryCrawler fanning out over workers
// concurrent page fetches. A nil parse uses htmldoc.Parse.
func NewCategoryCrawler(
	site Site,
	fetcher catalog.Fetcher,
	parse htmldoc.ParseFunc,
	workers int,
	logger *zap.Logger,
) *CategoryCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryCrawler{
		site:    site,
		loader:  newLoader(fetcher, parse, kindCategory),
		workers: workers,
		logger:  logger,
	}
}

// Crawl returns a stub patch for every product found on pages 1..N. The
// first page decides N; if it cannot be fetched the result is empty, and if
// its pager is missing or unreadable only page 1 is returned. A failing later
// page contributes nothing. Order across pages follows page number.
func (c *CategoryCrawler) Crawl(ctx context.Context) []catalog.Patch {
	firstURL := c.site.CategoryURL(1)
	first, err := c.loader.load(ctx, firstURL)
	if err != nil {
		c.logger.Error("cannot get first category page", zap.String("url", firstURL), zap.Error(err))
		return nil
	}
	patches := c.scrapePage(first, 1)
	c.logger.Info("first category page scraped", zap.Int("products", len(patches)))

	pages, err := extract.PageCount(first, false)
	if err != nil {
		c.logger.Error("found no page count on category page", zap.String("url", firstURL), zap.Error(err))
		return patches
	}
	c.logger.Info("category pages found", zap.Int("pages", pages))

	rest := make([]int, 0, max(pages-1, 0))
	for page := 2; page <= pages; page++ {
		rest = append(rest, page)
	}
	results := pool.Map(ctx, c.workers, rest, func(ctx context.Context, page int) ([]catalog.Patch, error) {
		doc, err := c.loader.load(ctx, c.site.CategoryURL(page))
		if err != nil {
			return nil, err
		}
		return c.scrapePage(doc, page), nil
	})
	for i, res := range results {
		if !res.OK() {
			c.logger.Error("category page skipped", zap.Int("page", rest[i]), zap.Error(res.Err))
			continue
		}
		patches = append(patches, res.Value...)
	}
	return patches
}

// scrapePage extracts every well-formed product card on the page.
func (c *CategoryCrawler) scrapePage(doc htmldoc.Node, page int) []catalog.Patch {
	items := extract.ListingItems(doc)
	patches := make([]catalog.Patch, 0, len(items))
	for i, item := range items {
		id, listing, err := extract.Listing(item)
		if err != nil {
			metrics.ObserveSkipped(kindCategory)
			c.logger.Error("receive error on product scraping",
				zap.Int("page", page),
				zap.Int("position", i),
				zap.Error(err),
			)
			continue
		}
		listing.URL = c.site.Resolve(listing.URL)
		patches = append(patches, catalog.ListingPatch(id, listing))
	}
	return patches
}
