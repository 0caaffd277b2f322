package scrape

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	"github.com/JakeFAU/catalog-crawler/internal/htmldoc"
)

// DetailFetcher reads rating and attribute text from a product page.
type DetailFetcher struct {
	site   Site
	loader loader
	logger *zap.Logger
}

// NewDetailFetcher constructs a DetailFetcher. A nil parse uses htmldoc.Parse.
func NewDetailFetcher(site Site, fetcher catalog.Fetcher, parse htmldoc.ParseFunc, logger *zap.Logger) *DetailFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailFetcher{
		site:   site,
		loader: newLoader(fetcher, parse, kindDetail),
		logger: logger,
	}
}

// Fetch returns the enrichment for ref. On error the caller should leave the
// record untouched so the next run selects it again.
func (d *DetailFetcher) Fetch(ctx context.Context, ref catalog.Ref) (catalog.Detail, error) {
	doc, err := d.loader.load(ctx, d.site.Resolve(ref.URL))
	if err != nil {
		return catalog.Detail{}, fmt.Errorf("product %d: %w", ref.ID, err)
	}
	detail, err := extract.Detail(doc)
	if err != nil {
		return catalog.Detail{}, fmt.Errorf("product %d: %w", ref.ID, err)
	}
	if detail.ProductInfo == nil {
		d.logger.Warn("product page has no info block", zap.Int64("product_id", ref.ID))
	}
	d.logger.Debug("product parsed", zap.Int64("product_id", ref.ID))
	return detail, nil
}
