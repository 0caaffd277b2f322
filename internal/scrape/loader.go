package scrape

import (
	"context"
	"fmt"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/htmldoc"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// Page kinds used for metrics labels.
const (
	kindCategory = "category"
	kindReview   = "review"
	kindDetail   = "detail"
)

// loader fetches and parses one page, recording the outcome.
type loader struct {
	fetcher catalog.Fetcher
	parse   htmldoc.ParseFunc
	kind    string
}

func newLoader(fetcher catalog.Fetcher, parse htmldoc.ParseFunc, kind string) loader {
	if parse == nil {
		parse = htmldoc.Parse
	}
	return loader{fetcher: fetcher, parse: parse, kind: kind}
}

func (l loader) load(ctx context.Context, url string) (htmldoc.Node, error) {
	body, err := l.fetcher.Fetch(ctx, url)
	if err == nil && len(body) == 0 {
		err = catalog.ErrEmptyBody
	}
	if err != nil {
		metrics.ObservePage(l.kind, metrics.StatusFetchError)
		return htmldoc.Node{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	doc, err := l.parse(body)
	if err != nil {
		metrics.ObservePage(l.kind, metrics.StatusParseError)
		return htmldoc.Node{}, fmt.Errorf("parse %s: %w", url, err)
	}
	metrics.ObservePage(l.kind, metrics.StatusOK)
	return doc, nil
}
