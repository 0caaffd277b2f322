// Package scrape implements the category crawler, the per-product review
// crawler and the product detail fetcher. Each one turns fetched pages into
// catalog records and treats fetch or markup failures as per-page losses
// rather than run failures.
package scrape
