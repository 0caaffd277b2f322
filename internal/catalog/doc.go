// Package catalog defines the product and review records produced by the
// crawl pipeline, the partial updates written to the store, and the
// collaborator contracts (fetcher, store, publisher, blob store) the pipeline
// consumes.
package catalog
