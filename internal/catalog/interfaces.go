package catalog

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a page body. Any error, or an empty body, is treated by
// the crawlers as a soft per-page failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store persists products with merge-by-id semantics.
type Store interface {
	// UpsertMany applies each patch to the record with the same ID, creating
	// it when absent.
	UpsertMany(ctx context.Context, patches []Patch) error
	// FindUnparsed returns every product whose reviews field is absent.
	FindUnparsed(ctx context.Context) ([]Ref, error)
	// FindMissingDetail returns products with reviews present whose detail
	// page was never parsed.
	FindMissingDetail(ctx context.Context) ([]Ref, error)
	// ListProducts returns the full feed ordered by ID.
	ListProducts(ctx context.Context) ([]Product, error)
	Close(ctx context.Context) error
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes report artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock abstracts time for run timestamps.
type Clock interface {
	Now() time.Time
}
