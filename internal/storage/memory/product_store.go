package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// ProductStore provides an in-memory catalog.Store for development/testing.
type ProductStore struct {
	mu       sync.RWMutex
	products map[int64]catalog.Product
	writes   int
}

// NewProductStore constructs a ProductStore.
func NewProductStore() *ProductStore {
	return &ProductStore{
		products: make(map[int64]catalog.Product),
	}
}

// UpsertMany merges each patch into the stored product, creating it when absent.
func (s *ProductStore) UpsertMany(_ context.Context, patches []catalog.Patch) error {
	if len(patches) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, patch := range patches {
		s.products[patch.ID] = patch.Apply(s.products[patch.ID])
	}
	s.writes++
	return nil
}

// FindUnparsed returns products whose reviews were never written.
func (s *ProductStore) FindUnparsed(_ context.Context) ([]catalog.Ref, error) {
	return s.refs(func(p catalog.Product) bool { return !p.ReviewsParsed }), nil
}

// FindMissingDetail returns products with reviews whose detail page never parsed.
func (s *ProductStore) FindMissingDetail(_ context.Context) ([]catalog.Ref, error) {
	return s.refs(func(p catalog.Product) bool { return p.ReviewsParsed && !p.DetailParsed }), nil
}

// ListProducts returns copies of all products ordered by ID.
func (s *ProductStore) ListProducts(_ context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		p.Reviews = append([]catalog.Review(nil), p.Reviews...)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns one product by ID.
func (s *ProductStore) Get(id int64) (catalog.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// Len reports how many products are stored.
func (s *ProductStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Writes reports how many non-empty batches were applied.
func (s *ProductStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Close is a no-op.
func (s *ProductStore) Close(context.Context) error {
	return nil
}

func (s *ProductStore) refs(keep func(catalog.Product) bool) []catalog.Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Ref, 0)
	for _, p := range s.products {
		if keep(p) {
			out = append(out, p.Ref())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
