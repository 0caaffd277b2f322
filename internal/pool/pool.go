// Package pool runs work items on a bounded number of goroutines, isolating
// each item's failure from the rest of the batch.
package pool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome for one item: either Value or Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the item succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Map applies fn to every item using at most size concurrent workers and
// returns the outcomes in input order. Errors and panics are recorded on the
// item's Result; they never stop the other items.
func Map[T, R any](ctx context.Context, size int, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if size <= 0 {
		size = 1
	}
	var g errgroup.Group
	g.SetLimit(size)
	for i, item := range items {
		g.Go(func() error {
			results[i] = call(ctx, item, fn)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors
	return results
}

func call[T, R any](ctx context.Context, item T, fn func(context.Context, T) (R, error)) (res Result[R]) {
	defer func() {
		if p := recover(); p != nil {
			res = Result[R]{Err: fmt.Errorf("worker panic: %v", p)}
		}
	}()
	v, err := fn(ctx, item)
	return Result[R]{Value: v, Err: err}
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
