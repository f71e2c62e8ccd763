package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// outcome is one item's result from boundedMap.
type outcome[T any] struct {
	value T
	err   error
}

// boundedMap calls fn for every item with at most limit calls in flight
// (limit <= 0 means no bound) and returns the outcomes in item order.
// Failures stay with their item and never cancel siblings. Items still
// queued when ctx ends are not called and report ctx.Err().
func boundedMap[In, Out any](
	ctx context.Context,
	limit int,
	items []In,
	fn func(context.Context, In) (Out, error),
) []outcome[Out] {
	out := make([]outcome[Out], len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].err = err
				return nil
			}

			out[i].value, out[i].err = fn(ctx, item)

			return nil
		})
	}

	_ = g.Wait()

	return out
}
