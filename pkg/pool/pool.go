// Package pool runs batches of tasks under a concurrency bound while
// preserving input order in the results. Failures travel inside the result
// values, so one slow or broken task never cancels its siblings.
package pool

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool bounds concurrent task execution and applies a per-task timeout.
type Pool struct {
	limit   int
	timeout time.Duration
}

// New creates a Pool running at most limit tasks at once. Each task gets
// its own deadline of timeout; zero disables the deadline.
func New(limit int, timeout time.Duration) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{limit: limit, timeout: timeout}
}

// Map runs fn for every index in [0, n), at most p.limit concurrently, and
// returns the results indexed by input position. Map blocks until every
// started task has finished, including after parent-context cancellation,
// so callers observe a complete result slice.
func Map[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) T) []T {
	results := make([]T, n)

	g := new(errgroup.Group)
	g.SetLimit(p.limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			tctx := ctx
			if p.timeout > 0 {
				var cancel context.CancelFunc
				tctx, cancel = context.WithTimeout(ctx, p.timeout)
				defer cancel()
			}
			results[i] = fn(tctx, i)
			return nil
		})
	}
	g.Wait()
	return results
}
