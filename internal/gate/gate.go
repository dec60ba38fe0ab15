// Package gate bounds the number of in-flight enrichment calls per
// upstream endpoint.
package gate

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Gate runs batches of index-addressed work with a fixed concurrency
// limit. One Gate is created per endpoint so that limits do not bleed
// into each other.
type Gate struct {
	pool  *ants.Pool
	limit int
}

// New creates a gate with the given concurrency limit. A limit below 1
// is raised to 1.
func New(limit int) (*Gate, error) {
	if limit < 1 {
		limit = 1
	}
	pool, err := ants.NewPool(limit)
	if err != nil {
		return nil, err
	}
	return &Gate{pool: pool, limit: limit}, nil
}

// Limit returns the configured concurrency limit.
func (g *Gate) Limit() int {
	return g.limit
}

// RunAll submits worker(ctx, i) for i in [0, n) in index order and
// waits for every started task. At most limit tasks run at once. Once
// ctx is cancelled, indices not yet started are skipped; tasks already
// running finish on their own. Worker failures are the worker's
// responsibility, RunAll only reports cancellation.
func (g *Gate) RunAll(ctx context.Context, n int, worker func(ctx context.Context, i int)) error {
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		wg.Add(1)
		if err := g.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			worker(ctx, i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}

	wg.Wait()
	return ctx.Err()
}

// Release shuts the underlying pool down. The gate must not be used
// afterwards.
func (g *Gate) Release() {
	g.pool.Release()
}
