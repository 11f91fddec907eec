package stage

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

type workersKey struct{}

// WithWorkers sets the default worker limit ForEachAgent callers read back
// with Workers.
func WithWorkers(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, workersKey{}, n)
}

// Workers returns the worker limit stored by WithWorkers, or 0.
func Workers(ctx context.Context) int {
	n, _ := ctx.Value(workersKey{}).(int)
	return n
}

// ForEachAgent calls fn for every agent index in [0, n) using up to workers
// goroutines and returns the results ordered by agent index. workers <= 0
// means GOMAXPROCS. fn must not write shared state; callers merge the
// returned slice after ForEachAgent returns.
func ForEachAgent[T any](ctx context.Context, n, workers int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	if n == 0 {
		return out, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fn(gctx, i)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
