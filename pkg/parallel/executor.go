package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Executor schedules the per-task work of a parallel action. Execute calls
// fn once for every index in [0, n) and returns after all calls have
// finished. The caller assembles results by index, so completion order
// never matters.
//
// When fn returns an error the executor cancels the context passed to the
// remaining calls and returns the first error observed.
type Executor interface {
	Execute(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

// Pool returns an Executor running at most concurrency tasks at a time.
// Non-positive concurrency means unbounded.
func Pool(concurrency int) Executor {
	return poolExecutor{limit: concurrency}
}

// Serial returns an Executor running tasks one at a time in index order,
// stopping at the first error. Useful in tests and for debugging fan-outs
// deterministically.
func Serial() Executor {
	return serialExecutor{}
}

type poolExecutor struct {
	limit int
}

func (p poolExecutor) Execute(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

type serialExecutor struct{}

func (serialExecutor) Execute(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}
