// Package runner provides bounded-concurrency fan-out over a batch of
// work items. Two realizations share one observable contract: submit N
// items, get every successful result back, ordering not guaranteed, and
// a per-item failure never aborts the batch.
package runner

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result pairs a work item with its outcome. Err is non-nil for a failed
// item; Value is only meaningful when Err is nil.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// Failed reports whether the item failed.
func (r Result[T, R]) Failed() bool {
	return r.Err != nil
}

// Func executes one work item.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// Pool runs fn over items with a fixed set of worker goroutines. It is
// the realization for synchronous blocking work such as pooled-session
// harvesting: workerCount should match the session pool size so that a
// worker never queues behind a second borrow.
func Pool[T, R any](ctx context.Context, items []T, workerCount int, fn Func[T, R], logger *zap.Logger) []Result[T, R] {
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(items) {
		workerCount = len(items)
	}
	if len(items) == 0 {
		return nil
	}

	feed := make(chan T)
	out := make(chan Result[T, R], len(items))

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range feed {
				out <- runOne(ctx, item, fn)
			}
		}()
	}

	for _, item := range items {
		feed <- item
	}
	close(feed)
	wg.Wait()
	close(out)

	return collect(out, logger)
}

// Group runs fn over items through an errgroup with a concurrency limit.
// It is the realization for natively asynchronous, stateless I/O where no
// pooled resource bounds the work.
func Group[T, R any](ctx context.Context, items []T, limit int, fn Func[T, R], logger *zap.Logger) []Result[T, R] {
	if len(items) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = len(items)
	}

	out := make(chan Result[T, R], len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range items {
		item := item
		g.Go(func() error {
			out <- runOne(gctx, item, fn)
			// Per-item failures are reported via the result channel,
			// never through the group: one unreachable site must not
			// cancel the batch.
			return nil
		})
	}
	_ = g.Wait()
	close(out)

	return collect(out, logger)
}

// runOne isolates a single execution, converting a panic inside fn into a
// per-item failure so a misbehaving harvester cannot take the batch down.
func runOne[T, R any](ctx context.Context, item T, fn Func[T, R]) (res Result[T, R]) {
	res.Item = item
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("work panicked: %v", r)
		}
	}()
	res.Value, res.Err = fn(ctx, item)
	return res
}

func collect[T, R any](out <-chan Result[T, R], logger *zap.Logger) []Result[T, R] {
	var results []Result[T, R]
	for res := range out {
		if res.Failed() {
			logger.Warn("work item failed", zap.Any("item", res.Item), zap.Error(res.Err))
		}
		results = append(results, res)
	}
	return results
}

// Successes filters a result batch down to the successful values.
func Successes[T, R any](results []Result[T, R]) []R {
	values := make([]R, 0, len(results))
	for _, res := range results {
		if !res.Failed() {
			values = append(values, res.Value)
		}
	}
	return values
}

// Failures counts the failed items in a result batch.
func Failures[T, R any](results []Result[T, R]) int {
	n := 0
	for _, res := range results {
		if res.Failed() {
			n++
		}
	}
	return n
}
