package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/metrics"
)

// ErrPoolClosed is returned by Acquire after Shutdown.
var ErrPoolClosed = errors.New("session pool closed")

// Resource is a pooled session handle with a destroy hook.
type Resource interface {
	Close(ctx context.Context) error
}

// Factory creates one pooled resource.
type Factory func(ctx context.Context) (Resource, error)

// Pool is a fixed-size pool of stateful resources. A resource is borrowed
// by exactly one task at a time and returned unconditionally; Acquire
// blocks when the pool is exhausted. The pool size is fixed for the run
// and the number of outstanding borrows never exceeds it.
type Pool struct {
	ch     chan Resource
	size   int
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates up to size resources concurrently. Individual creation
// failures are logged and tolerated; a pool that ends up with zero live
// resources is a fatal configuration condition and returns an error
// rather than handing out a pool that would block forever.
func NewPool(ctx context.Context, size int, factory Factory, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}

	ch := make(chan Resource, size)
	var wg sync.WaitGroup
	for i := 0; i < size; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := factory(ctx)
			if err != nil {
				logger.Warn("pooled resource init failed", zap.Int("slot", n), zap.Error(err))
				return
			}
			ch <- res
		}(i)
	}
	wg.Wait()

	live := len(ch)
	if live == 0 {
		return nil, errors.New("pool exhausted at init: no resource could be created")
	}
	if live < size {
		logger.Warn("pool initialized below configured size",
			zap.Int("configured", size), zap.Int("live", live))
	}
	return &Pool{ch: ch, size: live, logger: logger}, nil
}

// Acquire blocks until a resource is available or the context ends.
func (p *Pool) Acquire(ctx context.Context) (Resource, error) {
	select {
	case res, ok := <-p.ch:
		if !ok {
			return nil, ErrPoolClosed
		}
		metrics.SessionBorrowed(1)
		return res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire session: %w", ctx.Err())
	}
}

// Release returns a borrowed resource. Must be called exactly once per
// successful Acquire.
func (p *Pool) Release(res Resource) {
	if res == nil {
		return
	}
	metrics.SessionBorrowed(-1)
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		// Shutdown already drained the channel; destroy the straggler.
		if err := res.Close(context.Background()); err != nil {
			p.logger.Warn("close released resource after shutdown", zap.Error(err))
		}
		return
	}
	p.ch <- res
}

// With borrows a resource for the duration of fn, guaranteeing release on
// every exit path, including a panic inside fn.
func (p *Pool) With(ctx context.Context, fn func(Resource) error) error {
	res, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(res)
	return fn(res)
}

// Size reports the number of live resources in the pool.
func (p *Pool) Size() int {
	return p.size
}

// Available reports how many resources are currently idle.
func (p *Pool) Available() int {
	return len(p.ch)
}

// Shutdown drains the pool and destroys every resource. It must be called
// after all workers referencing the pool have completed; it never races
// with an outstanding borrow because borrowed resources are destroyed on
// Release instead.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case res := <-p.ch:
			if err := res.Close(ctx); err != nil {
				p.logger.Warn("close pooled resource", zap.Error(err))
			}
		default:
			close(p.ch)
			return
		}
	}
}
