package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeResource struct {
	closed atomic.Bool
}

func (f *fakeResource) Close(context.Context) error {
	f.closed.Store(true)
	return nil
}

func fakeFactory(context.Context) (Resource, error) {
	return &fakeResource{}, nil
}

func TestPoolBoundNeverExceeded(t *testing.T) {
	t.Parallel()

	for _, size := range []int{1, 2, 4} {
		size := size
		t.Run("", func(t *testing.T) {
			t.Parallel()

			pool, err := NewPool(context.Background(), size, fakeFactory, zap.NewNop())
			require.NoError(t, err)
			defer pool.Shutdown(context.Background())

			var outstanding, peak int64
			var wg sync.WaitGroup
			for i := 0; i < size*5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := pool.With(context.Background(), func(Resource) error {
						cur := atomic.AddInt64(&outstanding, 1)
						for {
							old := atomic.LoadInt64(&peak)
							if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
								break
							}
						}
						time.Sleep(2 * time.Millisecond)
						atomic.AddInt64(&outstanding, -1)
						return nil
					})
					require.NoError(t, err)
				}()
			}
			wg.Wait()

			require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(size),
				"outstanding borrows exceeded pool size")
			require.Equal(t, size, pool.Available(), "all resources should be back")
		})
	}
}

func TestWithReleasesOnPanic(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(context.Background(), 1, fakeFactory, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	func() {
		defer func() {
			require.NotNil(t, recover(), "expected panic to propagate")
		}()
		_ = pool.With(context.Background(), func(Resource) error {
			panic("harvester blew up")
		})
	}()

	require.Equal(t, 1, pool.Available(), "resource must be returned after panic")
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(context.Background(), 1, fakeFactory, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	res, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan Resource, 1)
	go func() {
		second, err := pool.Acquire(context.Background())
		if err == nil {
			acquired <- second
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while resource is lent out")
	case <-time.After(30 * time.Millisecond):
	}

	pool.Release(res)
	select {
	case second := <-acquired:
		pool.Release(second)
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(context.Background(), 1, fakeFactory, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	res, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(res)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	require.Error(t, err)
}

func TestNewPoolFailsWhenNoResourceInitializes(t *testing.T) {
	t.Parallel()

	failing := func(context.Context) (Resource, error) {
		return nil, errors.New("browser refused to start")
	}
	_, err := NewPool(context.Background(), 3, failing, zap.NewNop())
	require.Error(t, err)
}

func TestNewPoolToleratesPartialInit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	flaky := func(context.Context) (Resource, error) {
		if calls.Add(1)%2 == 0 {
			return nil, errors.New("flaky start")
		}
		return &fakeResource{}, nil
	}
	pool, err := NewPool(context.Background(), 4, flaky, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	require.Greater(t, pool.Size(), 0)
	require.Less(t, pool.Size(), 4)
}

func TestShutdownDestroysEverything(t *testing.T) {
	t.Parallel()

	var created []*fakeResource
	var mu sync.Mutex
	factory := func(context.Context) (Resource, error) {
		r := &fakeResource{}
		mu.Lock()
		created = append(created, r)
		mu.Unlock()
		return r, nil
	}

	pool, err := NewPool(context.Background(), 3, factory, zap.NewNop())
	require.NoError(t, err)
	pool.Shutdown(context.Background())

	for _, r := range created {
		require.True(t, r.closed.Load(), "resource not destroyed at shutdown")
	}

	_, err = pool.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPoolClosed)

	// Shutdown twice is safe.
	pool.Shutdown(context.Background())
}
