package utils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(4, 0)
	var done int64
	for i := 0; i < 50; i++ {
		pool.Submit(context.Background(), func() { atomic.AddInt64(&done, 1) })
	}
	pool.Wait()
	assert.Equal(t, int64(50), done)
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2, 0)
	var active, peak int64
	for i := 0; i < 10; i++ {
		pool.Submit(context.Background(), func() {
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&active, -1)
		})
	}
	pool.Wait()
	assert.LessOrEqual(t, peak, int64(2))
}

func TestWorkerPoolRateLimit(t *testing.T) {
	rateLimitMs := 100
	pool := NewWorkerPool(1, rateLimitMs)

	var mu sync.Mutex
	var timestamps []time.Time
	for i := 0; i < 3; i++ {
		pool.Submit(context.Background(), func() {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
		})
	}
	pool.Wait()

	require.Len(t, timestamps, 3)
	// small tolerance for timer granularity
	min := time.Duration(rateLimitMs)*time.Millisecond - 15*time.Millisecond
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		assert.GreaterOrEqual(t, gap, min, "gap between job %d and %d", i-1, i)
	}
}

func TestWorkerPoolStopsStartingJobsAfterCancel(t *testing.T) {
	pool := NewWorkerPool(1, 200)
	ctx, cancel := context.WithCancel(context.Background())

	var ran int64
	first := pool.Submit(ctx, func() {
		atomic.AddInt64(&ran, 1)
		cancel()
	})
	pool.Wait()
	assert.True(t, first)

	queued := pool.Submit(ctx, func() { atomic.AddInt64(&ran, 1) })
	pool.Wait()
	assert.False(t, queued)
	assert.Equal(t, int64(1), ran)
}

func TestWorkerPoolDropsJobWaitingForRateSlot(t *testing.T) {
	pool := NewWorkerPool(2, int(time.Hour/time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	var ran int64
	pool.Submit(ctx, func() { atomic.AddInt64(&ran, 1) })
	pool.Submit(ctx, func() { atomic.AddInt64(&ran, 1) })
	time.AfterFunc(20*time.Millisecond, cancel)
	pool.Wait()

	assert.Equal(t, int64(1), ran, "the second job waits an hour for its slot until cancelled")
}

func TestRetryStopsOnSuccess(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewNopLogger()}
	calls := 0
	err := r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryWrapsLastError(t *testing.T) {
	sentinel := errors.New("down")
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewNopLogger()}
	err := r.Do(context.Background(), "op", func(context.Context) error { return sentinel })
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Logger: NewNopLogger()}
	calls := 0
	err := r.Do(ctx, "op", func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
