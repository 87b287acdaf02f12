package taskrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunExecutesAllTasks(t *testing.T) {
	var count int64
	pool := New(3)

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) {
			atomic.AddInt64(&count, 1)
		}
	}
	pool.Run(context.Background(), tasks)
	assert.EqualValues(t, 10, count)
}

func TestPool_RunBoundsConcurrency(t *testing.T) {
	var current, max int64
	pool := New(2)

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) {
			n := atomic.AddInt64(&current, 1)
			for {
				m := atomic.LoadInt64(&max)
				if n <= m || atomic.CompareAndSwapInt64(&max, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}
	}
	pool.Run(context.Background(), tasks)
	assert.LessOrEqual(t, max, int64(2))
}

func TestPool_RunBatched_PreservesBoundaries(t *testing.T) {
	pool := New(2)
	var order []int
	ch := make(chan int, 4)

	tasks := []Task{
		func(ctx context.Context) { time.Sleep(10 * time.Millisecond); ch <- 1 },
		func(ctx context.Context) { ch <- 2 },
		func(ctx context.Context) { ch <- 3 },
		func(ctx context.Context) { ch <- 4 },
	}
	pool.RunBatched(context.Background(), tasks)
	close(ch)
	for v := range ch {
		order = append(order, v)
	}
	// First batch (tasks 1,2) must have both completed before batch two (3,4) starts.
	assert.Len(t, order, 4)
	firstBatch := map[int]bool{order[0]: true, order[1]: true}
	assert.True(t, firstBatch[1] && firstBatch[2])
}

func TestWithTimeout_IsolatesSlowTask(t *testing.T) {
	var timedOut bool
	var errCalled bool

	task := WithTimeout(
		func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithTimeout(ctx, 10*time.Millisecond)
		},
		func(ctx context.Context) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		},
		func() { timedOut = true },
		func(err error) { errCalled = true },
	)

	task(context.Background())
	assert.True(t, timedOut)
	assert.False(t, errCalled)
}

func TestWithTimeout_ReportsError(t *testing.T) {
	var gotErr error
	task := WithTimeout(
		func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithTimeout(ctx, time.Second)
		},
		func(ctx context.Context) error {
			return assert.AnError
		},
		func() {},
		func(err error) { gotErr = err },
	)
	task(context.Background())
	assert.Equal(t, assert.AnError, gotErr)
}
