// Package taskrunner provides the bounded-concurrency worker pool used by both
// the enrichment orchestrator (§4.H batches of M processors) and the fan-out
// engine (§4.G concurrent ring dispatch), keeping background work off the
// ingestion path's critical section (§5/§9). The shape mirrors the teacher's
// batch loop in functions/enricher/orchestrator.go, generalised into a
// reusable pool instead of a bespoke per-call loop.
package taskrunner

import (
	"context"
	"sync"
)

// Pool runs tasks with at most Concurrency running at once.
type Pool struct {
	concurrency int
}

// New creates a Pool bounded to the given concurrency. A concurrency of 0 or
// less is treated as 1 (fully serial, never unbounded).
func New(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{concurrency: concurrency}
}

// Task is a unit of work submitted to a Pool.
type Task func(ctx context.Context)

// Run executes tasks with at most p.concurrency running concurrently, blocking
// until every task has returned. Tasks are responsible for honouring ctx
// cancellation/deadline themselves; Run does not cancel siblings when one task's
// context expires (timeout isolation is the caller's per-task responsibility,
// see WithTimeout below).
func (p *Pool) Run(ctx context.Context, tasks []Task) {
	if len(tasks) == 0 {
		return
	}

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for _, task := range tasks {
		task := task
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			task(ctx)
		}()
	}

	wg.Wait()
}

// RunBatched executes tasks in ordered batches of exactly p.concurrency,
// waiting for a batch to fully complete before starting the next. This
// preserves priority ordering at batch boundaries, as §4.H's orchestration
// rules require: "Run in batches of at most M concurrent, preserving priority
// ordering at batch boundaries."
func (p *Pool) RunBatched(ctx context.Context, tasks []Task) {
	for start := 0; start < len(tasks); start += p.concurrency {
		end := start + p.concurrency
		if end > len(tasks) {
			end = len(tasks)
		}
		p.Run(ctx, tasks[start:end])
	}
}

// WithTimeout wraps a task so it runs under its own per-task deadline,
// independent of ctx's lifetime, calling onTimeout if the deadline elapses
// before fn returns. This is how §4.H's "timeout yields a failure result
// without cancelling sibling processors" and §5's "processor timeout: caller
// provided per-processor deadline; expiration yields a failure result without
// affecting siblings" are implemented: each task gets its own context.WithTimeout
// derived from the pool's ctx, and a timed-out task's goroutine is simply
// abandoned to finish or be garbage collected — it never blocks the pool.
func WithTimeout(deadline func(context.Context) (context.Context, context.CancelFunc), fn func(context.Context) error, onTimeout func(), onError func(error)) Task {
	return func(ctx context.Context) {
		taskCtx, cancel := deadline(ctx)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- fn(taskCtx)
		}()

		select {
		case err := <-done:
			if err != nil && onError != nil {
				onError(err)
			}
		case <-taskCtx.Done():
			if onTimeout != nil {
				onTimeout()
			}
		}
	}
}
