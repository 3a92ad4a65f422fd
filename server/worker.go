package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// job is a unit of work executed on one of the pool goroutines.
type job struct {
	fn   func(context.Context) (any, error)
	ctx  context.Context
	done chan jobResult
}

// jobResult holds the return value of a job.
type jobResult struct {
	value any
	err   error
}

// Worker runs compile and run jobs on a fixed number of goroutines, so a
// burst of requests cannot start an unbounded number of machines.
type Worker struct {
	requests chan job
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWorker creates a Worker with n goroutines, at least one.
func NewWorker(n int) *Worker {
	if n < 1 {
		n = 1
	}
	w := &Worker{
		requests: make(chan job, 64),
		quit:     make(chan struct{}),
	}
	w.wg.Add(n)
	for i := 0; i < n; i++ {
		go w.loop()
	}
	return w
}

// loop processes jobs until the worker is stopped.
func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case j := <-w.requests:
			j.done <- w.execute(j)
		case <-w.quit:
			return
		}
	}
}

// execute runs a job, recovering from panics.
func (w *Worker) execute(j job) (result jobResult) {
	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("%v", r)
		}
	}()
	if err := j.ctx.Err(); err != nil {
		return jobResult{err: err}
	}
	result.value, result.err = j.fn(j.ctx)
	return result
}

// ErrStopped is returned by Do after Stop.
var ErrStopped = errors.New("server: worker stopped")

// Do submits fn and blocks until it completes or ctx is done. Returns the
// result and any error, including panics.
func (w *Worker) Do(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrStopped
	default:
	}
	j := job{
		fn:   fn,
		ctx:  ctx,
		done: make(chan jobResult, 1),
	}
	select {
	case w.requests <- j:
	case <-w.quit:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-j.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the worker goroutines and waits for running jobs.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	w.wg.Wait()
}
