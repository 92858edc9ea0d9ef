// Package runner executes named jobs on a worker pool, skipping a job while
// another run of it still holds its lock.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/soulteary/action-guard/guard"
	"github.com/soulteary/action-guard/sink"
	"github.com/soulteary/action-guard/utils"
)

// Job is a unit of work submitted to a Runner
type Job struct {
	// Name is the job's route, and its lock key unless the guard derives one
	Name string
	Run  func(ctx context.Context) error
}

// Result describes one submitted job
type Result struct {
	Job string
	// Ran is false when the job was skipped because it was already running
	Ran      bool
	Err      error
	Duration time.Duration
}

// Runner runs jobs through a guard on an ants pool
type Runner struct {
	guard     *guard.Guard
	pool      *ants.Pool
	namespace string
	onResult  func(Result)
	logger    sink.Sink

	wg sync.WaitGroup
}

// Option configures a Runner
type Option func(*Runner)

// WithNamespace prefixes job routes with namespace
func WithNamespace(namespace string) Option {
	return func(r *Runner) {
		r.namespace = namespace
	}
}

// WithResultHandler is called once per submitted job; it may run
// concurrently from several workers.
func WithResultHandler(fn func(Result)) Option {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// WithLogger logs job failures and skips
func WithLogger(logger sink.Sink) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Runner with size workers
func New(g *guard.Guard, size int, opts ...Option) (*Runner, error) {
	if g == nil {
		return nil, fmt.Errorf("runner needs a guard")
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	r := &Runner{guard: g, pool: pool, logger: sink.Nop{}}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Submit queues job, blocking while every worker is busy
func (r *Runner) Submit(ctx context.Context, job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q has no run function", job.Name)
	}
	r.wg.Add(1)
	if err := r.pool.Submit(func() { r.run(ctx, job) }); err != nil {
		r.wg.Done()
		return fmt.Errorf("failed to submit job %q: %w", job.Name, err)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, job Job) {
	defer r.wg.Done()

	res := Result{Job: job.Name}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Ran = true
			res.Err = fmt.Errorf("job %q panicked: %v", job.Name, p)
		}
		res.Duration = time.Since(start)
		r.report(res)
	}()

	op := guard.NewAction(utils.JoinKey(r.namespace, job.Name))
	res.Ran, res.Err = r.guard.Do(ctx, op, job.Run)
}

func (r *Runner) report(res Result) {
	switch {
	case !res.Ran:
		r.logger.Write(sink.LevelInfo, "runner", fmt.Sprintf("job %s skipped, already running", res.Job))
	case res.Err != nil:
		r.logger.Write(sink.LevelError, "runner", fmt.Sprintf("job %s failed after %v: %v", res.Job, res.Duration, res.Err))
	}
	if r.onResult != nil {
		r.onResult(res)
	}
}

// Running returns the number of busy workers
func (r *Runner) Running() int {
	return r.pool.Running()
}

// Wait blocks until every submitted job has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Release waits for submitted jobs and stops the pool
func (r *Runner) Release() {
	r.Wait()
	r.pool.Release()
}
