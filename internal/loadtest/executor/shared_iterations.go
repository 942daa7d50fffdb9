package executor

import (
	"context"
	"sync/atomic"

	"github.com/wesleyorama2/cacheload/internal/loadtest"
)

// SharedIterations runs a fixed total of iterations spread across streams.
//
// Streams claim iterations from a shared counter, so a fast stream runs more
// of them than a slow one. With one stream the claimed index equals the
// stream's cursor, which reproduces the reference warmup exactly.
//
// Use cases:
//   - Cache warmup: visit every identifier a known number of times
//   - Replaying a fixed workload as fast as the delays allow
type SharedIterations struct {
	pool

	claimed atomic.Int64
}

// NewSharedIterations creates a new shared iterations executor.
func NewSharedIterations() *SharedIterations {
	return &SharedIterations{}
}

// Type returns the executor type.
func (e *SharedIterations) Type() Type {
	return TypeSharedIterations
}

// Init initializes the executor with configuration.
func (e *SharedIterations) Init(ctx context.Context, config *Config) error {
	return e.init(TypeSharedIterations, config)
}

// Run starts the streams and blocks until the budget is spent.
func (e *SharedIterations) Run(ctx context.Context, scheduler *loadtest.Scheduler) error {
	claim := func() bool {
		if e.claimed.Add(1) <= e.config.Iterations {
			return true
		}
		e.claimed.Add(-1)
		return false
	}

	e.run(ctx, scheduler, func(int) func() bool { return claim })
	return nil
}

// Claimed returns the number of iterations handed out so far.
func (e *SharedIterations) Claimed() int64 {
	return e.claimed.Load()
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *SharedIterations) GetProgress() float64 {
	return e.progress()
}

// Stop gracefully stops the executor.
func (e *SharedIterations) Stop(ctx context.Context) error {
	return e.stop(ctx)
}

// Ensure SharedIterations implements Executor
var _ Executor = (*SharedIterations)(nil)
