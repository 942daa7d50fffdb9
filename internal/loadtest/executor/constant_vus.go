package executor

import (
	"context"

	"github.com/wesleyorama2/cacheload/internal/loadtest"
)

// ConstantVUs runs a fixed number of streams for a specified duration.
//
// Streams keep cycling through the pool until the duration elapses. They
// finish the request in flight at that moment and start nothing new.
//
// Use cases:
//   - Soak testing the cache under a steady request stream
//   - Measuring hit ratio over time rather than per identifier
type ConstantVUs struct {
	pool
}

// NewConstantVUs creates a new constant VUs executor.
func NewConstantVUs() *ConstantVUs {
	return &ConstantVUs{}
}

// Type returns the executor type.
func (e *ConstantVUs) Type() Type {
	return TypeConstantVUs
}

// Init initializes the executor with configuration.
func (e *ConstantVUs) Init(ctx context.Context, config *Config) error {
	return e.init(TypeConstantVUs, config)
}

// Run starts the streams and blocks until the duration elapses.
func (e *ConstantVUs) Run(ctx context.Context, scheduler *loadtest.Scheduler) error {
	unbounded := func() bool { return true }
	e.run(ctx, scheduler, func(int) func() bool { return unbounded })
	return nil
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *ConstantVUs) GetProgress() float64 {
	return e.progress()
}

// Stop gracefully stops the executor.
func (e *ConstantVUs) Stop(ctx context.Context) error {
	return e.stop(ctx)
}

// Ensure ConstantVUs implements Executor
var _ Executor = (*ConstantVUs)(nil)
