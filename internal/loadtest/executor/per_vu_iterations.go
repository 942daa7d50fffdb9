package executor

import (
	"context"
	"sync"

	"github.com/wesleyorama2/cacheload/internal/loadtest"
)

// PerVUIterations runs the same number of iterations on every stream.
//
// Each stream walks its own cursor, so with the cyclic strategy every stream
// visits the identifiers in the same order. Combine with the random strategy
// to spread concurrent streams over the pool.
type PerVUIterations struct {
	pool

	budgetsMu sync.Mutex
	budgets   map[int]int64
}

// NewPerVUIterations creates a new per-VU iterations executor.
func NewPerVUIterations() *PerVUIterations {
	return &PerVUIterations{budgets: make(map[int]int64)}
}

// Type returns the executor type.
func (e *PerVUIterations) Type() Type {
	return TypePerVUIterations
}

// Init initializes the executor with configuration.
func (e *PerVUIterations) Init(ctx context.Context, config *Config) error {
	return e.init(TypePerVUIterations, config)
}

// Run starts the streams and blocks until each has run its iterations.
func (e *PerVUIterations) Run(ctx context.Context, scheduler *loadtest.Scheduler) error {
	e.run(ctx, scheduler, e.claimFor)
	return nil
}

func (e *PerVUIterations) claimFor(streamID int) func() bool {
	return func() bool {
		e.budgetsMu.Lock()
		defer e.budgetsMu.Unlock()
		if e.budgets[streamID] >= e.config.Iterations {
			return false
		}
		e.budgets[streamID]++
		return true
	}
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *PerVUIterations) GetProgress() float64 {
	return e.progress()
}

// Stop gracefully stops the executor.
func (e *PerVUIterations) Stop(ctx context.Context) error {
	return e.stop(ctx)
}

// Ensure PerVUIterations implements Executor
var _ Executor = (*PerVUIterations)(nil)
