// Package executor provides the strategies that bound how many iterations
// the streams of a run execute.
package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/cacheload/internal/loadtest"
	"github.com/wesleyorama2/cacheload/internal/loadtest/metrics"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeSharedIterations shares a total iteration count across streams.
	TypeSharedIterations Type = "shared-iterations"

	// TypePerVUIterations runs a fixed number of iterations per stream.
	TypePerVUIterations Type = "per-vu-iterations"

	// TypeConstantVUs runs a fixed number of streams for a duration.
	TypeConstantVUs Type = "constant-vus"
)

// DefaultGracefulStop bounds how long Stop waits for in-flight iterations.
const DefaultGracefulStop = 30 * time.Second

// Executor defines the interface for iteration-bounding strategies.
//
// Every executor runs a closed model: each stream starts its next iteration
// only after the previous one finished. Executors differ in when they stop
// handing out iterations.
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// Init initializes the executor with configuration.
	// Called once before Run().
	Init(ctx context.Context, config *Config) error

	// Run spawns the streams and blocks until they have all stopped.
	// It returns nil when the run ended because of the budget, the duration,
	// an abort or context cancellation; the caller inspects the abort signal.
	Run(ctx context.Context, scheduler *loadtest.Scheduler) error

	// GetProgress returns current progress (0.0 to 1.0).
	GetProgress() float64

	// Stop asks every stream to finish its in-flight request and waits.
	Stop(ctx context.Context) error
}

// Config contains configuration for an executor.
type Config struct {
	// Name is the name of this executor instance
	Name string `json:"name" yaml:"name"`

	// Type is the executor type
	Type Type `json:"type" yaml:"type"`

	VUs int `json:"vus" yaml:"vus"`

	// Iterations is a total (shared) or per-stream count
	Iterations int64 `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// Duration is required for constant-vus and an optional upper bound
	// for the iteration-based executors
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Graceful stop timeout
	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	if c.Type == "" {
		return &ValidationError{Field: "type", Message: "executor type is required"}
	}
	if c.VUs <= 0 {
		return &ValidationError{Field: "vus", Message: "vus must be > 0"}
	}
	if c.Duration < 0 {
		return &ValidationError{Field: "duration", Message: "duration must be >= 0"}
	}

	switch c.Type {
	case TypeConstantVUs:
		if c.Duration <= 0 {
			return &ValidationError{Field: "duration", Message: "duration must be > 0"}
		}

	case TypePerVUIterations, TypeSharedIterations:
		if c.Iterations <= 0 {
			return &ValidationError{Field: "iterations", Message: "iterations must be > 0"}
		}

	default:
		return &ValidationError{Field: "type", Message: "unknown executor type: " + string(c.Type)}
	}

	return nil
}

// TotalIterations returns the iteration budget, or 0 when only a duration
// bounds the run.
func (c *Config) TotalIterations() int64 {
	switch c.Type {
	case TypeSharedIterations:
		return c.Iterations
	case TypePerVUIterations:
		return c.Iterations * int64(c.VUs)
	default:
		return 0
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}

// pool holds the state every executor shares: the spawned streams, the
// active count and the optional duration bound.
type pool struct {
	config    *Config
	scheduler *loadtest.Scheduler
	metrics   *metrics.Engine

	startTime time.Time
	activeVUs atomic.Int32
	running   atomic.Bool
	wg        sync.WaitGroup
	mu        sync.RWMutex
}

func (p *pool) init(want Type, config *Config) error {
	if config.Type != want {
		return fmt.Errorf("invalid config type: expected %s, got %s", want, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	p.config = config
	return nil
}

// run spawns config.VUs streams, hands each the claim function returned by
// claimFor and blocks until all of them stopped.
func (p *pool) run(ctx context.Context, scheduler *loadtest.Scheduler, claimFor func(streamID int) func() bool) {
	p.mu.Lock()
	p.scheduler = scheduler
	p.metrics = scheduler.Runtime().Metrics
	p.startTime = time.Now()
	p.mu.Unlock()

	p.running.Store(true)
	defer p.running.Store(false)

	p.metrics.SetPhase(metrics.PhaseRunning)

	for i := 0; i < p.config.VUs; i++ {
		st := scheduler.SpawnStream()
		p.wg.Add(1)
		go p.runStream(ctx, st, claimFor(st.ID))
	}

	if p.config.Duration > 0 {
		// Streams finish their in-flight request when the duration elapses.
		timer := time.AfterFunc(p.config.Duration, scheduler.StopAll)
		defer timer.Stop()
	}

	p.wg.Wait()
}

func (p *pool) runStream(ctx context.Context, st *loadtest.Stream, claim func() bool) {
	defer p.wg.Done()

	p.metrics.SetActiveVUs(int(p.activeVUs.Add(1)))
	defer func() {
		p.metrics.SetActiveVUs(int(p.activeVUs.Add(-1)))
	}()

	p.scheduler.RunStream(ctx, st, claim)
}

func (p *pool) elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.startTime.IsZero() {
		return 0
	}
	return time.Since(p.startTime)
}

func (p *pool) completed() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.metrics == nil {
		return 0
	}
	return p.metrics.Iterations()
}

// progress reports the larger of iteration and duration progress.
func (p *pool) progress() float64 {
	if !p.running.Load() {
		if p.elapsed() == 0 {
			return 0.0
		}
		return 1.0
	}

	var progress float64
	if total := p.config.TotalIterations(); total > 0 {
		progress = float64(p.completed()) / float64(total)
	}
	if p.config.Duration > 0 {
		if byTime := float64(p.elapsed()) / float64(p.config.Duration); byTime > progress {
			progress = byTime
		}
	}
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// stop asks every stream to stop and waits up to the graceful stop timeout.
func (p *pool) stop(ctx context.Context) error {
	p.mu.RLock()
	scheduler := p.scheduler
	p.mu.RUnlock()
	if scheduler != nil {
		scheduler.StopAll()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	graceful := p.config.GracefulStop
	if graceful == 0 {
		graceful = DefaultGracefulStop
	}

	select {
	case <-done:
		return nil
	case <-time.After(graceful):
		return fmt.Errorf("graceful stop timeout after %v", graceful)
	case <-ctx.Done():
		return ctx.Err()
	}
}
