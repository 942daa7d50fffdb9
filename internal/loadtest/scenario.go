package loadtest

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
	"github.com/wesleyorama2/cacheload/internal/loadtest/metrics"
)

// Scenario is the read-only description of what every stream does.
type Scenario struct {
	Name     string
	Pool     *IdentifierPool
	Strategy Strategy
	Seed     int64

	// Requests are issued in order on every iteration
	Requests []*Request

	HostHeader     string
	Headers        map[string]string
	RequestDelay   time.Duration
	IterationDelay time.Duration
	Policy         AbortPolicy
	Checker        *Checker
}

// NewScenario builds a scenario from a defaulted, validated config.
func NewScenario(cfg *config.TestConfig) (*Scenario, error) {
	pool, err := NewIdentifierPool(cfg.Load.Identifiers)
	if err != nil {
		return nil, err
	}

	requests, err := CompileRequests(cfg.Requests, time.Duration(cfg.Timing.RequestTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to compile requests: %w", err)
	}

	return &Scenario{
		Name:           cfg.Name,
		Pool:           pool,
		Strategy:       Strategy(cfg.Load.Strategy),
		Seed:           cfg.Load.Seed,
		Requests:       requests,
		HostHeader:     cfg.Settings.HostHeader,
		Headers:        cfg.Settings.Headers,
		RequestDelay:   cfg.Timing.GetRequestDelay(),
		IterationDelay: cfg.Timing.GetIterationDelay(),
		Policy:         AbortPolicy(cfg.Abort.Policy),
		Checker:        NewChecker(cfg.Settings.CacheHeader),
	}, nil
}

// Limiter paces requests across all streams.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Runtime holds the collaborators shared by every stream of a run.
type Runtime struct {
	Fetcher  Fetcher
	Metrics  *metrics.Engine
	Abort    *AbortSignal
	Observer Observer

	// Limiter is optional
	Limiter Limiter
}

// NewRuntime creates a runtime with a fresh abort signal and no observer.
func NewRuntime(fetcher Fetcher, metricsEngine *metrics.Engine) *Runtime {
	return &Runtime{
		Fetcher:  fetcher,
		Metrics:  metricsEngine,
		Abort:    NewAbortSignal(),
		Observer: NopObserver{},
	}
}

// RaiseAbort raises the run's abort signal. Only the first caller records
// and reports it. The winning error is returned either way.
func (rt *Runtime) RaiseAbort(err *AbortError) *AbortError {
	if rt.Abort.Raise(err) {
		rt.Metrics.RecordAbort(string(err.Reason))
		rt.Observer.OnAbort(err)
	}
	return rt.Abort.Err()
}
