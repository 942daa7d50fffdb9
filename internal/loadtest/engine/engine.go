// Package engine orchestrates a cacheload run: health gate, streams,
// metrics and threshold evaluation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lhttp "github.com/wesleyorama2/cacheload/internal/http"
	"github.com/wesleyorama2/cacheload/internal/loadtest"
	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
	"github.com/wesleyorama2/cacheload/internal/loadtest/executor"
	"github.com/wesleyorama2/cacheload/internal/loadtest/metrics"
	"github.com/wesleyorama2/cacheload/internal/loadtest/rate"
)

// DefaultShutdownTimeout bounds the wait for streams after the executor returns.
const DefaultShutdownTimeout = 30 * time.Second

// UserAgent is sent on every request the default client makes.
const UserAgent = "cacheload"

// Engine is the main orchestrator for a cacheload run.
//
// It coordinates:
//   - the startup health gate
//   - the executor and its streams
//   - metrics collection and the optional Prometheus exporter
//   - threshold evaluation
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("cacheload.yaml")
//	eng, _ := engine.NewEngine(cfg)
//	result, err := eng.Run(context.Background())
//	fmt.Printf("passed: %v aborted: %v\n", result.Passed, errors.Is(err, loadtest.ErrAborted))
type Engine struct {
	config *config.TestConfig

	fetcher  loadtest.Fetcher
	observer loadtest.Observer
	exporter *metrics.PrometheusExporter
	onHealth func(*HealthResult)

	metricsEngine *metrics.Engine
	scheduler     *loadtest.Scheduler
	executor      executor.Executor
	mu            sync.RWMutex

	startTime time.Time
	running   bool
	stopped   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithFetcher replaces the HTTP client built from settings.
func WithFetcher(f loadtest.Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithObserver receives per-response, check and abort events.
func WithObserver(o loadtest.Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithExporter mirrors metrics into a Prometheus exporter.
func WithExporter(p *metrics.PrometheusExporter) Option {
	return func(e *Engine) {
		e.exporter = p
	}
}

// WithHealthReporter is called with the probe outcome before any load starts.
func WithHealthReporter(fn func(*HealthResult)) Option {
	return func(e *Engine) {
		e.onHealth = fn
	}
}

// TestResult contains the complete run results.
type TestResult struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	Executor   string `json:"executor"`
	Iterations int64  `json:"iterations"`

	Health *HealthResult `json:"health,omitempty"`

	Metrics      *metrics.Snapshot               `json:"metrics"`
	RequestStats map[string]metrics.LatencyStats `json:"requestStats,omitempty"`
	CheckStats   []metrics.CheckStats            `json:"checkStats,omitempty"`

	// Passed is true when no abort happened and every threshold passed
	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`

	Aborted     bool                 `json:"aborted"`
	AbortError  *loadtest.AbortError `json:"abort,omitempty"`
	AbortCause  string               `json:"abortCause,omitempty"`
	Interrupted bool                 `json:"interrupted,omitempty"`
}

// NewEngine creates an engine for a config. Defaults are applied before
// validation, so a partial config is enough.
func NewEngine(cfg *config.TestConfig, opts ...Option) (*Engine, error) {
	config.ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{config: cfg}
	for _, opt := range opts {
		opt(e)
	}

	if e.fetcher == nil {
		e.fetcher = NewClient(cfg)
	}
	if e.observer == nil {
		e.observer = loadtest.NopObserver{}
	}

	return e, nil
}

// NewClient builds the HTTP client described by cfg.Settings.
func NewClient(cfg *config.TestConfig) *lhttp.Client {
	return lhttp.NewClient(
		lhttp.WithBaseURL(cfg.Settings.BaseURL),
		lhttp.WithTimeout(time.Duration(cfg.Timing.RequestTimeout)),
		lhttp.WithInsecureSkipVerify(cfg.Settings.InsecureSkipVerify),
		lhttp.WithHeader("User-Agent", UserAgent),
	)
}

// Run executes the health gate and then the load, and returns the results.
//
// The returned error is non-nil when the run could not start, or wraps the
// *loadtest.AbortError when the run was aborted; errors.Is(err,
// loadtest.ErrAborted) distinguishes the two. A result is returned whenever
// the run started.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.stopped = false
	e.scheduler, e.executor = nil, nil
	e.startTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	if c, ok := e.fetcher.(interface{ CloseIdleConnections() }); ok {
		defer c.CloseIdleConnections()
	}

	metricsEngine := metrics.NewEngine()
	if e.exporter != nil {
		metricsEngine.AttachExporter(e.exporter)
	}
	metricsEngine.SetPhase(metrics.PhaseInit)

	scheduler, exec, err := e.initialize(ctx, metricsEngine)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run: %w", err)
	}

	result := &TestResult{
		Name:        e.config.Name,
		Description: e.config.Description,
		StartTime:   e.startTime,
		Executor:    string(exec.Type()),
	}

	if e.config.Health.IsEnabled() {
		metricsEngine.SetPhase(metrics.PhaseHealthCheck)
		result.Health = Probe(ctx, e.fetcher, e.config)
		if e.onHealth != nil {
			e.onHealth(result.Health)
		}
		if !result.Health.Healthy {
			scheduler.Runtime().RaiseAbort(&loadtest.AbortError{
				Reason: loadtest.ReasonHealthCheckFailed,
				Cause:  result.Health.Err,
			})
		}
	}

	if !scheduler.Aborted() {
		metricsEngine.Start()
		if err := exec.Run(ctx, scheduler); err != nil {
			return nil, fmt.Errorf("executor %s failed: %w", exec.Type(), err)
		}
	}

	scheduler.Shutdown(DefaultShutdownTimeout)
	metricsEngine.Stop()
	metricsEngine.SetPhase(metrics.PhaseDone)

	e.finish(ctx, result, metricsEngine, scheduler)

	if result.Aborted {
		return result, result.AbortError
	}
	return result, nil
}

// initialize builds the scenario, the shared runtime and the executor.
func (e *Engine) initialize(ctx context.Context, metricsEngine *metrics.Engine) (*loadtest.Scheduler, executor.Executor, error) {
	scenario, err := loadtest.NewScenario(e.config)
	if err != nil {
		return nil, nil, err
	}

	rt := loadtest.NewRuntime(e.fetcher, metricsEngine)
	rt.Observer = e.observer
	if e.config.Settings.MaxRPS > 0 {
		rt.Limiter = rate.NewLeakyBucket(e.config.Settings.MaxRPS)
	}

	scheduler := loadtest.NewScheduler(scenario, rt)

	exec, _, err := executor.CreateExecutorFromLoadConfig(ctx, e.config.Name, e.config.Load)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	e.metricsEngine = metricsEngine
	e.scheduler = scheduler
	e.executor = exec
	stopped := e.stopped
	e.mu.Unlock()

	if stopped {
		scheduler.StopAll()
	}

	return scheduler, exec, nil
}

// finish fills the result from the final metrics and the abort signal.
func (e *Engine) finish(ctx context.Context, result *TestResult, metricsEngine *metrics.Engine, scheduler *loadtest.Scheduler) {
	snapshot := metricsEngine.GetSnapshot()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Metrics = snapshot
	result.Iterations = snapshot.Iterations
	result.RequestStats = metricsEngine.GetRequestStats()
	result.CheckStats = metricsEngine.GetCheckStats()
	result.Thresholds = EvaluateThresholds(e.config.Thresholds, snapshot)
	e.mu.RLock()
	result.Interrupted = e.stopped || errors.Is(ctx.Err(), context.Canceled)
	e.mu.RUnlock()

	if abortErr := scheduler.Runtime().Abort.Err(); abortErr != nil {
		result.Aborted = true
		result.AbortError = abortErr
		if abortErr.Cause != nil {
			result.AbortCause = abortErr.Cause.Error()
		}
	}

	result.Passed = !result.Aborted && AllPassed(result.Thresholds)
}

// GetMetrics returns the current metrics snapshot, or nil before Run.
func (e *Engine) GetMetrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metricsEngine == nil {
		return nil
	}
	return e.metricsEngine.GetSnapshot()
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// GetProgress returns the run progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.executor == nil {
		return 0.0
	}
	return e.executor.GetProgress()
}

// Stop lets in-flight requests finish and ends the run without aborting it.
// The result of a stopped run is marked interrupted.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	scheduler, exec := e.scheduler, e.executor
	e.mu.Unlock()

	if scheduler == nil || exec == nil {
		return nil
	}
	scheduler.StopAll()
	return exec.Stop(ctx)
}
