package metrics

import "time"

// Phase represents a phase of the run.
type Phase string

const (
	// PhaseInit is the phase before the health gate.
	PhaseInit Phase = "init"

	// PhaseHealthCheck covers the startup probe.
	PhaseHealthCheck Phase = "health-check"

	// PhaseRunning is the main load phase.
	PhaseRunning Phase = "running"

	// PhaseAborted means the abort signal was raised.
	PhaseAborted Phase = "aborted"

	// PhaseDone indicates the run has completed
	PhaseDone Phase = "done"
)

// ResponseRecord is one completed exchange as seen by the metrics engine.
type ResponseRecord struct {
	// Request is the configured request name, e.g. "json"
	Request string

	Duration   time.Duration
	StatusCode int
	Bytes      int64

	// Success is false on transport errors and on 4xx/5xx statuses
	Success bool

	// HasCacheHeader reports whether the cache-status header was present
	HasCacheHeader bool

	// CacheStatus is the header value, e.g. "HIT" or "MISS"
	CacheStatus string

	// ErrorKind is the transport error classification, empty on success
	ErrorKind string
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	TotalRequests   int64 `json:"totalRequests"`
	SuccessRequests int64 `json:"successRequests"`
	FailedRequests  int64 `json:"failedRequests"`
	TransportErrors int64 `json:"transportErrors"`
	TotalBytes      int64 `json:"totalBytes"`
	Iterations      int64 `json:"iterations"`

	Latency LatencyStats `json:"latency"`

	// RPS is requests per second over the elapsed time
	RPS float64 `json:"rps"`

	// ErrorRate is the fraction of failed requests (0.0 to 1.0)
	ErrorRate float64 `json:"errorRate"`

	Checks CheckSummary `json:"checks"`
	Cache  CacheSummary `json:"cache"`

	ActiveVUs    int           `json:"activeVUs"`
	CurrentPhase Phase         `json:"currentPhase"`
	Elapsed      time.Duration `json:"elapsed"`
	StartTime    time.Time     `json:"startTime"`
	Timestamp    time.Time     `json:"timestamp"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// CheckSummary aggregates every check evaluated during the run.
type CheckSummary struct {
	Passed int64   `json:"passed"`
	Failed int64   `json:"failed"`
	Rate   float64 `json:"rate"`
}

// CheckStats is the tally for one check name.
type CheckStats struct {
	Name   string `json:"name"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

// CacheSummary tallies the cache-status header across responses.
type CacheSummary struct {
	// WithHeader is the number of responses that carried the header
	WithHeader int64 `json:"withHeader"`

	// WithoutHeader is the number of responses that did not
	WithoutHeader int64 `json:"withoutHeader"`

	Hits int64 `json:"hits"`

	// HitRate is Hits / WithHeader
	HitRate float64 `json:"hitRate"`

	// Statuses counts each observed header value, e.g. HIT, MISS, BYPASS
	Statuses map[string]int64 `json:"statuses"`
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 3600000000 = 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}
