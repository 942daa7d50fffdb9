// Package metrics aggregates latency, request, check and cache-status metrics
// for a cacheload run.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// CacheHitValue is the cache-status header value counted as a hit.
const CacheHitValue = "HIT"

// Engine collects and aggregates run metrics using HDR histograms.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters use atomic operations and
// histograms and tallies use mutex protection.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	requestHists   map[string]*hdrhistogram.Histogram
	requestHistsMu sync.Mutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	transportErrors atomic.Int64
	totalBytes      atomic.Int64
	iterations      atomic.Int64

	checksPassed atomic.Int64
	checksFailed atomic.Int64
	checkStats   map[string]*CheckStats
	checkOrder   []string
	checkMu      sync.Mutex

	cacheWithHeader    atomic.Int64
	cacheWithoutHeader atomic.Int64
	cacheHits          atomic.Int64
	cacheStatuses      map[string]int64
	cacheMu            sync.Mutex

	activeVUs atomic.Int32

	currentPhase Phase
	phaseMu      sync.RWMutex

	startTime time.Time
	endTime   time.Time
	timeMu    sync.RWMutex

	exporter *PrometheusExporter

	config EngineConfig
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	return &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		requestHists:  make(map[string]*hdrhistogram.Histogram),
		checkStats:    make(map[string]*CheckStats),
		cacheStatuses: make(map[string]int64),
		currentPhase:  PhaseInit,
		startTime:     time.Now(),
		config:        config,
	}
}

// AttachExporter mirrors every subsequent record into a Prometheus exporter.
// It must be called before recording starts.
func (e *Engine) AttachExporter(p *PrometheusExporter) {
	e.exporter = p
}

// Start resets the elapsed-time clock. The engine calls it once the health
// gate has passed so that RPS reflects load time only.
func (e *Engine) Start() {
	e.timeMu.Lock()
	e.startTime = time.Now()
	e.endTime = time.Time{}
	e.timeMu.Unlock()
}

// Stop freezes the elapsed-time clock.
func (e *Engine) Stop() {
	e.timeMu.Lock()
	if e.endTime.IsZero() {
		e.endTime = time.Now()
	}
	e.timeMu.Unlock()
}

// RecordResponse records one completed exchange.
func (e *Engine) RecordResponse(r ResponseRecord) {
	latencyMicros := r.Duration.Microseconds()

	// Clamp to valid range
	if latencyMicros < e.config.HistogramMin {
		latencyMicros = e.config.HistogramMin
	}
	if latencyMicros > e.config.HistogramMax {
		latencyMicros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	if r.Request != "" {
		e.recordRequestHistogram(r.Request, latencyMicros)
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(r.Bytes)
	if r.Success {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}
	if r.ErrorKind != "" {
		e.transportErrors.Add(1)
	}

	if r.HasCacheHeader {
		e.cacheWithHeader.Add(1)
		if strings.EqualFold(r.CacheStatus, CacheHitValue) {
			e.cacheHits.Add(1)
		}
		e.cacheMu.Lock()
		e.cacheStatuses[strings.ToUpper(r.CacheStatus)]++
		e.cacheMu.Unlock()
	} else if r.ErrorKind == "" {
		e.cacheWithoutHeader.Add(1)
	}

	if e.exporter != nil {
		e.exporter.observeResponse(r)
	}
}

// recordRequestHistogram records a latency in a per-request histogram.
// NOTE: HDR histogram RecordValue is NOT thread-safe, so we must hold a lock.
func (e *Engine) recordRequestHistogram(name string, latencyMicros int64) {
	e.requestHistsMu.Lock()
	defer e.requestHistsMu.Unlock()

	hist, exists := e.requestHists[name]
	if !exists {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.requestHists[name] = hist
	}

	hist.RecordValue(latencyMicros)
}

// RecordCheck records the outcome of one named check.
func (e *Engine) RecordCheck(name string, passed bool) {
	if passed {
		e.checksPassed.Add(1)
	} else {
		e.checksFailed.Add(1)
	}

	e.checkMu.Lock()
	stats, ok := e.checkStats[name]
	if !ok {
		stats = &CheckStats{Name: name}
		e.checkStats[name] = stats
		e.checkOrder = append(e.checkOrder, name)
	}
	if passed {
		stats.Passes++
	} else {
		stats.Fails++
	}
	e.checkMu.Unlock()

	if e.exporter != nil {
		e.exporter.observeCheck(name, passed)
	}
}

// RecordIteration counts one completed iteration.
func (e *Engine) RecordIteration() {
	e.iterations.Add(1)
	if e.exporter != nil {
		e.exporter.iterations.Inc()
	}
}

// RecordAbort counts a raised abort signal.
func (e *Engine) RecordAbort(reason string) {
	e.SetPhase(PhaseAborted)
	if e.exporter != nil {
		e.exporter.aborts.WithLabelValues(reason).Inc()
	}
}

// SetPhase updates the current run phase.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	// Aborted is terminal.
	if e.currentPhase == PhaseAborted {
		return
	}
	e.currentPhase = phase
}

// GetPhase returns the current run phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// SetActiveVUs updates the active VU count.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
	if e.exporter != nil {
		e.exporter.activeVUs.Set(float64(count))
	}
}

// GetActiveVUs returns the current active VU count.
func (e *Engine) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

// TotalRequests returns the number of recorded exchanges.
func (e *Engine) TotalRequests() int64 {
	return e.totalRequests.Load()
}

// Iterations returns the number of completed iterations.
func (e *Engine) Iterations() int64 {
	return e.iterations.Load()
}

func (e *Engine) elapsed() (time.Time, time.Duration) {
	e.timeMu.RLock()
	defer e.timeMu.RUnlock()

	end := e.endTime
	if end.IsZero() {
		end = time.Now()
	}
	return e.startTime, end.Sub(e.startTime)
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latencyStats := statsFromHistogram(e.latencyHist)
	e.latencyHistMu.Unlock()

	start, elapsed := e.elapsed()
	totalReqs := e.totalRequests.Load()
	failedReqs := e.failedRequests.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(totalReqs) / elapsed.Seconds()
	}

	errorRate := 0.0
	if totalReqs > 0 {
		errorRate = float64(failedReqs) / float64(totalReqs)
	}

	passed, failed := e.checksPassed.Load(), e.checksFailed.Load()
	checkRate := 0.0
	if passed+failed > 0 {
		checkRate = float64(passed) / float64(passed+failed)
	}

	withHeader, hits := e.cacheWithHeader.Load(), e.cacheHits.Load()
	hitRate := 0.0
	if withHeader > 0 {
		hitRate = float64(hits) / float64(withHeader)
	}
	e.cacheMu.Lock()
	statuses := make(map[string]int64, len(e.cacheStatuses))
	for k, v := range e.cacheStatuses {
		statuses[k] = v
	}
	e.cacheMu.Unlock()

	return &Snapshot{
		TotalRequests:   totalReqs,
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  failedReqs,
		TransportErrors: e.transportErrors.Load(),
		TotalBytes:      e.totalBytes.Load(),
		Iterations:      e.iterations.Load(),
		Latency:         latencyStats,
		RPS:             rps,
		ErrorRate:       errorRate,
		Checks:          CheckSummary{Passed: passed, Failed: failed, Rate: checkRate},
		Cache: CacheSummary{
			WithHeader:    withHeader,
			WithoutHeader: e.cacheWithoutHeader.Load(),
			Hits:          hits,
			HitRate:       hitRate,
			Statuses:      statuses,
		},
		ActiveVUs:    e.GetActiveVUs(),
		CurrentPhase: e.GetPhase(),
		Elapsed:      elapsed,
		StartTime:    start,
		Timestamp:    time.Now(),
	}
}

// GetRequestStats returns per-request statistics.
func (e *Engine) GetRequestStats() map[string]LatencyStats {
	e.requestHistsMu.Lock()
	defer e.requestHistsMu.Unlock()

	result := make(map[string]LatencyStats, len(e.requestHists))
	for name, hist := range e.requestHists {
		result[name] = statsFromHistogram(hist)
	}
	return result
}

// GetCheckStats returns per-check tallies in first-seen order.
func (e *Engine) GetCheckStats() []CheckStats {
	e.checkMu.Lock()
	defer e.checkMu.Unlock()

	result := make([]CheckStats, 0, len(e.checkOrder))
	for _, name := range e.checkOrder {
		result = append(result, *e.checkStats[name])
	}
	return result
}

// SortedStatuses returns the observed header values sorted by name.
func (s CacheSummary) SortedStatuses() []string {
	keys := make([]string, 0, len(s.Statuses))
	for k := range s.Statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func statsFromHistogram(hist *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(hist.Min()) * time.Microsecond,
		Max:    time.Duration(hist.Max()) * time.Microsecond,
		Mean:   time.Duration(hist.Mean()) * time.Microsecond,
		StdDev: time.Duration(hist.StdDev()) * time.Microsecond,
		P50:    time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(hist.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond,
		Count:  hist.TotalCount(),
	}
}
