package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lhttp "github.com/wesleyorama2/cacheload/internal/http"
	"github.com/wesleyorama2/cacheload/internal/loadtest"
	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
	"github.com/wesleyorama2/cacheload/internal/loadtest/metrics"
)

// fakeProxy answers like a caching proxy: MISS on the first visit of a path,
// HIT afterwards.
type fakeProxy struct {
	mu           sync.Mutex
	seen         map[string]bool
	hosts        map[string]int
	apiRequests  atomic.Int64
	healthStatus int
}

func newFakeProxy(t *testing.T) (*fakeProxy, *httptest.Server) {
	t.Helper()
	p := &fakeProxy{seen: make(map[string]bool), hosts: make(map[string]int), healthStatus: http.StatusOK}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *fakeProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		w.WriteHeader(p.healthStatus)
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/api/character/") {
		http.NotFound(w, r)
		return
	}
	p.apiRequests.Add(1)

	p.mu.Lock()
	status := "MISS"
	if p.seen[r.URL.Path] {
		status = "HIT"
	}
	p.seen[r.URL.Path] = true
	p.hosts[r.Host]++
	p.mu.Unlock()

	w.Header().Set("X-Cache", status)
	if strings.HasSuffix(r.URL.Path, ".jpeg") {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_, _ = w.Write([]byte(`{"id": ` + id + `}`))
}

func fastConfig(baseURL string) *config.TestConfig {
	cfg := config.NewDefaultConfig()
	cfg.Settings.BaseURL = baseURL
	zero := config.Duration(0)
	cfg.Timing.RequestDelay = &zero
	cfg.Timing.IterationDelay = &zero
	cfg.Load.Identifiers = 5
	cfg.Load.Iterations = 10
	return cfg
}

func TestEngine_Run(t *testing.T) {
	proxy, srv := newFakeProxy(t)
	cfg := fastConfig(srv.URL)
	cfg.Requests[0].JSONPathEquals = map[string]string{"$.id": "{{id}}"}
	cfg.Thresholds = &config.ThresholdsConfig{
		HTTPReqFailed: []string{"rate < 0.01"},
		HTTPReqs:      []string{"count == 20"},
		Checks:        []string{"rate == 1"},
		CacheHits:     []string{"rate >= 0.5"},
	}

	eng, err := NewEngine(cfg)
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Passed, "thresholds: %+v", result.Thresholds)
	assert.False(t, result.Aborted)
	assert.Equal(t, "shared-iterations", result.Executor)
	assert.Equal(t, int64(10), result.Iterations)
	assert.True(t, result.Health.Healthy)

	assert.Equal(t, int64(20), proxy.apiRequests.Load())
	assert.Equal(t, map[string]int{"rickandmortyapi.com": 20}, proxy.hosts)

	snap := result.Metrics
	assert.Equal(t, int64(20), snap.TotalRequests)
	assert.Equal(t, int64(10), snap.Cache.Hits)
	assert.Equal(t, int64(10), snap.Cache.Statuses["MISS"])
	assert.InDelta(t, 0.5, snap.Cache.HitRate, 1e-9)
	assert.Equal(t, int64(20*3+10), snap.Checks.Passed)
	assert.Equal(t, metrics.PhaseDone, snap.CurrentPhase)

	assert.Contains(t, result.RequestStats, "json")
	assert.Contains(t, result.RequestStats, "img")
	require.NotEmpty(t, result.CheckStats)
	assert.Equal(t, "status is 200 (JSON)", result.CheckStats[0].Name)
	assert.Equal(t, 1.0, eng.GetProgress())
}

func TestEngine_HealthFailureRunsNothing(t *testing.T) {
	proxy, srv := newFakeProxy(t)
	proxy.healthStatus = http.StatusServiceUnavailable

	eng, err := NewEngine(fastConfig(srv.URL))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)

	assert.True(t, errors.Is(err, loadtest.ErrAborted))
	var abortErr *loadtest.AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, loadtest.ReasonHealthCheckFailed, abortErr.Reason)

	assert.True(t, result.Aborted)
	assert.False(t, result.Passed)
	assert.False(t, result.Health.Healthy)
	assert.Equal(t, 503, result.Health.StatusCode)
	assert.Contains(t, result.AbortCause, "expected status 200, got 503")
	assert.Zero(t, result.Iterations)
	assert.Zero(t, proxy.apiRequests.Load())
	assert.Equal(t, metrics.PhaseAborted, result.Metrics.CurrentPhase)
}

func TestEngine_HealthDisabled(t *testing.T) {
	proxy, srv := newFakeProxy(t)
	proxy.healthStatus = http.StatusServiceUnavailable

	cfg := fastConfig(srv.URL)
	disabled := false
	cfg.Health.Enabled = &disabled

	eng, err := NewEngine(cfg)
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Health)
	assert.Equal(t, int64(20), proxy.apiRequests.Load())
}

func TestEngine_ConnectionRefusedAborts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	cfg := fastConfig(baseURL)
	disabled := false
	cfg.Health.Enabled = &disabled

	eng, err := NewEngine(cfg)
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.ErrorIs(t, err, loadtest.ErrAborted)

	assert.Equal(t, loadtest.ReasonCriticalTransport, result.AbortError.Reason)
	assert.Equal(t, "json", result.AbortError.RequestName)
	assert.Equal(t, 1, result.AbortError.Identifier)
	assert.Equal(t, int64(1), result.Metrics.TotalRequests)
	assert.Equal(t, int64(1), result.Metrics.TransportErrors)
	assert.Zero(t, result.Iterations)
}

func TestEngine_ClosedPortFailsHealthGate(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	eng, err := NewEngine(fastConfig(baseURL))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.ErrorIs(t, err, loadtest.ErrAborted)
	assert.Equal(t, loadtest.ReasonHealthCheckFailed, result.AbortError.Reason)
	assert.Zero(t, result.Metrics.TotalRequests)
}

func TestEngine_ThresholdFailure(t *testing.T) {
	_, srv := newFakeProxy(t)
	cfg := fastConfig(srv.URL)
	cfg.Thresholds = &config.ThresholdsConfig{HTTPReqs: []string{"count > 1000"}}

	eng, err := NewEngine(cfg)
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.False(t, result.Aborted)
	require.Len(t, result.Thresholds, 1)
	assert.Equal(t, "count is 20.00, threshold: > 1000.00", result.Thresholds[0].Message)
}

func TestEngine_StrictPolicyAbortsOnCheck(t *testing.T) {
	_, srv := newFakeProxy(t)
	cfg := fastConfig(srv.URL)
	cfg.Abort.Policy = "strict"
	cfg.Requests[1].ExpectStatus = 204

	eng, err := NewEngine(cfg)
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.ErrorIs(t, err, loadtest.ErrAborted)
	assert.Equal(t, loadtest.ReasonCheckFailed, result.AbortError.Reason)
	assert.Equal(t, "img", result.AbortError.RequestName)
	assert.Equal(t, int64(2), result.Metrics.TotalRequests)
}

func TestEngine_Interrupted(t *testing.T) {
	_, srv := newFakeProxy(t)
	cfg := fastConfig(srv.URL)
	delay := config.Duration(time.Hour)
	cfg.Timing.IterationDelay = &delay

	eng, err := NewEngine(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool {
			m := eng.GetMetrics()
			return m != nil && m.Iterations == 1
		}, 5*time.Second, 5*time.Millisecond)
		cancel()
	}()

	result, err := eng.Run(ctx)
	require.NoError(t, err)
	assert.True(t, result.Interrupted)
	assert.Equal(t, int64(1), result.Iterations)
}

func TestEngine_ExporterAndRateLimit(t *testing.T) {
	_, srv := newFakeProxy(t)
	cfg := fastConfig(srv.URL)
	cfg.Load.Iterations = 3
	cfg.Settings.MaxRPS = 1000

	exporter := metrics.NewPrometheusExporter()
	eng, err := NewEngine(cfg, WithExporter(exporter))
	require.NoError(t, err)

	_, err = eng.Run(context.Background())
	require.NoError(t, err)

	expected := `
# HELP cacheload_iterations_total Completed iterations
# TYPE cacheload_iterations_total counter
cacheload_iterations_total 3
`
	assert.NoError(t, testutil.GatherAndCompare(exporter.Registry(), strings.NewReader(expected), "cacheload_iterations_total"))

	count, err := testutil.GatherAndCount(exporter.Registry(), "cacheload_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "json/MISS and img/MISS series")
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := fastConfig("ftp://nowhere")
	_, err := NewEngine(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestEngine_RunTwiceConcurrently(t *testing.T) {
	_, srv := newFakeProxy(t)
	cfg := fastConfig(srv.URL)
	delay := config.Duration(50 * time.Millisecond)
	cfg.Timing.RequestDelay = &delay
	cfg.Load.Iterations = 2

	eng, err := NewEngine(cfg)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = eng.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, eng.IsRunning, time.Second, time.Millisecond)
	_, err = eng.Run(context.Background())
	assert.ErrorContains(t, err, "already running")
	<-done
}

func TestEngine_HealthReporterRunsBeforeLoad(t *testing.T) {
	proxy, srv := newFakeProxy(t)

	var reported *HealthResult
	var requestsAtReport int64
	eng, err := NewEngine(fastConfig(srv.URL), WithHealthReporter(func(h *HealthResult) {
		reported = h
		requestsAtReport = proxy.apiRequests.Load()
	}))
	require.NoError(t, err)

	_, err = eng.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, reported)
	assert.True(t, reported.Healthy)
	assert.Zero(t, requestsAtReport)
}

func TestEngine_StopEndsRunGracefully(t *testing.T) {
	_, srv := newFakeProxy(t)
	cfg := fastConfig(srv.URL)
	cfg.Load.Executor = "constant-vus"
	cfg.Load.VUs = 2
	cfg.Load.Duration = config.Duration(time.Hour)
	delay := config.Duration(5 * time.Millisecond)
	cfg.Timing.IterationDelay = &delay

	eng, err := NewEngine(cfg)
	require.NoError(t, err)

	done := make(chan struct{})
	var result *TestResult
	var runErr error
	go func() {
		result, runErr = eng.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		m := eng.GetMetrics()
		return m != nil && m.Iterations >= 4
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, eng.Stop(context.Background()))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not end after Stop")
	}
	require.NoError(t, runErr)
	assert.True(t, result.Interrupted)
	assert.False(t, result.Aborted)
	assert.Zero(t, result.Metrics.TransportErrors)
}

func TestEngine_StopWhenIdle(t *testing.T) {
	eng, err := NewEngine(fastConfig("http://localhost:1"))
	require.NoError(t, err)
	assert.NoError(t, eng.Stop(context.Background()))
}

type closingFetcher struct {
	*lhttp.Client
	closed atomic.Int32
}

func (f *closingFetcher) CloseIdleConnections() {
	f.closed.Add(1)
	f.Client.CloseIdleConnections()
}

func TestEngine_ClosesIdleConnectionsAfterRun(t *testing.T) {
	_, srv := newFakeProxy(t)
	cfg := fastConfig(srv.URL)
	fetcher := &closingFetcher{Client: NewClient(cfg)}

	eng, err := NewEngine(cfg, WithFetcher(fetcher))
	require.NoError(t, err)

	_, err = eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.closed.Load())
}

func TestNewClient_SendsUserAgent(t *testing.T) {
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL)
	result := Probe(context.Background(), NewClient(cfg), cfg)
	require.True(t, result.Healthy)
	assert.Equal(t, UserAgent, agent.Load())
}
