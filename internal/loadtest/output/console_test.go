package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wesleyorama2/cacheload/internal/loadtest"
	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
	"github.com/wesleyorama2/cacheload/internal/loadtest/engine"
	"github.com/wesleyorama2/cacheload/internal/loadtest/metrics"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.50s"},
		{90 * time.Second, "1.5m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDurationShort(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{100, "100"},
		{1652, "1,652"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{-3304, "-3,304"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatNumber(tt.number)
			if result != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.number, result, tt.expected)
			}
		})
	}
}

func TestUseColors(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, UseColors(&buf, false), "buffers are never terminals")
	assert.False(t, UseColors(&buf, true))
}

func TestPrintHeader(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewDefaultConfig()
	config.ApplyDefaults(cfg)

	NewConsole(ConsoleConfig{Writer: &buf}).PrintHeader(cfg)

	out := buf.String()
	assert.Contains(t, out, cfg.Name+" - Running [shared-iterations]")
	assert.Contains(t, out, "Target:        http://nginx:8889 (Host: rickandmortyapi.com)")
	assert.Contains(t, out, "Identifiers:   1..826 (cyclic)")
	assert.Contains(t, out, "Load:          1 stream(s), 1,652 iterations")
	assert.Contains(t, out, "Abort policy:  critical")
}

func TestPrintHealth(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(ConsoleConfig{Writer: &buf})

	console.PrintHealth(&engine.HealthResult{URL: "http://nginx:8889/health", StatusCode: 200, Healthy: true, Duration: 4 * time.Millisecond})
	console.PrintHealth(&engine.HealthResult{StatusCode: 503, Message: "health probe /health: expected status 200, got 503"})
	console.PrintHealth(nil)

	assert.Equal(t,
		"✓ health http://nginx:8889/health: 200 in 4ms\n"+
			"✗ health probe /health: expected status 200, got 503\n",
		buf.String())

	buf.Reset()
	quiet := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})
	quiet.PrintHealth(&engine.HealthResult{Healthy: true})
	assert.Empty(t, buf.String())
}

func summaryResult() *engine.TestResult {
	return &engine.TestResult{
		Name:       "character cache warmup",
		Duration:   2*time.Minute + 5*time.Second,
		Iterations: 1652,
		Passed:     true,
		Metrics: &metrics.Snapshot{
			TotalRequests: 3304,
			ErrorRate:     0,
			RPS:           0.9,
			Latency: metrics.LatencyStats{
				Min: 2 * time.Millisecond,
				P50: 10 * time.Millisecond,
				P95: 40 * time.Millisecond,
				Max: 1200 * time.Millisecond,
			},
			Cache: metrics.CacheSummary{
				WithHeader: 3304,
				Hits:       1652,
				HitRate:    0.5,
				Statuses:   map[string]int64{"MISS": 1652, "HIT": 1652},
			},
		},
		RequestStats: map[string]metrics.LatencyStats{
			"json": {Count: 1652, P50: 8 * time.Millisecond},
			"img":  {Count: 1652, P50: 12 * time.Millisecond},
		},
		CheckStats: []metrics.CheckStats{
			{Name: "status is 200 (JSON)", Passes: 1652},
			{Name: "X-Cache is defined (img)", Passes: 1650, Fails: 2},
		},
		Thresholds: []engine.ThresholdResult{
			{Metric: "http_req_duration", Expression: "p95 < 500ms", Passed: true, Value: "40ms"},
		},
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(ConsoleConfig{Writer: &buf}).PrintSummary(summaryResult())
	out := buf.String()

	expected := []string{
		"character cache warmup - Completed ✓",
		"Duration:      2m 05s",
		"Iterations:    1,652",
		"Total Reqs:    3,304",
		"Success Rate:  100.0%",
		"Latency Distribution:",
		"  Max:       1.20s",
		"Cache:",
		"  Hit rate:  50.0%",
		"  ✓ status is 200 (JSON) (1652/1652)",
		"  ✗ X-Cache is defined (img) (1650/1652)",
		"  ✓ http_req_duration p95 < 500ms (actual: 40ms)",
	}
	for _, want := range expected {
		assert.Contains(t, out, want)
	}

	// request and cache rows are sorted by name
	assert.Less(t, strings.Index(out, "  img "), strings.Index(out, "  json "))
	assert.Less(t, strings.Index(out, "  HIT "), strings.Index(out, "  MISS "))
	assert.NotContains(t, out, "no header")
	assert.NotContains(t, out, "Aborted")
}

func TestPrintSummary_Aborted(t *testing.T) {
	var buf bytes.Buffer
	result := summaryResult()
	result.Passed = false
	result.Aborted = true
	result.AbortError = &loadtest.AbortError{
		Reason:      loadtest.ReasonCriticalTransport,
		RequestName: "json",
		Identifier:  7,
		Cause:       errors.New("connection-refused: dial tcp"),
	}
	result.AbortCause = result.AbortError.Cause.Error()
	result.Metrics.Cache.WithoutHeader = 1

	NewConsole(ConsoleConfig{Writer: &buf}).PrintSummary(result)
	out := buf.String()

	assert.Contains(t, out, "character cache warmup - Aborted ✗")
	assert.Contains(t, out, "  Reason:    critical-transport-error")
	assert.Contains(t, out, "  Request:   json (ID 7)")
	assert.Contains(t, out, "  Cause:     connection-refused: dial tcp")
	assert.Contains(t, out, "no header")
}

func TestPrintSummary_ThresholdFailure(t *testing.T) {
	var buf bytes.Buffer
	result := summaryResult()
	result.Passed = false
	result.Thresholds = []engine.ThresholdResult{
		{Metric: "http_reqs", Expression: "count > 5000", Value: "3304.00", Message: "count is 3304.00, threshold: > 5000.00"},
	}

	NewConsole(ConsoleConfig{Writer: &buf}).PrintSummary(result)
	out := buf.String()

	assert.Contains(t, out, "character cache warmup - Failed ✗")
	assert.Contains(t, out, "  ✗ http_reqs count > 5000 (actual: 3304.00) - count is 3304.00, threshold: > 5000.00")
}

func TestQuietMode(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})

	console.PrintHeader(config.NewDefaultConfig())
	assert.Empty(t, buf.String(), "quiet mode should not print the header")

	console.PrintSummary(summaryResult())
	assert.Equal(t, "PASSED\n", buf.String())

	buf.Reset()
	result := summaryResult()
	result.Passed = false
	console.PrintSummary(result)
	assert.Equal(t, "FAILED\n", buf.String())
}
