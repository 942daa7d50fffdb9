package engine

import (
	"context"
	"fmt"
	"time"

	lhttp "github.com/wesleyorama2/cacheload/internal/http"
	"github.com/wesleyorama2/cacheload/internal/loadtest"
	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
)

// HealthResult is the outcome of the startup probe.
type HealthResult struct {
	URL          string        `json:"url"`
	StatusCode   int           `json:"statusCode"`
	ExpectStatus int           `json:"expectStatus"`
	Duration     time.Duration `json:"duration"`
	Healthy      bool          `json:"healthy"`

	// Err is the transport failure or status mismatch, nil when healthy
	Err     error  `json:"-"`
	Message string `json:"error,omitempty"`
}

// Probe issues the health GET once with the configured timeout, the common
// headers and the routing Host header.
func Probe(ctx context.Context, fetcher loadtest.Fetcher, cfg *config.TestConfig) *HealthResult {
	h := cfg.Health
	req := lhttp.NewRequest(h.Path).
		WithHeaders(cfg.Settings.Headers).
		WithTimeout(time.Duration(h.Timeout))
	if cfg.Settings.HostHeader != "" {
		req.WithHeader("Host", cfg.Settings.HostHeader)
	}

	resp := fetcher.Do(ctx, req)

	result := &HealthResult{
		URL:          resp.URL,
		StatusCode:   resp.StatusCode,
		ExpectStatus: h.ExpectStatus,
		Duration:     resp.Duration(),
	}

	switch {
	case resp.Err != nil:
		result.Err = fmt.Errorf("health probe %s: %w", h.Path, resp.Err)
	case resp.StatusCode != h.ExpectStatus:
		result.Err = fmt.Errorf("health probe %s: expected status %d, got %d", h.Path, h.ExpectStatus, resp.StatusCode)
	default:
		result.Healthy = true
	}
	if result.Err != nil {
		result.Message = result.Err.Error()
	}

	return result
}
