package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exposes run metrics on a private registry so that
// several runs in one process never collide.
type PrometheusExporter struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	checks          *prometheus.CounterVec
	transportErrors *prometheus.CounterVec
	aborts          *prometheus.CounterVec
	iterations      prometheus.Counter
	activeVUs       prometheus.Gauge
}

// NewPrometheusExporter creates and registers the cacheload series.
func NewPrometheusExporter() *PrometheusExporter {
	p := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cacheload_requests_total",
				Help: "Total responses by request name, status and cache result",
			},
			[]string{"request", "status", "cache"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cacheload_request_duration_seconds",
				Help:    "End-to-end request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"request"},
		),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cacheload_checks_total",
				Help: "Check outcomes by check name and result",
			},
			[]string{"check", "result"},
		),
		transportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cacheload_transport_errors_total",
				Help: "Transport-level failures by request name and classification",
			},
			[]string{"request", "kind"},
		),
		aborts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cacheload_aborts_total",
				Help: "Raised abort signals by reason",
			},
			[]string{"reason"},
		),
		iterations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cacheload_iterations_total",
				Help: "Completed iterations",
			},
		),
		activeVUs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cacheload_active_vus",
				Help: "Number of running streams",
			},
		),
	}

	p.registry.MustRegister(
		p.requests,
		p.duration,
		p.checks,
		p.transportErrors,
		p.aborts,
		p.iterations,
		p.activeVUs,
	)
	return p
}

// Registry returns the underlying registry.
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns the /metrics handler for this exporter.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func normCacheLabel(v string, present bool) string {
	if !present {
		return "NONE"
	}
	if v == "" {
		return "EMPTY"
	}
	return v
}

func (p *PrometheusExporter) observeResponse(r ResponseRecord) {
	p.requests.WithLabelValues(r.Request, strconv.Itoa(r.StatusCode), normCacheLabel(r.CacheStatus, r.HasCacheHeader)).Inc()
	p.duration.WithLabelValues(r.Request).Observe(r.Duration.Seconds())
	if r.ErrorKind != "" {
		p.transportErrors.WithLabelValues(r.Request, r.ErrorKind).Inc()
	}
}

func (p *PrometheusExporter) observeCheck(name string, passed bool) {
	result := "pass"
	if !passed {
		result = "fail"
	}
	p.checks.WithLabelValues(name, result).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
//
// A bad address is reported immediately. The returned channel yields the
// final server error, nil after a clean shutdown.
func (p *PrometheusExporter) Serve(ctx context.Context, addr string) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return ln.Addr(), done, nil
}
