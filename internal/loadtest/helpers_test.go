package loadtest

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"

	lhttp "github.com/wesleyorama2/cacheload/internal/http"
	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
	"github.com/wesleyorama2/cacheload/internal/loadtest/metrics"
)

// scriptedFetcher replays responses chosen by a script function and records
// every request it receives.
type scriptedFetcher struct {
	mu     sync.Mutex
	script func(n int, req *lhttp.Request) *lhttp.Response
	calls  []*lhttp.Request
}

func (f *scriptedFetcher) Do(_ context.Context, req *lhttp.Request) *lhttp.Response {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.script(n, req)
}

func (f *scriptedFetcher) Calls() []*lhttp.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*lhttp.Request(nil), f.calls...)
}

func okResponse(cacheStatus string) *lhttp.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if cacheStatus != "" {
		h.Set("X-Cache", cacheStatus)
	}
	return &lhttp.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Headers:    h,
		Body:       []byte(`{"id": 1}`),
	}
}

func refusedResponse() *lhttp.Response {
	err := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	return &lhttp.Response{Err: lhttp.NewTransportError(err)}
}

func alwaysOK(int, *lhttp.Request) *lhttp.Response {
	return okResponse("HIT")
}

// testConfig returns the reference config with delays disabled.
func testConfig(t *testing.T) *config.TestConfig {
	t.Helper()
	cfg := config.NewDefaultConfig()
	zero := config.Duration(0)
	cfg.Timing.RequestDelay = &zero
	cfg.Timing.IterationDelay = &zero
	return cfg
}

func newTestScheduler(t *testing.T, cfg *config.TestConfig, fetcher Fetcher) (*Scheduler, *Runtime) {
	t.Helper()
	scenario, err := NewScenario(cfg)
	if err != nil {
		t.Fatalf("NewScenario() error = %v", err)
	}
	rt := NewRuntime(fetcher, metrics.NewEngine())
	return NewScheduler(scenario, rt), rt
}

// budget returns a claim function granting n iterations.
func budget(n int64) func() bool {
	var used int64
	return func() bool {
		if used >= n {
			return false
		}
		used++
		return true
	}
}

func idFromPath(path string) string {
	path = strings.TrimSuffix(path, ".jpeg")
	return path[strings.LastIndex(path, "/")+1:]
}
