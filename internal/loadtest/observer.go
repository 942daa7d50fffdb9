package loadtest

import (
	lhttp "github.com/wesleyorama2/cacheload/internal/http"
)

// ResponseEvent describes one completed exchange.
type ResponseEvent struct {
	StreamID   int
	Iteration  int64
	Identifier int
	Request    *Request
	Response   *lhttp.Response

	// CacheHeader is the configured header name; CacheStatus its value
	CacheHeader    string
	CacheStatus    string
	HasCacheStatus bool
}

// Observer receives driver events. Implementations must be safe for
// concurrent use when more than one stream runs.
type Observer interface {
	OnResponse(ev *ResponseEvent)
	OnCheckFailed(ev *ResponseEvent, result CheckResult)
	OnAbort(err *AbortError)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) OnResponse(*ResponseEvent)                 {}
func (NopObserver) OnCheckFailed(*ResponseEvent, CheckResult) {}
func (NopObserver) OnAbort(*AbortError)                       {}
