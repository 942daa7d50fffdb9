package http

import (
	"net/http"
	"time"
)

// TimingInfo contains detailed timing information for an HTTP request
type TimingInfo struct {
	DNSLookupTime       time.Duration
	TCPConnectTime      time.Duration
	TLSHandshakeTime    time.Duration
	TimeToFirstByte     time.Duration
	ContentTransferTime time.Duration
	TotalTime           time.Duration
	StartTime           time.Time
}

// Response is the outcome of one GET.
//
// Err is set only on transport-level failure. StatusCode is zero when no
// response head arrived; it may be non-zero if the body read failed.
type Response struct {
	URL        string
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Timing     TimingInfo
	Err        *TransportError
}

// GetHeader returns the value of the specified header
func (r *Response) GetHeader(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// HasHeader reports whether the header key is present, regardless of its value.
func (r *Response) HasHeader(key string) bool {
	if r.Headers == nil {
		return false
	}
	_, ok := r.Headers[http.CanonicalHeaderKey(key)]
	return ok
}

// BodyLen returns the number of body bytes received.
func (r *Response) BodyLen() int64 {
	return int64(len(r.Body))
}

// Failed reports whether the exchange failed at the transport level or
// returned a 4xx/5xx status.
func (r *Response) Failed() bool {
	return r.Err != nil || r.StatusCode >= 400 || r.StatusCode == 0
}

// IsSuccess returns true if the response status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Duration returns the total time spent on the exchange
func (r *Response) Duration() time.Duration {
	return r.Timing.TotalTime
}
