package http

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// DefaultTimeout is applied when neither the client nor the request sets one.
const DefaultTimeout = 30 * time.Second

// Client performs GETs against a single base URL.
//
// The underlying transport keeps connections alive between requests, which is
// what a cache warmup against a single proxy wants.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	timeout    time.Duration
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new HTTP client with the given options
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		headers: make(map[string]string),
		timeout: DefaultTimeout,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the default per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHeader adds a header sent on every request
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *Client) {
		if t, ok := c.httpClient.Transport.(*http.Transport); ok && skip {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
	}
}

// Get issues a GET for path with the given headers and timeout.
// A zero timeout falls back to the client's default.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string, timeout time.Duration) *Response {
	req := NewRequest(path).WithHeaders(headers).WithTimeout(timeout)
	return c.Do(ctx, req)
}

// Do executes a request and returns the response with detailed timing information.
// Failures are reported through Response.Err rather than a Go error.
func (c *Client) Do(ctx context.Context, req *Request) *Response {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timing := TimingInfo{StartTime: time.Now()}
	resp := &Response{}

	headers := make(map[string]string, len(c.headers)+len(req.Headers))
	for key, value := range c.headers {
		headers[key] = value
	}
	for key, value := range req.Headers {
		headers[key] = value
	}
	merged := &Request{Path: req.Path, Headers: headers}

	httpReq, err := merged.Build(reqCtx, c.baseURL)
	if err != nil {
		resp.Err = &TransportError{Kind: KindOther, Err: err}
		resp.Timing = timing
		return resp
	}
	resp.URL = httpReq.URL.String()

	var dnsStart, connectStart, tlsStart time.Time
	lastPhaseEnd := timing.StartTime

	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			now := time.Now()
			timing.DNSLookupTime = now.Sub(dnsStart)
			lastPhaseEnd = now
		},
		ConnectStart: func(network, addr string) {
			connectStart = time.Now()
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil {
				now := time.Now()
				timing.TCPConnectTime = now.Sub(connectStart)
				lastPhaseEnd = now
			}
		},
		TLSHandshakeStart: func() {
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil {
				now := time.Now()
				timing.TLSHandshakeTime = now.Sub(tlsStart)
				lastPhaseEnd = now
			}
		},
		GotFirstResponseByte: func() {
			timing.TimeToFirstByte = time.Since(lastPhaseEnd)
		},
	}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(reqCtx, trace))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		timing.TotalTime = time.Since(timing.StartTime)
		resp.Timing = timing
		resp.Err = NewTransportError(err)
		return resp
	}
	defer httpResp.Body.Close()

	transferStart := time.Now()
	body, err := io.ReadAll(httpResp.Body)
	timing.ContentTransferTime = time.Since(transferStart)
	timing.TotalTime = time.Since(timing.StartTime)

	resp.StatusCode = httpResp.StatusCode
	resp.Status = httpResp.Status
	resp.Headers = httpResp.Header
	resp.Timing = timing
	if len(body) > 0 {
		resp.Body = body
	}
	if err != nil {
		resp.Err = NewTransportError(err)
	}

	return resp
}

// CloseIdleConnections releases pooled connections
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
