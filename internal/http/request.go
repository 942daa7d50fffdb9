package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes a single GET against the proxy under test.
type Request struct {
	Path    string
	Headers map[string]string
	Timeout time.Duration
}

// NewRequest creates a new request for the given path
func NewRequest(path string) *Request {
	return &Request{
		Path:    path,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithHeaders merges multiple headers into the request
func (r *Request) WithHeaders(headers map[string]string) *Request {
	for key, value := range headers {
		r.Headers[key] = value
	}
	return r
}

// WithTimeout sets the per-request timeout
func (r *Request) WithTimeout(timeout time.Duration) *Request {
	r.Timeout = timeout
	return r
}

// Build constructs an http.Request from the Request.
//
// A "Host" entry in Headers sets the request's Host field, since net/http
// ignores a Host value placed in the header map.
func (r *Request) Build(ctx context.Context, baseURL string) (*http.Request, error) {
	reqURL, err := JoinURL(baseURL, r.Path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		if strings.EqualFold(key, "Host") {
			req.Host = value
			continue
		}
		req.Header.Set(key, value)
	}

	return req, nil
}

// JoinURL joins a base URL and a request path, keeping any query string in path.
func JoinURL(baseURL, path string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	rawPath, rawQuery, _ := strings.Cut(path, "?")

	if base.Path == "" {
		base.Path = "/" + strings.TrimLeft(rawPath, "/")
	} else {
		base.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(rawPath, "/")
	}
	if rawQuery != "" {
		base.RawQuery = rawQuery
	}

	return base.String(), nil
}
