package loadtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	lhttp "github.com/wesleyorama2/cacheload/internal/http"
	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
	"github.com/wesleyorama2/cacheload/pkg/jsonschema"
)

// Fetcher performs one GET. Failures are reported in Response.Err.
//
// *http.Client from internal/http satisfies it; tests use scripted fakes.
type Fetcher interface {
	Do(ctx context.Context, req *lhttp.Request) *lhttp.Response
}

// Request is a compiled, per-iteration GET template.
type Request struct {
	Name         string
	Label        string
	PathTemplate string
	Accept       string
	Headers      map[string]string
	ExpectStatus int

	// Timeout of zero falls back to the client default
	Timeout time.Duration

	// JSONPathEquals values may contain the {{id}} placeholder
	JSONPathEquals map[string]string

	Schema *jsonschema.Schema
}

// CompileRequests turns configured requests into templates, compiling any
// inline schemas once for the whole run.
func CompileRequests(cfgs []config.RequestConfig, defaultTimeout time.Duration) ([]*Request, error) {
	out := make([]*Request, 0, len(cfgs))
	for _, rc := range cfgs {
		req := &Request{
			Name:           rc.Name,
			Label:          rc.Label,
			PathTemplate:   rc.Path,
			Accept:         rc.Accept,
			Headers:        rc.Headers,
			ExpectStatus:   rc.ExpectStatus,
			Timeout:        rc.Timeout.GetDuration(defaultTimeout),
			JSONPathEquals: rc.JSONPathEquals,
		}
		if req.Label == "" {
			req.Label = strings.ToUpper(rc.Name)
		}
		if req.ExpectStatus == 0 {
			req.ExpectStatus = config.DefaultExpectStatus
		}
		if rc.Schema != "" {
			schema, err := jsonschema.Compile(rc.Schema)
			if err != nil {
				return nil, fmt.Errorf("request %q: %w", rc.Name, err)
			}
			req.Schema = schema
		}
		out = append(out, req)
	}
	return out, nil
}

func expand(template string, id int) string {
	return strings.ReplaceAll(template, config.IDPlaceholder, strconv.Itoa(id))
}

// Path returns the request path for id.
func (r *Request) Path(id int) string {
	return expand(r.PathTemplate, id)
}

// Build creates the wire request for id. Header precedence, lowest first:
// common headers, request headers, Accept, then the routing Host.
func (r *Request) Build(id int, host string, common map[string]string) *lhttp.Request {
	headers := make(map[string]string, len(common)+len(r.Headers)+2)
	for k, v := range common {
		headers[k] = v
	}
	for k, v := range r.Headers {
		headers[k] = v
	}
	if r.Accept != "" {
		headers["Accept"] = r.Accept
	}
	if host != "" {
		headers["Host"] = host
	}
	return lhttp.NewRequest(r.Path(id)).WithHeaders(headers).WithTimeout(r.Timeout)
}
