package loadtest

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	lhttp "github.com/wesleyorama2/cacheload/internal/http"
	"github.com/wesleyorama2/cacheload/pkg/jsonpath"
	"github.com/wesleyorama2/cacheload/pkg/jsonschema"
)

// CheckResult is the outcome of one named assertion against one response.
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Checker evaluates the per-response assertions. Evaluate is a pure function
// of its inputs, so replaying a response always yields the same results.
type Checker struct {
	cacheHeader string
}

// NewChecker creates a checker for the given cache-status header.
func NewChecker(cacheHeader string) *Checker {
	return &Checker{cacheHeader: cacheHeader}
}

// CacheHeader returns the header the checker looks for.
func (c *Checker) CacheHeader() string {
	return c.cacheHeader
}

// Evaluate runs every check configured for req against resp, in a fixed order:
// status, body, cache header, JSON paths (sorted), schema.
func (c *Checker) Evaluate(req *Request, id int, resp *lhttp.Response) []CheckResult {
	results := make([]CheckResult, 0, 3+len(req.JSONPathEquals))

	status := CheckResult{
		Name:   fmt.Sprintf("status is %d (%s)", req.ExpectStatus, req.Label),
		Passed: resp.StatusCode == req.ExpectStatus,
	}
	if !status.Passed {
		if resp.StatusCode == 0 && resp.Err != nil {
			status.Message = fmt.Sprintf("expected %d, got no response: %v", req.ExpectStatus, resp.Err)
		} else {
			status.Message = fmt.Sprintf("expected %d, got %d", req.ExpectStatus, resp.StatusCode)
		}
	}
	results = append(results, status)

	body := CheckResult{
		Name:   fmt.Sprintf("body is not empty (%s)", req.Label),
		Passed: len(resp.Body) > 0,
	}
	if !body.Passed {
		body.Message = "empty body"
	}
	results = append(results, body)

	header := CheckResult{
		Name:   fmt.Sprintf("%s is defined (%s)", c.cacheHeader, req.Label),
		Passed: resp.HasHeader(c.cacheHeader),
	}
	if !header.Passed {
		header.Message = fmt.Sprintf("response has no %s header", c.cacheHeader)
	}
	results = append(results, header)

	if len(req.JSONPathEquals) > 0 {
		expected := make(map[string]string, len(req.JSONPathEquals))
		for path, want := range req.JSONPathEquals {
			expected[path] = expand(want, id)
		}
		failed := make(map[string]jsonpath.Mismatch)
		for _, m := range jsonpath.Equals(resp.Body, expected) {
			failed[m.Path] = m
		}
		for _, path := range sortedKeys(expected) {
			r := CheckResult{Name: fmt.Sprintf("%s matches (%s)", path, req.Label), Passed: true}
			if m, ok := failed[path]; ok {
				r.Passed = false
				r.Message = m.String()
			}
			results = append(results, r)
		}
	}

	if req.Schema != nil {
		r := CheckResult{Name: fmt.Sprintf("body matches schema (%s)", req.Label), Passed: true}
		if err := req.Schema.Validate(resp.Body); err != nil {
			r.Passed = false
			var verrs jsonschema.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 3 {
				err = append(verrs[:3:3], fmt.Errorf("and %d more", len(verrs)-3))
			}
			r.Message = err.Error()
		}
		results = append(results, r)
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []CheckResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// FailedNames returns the names of failed results, joined for display.
func FailedNames(results []CheckResult) string {
	var names []string
	for _, r := range results {
		if !r.Passed {
			names = append(names, r.Name)
		}
	}
	return strings.Join(names, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
