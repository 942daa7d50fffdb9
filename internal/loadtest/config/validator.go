package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/cacheload/pkg/jsonschema"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var (
	validExecutors  = []string{"shared-iterations", "per-vu-iterations", "constant-vus"}
	validStrategies = []string{"cyclic", "random"}
	validPolicies   = []string{"critical", "strict", "lenient"}

	thresholdRe = regexp.MustCompile(`^(\w+)\s*(<=|>=|==|!=|<|>)\s*(\S+)$`)
)

// Validate validates the configuration after defaults have been applied.
//
// Returns nil if valid, or a *ValidationErrors containing all problems.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	validateSettings(&c.Settings, errs)
	validateLoad(&c.Load, errs)
	validateTiming(&c.Timing, errs)
	validateHealth(&c.Health, errs)

	if !contains(validPolicies, c.Abort.Policy) {
		errs.Add("abort.policy", fmt.Sprintf("must be one of %s, got %q", strings.Join(validPolicies, ", "), c.Abort.Policy))
	}

	if len(c.Requests) == 0 {
		errs.Add("requests", "at least one request is required")
	}
	seen := make(map[string]bool)
	for i := range c.Requests {
		prefix := fmt.Sprintf("requests[%d]", i)
		validateRequest(prefix, &c.Requests[i], errs)
		if name := c.Requests[i].Name; name != "" {
			if seen[name] {
				errs.Add(prefix+".name", fmt.Sprintf("duplicate request name %q", name))
			}
			seen[name] = true
		}
	}

	if c.Thresholds != nil {
		validateThresholds(c.Thresholds, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateSettings(s *Settings, errs *ValidationErrors) {
	if s.BaseURL == "" {
		errs.Add("settings.baseUrl", "is required")
	} else if u, err := url.Parse(s.BaseURL); err != nil {
		errs.Add("settings.baseUrl", fmt.Sprintf("invalid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("settings.baseUrl", "must use http or https and include a host")
	} else if u.Host == "" {
		errs.Add("settings.baseUrl", "must use http or https and include a host")
	}

	if s.CacheHeader == "" {
		errs.Add("settings.cacheHeader", "is required")
	}
	if s.MaxRPS < 0 {
		errs.Add("settings.maxRps", "cannot be negative")
	}
}

func validateLoad(l *LoadSection, errs *ValidationErrors) {
	if !contains(validExecutors, l.Executor) {
		errs.Add("load.executor", fmt.Sprintf("must be one of %s, got %q", strings.Join(validExecutors, ", "), l.Executor))
	}
	if l.VUs < 1 {
		errs.Add("load.vus", "must be at least 1")
	}
	if l.Identifiers < 1 {
		errs.Add("load.identifiers", "must be at least 1")
	}
	if !contains(validStrategies, l.Strategy) {
		errs.Add("load.strategy", fmt.Sprintf("must be one of %s, got %q", strings.Join(validStrategies, ", "), l.Strategy))
	}
	if l.Duration < 0 {
		errs.Add("load.duration", "cannot be negative")
	}

	switch l.Executor {
	case "constant-vus":
		if l.Duration <= 0 {
			errs.Add("load.duration", "is required for constant-vus")
		}
	case "shared-iterations", "per-vu-iterations":
		if l.Iterations < 1 {
			errs.Add("load.iterations", "must be at least 1")
		}
	}
}

func validateTiming(t *TimingConfig, errs *ValidationErrors) {
	if t.RequestTimeout < 0 {
		errs.Add("timing.requestTimeout", "cannot be negative")
	}
	if t.GetRequestDelay() < 0 {
		errs.Add("timing.requestDelay", "cannot be negative")
	}
	if t.GetIterationDelay() < 0 {
		errs.Add("timing.iterationDelay", "cannot be negative")
	}
}

func validateHealth(h *HealthConfig, errs *ValidationErrors) {
	if !h.IsEnabled() {
		return
	}
	if h.Path == "" {
		errs.Add("health.path", "is required when the health check is enabled")
	}
	if h.Timeout < 0 {
		errs.Add("health.timeout", "cannot be negative")
	}
	if h.ExpectStatus < 100 || h.ExpectStatus > 599 {
		errs.Add("health.expectStatus", fmt.Sprintf("invalid HTTP status %d", h.ExpectStatus))
	}
}

func validateRequest(prefix string, req *RequestConfig, errs *ValidationErrors) {
	if req.Name == "" {
		errs.Add(prefix+".name", "is required")
	}
	if req.Path == "" {
		errs.Add(prefix+".path", "is required")
	}
	if req.ExpectStatus < 100 || req.ExpectStatus > 599 {
		errs.Add(prefix+".expectStatus", fmt.Sprintf("invalid HTTP status %d", req.ExpectStatus))
	}
	if req.Timeout < 0 {
		errs.Add(prefix+".timeout", "cannot be negative")
	}
	for path := range req.JSONPathEquals {
		if strings.TrimSpace(path) == "" {
			errs.Add(prefix+".jsonPathEquals", "path cannot be empty")
		}
	}
	if req.Schema != "" {
		if _, err := jsonschema.Compile(req.Schema); err != nil {
			errs.Add(prefix+".schema", err.Error())
		}
	}
}

// validateThresholds validates every threshold expression.
func validateThresholds(t *ThresholdsConfig, errs *ValidationErrors) {
	groups := []struct {
		field     string
		exprs     []string
		metrics   []string
		durations bool
	}{
		{"thresholds.http_req_duration", t.HTTPReqDuration, []string{"min", "max", "avg", "med", "p50", "p90", "p95", "p99"}, true},
		{"thresholds.http_req_failed", t.HTTPReqFailed, []string{"rate"}, false},
		{"thresholds.http_reqs", t.HTTPReqs, []string{"count", "rate"}, false},
		{"thresholds.checks", t.Checks, []string{"rate"}, false},
		{"thresholds.cache_hits", t.CacheHits, []string{"rate"}, false},
	}

	for _, g := range groups {
		for i, expr := range g.exprs {
			if err := validateThresholdExpression(expr, g.metrics, g.durations); err != nil {
				errs.Add(fmt.Sprintf("%s[%d]", g.field, i), err.Error())
			}
		}
	}
}

// validateThresholdExpression validates a threshold expression.
//
// Valid formats:
//   - "p95 < 500ms"
//   - "rate < 0.01"
//   - "count >= 3304"
//
// Values are Go durations when durations is set and plain numbers otherwise.
func validateThresholdExpression(expr string, metrics []string, durations bool) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return fmt.Errorf("threshold expression cannot be empty")
	}

	m := thresholdRe.FindStringSubmatch(expr)
	if m == nil {
		return fmt.Errorf("invalid expression %q, expected '<metric> <op> <value>'", expr)
	}
	if !contains(metrics, m[1]) {
		return fmt.Errorf("unsupported metric %q, expected one of %s", m[1], strings.Join(metrics, ", "))
	}
	if durations {
		if _, err := time.ParseDuration(m[3]); err != nil {
			return fmt.Errorf("invalid duration %q in %q", m[3], expr)
		}
		return nil
	}
	if _, err := strconv.ParseFloat(m[3], 64); err != nil {
		return fmt.Errorf("invalid number %q in %q", m[3], expr)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
