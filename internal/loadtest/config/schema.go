// Package config provides configuration parsing and validation for cacheload runs.
package config

import (
	"time"
)

// TestConfig is the root configuration for a cache load run.
//
// Example YAML:
//
//	name: "character cache warmup"
//	settings:
//	  baseUrl: "http://nginx:8889"
//	  hostHeader: "rickandmortyapi.com"
//	load:
//	  vus: 1
//	  iterations: 1652
//	  identifiers: 826
//	requests:
//	  - name: json
//	    path: "/api/character/{{id}}"
//	    accept: "application/json"
type TestConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the run (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`

	Load LoadSection `json:"load,omitempty" yaml:"load,omitempty"`

	Timing TimingConfig `json:"timing,omitempty" yaml:"timing,omitempty"`

	Health HealthConfig `json:"health,omitempty" yaml:"health,omitempty"`

	Abort AbortConfig `json:"abort,omitempty" yaml:"abort,omitempty"`

	// Requests issued, in order, for every iteration
	Requests []RequestConfig `json:"requests,omitempty" yaml:"requests,omitempty"`

	// Thresholds define pass/fail criteria for the run as a whole
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Settings contains target and transport settings.
type Settings struct {
	// BaseURL of the proxy under test
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// HostHeader routes requests to the right virtual host on the proxy
	HostHeader string `json:"hostHeader,omitempty" yaml:"hostHeader,omitempty"`

	// CacheHeader is the response header carrying the cache status
	CacheHeader string `json:"cacheHeader,omitempty" yaml:"cacheHeader,omitempty"`

	// Headers are sent with every request, including the health probe
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// MaxRPS caps the request rate across all streams (0 = unlimited)
	MaxRPS float64 `json:"maxRps,omitempty" yaml:"maxRps,omitempty"`

	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// LoadSection controls how many streams run and for how long.
type LoadSection struct {
	// Executor: "shared-iterations", "per-vu-iterations" or "constant-vus"
	Executor string `json:"executor,omitempty" yaml:"executor,omitempty"`

	// VUs is the number of independent streams
	VUs int `json:"vus,omitempty" yaml:"vus,omitempty"`

	// Iterations is the iteration budget (total or per stream, depending on executor)
	Iterations int64 `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// Duration bounds the run; required for constant-vus
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Identifiers is the pool size N; identifiers run 1..N
	Identifiers int `json:"identifiers,omitempty" yaml:"identifiers,omitempty"`

	// Strategy picks identifiers: "cyclic" or "random"
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// Seed for the random strategy; each stream derives its own source from it
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// TimingConfig holds per-request timeouts and the courtesy pauses.
// The delays are pointers so that an explicit "0s" disables them.
type TimingConfig struct {
	RequestTimeout Duration  `json:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"`
	RequestDelay   *Duration `json:"requestDelay,omitempty" yaml:"requestDelay,omitempty"`
	IterationDelay *Duration `json:"iterationDelay,omitempty" yaml:"iterationDelay,omitempty"`
}

// GetRequestDelay returns the pause after each request.
func (t TimingConfig) GetRequestDelay() time.Duration {
	if t.RequestDelay == nil {
		return DefaultRequestDelay
	}
	return time.Duration(*t.RequestDelay)
}

// GetIterationDelay returns the pause after each iteration.
func (t TimingConfig) GetIterationDelay() time.Duration {
	if t.IterationDelay == nil {
		return DefaultIterationDelay
	}
	return time.Duration(*t.IterationDelay)
}

// HealthConfig configures the startup probe.
type HealthConfig struct {
	// Enabled is a pointer so that an explicit false survives defaulting
	Enabled      *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path         string   `json:"path,omitempty" yaml:"path,omitempty"`
	Timeout      Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ExpectStatus int      `json:"expectStatus,omitempty" yaml:"expectStatus,omitempty"`
}

// IsEnabled reports whether the health gate runs.
func (h HealthConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// AbortConfig selects when a run is terminated early.
type AbortConfig struct {
	// Policy: "critical", "strict" or "lenient"
	Policy string `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// RequestConfig defines one GET issued per iteration.
type RequestConfig struct {
	// Name for this request (used in metrics and check names)
	Name string `json:"name" yaml:"name"`

	// Label shown in log lines, e.g. "JSON" or "IMG"
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Path template; {{id}} is replaced by the iteration's identifier
	Path string `json:"path" yaml:"path"`

	// Accept header value
	Accept string `json:"accept,omitempty" yaml:"accept,omitempty"`

	// Headers specific to this request
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// ExpectStatus is the success status (default 200)
	ExpectStatus int `json:"expectStatus,omitempty" yaml:"expectStatus,omitempty"`

	// Timeout overrides timing.requestTimeout for this request
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// JSONPathEquals maps a JSONPath to an expected templated value
	JSONPathEquals map[string]string `json:"jsonPathEquals,omitempty" yaml:"jsonPathEquals,omitempty"`

	// Schema is an inline JSON Schema the body must satisfy
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// ThresholdsConfig defines pass/fail criteria for the run.
type ThresholdsConfig struct {
	// HTTPReqDuration e.g. ["p95 < 500ms", "avg < 200ms"]
	HTTPReqDuration []string `json:"http_req_duration,omitempty" yaml:"http_req_duration,omitempty"`

	// HTTPReqFailed e.g. ["rate < 0.01"]
	HTTPReqFailed []string `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`

	// HTTPReqs e.g. ["count >= 3304"]
	HTTPReqs []string `json:"http_reqs,omitempty" yaml:"http_reqs,omitempty"`

	// Checks e.g. ["rate > 0.99"]
	Checks []string `json:"checks,omitempty" yaml:"checks,omitempty"`

	// CacheHits e.g. ["rate > 0.4"]
	CacheHits []string `json:"cache_hits,omitempty" yaml:"cache_hits,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
