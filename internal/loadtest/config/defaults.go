package config

import (
	"strings"
	"time"
)

// Defaults reproduce the reference cache warmup against the character API.
const (
	DefaultName           = "cache load"
	DefaultBaseURL        = "http://nginx:8889"
	DefaultHostHeader     = "rickandmortyapi.com"
	DefaultCacheHeader    = "X-Cache"
	DefaultExecutor       = "shared-iterations"
	DefaultVUs            = 1
	DefaultIterations     = 1652
	DefaultIdentifiers    = 826
	DefaultStrategy       = "cyclic"
	DefaultRequestTimeout = 30 * time.Second
	DefaultRequestDelay   = time.Second
	DefaultIterationDelay = time.Second
	DefaultHealthPath     = "/health"
	DefaultHealthTimeout  = 10 * time.Second
	DefaultExpectStatus   = 200
	DefaultAbortPolicy    = "critical"

	// IDPlaceholder is replaced by the iteration's identifier in paths and expected values.
	IDPlaceholder = "{{id}}"
)

// DefaultRequests returns the JSON and image requests of the reference run.
func DefaultRequests() []RequestConfig {
	return []RequestConfig{
		{
			Name:         "json",
			Label:        "JSON",
			Path:         "/api/character/" + IDPlaceholder,
			Accept:       "application/json",
			ExpectStatus: DefaultExpectStatus,
		},
		{
			Name:         "img",
			Label:        "IMG",
			Path:         "/api/character/avatar/" + IDPlaceholder + ".jpeg",
			Accept:       "image/jpeg",
			ExpectStatus: DefaultExpectStatus,
		},
	}
}

// NewDefaultConfig returns a config that needs no file at all.
func NewDefaultConfig() *TestConfig {
	cfg := &TestConfig{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field. It is idempotent.
func ApplyDefaults(cfg *TestConfig) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	s := &cfg.Settings
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.HostHeader == "" {
		s.HostHeader = DefaultHostHeader
	}
	if s.CacheHeader == "" {
		s.CacheHeader = DefaultCacheHeader
	}

	l := &cfg.Load
	if l.Executor == "" {
		l.Executor = DefaultExecutor
	}
	if l.VUs == 0 {
		l.VUs = DefaultVUs
	}
	if l.Iterations == 0 && l.Executor != "constant-vus" {
		l.Iterations = DefaultIterations
	}
	if l.Identifiers == 0 {
		l.Identifiers = DefaultIdentifiers
	}
	if l.Strategy == "" {
		l.Strategy = DefaultStrategy
	}

	if cfg.Timing.RequestTimeout == 0 {
		cfg.Timing.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if cfg.Timing.RequestDelay == nil {
		d := Duration(DefaultRequestDelay)
		cfg.Timing.RequestDelay = &d
	}
	if cfg.Timing.IterationDelay == nil {
		d := Duration(DefaultIterationDelay)
		cfg.Timing.IterationDelay = &d
	}

	h := &cfg.Health
	if h.Enabled == nil {
		enabled := true
		h.Enabled = &enabled
	}
	if h.Path == "" {
		h.Path = DefaultHealthPath
	}
	if h.Timeout == 0 {
		h.Timeout = Duration(DefaultHealthTimeout)
	}
	if h.ExpectStatus == 0 {
		h.ExpectStatus = DefaultExpectStatus
	}

	if cfg.Abort.Policy == "" {
		cfg.Abort.Policy = DefaultAbortPolicy
	}

	if len(cfg.Requests) == 0 {
		cfg.Requests = DefaultRequests()
	}
	for i := range cfg.Requests {
		req := &cfg.Requests[i]
		if req.Label == "" {
			req.Label = strings.ToUpper(req.Name)
		}
		if req.ExpectStatus == 0 {
			req.ExpectStatus = DefaultExpectStatus
		}
	}
}
