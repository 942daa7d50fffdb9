package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_ReferenceRun(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "http://nginx:8889", cfg.Settings.BaseURL)
	assert.Equal(t, "rickandmortyapi.com", cfg.Settings.HostHeader)
	assert.Equal(t, "X-Cache", cfg.Settings.CacheHeader)
	assert.Equal(t, "shared-iterations", cfg.Load.Executor)
	assert.Equal(t, 1, cfg.Load.VUs)
	assert.Equal(t, int64(1652), cfg.Load.Iterations)
	assert.Equal(t, 826, cfg.Load.Identifiers)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Timing.RequestTimeout))
	assert.Equal(t, time.Second, cfg.Timing.GetRequestDelay())
	assert.Equal(t, time.Second, cfg.Timing.GetIterationDelay())
	assert.True(t, cfg.Health.IsEnabled())
	assert.Equal(t, "/health", cfg.Health.Path)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Health.Timeout))
	assert.Equal(t, "critical", cfg.Abort.Policy)

	require.Len(t, cfg.Requests, 2)
	assert.Equal(t, "json", cfg.Requests[0].Name)
	assert.Equal(t, "application/json", cfg.Requests[0].Accept)
	assert.Equal(t, "img", cfg.Requests[1].Name)
	assert.Equal(t, "/api/character/avatar/{{id}}.jpeg", cfg.Requests[1].Path)
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &TestConfig{
		Settings: Settings{BaseURL: "http://proxy:80///"},
		Requests: []RequestConfig{{Name: "thumb", Path: "/t/{{id}}"}},
	}
	ApplyDefaults(cfg)
	first := *cfg
	firstReqs := append([]RequestConfig(nil), cfg.Requests...)

	ApplyDefaults(cfg)

	assert.Equal(t, first.Settings, cfg.Settings)
	assert.Equal(t, first.Load, cfg.Load)
	assert.Equal(t, firstReqs, cfg.Requests)
	assert.Equal(t, "http://proxy:80", cfg.Settings.BaseURL)
	assert.Equal(t, "THUMB", cfg.Requests[0].Label)
	assert.Equal(t, 200, cfg.Requests[0].ExpectStatus)
}

func TestApplyDefaults_KeepsExplicitZeroDelay(t *testing.T) {
	zero := Duration(0)
	cfg := &TestConfig{Timing: TimingConfig{RequestDelay: &zero, IterationDelay: &zero}}
	ApplyDefaults(cfg)

	assert.Equal(t, time.Duration(0), cfg.Timing.GetRequestDelay())
	assert.Equal(t, time.Duration(0), cfg.Timing.GetIterationDelay())
}
