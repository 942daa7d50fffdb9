package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "cacheload.yaml", `
name: warmup
settings:
  baseUrl: http://localhost:8889/
  hostHeader: example.org
load:
  vus: 4
  iterations: 100
  identifiers: 50
  strategy: random
  seed: 7
timing:
  requestTimeout: 5s
  requestDelay: 0s
health:
  enabled: false
abort:
  policy: strict
requests:
  - name: json
    path: /api/character/{{id}}
    accept: application/json
    jsonPathEquals:
      $.id: "{{id}}"
thresholds:
  checks: ["rate > 0.99"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	ApplyDefaults(cfg)

	assert.Equal(t, "warmup", cfg.Name)
	assert.Equal(t, "http://localhost:8889", cfg.Settings.BaseURL)
	assert.Equal(t, "example.org", cfg.Settings.HostHeader)
	assert.Equal(t, DefaultCacheHeader, cfg.Settings.CacheHeader)
	assert.Equal(t, 4, cfg.Load.VUs)
	assert.Equal(t, int64(100), cfg.Load.Iterations)
	assert.Equal(t, "random", cfg.Load.Strategy)
	assert.Equal(t, int64(7), cfg.Load.Seed)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.Timing.RequestTimeout))
	assert.Equal(t, time.Duration(0), cfg.Timing.GetRequestDelay())
	assert.Equal(t, DefaultIterationDelay, cfg.Timing.GetIterationDelay())
	assert.False(t, cfg.Health.IsEnabled())
	assert.Equal(t, "strict", cfg.Abort.Policy)
	require.Len(t, cfg.Requests, 1)
	assert.Equal(t, "JSON", cfg.Requests[0].Label)
	assert.Equal(t, "{{id}}", cfg.Requests[0].JSONPathEquals["$.id"])
	require.NotNil(t, cfg.Thresholds)
	assert.Equal(t, []string{"rate > 0.99"}, cfg.Thresholds.Checks)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "cacheload.json", `{
		"settings": {"baseUrl": "https://proxy.local"},
		"load": {"executor": "constant-vus", "vus": 2, "duration": "1m"},
		"timing": {"iterationDelay": "250ms"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	ApplyDefaults(cfg)

	assert.Equal(t, "https://proxy.local", cfg.Settings.BaseURL)
	assert.Equal(t, "constant-vus", cfg.Load.Executor)
	assert.Equal(t, time.Minute, time.Duration(cfg.Load.Duration))
	assert.Equal(t, 250*time.Millisecond, cfg.Timing.GetIterationDelay())
	assert.Len(t, cfg.Requests, 2)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("unknown YAML field", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "load:\n  vuz: 3\n")
		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vuz")
	})

	t.Run("unknown JSON field", func(t *testing.T) {
		path := writeFile(t, "bad.json", `{"settingz": {}}`)
		_, err := LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "timing:\n  requestTimeout: soon\n")
		_, err := LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "empty.yaml", "")
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		ApplyDefaults(cfg)
		assert.NoError(t, cfg.Validate())
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"CACHELOAD_BASE_URL":        "http://127.0.0.1:9000",
		"CACHELOAD_HOST_HEADER":     "cache.test",
		"CACHELOAD_VUS":             "3",
		"CACHELOAD_ITERATIONS":      "12",
		"CACHELOAD_IDENTIFIERS":     " 6 ",
		"CACHELOAD_ABORT_POLICY":    "lenient",
		"CACHELOAD_REQUEST_DELAY":   "0s",
		"CACHELOAD_HEALTH_ENABLED":  "false",
		"CACHELOAD_REQUEST_TIMEOUT": "2s",
		"CACHELOAD_MAX_RPS":         "12.5",
		"CACHELOAD_STRATEGY":        "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := NewDefaultConfig()
	require.NoError(t, ApplyEnvOverrides(cfg, lookup))

	assert.Equal(t, "http://127.0.0.1:9000", cfg.Settings.BaseURL)
	assert.Equal(t, "cache.test", cfg.Settings.HostHeader)
	assert.Equal(t, 3, cfg.Load.VUs)
	assert.Equal(t, int64(12), cfg.Load.Iterations)
	assert.Equal(t, 6, cfg.Load.Identifiers)
	assert.Equal(t, "lenient", cfg.Abort.Policy)
	assert.Equal(t, time.Duration(0), cfg.Timing.GetRequestDelay())
	assert.False(t, cfg.Health.IsEnabled())
	assert.Equal(t, 2*time.Second, time.Duration(cfg.Timing.RequestTimeout))
	assert.Equal(t, 12.5, cfg.Settings.MaxRPS)
	assert.Equal(t, DefaultStrategy, cfg.Load.Strategy, "blank values are ignored")
}

func TestApplyEnvOverrides_Invalid(t *testing.T) {
	env := map[string]string{
		"CACHELOAD_VUS":            "many",
		"CACHELOAD_DURATION":       "forever",
		"CACHELOAD_HEALTH_ENABLED": "maybe",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := NewDefaultConfig()
	err := ApplyEnvOverrides(cfg, lookup)
	require.Error(t, err)

	verrs, ok := err.(*ValidationErrors)
	require.True(t, ok)
	assert.Len(t, verrs.Errors, 3)
	assert.Equal(t, DefaultVUs, cfg.Load.VUs)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "CACHELOAD_TEST_DOTENV_A=from-file\nCACHELOAD_TEST_DOTENV_B=from-file\n")
	t.Setenv("CACHELOAD_TEST_DOTENV_B", "from-env")
	t.Cleanup(func() { os.Unsetenv("CACHELOAD_TEST_DOTENV_A") })

	require.NoError(t, LoadDotEnv("", filepath.Join(t.TempDir(), "missing.env"), path))

	assert.Equal(t, "from-file", os.Getenv("CACHELOAD_TEST_DOTENV_A"))
	assert.Equal(t, "from-env", os.Getenv("CACHELOAD_TEST_DOTENV_B"), "existing variables win")
}

func TestLoadDotEnv_NoFiles(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, time.Duration(d))

	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, Duration(0), d)

	assert.Error(t, d.UnmarshalJSON([]byte(`"later"`)))

	b, err := Duration(1500 * time.Millisecond).MarshalJSON()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "1.5s"))

	assert.Equal(t, 5*time.Second, Duration(0).GetDuration(5*time.Second))
}
