package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
)

const (
	defaultConfigFile = "cacheload.yaml"
	defaultEnvFile    = ".env"
)

// configFlags are the flags that override the file and environment.
type configFlags struct {
	file    string
	envFile string

	baseURL       string
	host          string
	cacheHeader   string
	healthPath    string
	healthTimeout time.Duration
	noHealth      bool
	insecure      bool

	executor       string
	vus            int
	iterations     int64
	duration       time.Duration
	identifiers    int
	strategy       string
	abortPolicy    string
	requestTimeout time.Duration
	requestDelay   time.Duration
	iterationDelay time.Duration
	maxRPS         float64
}

// registerTarget adds the config source and target flags.
func (f *configFlags) registerTarget(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.file, "config", "c", defaultConfigFile, "Configuration file (YAML or JSON); skipped when the default is missing")
	fs.StringVar(&f.envFile, "env-file", defaultEnvFile, "Environment file loaded before CACHELOAD_* overrides")
	fs.StringVar(&f.baseURL, "base-url", "", "Proxy base URL, e.g. http://nginx:8889")
	fs.StringVar(&f.host, "host", "", "Host header sent with every request")
	fs.StringVar(&f.cacheHeader, "cache-header", "", "Response header carrying the cache status")
	fs.StringVar(&f.healthPath, "health-path", "", "Health probe path")
	fs.DurationVar(&f.healthTimeout, "health-timeout", 0, "Health probe timeout")
	fs.BoolVar(&f.insecure, "insecure", false, "Skip TLS certificate verification")
}

// registerLoad adds the flags that shape the load.
func (f *configFlags) registerLoad(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&f.noHealth, "no-health", false, "Skip the startup health probe")
	fs.StringVar(&f.executor, "executor", "", "Executor: shared-iterations, per-vu-iterations, constant-vus")
	fs.IntVar(&f.vus, "vus", 0, "Number of concurrent streams")
	fs.Int64Var(&f.iterations, "iterations", 0, "Iteration budget (total or per stream, depending on executor)")
	fs.DurationVar(&f.duration, "duration", 0, "Maximum run duration")
	fs.IntVar(&f.identifiers, "identifiers", 0, "Identifier pool size N (identifiers 1..N)")
	fs.StringVar(&f.strategy, "strategy", "", "Identifier strategy: cyclic or random")
	fs.StringVar(&f.abortPolicy, "abort-policy", "", "Abort policy: critical, strict or lenient")
	fs.DurationVarP(&f.requestTimeout, "timeout", "t", 0, "Per-request timeout")
	fs.DurationVar(&f.requestDelay, "request-delay", 0, "Pause after each request")
	fs.DurationVar(&f.iterationDelay, "iteration-delay", 0, "Pause between iterations")
	fs.Float64Var(&f.maxRPS, "max-rps", 0, "Cap on requests per second across all streams (0 = unlimited)")
}

// loadConfig builds the run configuration. Precedence, lowest first:
// defaults, config file, env file, CACHELOAD_* variables, flags.
func loadConfig(cmd *cobra.Command, f *configFlags) (*config.TestConfig, error) {
	cfg := &config.TestConfig{}

	if cmd.Flags().Changed("config") || fileExists(f.file) {
		loaded, err := config.LoadConfig(f.file)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := config.LoadDotEnv(f.envFile); err != nil {
		return nil, err
	}
	if err := config.ApplyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	f.apply(cmd, cfg)
	config.ApplyDefaults(cfg)

	return cfg, nil
}

// apply copies every flag the user set onto cfg.
func (f *configFlags) apply(cmd *cobra.Command, cfg *config.TestConfig) {
	changed := func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	}

	if changed("base-url") {
		cfg.Settings.BaseURL = f.baseURL
	}
	if changed("host") {
		cfg.Settings.HostHeader = f.host
	}
	if changed("cache-header") {
		cfg.Settings.CacheHeader = f.cacheHeader
	}
	if changed("insecure") {
		cfg.Settings.InsecureSkipVerify = f.insecure
	}
	if changed("max-rps") {
		cfg.Settings.MaxRPS = f.maxRPS
	}
	if changed("health-path") {
		cfg.Health.Path = f.healthPath
	}
	if changed("health-timeout") {
		cfg.Health.Timeout = config.Duration(f.healthTimeout)
	}
	if changed("no-health") {
		enabled := !f.noHealth
		cfg.Health.Enabled = &enabled
	}

	if changed("executor") {
		cfg.Load.Executor = f.executor
	}
	if changed("vus") {
		cfg.Load.VUs = f.vus
	}
	if changed("iterations") {
		cfg.Load.Iterations = f.iterations
	}
	if changed("duration") {
		cfg.Load.Duration = config.Duration(f.duration)
	}
	if changed("identifiers") {
		cfg.Load.Identifiers = f.identifiers
	}
	if changed("strategy") {
		cfg.Load.Strategy = f.strategy
	}
	if changed("abort-policy") {
		cfg.Abort.Policy = f.abortPolicy
	}

	if changed("timeout") {
		cfg.Timing.RequestTimeout = config.Duration(f.requestTimeout)
	}
	if changed("request-delay") {
		d := config.Duration(f.requestDelay)
		cfg.Timing.RequestDelay = &d
	}
	if changed("iteration-delay") {
		d := config.Duration(f.iterationDelay)
		cfg.Timing.IterationDelay = &d
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
