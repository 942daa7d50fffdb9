package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CACHELOAD_"

// LoadConfig reads a YAML or JSON configuration file.
//
// The format is chosen by extension: ".json" is parsed as JSON, anything else
// as YAML. Unknown fields are rejected so that typos surface early.
func LoadConfig(path string) (*TestConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg TestConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Variables that are already set win. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("error loading env file: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies CACHELOAD_* variables on top of cfg.
//
// lookup is usually os.LookupEnv; tests pass a map-backed function.
func ApplyEnvOverrides(cfg *TestConfig, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	errs := &ValidationErrors{}

	if v, ok := getEnv(lookup, "BASE_URL"); ok {
		cfg.Settings.BaseURL = v
	}
	if v, ok := getEnv(lookup, "HOST_HEADER"); ok {
		cfg.Settings.HostHeader = v
	}
	if v, ok := getEnv(lookup, "CACHE_HEADER"); ok {
		cfg.Settings.CacheHeader = v
	}
	if v, ok := getEnv(lookup, "EXECUTOR"); ok {
		cfg.Load.Executor = v
	}
	if v, ok := getEnv(lookup, "STRATEGY"); ok {
		cfg.Load.Strategy = v
	}
	if v, ok := getEnv(lookup, "ABORT_POLICY"); ok {
		cfg.Abort.Policy = v
	}

	if v, ok := getEnv(lookup, "VUS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Load.VUs = n
		} else {
			errs.Add(EnvPrefix+"VUS", fmt.Sprintf("not an integer: %q", v))
		}
	}
	if v, ok := getEnv(lookup, "ITERATIONS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Load.Iterations = n
		} else {
			errs.Add(EnvPrefix+"ITERATIONS", fmt.Sprintf("not an integer: %q", v))
		}
	}
	if v, ok := getEnv(lookup, "IDENTIFIERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Load.Identifiers = n
		} else {
			errs.Add(EnvPrefix+"IDENTIFIERS", fmt.Sprintf("not an integer: %q", v))
		}
	}
	if v, ok := getEnv(lookup, "MAX_RPS"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Settings.MaxRPS = f
		} else {
			errs.Add(EnvPrefix+"MAX_RPS", fmt.Sprintf("not a number: %q", v))
		}
	}

	applyDuration := func(key string, dst *Duration) {
		if v, ok := getEnv(lookup, key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = Duration(d)
			} else {
				errs.Add(EnvPrefix+key, fmt.Sprintf("invalid duration: %q", v))
			}
		}
	}
	applyDuration("DURATION", &cfg.Load.Duration)
	applyDuration("REQUEST_TIMEOUT", &cfg.Timing.RequestTimeout)
	applyDuration("HEALTH_TIMEOUT", &cfg.Health.Timeout)

	applyDelay := func(key string, dst **Duration) {
		if v, ok := getEnv(lookup, key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				dd := Duration(d)
				*dst = &dd
			} else {
				errs.Add(EnvPrefix+key, fmt.Sprintf("invalid duration: %q", v))
			}
		}
	}
	applyDelay("REQUEST_DELAY", &cfg.Timing.RequestDelay)
	applyDelay("ITERATION_DELAY", &cfg.Timing.IterationDelay)

	if v, ok := getEnv(lookup, "HEALTH_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Health.Enabled = &b
		} else {
			errs.Add(EnvPrefix+"HEALTH_ENABLED", fmt.Sprintf("not a boolean: %q", v))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// getEnv returns a trimmed, non-empty value for EnvPrefix+key.
func getEnv(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}
