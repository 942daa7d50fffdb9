package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
)

// NewExecutor creates a new executor of the specified type.
//
// Supported types:
//   - "shared-iterations" - a total iteration count shared by all streams
//   - "per-vu-iterations" - the same iteration count on every stream
//   - "constant-vus" - a fixed number of streams for a duration
//
// Returns an uninitialized executor. Call Init() before Run().
func NewExecutor(executorType Type) (Executor, error) {
	switch executorType {
	case TypeSharedIterations:
		return NewSharedIterations(), nil
	case TypePerVUIterations:
		return NewPerVUIterations(), nil
	case TypeConstantVUs:
		return NewConstantVUs(), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", executorType)
	}
}

// CreateAndInitExecutor creates and initializes an executor with the given config.
func CreateAndInitExecutor(ctx context.Context, cfg *Config) (Executor, error) {
	exec, err := NewExecutor(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := exec.Init(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	return exec, nil
}

// CreateExecutorFromLoadConfig bridges the file-level load section to an
// initialized executor.
func CreateExecutorFromLoadConfig(ctx context.Context, name string, lc config.LoadSection) (Executor, *Config, error) {
	execConfig := ConfigFromLoad(name, lc)

	exec, err := CreateAndInitExecutor(ctx, execConfig)
	if err != nil {
		return nil, nil, err
	}

	return exec, execConfig, nil
}

// ConfigFromLoad converts a config.LoadSection to an executor Config.
func ConfigFromLoad(name string, lc config.LoadSection) *Config {
	return &Config{
		Name:       name,
		Type:       Type(lc.Executor),
		VUs:        lc.VUs,
		Iterations: lc.Iterations,
		Duration:   time.Duration(lc.Duration),
	}
}

// IsValidExecutorType returns true if the type is a valid executor type.
func IsValidExecutorType(executorType string) bool {
	switch Type(executorType) {
	case TypeSharedIterations, TypePerVUIterations, TypeConstantVUs:
		return true
	default:
		return false
	}
}

// GetSupportedExecutors returns a list of all supported executor types.
func GetSupportedExecutors() []Type {
	return []Type{
		TypeSharedIterations,
		TypePerVUIterations,
		TypeConstantVUs,
	}
}

// ExecutorDescription provides documentation for an executor type.
type ExecutorDescription struct {
	Type        Type
	Name        string
	Description string
	UseCases    []string
}

// GetExecutorDescription returns documentation for an executor type.
func GetExecutorDescription(executorType Type) *ExecutorDescription {
	switch executorType {
	case TypeSharedIterations:
		return &ExecutorDescription{
			Type:        TypeSharedIterations,
			Name:        "Shared Iterations",
			Description: "Runs a fixed total of iterations, claimed by streams as they become free.",
			UseCases: []string{
				"Cache warmup over a known identifier range",
				"Reproducible request sequences with a single stream",
			},
		}
	case TypePerVUIterations:
		return &ExecutorDescription{
			Type:        TypePerVUIterations,
			Name:        "Per-VU Iterations",
			Description: "Every stream runs the same number of iterations over its own cursor.",
			UseCases: []string{
				"Concurrent warmup with the random strategy",
				"Comparing hit ratios across independent streams",
			},
		}
	case TypeConstantVUs:
		return &ExecutorDescription{
			Type:        TypeConstantVUs,
			Name:        "Constant VUs",
			Description: "Runs a fixed number of streams for a duration, cycling through the pool.",
			UseCases: []string{
				"Soak testing the cache",
				"Hit ratio over time",
			},
		}
	default:
		return nil
	}
}
