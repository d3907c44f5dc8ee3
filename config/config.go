// Package config holds the engine's runtime configuration, adapted from
// the teacher's pipeline.PipelineRuntimeConfig: a plain struct with
// sensible defaults, a validating constructor, and YAML loading.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig configures the Interpreter and Reload controller. All
// fields have defaults and are optional.
type EngineConfig struct {
	// MaxConcurrentBatches limits concurrent Process calls (spec.md §5).
	// Default: 100.
	MaxConcurrentBatches int `yaml:"max_concurrent_batches"`

	// ReloadDebounceInterval is the minimum interval between the start of
	// successive reloads (spec.md §4.7). Default: 2s.
	ReloadDebounceInterval time.Duration `yaml:"reload_debounce_interval"`

	// GracefulShutdownTimeout bounds how long Shutdown waits for in-flight
	// batches. Default: 10s.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// DefaultStreamID overrides the reserved "default" stream id
	// (spec.md §3, §6). Default: "default".
	DefaultStreamID string `yaml:"default_stream_id"`
}

// DefaultEngineConfig returns an EngineConfig with sensible default values.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxConcurrentBatches:    100,
		ReloadDebounceInterval:  2 * time.Second,
		GracefulShutdownTimeout: 10 * time.Second,
		DefaultStreamID:         "default",
	}
}

// Validated returns config merged with defaults for any zero-valued field,
// or an error if config contains a negative value. A nil config yields the
// defaults.
func Validated(config *EngineConfig) (*EngineConfig, error) {
	if config == nil {
		return DefaultEngineConfig(), nil
	}
	if config.MaxConcurrentBatches < 0 {
		return nil, fmt.Errorf("invalid engine config: max_concurrent_batches must be non-negative, got %d", config.MaxConcurrentBatches)
	}
	if config.ReloadDebounceInterval < 0 {
		return nil, fmt.Errorf("invalid engine config: reload_debounce_interval must be non-negative, got %s", config.ReloadDebounceInterval)
	}
	if config.GracefulShutdownTimeout < 0 {
		return nil, fmt.Errorf("invalid engine config: graceful_shutdown_timeout must be non-negative, got %s", config.GracefulShutdownTimeout)
	}

	defaults := DefaultEngineConfig()
	merged := *config
	if merged.MaxConcurrentBatches == 0 {
		merged.MaxConcurrentBatches = defaults.MaxConcurrentBatches
	}
	if merged.ReloadDebounceInterval == 0 {
		merged.ReloadDebounceInterval = defaults.ReloadDebounceInterval
	}
	if merged.GracefulShutdownTimeout == 0 {
		merged.GracefulShutdownTimeout = defaults.GracefulShutdownTimeout
	}
	if merged.DefaultStreamID == "" {
		merged.DefaultStreamID = defaults.DefaultStreamID
	}
	return &merged, nil
}

// Load reads and validates an EngineConfig from a YAML file at path.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine config %s: %w", path, err)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing engine config %s: %w", path, err)
	}
	return Validated(&cfg)
}
