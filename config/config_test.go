package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/config"
)

func TestValidated_NilUsesDefaults(t *testing.T) {
	cfg, err := config.Validated(nil)
	require.NoError(t, err)
	require.Equal(t, config.DefaultEngineConfig(), cfg)
}

func TestValidated_ZeroFieldsFillDefaults(t *testing.T) {
	cfg, err := config.Validated(&config.EngineConfig{MaxConcurrentBatches: 5})
	require.NoError(t, err)
	require.Equal(t, 5, cfg.MaxConcurrentBatches)
	require.Equal(t, 2*time.Second, cfg.ReloadDebounceInterval)
	require.Equal(t, "default", cfg.DefaultStreamID)
}

func TestValidated_NegativeRejected(t *testing.T) {
	_, err := config.Validated(&config.EngineConfig{MaxConcurrentBatches: -1})
	require.Error(t, err)
}

func TestLoad_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_concurrent_batches: 16
default_stream_id: inbox
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.MaxConcurrentBatches)
	require.Equal(t, "inbox", cfg.DefaultStreamID)
	require.Equal(t, 10*time.Second, cfg.GracefulShutdownTimeout)
}
