package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Solve.MaxIterations)
	assert.Equal(t, 1e-6, cfg.Solve.ToleranceAbs)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.PrometheusEnabled)
}

func TestLoadYAML(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
solve:
  maxIterations: 25
  workers: 2
logging:
  level: debug
metrics:
  prometheusEnabled: true
  prometheusPort: 9102
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Solve.MaxIterations)
	assert.Equal(t, 2, cfg.Solve.Workers)
	// Unset fields still get defaults.
	assert.Equal(t, 1e-6, cfg.Solve.ToleranceRel)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.PrometheusEnabled)
	assert.Equal(t, 9102, cfg.Metrics.PrometheusPort)
}

func TestLoadJSON(t *testing.T) {
	path := writeTemp(t, "config.json", `{"solve": {"maxIterations": 7}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Solve.MaxIterations)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeTemp(t, "config.yaml", "solve:\n  workers: 2\n")
	t.Setenv("FLOC_SOLVE__WORKERS", "5")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Solve.Workers)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := writeTemp(t, "config.toml", "solve = 1")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeTemp(t, "config.yaml", "solve:\n  maxIterations: -1\n")
	_, err := Load(path)
	require.Error(t, err)

	path = writeTemp(t, "config.yaml", "logging:\n  level: noisy\n")
	_, err = Load(path)
	require.Error(t, err)
}
