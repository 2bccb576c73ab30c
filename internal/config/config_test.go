package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
cache:
  grace_period: 30s
views:
  due_soon_window: 24h
backend:
  driver: sqlite
  db_path: /tmp/pf.db
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Cache.GracePeriod.Std())
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval.Std()) // default kept
	assert.Equal(t, 24*time.Hour, cfg.Views.DueSoonWindow.Std())
	assert.Equal(t, "sqlite", cfg.Backend.Driver)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "backend:\n  driver: redis\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown backend driver")
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}
