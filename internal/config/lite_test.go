package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Positive(t, cfg.Workers)
	assert.True(t, cfg.EvaluationDate.IsZero())
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("UACR_DATA_DIR", "/tmp/test-uacr")
	t.Setenv("UACR_WORKERS", "3")
	t.Setenv("UACR_EVALUATION_DATE", "2025-06-30")
	t.Setenv("UACR_CACHE_MAX_ITEMS", "500")
	t.Setenv("UACR_CACHE_TTL", "12h")
	t.Setenv("UACR_LOG_LEVEL", "debug")
	t.Setenv("UACR_LOG_FORMAT", "text")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-uacr", cfg.DataDir)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "2025-06-30", cfg.EvaluationDate.String())
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("UACR_WORKERS", "-2")
	t.Setenv("UACR_EVALUATION_DATE", "someday")
	t.Setenv("UACR_CACHE_TTL", "forever")

	cfg := LoadLiteConfig()

	assert.Positive(t, cfg.Workers)
	assert.True(t, cfg.EvaluationDate.IsZero())
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.uacr-monitor"}

	assert.Equal(t, "/home/user/.uacr-monitor/alerts.db", cfg.AlertDBPath())
	assert.Equal(t, "/home/user/.uacr-monitor/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "uacr")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"UACR_DATA_DIR",
		"UACR_WORKERS",
		"UACR_EVALUATION_DATE",
		"UACR_CACHE_MAX_ITEMS",
		"UACR_CACHE_TTL",
		"UACR_LOG_LEVEL",
		"UACR_LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}
