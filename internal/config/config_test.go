package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int32(1600), cfg.SnapLen)
	assert.True(t, cfg.Promiscuous)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
	assert.Equal(t, 256, cfg.EventBuffer)
	assert.Equal(t, 5*time.Second, cfg.SweepFloor)
	assert.Equal(t, "neighwatch.log", cfg.LogFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.ShowVirtual)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := "snaplen: 2048\nlog_level: debug\nsweep_floor: 10s\nshow_virtual: true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int32(2048), cfg.SnapLen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.SweepFloor)
	assert.True(t, cfg.ShowVirtual)
	assert.Equal(t, time.Second, cfg.ReadTimeout, "unset keys keep their defaults")
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("NEIGHWATCH_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}
