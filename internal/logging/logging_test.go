package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	log := New(path, "debug")
	log.Info("capture started", zap.String("iface", "eth0"))
	require.NoError(t, log.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"capture started"`)
	assert.Contains(t, string(content), `"iface":"eth0"`)
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	log := New(path, "chatty")
	log.Debug("suppressed")
	log.Info("kept")
	require.NoError(t, log.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "suppressed")
	assert.Contains(t, string(content), "kept")
}
