package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageguard/internal/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 500, c.Detector.ScanIntervalMS)
	assert.Equal(t, 20, c.Detector.MaxAttempts)
	assert.Equal(t, 300, c.SearchTTLSeconds)
	assert.Equal(t, "credential.key", c.CredentialFile)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("detector:\n  scanIntervalMS: 100\nblockURL: https://x/blocked\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, c.Detector.ScanIntervalMS)
	assert.Equal(t, "https://x/blocked", c.BlockURL)
	// untouched keys keep their defaults
	assert.Equal(t, 250, c.Detector.VerifyDelayMS)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detector: [broken"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
