package routeros

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: 192.0.2.1\nusername: admin\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", cfg.Host)
	assert.Equal(t, 8728, cfg.Port)
	assert.True(t, cfg.Keepalive)
	assert.True(t, cfg.TLS.VerifyHostname)
}

func TestLoadConfigTLSDefaultPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: 192.0.2.1\ntls:\n  enabled: true\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8729, cfg.Port)
}

func TestLoadConfigMissingHost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: admin\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: 192.0.2.1\nport: 1234\n"), 0o600))

	t.Setenv("ROUTEROS_HOST", "198.51.100.2")
	t.Setenv("ROUTEROS_PORT", "8728")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.2", cfg.Host)
	assert.Equal(t, 8728, cfg.Port)
}
