package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.SocketDir)
	assert.Equal(t, "0600", cfg.SocketPermissions)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.WatchdogEnabled)
	assert.Equal(t, 1000, cfg.ProbeTimeoutMillis)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level": "debug"}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NotEmpty(t, cfg.SocketDir)
	assert.Equal(t, "0600", cfg.SocketPermissions)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.json")

	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	cfg.SocketDir = filepath.Join(dir, "sockets")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestFileMode(t *testing.T) {
	tests := []struct {
		perms string
		want  os.FileMode
	}{
		{"0600", 0600},
		{"0660", 0660},
		{"0777", 0777},
		{"", 0600},
		{"not-a-mode", 0600},
	}

	for _, tt := range tests {
		cfg := &Config{SocketPermissions: tt.perms}
		assert.Equal(t, tt.want, cfg.FileMode(), "perms %q", tt.perms)
	}
}
