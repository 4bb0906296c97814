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

	assert.Equal(t, "127.0.0.1:5001", cfg.Server.Addr)
	assert.NotEmpty(t, cfg.Database.Path)
	assert.Equal(t, "https://sponsor.ajay.app", cfg.DeArrow.BaseURL)
	assert.Equal(t, 10, cfg.DeArrow.Workers)
	assert.Equal(t, 5*time.Second, cfg.DeArrow.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.DeArrow.BatchTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = "0.0.0.0:8080"

[database]
path = "/tmp/cache.db"

[dearrow]
workers = 3
request_timeout = "2s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "/tmp/cache.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.DeArrow.Workers)
	assert.Equal(t, 2*time.Second, cfg.DeArrow.RequestTimeout)
	// Untouched sections keep defaults.
	assert.Equal(t, 60*time.Second, cfg.DeArrow.BatchTimeout)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.db"), expandPath("~/x.db"))
	assert.Equal(t, "/abs/x.db", expandPath("/abs/x.db"))
}
