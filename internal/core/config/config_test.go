package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"), "/tmp/data")
	require.NoError(t, err)

	assert.Equal(t, BackendAuto, cfg.Storage.Backend)
	assert.Equal(t, 10, cfg.Storage.MaxOpenConns)
	assert.Equal(t, 5, cfg.Storage.MaxIdleConns)
	assert.Equal(t, 5000, cfg.Storage.BusyTimeout)
	assert.Equal(t, "/tmp/data", cfg.DataDir)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("", "/tmp/data")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Storage, cfg.Storage)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: memory
  max_open_conns: 3
`)

	cfg, err := Load(path, "/tmp/data")
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 3, cfg.Storage.MaxOpenConns)
	// Unset fields fall back to defaults
	assert.Equal(t, 5, cfg.Storage.MaxIdleConns)
	assert.Equal(t, 5000, cfg.Storage.BusyTimeout)
}

func TestLoad_DataDirNotOverridableFromFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: sqlite
`)

	cfg, err := Load(path, "/expected/data")
	require.NoError(t, err)
	assert.Equal(t, "/expected/data", cfg.DataDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "storage: [not a map")

	_, err := Load(path, "/tmp/data")
	assert.Error(t, err)
}

func TestLoad_UnknownBackend(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: postgres
`)

	_, err := Load(path, "/tmp/data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/data"
	assert.NoError(t, cfg.Validate())

	cfg.DataDir = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DataDir = "/tmp/data"
	cfg.Storage.MaxOpenConns = 0
	assert.Error(t, cfg.Validate())
}
