package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FLOW_CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.True(t, cfg.Store.Seed)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 9090
store:
  driver: sqlite
  dsn: /tmp/flow.db
  seed: false
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("FLOW_CONFIG_PATH", path)
	t.Setenv("FLOW_SERVER_PORT", "9191")
	t.Setenv("FLOW_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/flow.db", cfg.Store.DSN)
	assert.False(t, cfg.Store.Seed)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("Bad port", func(t *testing.T) {
		t.Setenv("FLOW_SERVER_PORT", "eighty")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Unknown driver", func(t *testing.T) {
		t.Setenv("FLOW_STORE_DRIVER", "mongo")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Postgres without dsn", func(t *testing.T) {
		t.Setenv("FLOW_STORE_DRIVER", DriverPostgres)
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Bad seed flag", func(t *testing.T) {
		t.Setenv("FLOW_STORE_SEED", "maybe")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		t.Setenv("FLOW_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadExampleFile(t *testing.T) {
	t.Setenv("FLOW_CONFIG_PATH", filepath.Join("..", "..", "config.example.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "flow.db", cfg.Store.DSN)
}
