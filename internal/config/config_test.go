package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/sqlassist/internal/errors"
)

func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("SQLASSIST_CONFIG", filepath.Join(dir, "config.json"))

	return dir
}

func writeConfigFile(t *testing.T, path string, content map[string]any) {
	t.Helper()

	data, err := json.MarshalIndent(content, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100, cfg.Limits.DefaultRows)
	assert.Equal(t, 1000, cfg.Limits.MaxRows)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "10s", cfg.Database.QueryTimeout)
	assert.Equal(t, 1000, cfg.Database.ResultRowCap)
	assert.Nil(t, cfg.Database.ReadOnlyTx)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.False(t, cfg.Cache.Disabled)
	assert.Equal(t, 256, cfg.Cache.Size)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
}

func TestLoadConfigFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeConfigFile(t, configPath, map[string]any{
		"limits": map[string]any{"default_rows": 10},
		"database": map[string]any{
			"driver":        "duckdb",
			"dsn":           "/data/demo.duckdb?access_mode=READ_ONLY",
			"query_timeout": "3s",
		},
		"logging": map[string]any{"level": "debug", "format": "json"},
	})

	config := DefaultConfig()
	require.NoError(t, loadConfigFromFile(config, configPath))

	assert.Equal(t, 10, config.Limits.DefaultRows)
	assert.Equal(t, 1000, config.Limits.MaxRows, "unset fields keep defaults")
	assert.Equal(t, "duckdb", config.Database.Driver)
	assert.Equal(t, "/data/demo.duckdb?access_mode=READ_ONLY", config.Database.DSN)
	assert.Equal(t, "3s", config.Database.QueryTimeout)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
}

func TestLoadConfigFromFileInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0600))

	err := loadConfigFromFile(DefaultConfig(), configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := isolate(t)
	writeConfigFile(t, filepath.Join(dir, "config.json"), map[string]any{
		"database": map[string]any{"driver": "duckdb", "query_timeout": "3s"},
		"logging":  map[string]any{"level": "warn"},
	})

	t.Setenv("SQLASSIST_DB_QUERY_TIMEOUT", "7s")
	t.Setenv("SQLASSIST_MAX_ROWS", "500")
	t.Setenv("SQLASSIST_DB_READ_ONLY_TX", "true")

	cfg, err := LoadConfigWithOverrides(map[string]any{"log-level": "error"})
	require.NoError(t, err)

	assert.Equal(t, "duckdb", cfg.Database.Driver, "file value survives")
	assert.Equal(t, "7s", cfg.Database.QueryTimeout, "env beats file")
	assert.Equal(t, 500, cfg.Limits.MaxRows)
	assert.Equal(t, "error", cfg.Logging.Level, "flag beats file")
	require.NotNil(t, cfg.Database.ReadOnlyTx)
	assert.True(t, cfg.Database.ReadOnlyTransactions())
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := DefaultConfig()
	applyFlagOverrides(cfg, map[string]any{
		"db-dsn":          "postgres://ro@localhost/bank",
		"db-driver":       "sqlite3",
		"catalog":         "/etc/sqlassist/catalog.json",
		"verbose":         true,
		"session-backend": "duckdb",
		"addr":            ":9000",
		"unknown":         42,
	})

	assert.Equal(t, "postgres://ro@localhost/bank", cfg.Database.DSN)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "/etc/sqlassist/catalog.json", cfg.Catalog.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "duckdb", cfg.Session.Backend)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"bad session backend", func(c *Config) { c.Session.Backend = "redis" }, "session.backend"},
		{"bad timeout", func(c *Config) { c.Database.QueryTimeout = "soon" }, "database.query_timeout"},
		{"zero default rows", func(c *Config) { c.Limits.DefaultRows = 0 }, "limits.default_rows"},
		{"max below default", func(c *Config) { c.Limits.MaxRows = 50 }, "limits.max_rows"},
		{"no connections", func(c *Config) { c.Database.MaxConnections = 0 }, "database.max_connections"},
		{"zero row cap", func(c *Config) { c.Database.ResultRowCap = 0 }, "database.result_row_cap"},
		{"zero cache size", func(c *Config) { c.Cache.Size = 0 }, "cache.size"},
	}

	require.NoError(t, validateConfig(DefaultConfig()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := validateConfig(cfg)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDisabledCacheSkipsSizeCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Disabled = true
	cfg.Cache.Size = 0

	assert.NoError(t, validateConfig(cfg))
}

func TestReadOnlyTransactions(t *testing.T) {
	off := false

	assert.True(t, DatabaseConfig{Driver: "pgx"}.ReadOnlyTransactions())
	assert.True(t, DatabaseConfig{Driver: "sqlite3"}.ReadOnlyTransactions())
	assert.False(t, DatabaseConfig{Driver: "duckdb"}.ReadOnlyTransactions())
	assert.False(t, DatabaseConfig{Driver: "pgx", ReadOnlyTx: &off}.ReadOnlyTransactions())
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s"))
	assert.Equal(t, time.Duration(0), Duration("nope"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, expandPath("~"))
	assert.Equal(t, filepath.Join(home, "x", "y"), expandPath("~/x/y"))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
}

func TestSaveConfigRoundTrip(t *testing.T) {
	isolate(t)

	cfg := DefaultConfig()
	cfg.Database.DSN = "postgres://ro@db/bank"
	require.NoError(t, SaveConfig(cfg))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://ro@db/bank", loaded.Database.DSN)
}
