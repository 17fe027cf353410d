package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/kyleking/sqlassist/internal/errors"
)

const envPrefix = "SQLASSIST_"

// Config represents the application configuration
type Config struct {
	Catalog  CatalogConfig  `json:"catalog"`
	Limits   LimitsConfig   `json:"limits"`
	Database DatabaseConfig `json:"database"`
	Session  SessionConfig  `json:"session"`
	Cache    CacheConfig    `json:"cache"`
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
}

// CatalogConfig points at the table definition. An empty path selects the
// built-in ccod_bal catalog.
type CatalogConfig struct {
	Path string `json:"path" env:"CATALOG_PATH"`
}

// LimitsConfig bounds the size of generated queries
type LimitsConfig struct {
	DefaultRows int `json:"default_rows" env:"DEFAULT_ROWS" envDefault:"100"`
	MaxRows     int `json:"max_rows"     env:"MAX_ROWS"     envDefault:"1000"`
}

// DatabaseConfig represents the read-only target database
type DatabaseConfig struct {
	Driver          string `json:"driver"             env:"DB_DRIVER"             envDefault:"pgx"` // pgx, duckdb, sqlite3
	DSN             string `json:"dsn"                env:"DATABASE_URL"`
	MaxConnections  int    `json:"max_connections"    env:"DB_MAX_CONNECTIONS"    envDefault:"10"`
	MaxIdleConns    int    `json:"max_idle_conns"     env:"DB_MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime string `json:"conn_max_lifetime"  env:"DB_CONN_MAX_LIFETIME"  envDefault:"30m"`
	ConnMaxIdleTime string `json:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	QueryTimeout    string `json:"query_timeout"      env:"DB_QUERY_TIMEOUT"      envDefault:"10s"`
	ResultRowCap    int    `json:"result_row_cap"     env:"DB_RESULT_ROW_CAP"     envDefault:"1000"`
	ReadOnlyTx      *bool  `json:"read_only_tx"       env:"DB_READ_ONLY_TX"`
}

// SessionConfig selects the conversation store backend
type SessionConfig struct {
	Backend string `json:"backend" env:"SESSION_BACKEND" envDefault:"memory"` // memory, duckdb, sqlite3
	DSN     string `json:"dsn"     env:"SESSION_DSN"     envDefault:"~/.local/share/sqlassist/sessions.db"`
}

// CacheConfig configures the compiled SQL cache keyed by plan shape
type CacheConfig struct {
	Disabled bool   `json:"disabled" env:"PLAN_CACHE_DISABLED"`
	Size     int    `json:"size"     env:"PLAN_CACHE_SIZE"     envDefault:"256"`
	TTL      string `json:"ttl"      env:"PLAN_CACHE_TTL"      envDefault:"10m"`
}

// ServerConfig represents the HTTP listener
type ServerConfig struct {
	Addr            string `json:"addr"             env:"SERVER_ADDR"             envDefault:":8000"`
	ReadTimeout     string `json:"read_timeout"     env:"SERVER_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    string `json:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    envDefault:"60s"`
	IdleTimeout     string `json:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     envDefault:"120s"`
	ShutdownTimeout string `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes    int64  `json:"max_body_bytes"   env:"SERVER_MAX_BODY_BYTES"   envDefault:"65536"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `json:"level"      env:"LOG_LEVEL"      envDefault:"info"`                                  // debug, info, warn, error
	Format    string `json:"format"     env:"LOG_FORMAT"     envDefault:"text"`                                  // text, json
	Output    string `json:"output"     env:"LOG_OUTPUT"     envDefault:"stderr"`                                // stdout, stderr, file
	File      string `json:"file"       env:"LOG_FILE"       envDefault:"~/.local/share/sqlassist/logs/app.log"` // log file path when output is file
	AddSource bool   `json:"add_source" env:"LOG_ADD_SOURCE" envDefault:"false"`                                 // add caller file and line to entries
}

// DefaultConfig returns the configuration produced by the envDefault tags alone
func DefaultConfig() *Config {
	cfg := &Config{}
	// Only fails on malformed tags, which would be caught by tests.
	_ = env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix, Environment: map[string]string{}})

	return cfg
}

// LoadConfig loads configuration from file, environment variables, and command-line flags
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides
func LoadConfigWithOverrides(flagOverrides map[string]any) (*Config, error) {
	config := DefaultConfig()

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeConfig, "failed to load config file")
		}
	}

	if err := applyEnvironmentOverrides(config); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "failed to parse environment variables")
	}

	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	config.ExpandAllPaths()

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig)

	return nil
}

// applyEnvironmentOverrides lets explicitly set variables win over file values.
// Unset variables leave the current values alone.
func applyEnvironmentOverrides(config *Config) error {
	var fromEnv Config
	if err := env.ParseWithOptions(&fromEnv, env.Options{
		Prefix:              envPrefix,
		Environment:         setVariables(),
		DefaultValueTagName: "envFileDefault",
	}); err != nil {
		return err
	}

	mergeConfigs(config, &fromEnv)

	return nil
}

// setVariables returns only the prefixed variables present in the process
// environment. Defaults are read from a tag that does not exist so they cannot
// clobber file settings.
func setVariables() map[string]string {
	vars := make(map[string]string)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, envPrefix) {
			vars[key] = value
		}
	}

	return vars
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]any) {
	for key, value := range overrides {
		switch key {
		case "db-dsn":
			if str, ok := value.(string); ok && str != "" {
				config.Database.DSN = str
			}
		case "db-driver":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Driver = str
			}
		case "catalog":
			if str, ok := value.(string); ok && str != "" {
				config.Catalog.Path = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "verbose":
			if b, ok := value.(bool); ok && b {
				config.Logging.Level = "debug"
			}
		case "session-backend":
			if str, ok := value.(string); ok && str != "" {
				config.Session.Backend = str
			}
		case "addr":
			if str, ok := value.(string); ok && str != "" {
				config.Server.Addr = str
			}
		}
	}
}

// mergeConfigs copies every non-zero field of source into target. Booleans
// only ever switch on; pointers are copied when set.
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		switch {
		case t.Kind() == reflect.Struct:
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		case !s.IsZero():
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return errors.NewConfigError(
			fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level),
			"logging.level",
		)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return errors.NewConfigError(
			fmt.Sprintf("invalid log format: %s (must be text or json)", config.Logging.Format),
			"logging.format",
		)
	}

	validLogOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return errors.NewConfigError(
			fmt.Sprintf("invalid log output: %s (must be stdout, stderr, or file)", config.Logging.Output),
			"logging.output",
		)
	}

	validDrivers := map[string]bool{"pgx": true, "duckdb": true, "sqlite3": true}
	if !validDrivers[config.Database.Driver] {
		return errors.NewConfigError(
			fmt.Sprintf("invalid database driver: %s (must be pgx, duckdb, or sqlite3)", config.Database.Driver),
			"database.driver",
		)
	}

	validBackends := map[string]bool{"memory": true, "duckdb": true, "sqlite3": true}
	if !validBackends[config.Session.Backend] {
		return errors.NewConfigError(
			fmt.Sprintf("invalid session backend: %s (must be memory, duckdb, or sqlite3)", config.Session.Backend),
			"session.backend",
		)
	}

	durations := map[string]string{
		"database.query_timeout":      config.Database.QueryTimeout,
		"database.conn_max_lifetime":  config.Database.ConnMaxLifetime,
		"database.conn_max_idle_time": config.Database.ConnMaxIdleTime,
		"cache.ttl":                   config.Cache.TTL,
		"server.read_timeout":         config.Server.ReadTimeout,
		"server.write_timeout":        config.Server.WriteTimeout,
		"server.idle_timeout":         config.Server.IdleTimeout,
		"server.shutdown_timeout":     config.Server.ShutdownTimeout,
	}
	for field, value := range durations {
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return errors.NewConfigError(fmt.Sprintf("invalid duration: %q", value), field)
		}
	}

	if config.Limits.DefaultRows <= 0 {
		return errors.NewConfigError(
			fmt.Sprintf("default row limit must be positive: %d", config.Limits.DefaultRows),
			"limits.default_rows",
		)
	}

	if config.Limits.MaxRows < config.Limits.DefaultRows {
		return errors.NewConfigError(
			fmt.Sprintf("max rows (%d) must be at least default rows (%d)",
				config.Limits.MaxRows, config.Limits.DefaultRows),
			"limits.max_rows",
		)
	}

	if config.Database.MaxConnections <= 0 {
		return errors.NewConfigError(
			fmt.Sprintf("database max connections must be positive: %d", config.Database.MaxConnections),
			"database.max_connections",
		)
	}

	if config.Database.ResultRowCap <= 0 {
		return errors.NewConfigError(
			fmt.Sprintf("result row cap must be positive: %d", config.Database.ResultRowCap),
			"database.result_row_cap",
		)
	}

	if !config.Cache.Disabled && config.Cache.Size <= 0 {
		return errors.NewConfigError(
			fmt.Sprintf("plan cache size must be positive: %d", config.Cache.Size),
			"cache.size",
		)
	}

	return nil
}

// Duration parses a validated duration field. Invalid values yield zero.
func Duration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}

	return d
}

// ReadOnlyTransactions reports whether statements run inside a read-only
// transaction. Unless set explicitly this is on for every driver except
// duckdb, which rejects read-only transaction options and relies on
// access_mode=READ_ONLY in its DSN instead.
func (d DatabaseConfig) ReadOnlyTransactions() bool {
	if d.ReadOnlyTx != nil {
		return *d.ReadOnlyTx
	}

	return d.Driver != "duckdb"
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPath returns the path of the configuration file, honoring
// SQLASSIST_CONFIG
func ConfigPath() string {
	return getConfigPath()
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv(envPrefix + "CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	return filepath.Join(GetConfigDir(), "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Catalog.Path = expandPath(c.Catalog.Path)
	c.Logging.File = expandPath(c.Logging.File)

	if c.Session.Backend != "memory" {
		c.Session.DSN = expandPath(c.Session.DSN)
	}
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".config/sqlassist"
	}

	return filepath.Join(homeDir, ".config", "sqlassist")
}
