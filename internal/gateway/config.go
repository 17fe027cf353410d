package gateway

import (
	"fmt"
	"time"

	"github.com/kyleking/sqlassist/internal/config"
)

// Options configures the connection pool and per-statement limits
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
	RowCap          int
	ReadOnlyTx      bool
}

// OptionsFromConfig converts the database section of the configuration
func OptionsFromConfig(cfg config.DatabaseConfig) (Options, error) {
	queryTimeout, err := time.ParseDuration(cfg.QueryTimeout)
	if err != nil {
		return Options{}, fmt.Errorf("invalid query_timeout: %w", err)
	}

	lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
	if err != nil {
		return Options{}, fmt.Errorf("invalid conn_max_lifetime: %w", err)
	}

	idle, err := time.ParseDuration(cfg.ConnMaxIdleTime)
	if err != nil {
		return Options{}, fmt.Errorf("invalid conn_max_idle_time: %w", err)
	}

	return Options{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxConnections,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: lifetime,
		ConnMaxIdleTime: idle,
		QueryTimeout:    queryTimeout,
		RowCap:          cfg.ResultRowCap,
		ReadOnlyTx:      cfg.ReadOnlyTransactions(),
	}, nil
}
