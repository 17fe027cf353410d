package cmd

import (
	"context"

	"github.com/kyleking/sqlassist/internal/cache"
	"github.com/kyleking/sqlassist/internal/catalog"
	"github.com/kyleking/sqlassist/internal/config"
	"github.com/kyleking/sqlassist/internal/engine"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/gateway"
	"github.com/kyleking/sqlassist/internal/logging"
	"github.com/kyleking/sqlassist/internal/query"
	"github.com/kyleking/sqlassist/internal/session"
)

// app holds the long-lived components shared by ask, chat and serve
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	catalog *catalog.Catalog
	gateway *gateway.Gateway
	store   session.Store
	engine  *engine.Engine
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}

	return catalog.Load(cfg.Catalog.Path)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.GetLogger()

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Database.DSN == "" {
		return nil, errors.NewConfigError("no database configured", "database.dsn").
			WithSuggestion("pass --db-dsn or set SQLASSIST_DATABASE_URL")
	}

	opts, err := gateway.OptionsFromConfig(cfg.Database)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.Open(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(ctx, cfg.Session)
	if err != nil {
		_ = gw.Close()
		return nil, err
	}

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if !cfg.Cache.Disabled {
		engineOpts = append(engineOpts, engine.WithSQLCache(cache.NewPlanCache(cfg.Cache.Size, config.Duration(cfg.Cache.TTL))))
	}

	limits := query.Limits{DefaultRows: cfg.Limits.DefaultRows, MaxRows: cfg.Limits.MaxRows}

	logger.WithFields(map[string]any{
		"table":   cat.TableName(),
		"driver":  opts.Driver,
		"session": cfg.Session.Backend,
	}).Debug("components ready")

	return &app{
		cfg:     cfg,
		logger:  logger,
		catalog: cat,
		gateway: gw,
		store:   store,
		engine:  engine.New(cat, limits, gw, store, engineOpts...),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close session store")
	}

	if err := a.gateway.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close database")
	}

	_ = a.logger.Close()
}
