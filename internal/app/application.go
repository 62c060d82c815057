// Package app wires the application components together in dependency
// order: durable slot first, session store on top of it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pollboard/internal/config"
	"pollboard/internal/database"
	"pollboard/internal/store"
)

// Application owns the component lifecycle.
type Application struct {
	config    *config.Config
	logger    *zap.Logger
	dbManager *database.Manager
	session   *store.Store
}

// New initializes all components. The database must be usable before the
// store is constructed, since the store restores its state from it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager, err := database.NewManager(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	if err := dbManager.HealthCheck(ctx); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	session := store.New(ctx, dbManager, logger,
		store.WithSnapshotKey(cfg.Session.SnapshotKey),
		store.WithChatLimit(cfg.Session.ChatHistoryLimit),
		store.WithTickInterval(cfg.Session.TickInterval),
	)

	return &Application{
		config:    cfg,
		logger:    logger,
		dbManager: dbManager,
		session:   session,
	}, nil
}

// Store returns the session store.
func (a *Application) Store() *store.Store {
	return a.session
}

// Config returns the loaded configuration.
func (a *Application) Config() *config.Config {
	return a.config
}

// Stop tears down components in reverse dependency order.
func (a *Application) Stop() error {
	a.session.Close()

	if err := a.dbManager.Close(); err != nil {
		return fmt.Errorf("database shutdown error: %w", err)
	}

	a.logger.Info("application shutdown complete")
	return nil
}
