package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/soaringjerry/stsportal/internal/api"
	"github.com/soaringjerry/stsportal/internal/config"
	dbstore "github.com/soaringjerry/stsportal/internal/db"
	"github.com/soaringjerry/stsportal/internal/services"
)

// openStore connects the configured backend and brings its schema up to
// date. The returned func closes the connection.
func openStore(cfg *config.Config, logger *slog.Logger) (api.Store, func(), error) {
	if cfg.DB.Driver == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		return dbstore.NewMemoryStore(), func() {}, nil
	}
	if cfg.DB.Driver == dbstore.DriverSQLite {
		if err := ensureDir(cfg.DB.DSN); err != nil {
			return nil, nil, err
		}
	}
	gdb, err := dbstore.Open(cfg.DB.Driver, cfg.DB.DSN, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.DB.Driver, err)
	}
	if err := dbstore.Migrate(gdb, cfg.DB.MigrationsDir); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	store, err := dbstore.NewGormStore(gdb)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("database ready", "driver", cfg.DB.Driver)
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close database", "err", err)
		}
	}, nil
}

// ensureDir creates the parent directory of a sqlite file DSN.
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	return nil
}

// bootstrapAdmin creates the first super admin from configuration.
func bootstrapAdmin(ctx context.Context, auth *services.AuthService, admin config.Admin) error {
	if admin.Email == "" {
		return nil
	}
	created, err := auth.EnsureSuperAdmin(ctx, admin.Email, admin.Password)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		slog.Info("created super admin", "email", admin.Email)
	}
	return nil
}
