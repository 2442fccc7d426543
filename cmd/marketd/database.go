package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/marketplace/internal/config"
	"github.com/MarkoPoloResearchLab/marketplace/internal/healthserver"
	"github.com/MarkoPoloResearchLab/marketplace/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/marketplace/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	driverPostgres    = "postgres"
	driverSQLite      = "sqlite"
	defaultSQLiteFile = "marketplace.db"
)

// backend is an opened store together with its health probe and cleanup.
type backend struct {
	store   marketplace.Store
	pinger  healthserver.Pinger
	cleanup func()
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	if cfg.StoreDriver == config.StoreDriverPgx {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return backend{}, fmt.Errorf("pgx pool: %w", err)
		}
		store := pgstore.New(pool, pgstore.WithLockTimeout(cfg.LockTimeout))
		return backend{store: store, pinger: store, cleanup: pool.Close}, nil
	}

	db, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return backend{}, fmt.Errorf("database open: %w", err)
	}
	if driver == driverSQLite {
		if err := gormstore.Migrate(db); err != nil {
			_ = cleanup()
			return backend{}, fmt.Errorf("auto migrate: %w", err)
		}
	}
	store := gormstore.New(db, gormstore.WithLockTimeout(cfg.LockTimeout))
	return backend{store: store, pinger: store, cleanup: func() { _ = cleanup() }}, nil
}

func runMigrations(ctx context.Context, cfg config.Config) error {
	if cfg.StoreDriver == config.StoreDriverPgx {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("pgx pool: %w", err)
		}
		defer pool.Close()
		return pgstore.EnsureSchema(ctx, pool)
	}
	db, cleanup, _, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	if err := gormstore.Migrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// openDatabase opens dsn with GORM. SQLite handles are limited to one
// connection so writers queue instead of failing with SQLITE_BUSY.
func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	switch driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	if driver == driverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if config.IsPostgresURL(dsn) {
		return driverPostgres, "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return driverSQLite, sqlitePath, err
	}
	sqlitePath, err := normalizeSQLitePath(dsn)
	return driverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
