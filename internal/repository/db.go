package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	postgres_migrate "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hxuan190/swap-engine/internal/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// sqlitePragmas are applied on every sqlite connection.
var sqlitePragmas = []string{
	"foreign_keys=on",
	"journal_mode=WAL",
	"busy_timeout=5000",
}

// DB wraps the connection pool with the dialect it was opened with.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the configured database and applies pending migrations
// unless SkipMigrations is set.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	var (
		raw *sql.DB
		err error
	)
	switch cfg.Driver {
	case config.DriverSqlite:
		if dir := filepath.Dir(cfg.File); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		opts := make(url.Values)
		for _, p := range sqlitePragmas {
			opts.Add("_pragma", p)
		}
		raw, err = sql.Open("sqlite", fmt.Sprintf("%s?%s", cfg.File, opts.Encode()))
		if err != nil {
			return nil, err
		}
		// One writer at a time keeps sqlite from returning SQLITE_BUSY.
		raw.SetMaxOpenConns(1)

	case config.DriverPostgres:
		log.Info().Str("dsn", cfg.DSN(true)).Msg("[repository] using postgres")
		raw, err = sql.Open("pgx", cfg.DSN(false))
		if err != nil {
			return nil, err
		}
		if cfg.MaxOpenConnections > 0 {
			raw.SetMaxOpenConns(cfg.MaxOpenConnections)
		}

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db := &DB{DB: raw, driver: cfg.Driver}
	if !cfg.SkipMigrations {
		if err := db.Migrate(cfg); err != nil {
			_ = raw.Close()
			return nil, err
		}
	}
	return db, nil
}

// Migrate applies every embedded migration that has not run yet.
func (db *DB) Migrate(cfg *config.DatabaseConfig) error {
	m, err := db.migrator(cfg)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("[repository] schema up to date")
	return nil
}

// MigrateDown rolls back steps migrations.
func (db *DB) MigrateDown(cfg *config.DatabaseConfig, steps int) error {
	m, err := db.migrator(cfg)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

func (db *DB) migrator(cfg *config.DatabaseConfig) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}

	var (
		driver database.Driver
		name   string
	)
	switch db.driver {
	case config.DriverSqlite:
		driver, err = sqlite_migrate.WithInstance(db.DB, &sqlite_migrate.Config{})
		name = "sqlite"
	case config.DriverPostgres:
		driver, err = postgres_migrate.WithInstance(db.DB, &postgres_migrate.Config{})
		name = cfg.DBName
	}
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", src, name, driver)
}

// ExecTx runs body inside a database transaction. Rollback after a
// successful commit is a no-op.
func (db *DB) ExecTx(ctx context.Context, body func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint: errcheck

	if err := body(tx); err != nil {
		return err
	}
	return tx.Commit()
}
