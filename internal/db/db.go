package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/config"
	"github.com/AdamBeresnev/brick-bracket/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const (
	maxOpenConns    = 16
	maxIdleConns    = 4
	connMaxLifetime = time.Hour
)

// Every transaction takes the write lock at BEGIN (_txlock=immediate), so
// writers touching the same tournament run one after another.
const dsnOptions = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

// Open connects to the SQLite file at path.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path+"?"+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", path, err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}

// New opens the configured database and brings the schema up to date.
func New(cfg *config.Config, logger zerolog.Logger) (*sqlx.DB, error) {
	db, err := Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", cfg.DBPath).Msg("database connected")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
