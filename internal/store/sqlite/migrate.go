package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateUp applies pending migrations. The migrate driver closes the
// *sql.DB it is given, so it runs on a dedicated handle.
func migrateUp(dsn string, logger *slog.Logger) (uint, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return 0, fmt.Errorf("migration: open: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("migration: source: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("migration: driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("migration: init: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Error("migration source close failed", "error", srcErr)
		}
		if dbErr != nil {
			logger.Error("migration db close failed", "error", dbErr)
		}
	}()
	m.Log = &migrateLogger{logger: logger}

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("migration: current version: %w", err)
	}
	if dirty {
		return from, fmt.Errorf("migration: database is dirty at version %d", from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return from, fmt.Errorf("migration: up: %w", err)
	}

	to, _, err := m.Version()
	if err != nil {
		return from, fmt.Errorf("migration: new version: %w", err)
	}
	if to != from {
		logger.Info("database migrated", "from_version", from, "to_version", to)
	}
	return to, nil
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
