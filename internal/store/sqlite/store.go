// Package sqlite persists the library in an embedded SQLite database.
//
// Every multi-statement write runs in one transaction; transactions are
// short and are never held across a provider call.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// BackupSuffix is appended to the database path to name its backup.
const BackupSuffix = "_backup"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Queries holds the typed accessors. On a Store they run against the pool;
// inside InTx they run against the transaction.
type Queries struct {
	q    querier
	inTx bool
}

// Store provides SQLite-backed persistence for the library.
type Store struct {
	*Queries
	db      *sql.DB
	path    string
	version uint
	logger  *slog.Logger
}

func dsn(path string) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
		"_pragma=busy_timeout(10000)",
		"_pragma=synchronous(NORMAL)",
		"_txlock=immediate",
	}
	return path + "?" + strings.Join(pragmas, "&")
}

// Open opens (or creates) the database at path. An existing file that fails
// the integrity check is replaced by its backup before migrations run.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeFilesystem, "create database directory")
	}

	if _, err := os.Stat(path); err == nil {
		if err := checkFile(path); err != nil {
			logger.Error("database failed integrity check, restoring backup", "path", path, "error", err)
			if err := restoreBackup(path); err != nil {
				return nil, errors.Wrap(err, errors.CodeDatabase, "restore database backup")
			}
			if err := checkFile(path); err != nil {
				return nil, errors.Wrap(err, errors.CodeDatabase, "restored database is corrupt")
			}
			logger.Warn("database restored from backup", "path", path)
		}
	}

	version, err := migrateUp(dsn(path), logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "migrate database")
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "open sqlite")
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodeDatabase, "ping sqlite")
	}

	return &Store{
		Queries: &Queries{q: db},
		db:      db,
		path:    path,
		version: version,
		logger:  logger,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SchemaVersion returns the migration version applied at open.
func (s *Store) SchemaVersion() uint {
	return s.version
}

// DB exposes the pool for diagnostics and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InTx runs fn in a transaction, committing if fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "begin transaction")
	}
	if err := fn(&Queries{q: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "commit transaction")
	}
	return nil
}

// IntegrityCheck runs PRAGMA integrity_check.
func (s *Store) IntegrityCheck(ctx context.Context) error {
	return integrityCheck(ctx, s.db)
}

// Backup snapshots the database to <path>_backup once the integrity check passes.
func (s *Store) Backup(ctx context.Context) error {
	if err := s.IntegrityCheck(ctx); err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "refusing to back up a corrupt database")
	}

	dst := s.path + BackupSuffix
	tmp := dst + ".tmp"
	_ = os.Remove(tmp)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", tmp); err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "vacuum into backup")
	}
	if err := os.Rename(tmp, dst); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "move backup into place")
	}
	s.logger.Info("database backed up", "path", dst)
	return nil
}

func checkFile(path string) error {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return err
	}
	defer db.Close()
	return integrityCheck(context.Background(), db)
}

func integrityCheck(ctx context.Context, db *sql.DB) error {
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

func restoreBackup(path string) error {
	backup := path + BackupSuffix
	data, err := os.ReadFile(backup) //#nosec G304 -- sibling of the configured database
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	tmp := path + ".restore"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// mapError turns driver errors into domain errors.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFoundf("%s not found", what)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return errors.Wrapf(err, errors.CodeConflict, "%s already exists", what)
	}
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return errors.Wrapf(err, errors.CodeConflict, "%s references a missing row", what)
	}
	return errors.Wrapf(err, errors.CodeDatabase, "%s", what)
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime formats a time.Time in UTC for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const dateLayout = "2006-01-02"

func parseNullableDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTimeString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(dateLayout), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
