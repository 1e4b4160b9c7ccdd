package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/apperror"
)

//go:embed migrations/001_initial.sql
var migration string

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories are built on it so the ingestion driver can rebind them to an
// open transaction at commit boundaries.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DB struct {
	*sql.DB
}

func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// In-memory databases are per-connection; multiple connections each get a
	// separate empty database. Limit to one connection so migrations and
	// queries all see the same data.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode and foreign keys for better concurrency.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{db}, nil
}

// OpenWait opens the database, retrying while another process holds the write
// lock. Errors other than busy/locked fail immediately. Exhausting attempts
// returns an unavailable error so callers can exit with a failure status.
func OpenWait(ctx context.Context, dsn string, attempts int, delay time.Duration) (*DB, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := Open(dsn)
		if err == nil {
			return db, nil
		}
		if !IsBusy(err) {
			return nil, err
		}

		lastErr = err
		if i < attempts-1 {
			slog.Warn("database locked, retrying", "attempt", i+1, "attempts", attempts, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, apperror.Wrap(apperror.Unavailable, fmt.Sprintf("database still locked after %d attempts", attempts), lastErr)
}

// IsBusy reports whether err is a SQLite busy or locked error. The low byte
// carries the primary result code; extended codes such as BUSY_SNAPSHOT share it.
func IsBusy(err error) bool {
	var se *sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(migration)
	return err
}
