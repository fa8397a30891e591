package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/config"
	"github.com/ekaya-inc/discograph/pkg/database"
	"github.com/ekaya-inc/discograph/pkg/retry"
)

// Backend is a SQL connection the repositories run their queries on.
// Implementations exist for PostgreSQL (pgx) and SQLite (database/sql).
type Backend interface {
	// Driver returns config.DriverPostgres or config.DriverSQLite.
	Driver() string
	// Ping checks connectivity, for health checks.
	Ping(ctx context.Context) error

	placeholder(n int) string
	query(ctx context.Context, sql string, args ...any) (rowIterator, error)
	queryRow(ctx context.Context, sql string, args ...any) rowScanner
	exec(ctx context.Context, sql string, args ...any) error
	bulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	truncate(ctx context.Context, table string) error
	isNoRows(err error) bool
}

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type rowIterator interface {
	rowScanner
	Next() bool
	Err() error
	Close()
}

// storeError wraps a driver error. Timeouts and transient connection failures
// are marked with apperrors.ErrStoreUnavailable so callers can decide on retries.
func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || retry.IsRetryable(err) {
		return fmt.Errorf("failed to %s: %w: %w", op, apperrors.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// ============================================================================
// PostgreSQL
// ============================================================================

type pgBackend struct {
	db *database.DB
}

// NewPostgresBackend returns a Backend over a pgx connection pool.
func NewPostgresBackend(db *database.DB) Backend {
	return &pgBackend{db: db}
}

var _ Backend = (*pgBackend)(nil)

func (b *pgBackend) Driver() string { return config.DriverPostgres }

func (b *pgBackend) Ping(ctx context.Context) error { return b.db.Ping(ctx) }

func (b *pgBackend) placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (b *pgBackend) query(ctx context.Context, sql string, args ...any) (rowIterator, error) {
	rows, err := b.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (b *pgBackend) queryRow(ctx context.Context, sql string, args ...any) rowScanner {
	return b.db.QueryRow(ctx, sql, args...)
}

func (b *pgBackend) exec(ctx context.Context, sql string, args ...any) error {
	_, err := b.db.Exec(ctx, sql, args...)
	return err
}

// bulkInsert streams rows with the COPY protocol.
func (b *pgBackend) bulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return b.db.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

func (b *pgBackend) truncate(ctx context.Context, table string) error {
	_, err := b.db.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{table}.Sanitize())
	return err
}

func (b *pgBackend) isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// ============================================================================
// SQLite
// ============================================================================

type sqliteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend returns a Backend over a database/sql SQLite handle.
func NewSQLiteBackend(db *sql.DB) Backend {
	return &sqliteBackend{db: db}
}

var _ Backend = (*sqliteBackend)(nil)

func (b *sqliteBackend) Driver() string { return config.DriverSQLite }

func (b *sqliteBackend) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

func (b *sqliteBackend) placeholder(int) string { return "?" }

func (b *sqliteBackend) query(ctx context.Context, query string, args ...any) (rowIterator, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (b *sqliteBackend) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	return b.db.QueryRowContext(ctx, query, args...)
}

func (b *sqliteBackend) exec(ctx context.Context, query string, args ...any) error {
	_, err := b.db.ExecContext(ctx, query, args...)
	return err
}

// bulkInsert runs one prepared INSERT per row inside a single transaction.
func (b *sqliteBackend) bulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertSQL(table, columns, b.placeholder))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, err
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *sqliteBackend) truncate(ctx context.Context, table string) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM "+table)
	return err
}

func (b *sqliteBackend) isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// sqlRows adapts *sql.Rows to rowIterator.
type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }
