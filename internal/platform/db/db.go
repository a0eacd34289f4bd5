// Package db is the persistence gateway shared by all services. Queries are
// written once in canonical '?' placeholder syntax and rewritten per backend;
// row retrieval follows a fixed fetch-mode contract: Exec (no rows), QueryRow
// (one row), Query (all rows).
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Gateway wraps a sql.DB together with the dialect adapter for its backend.
type Gateway struct {
	db *sql.DB
	d  dialect
	n  Dialect
}

// runner is the subset of sql.DB / sql.Tx the gateway executes against.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// dialect hides backend differences: placeholder syntax and how a freshly
// inserted row id is retrieved.
type dialect interface {
	rewrite(query string) string
	insertID(ctx context.Context, r runner, query, idColumn string, args ...any) (int64, error)
}

// Open connects to the given backend and verifies the connection.
func Open(ctx context.Context, name Dialect, dsn string) (*Gateway, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: dsn is required")
	}

	var (
		driver string
		d      dialect
	)
	switch name {
	case DialectPostgres:
		driver, d = "pgx", postgresDialect{}
	case DialectSQLite:
		driver, d = "sqlite", sqliteDialect{}
	default:
		return nil, fmt.Errorf("db: unknown dialect %q", name)
	}

	sdb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", name, err)
	}

	switch name {
	case DialectPostgres:
		sdb.SetMaxOpenConns(10)
		sdb.SetMaxIdleConns(5)
		sdb.SetConnMaxIdleTime(5 * time.Minute)
	case DialectSQLite:
		// The embedded backend serializes writers itself; a single pooled
		// connection also keeps ":memory:" databases from splitting per conn.
		sdb.SetMaxOpenConns(1)
	}

	if err := sdb.PingContext(ctx); err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("db: ping %s: %w", name, err)
	}
	return &Gateway{db: sdb, d: d, n: name}, nil
}

func (g *Gateway) Close() error     { return g.db.Close() }
func (g *Gateway) Dialect() Dialect { return g.n }

// Rewrite translates canonical '?' placeholders into the backend's syntax.
func (g *Gateway) Rewrite(query string) string { return g.d.rewrite(query) }

// Exec runs a statement that returns no rows.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) error {
	_, err := g.db.ExecContext(ctx, g.d.rewrite(query), args...)
	return err
}

// ExecAffected runs a statement and reports how many rows it touched.
func (g *Gateway) ExecAffected(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := g.db.ExecContext(ctx, g.d.rewrite(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// QueryRow fetches a single row.
func (g *Gateway) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return g.db.QueryRowContext(ctx, g.d.rewrite(query), args...)
}

// Query fetches all rows.
func (g *Gateway) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return g.db.QueryContext(ctx, g.d.rewrite(query), args...)
}

// InsertID runs an INSERT and returns the id assigned to the new row.
func (g *Gateway) InsertID(ctx context.Context, query, idColumn string, args ...any) (int64, error) {
	return g.d.insertID(ctx, g.db, query, idColumn, args...)
}

// Begin opens a unit of work. Mutations that must commit or fail together go
// through the returned UnitOfWork.
func (g *Gateway) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &UnitOfWork{tx: tx, d: g.d}, nil
}

// UnitOfWork is a transaction-scoped gateway with the same fetch-mode contract.
type UnitOfWork struct {
	tx *sql.Tx
	d  dialect
}

func (u *UnitOfWork) Exec(ctx context.Context, query string, args ...any) error {
	_, err := u.tx.ExecContext(ctx, u.d.rewrite(query), args...)
	return err
}

func (u *UnitOfWork) ExecAffected(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := u.tx.ExecContext(ctx, u.d.rewrite(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (u *UnitOfWork) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return u.tx.QueryRowContext(ctx, u.d.rewrite(query), args...)
}

func (u *UnitOfWork) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return u.tx.QueryContext(ctx, u.d.rewrite(query), args...)
}

func (u *UnitOfWork) InsertID(ctx context.Context, query, idColumn string, args ...any) (int64, error) {
	return u.d.insertID(ctx, u.tx, query, idColumn, args...)
}

func (u *UnitOfWork) Commit() error   { return u.tx.Commit() }
func (u *UnitOfWork) Rollback() error { return u.tx.Rollback() }
