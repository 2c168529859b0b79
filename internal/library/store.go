// Package library is the relational catalog: videos, audio tracks,
// renditions, titles and grants. It runs on SQLite and PostgreSQL through
// database/sql.
package library

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour of the underlying database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Valid reports whether d is supported.
func (d Dialect) Valid() bool {
	return d == DialectSQLite || d == DialectPostgres
}

// rebind rewrites ? placeholders into $n for PostgreSQL. Queries in this
// package never carry a literal question mark.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn carries the repository methods. Both Store and Tx embed it, so
// every method is available inside and outside a transaction.
type conn struct {
	q       queryer
	dialect Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.dialect.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.dialect.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.dialect.rebind(query), args...)
}

// insertID runs an INSERT and returns the generated primary key.
func (c conn) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := c.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Store is the catalog repository.
type Store struct {
	conn
	db *sql.DB
}

// NewStore wraps an open database and applies the schema.
func NewStore(db *sql.DB, dialect Dialect) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("library: nil database")
	}
	if !dialect.Valid() {
		return nil, fmt.Errorf("library: unsupported dialect %q", dialect)
	}
	s := &Store{conn: conn{q: db, dialect: dialect}, db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("library: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := sqliteSchema
	if s.dialect == DialectPostgres {
		schema = postgresSchema
	}
	_, err := s.db.Exec(schema)
	return err
}

// Dialect returns the SQL flavour the store was opened with.
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Tx is a unit of work. Hooks registered with OnCommit run after a
// successful commit and never after a rollback.
type Tx struct {
	conn
	tx       *sql.Tx
	onCommit []func()
}

// OnCommit defers fn until the transaction has committed.
func (t *Tx) OnCommit(fn func()) {
	t.onCommit = append(t.onCommit, fn)
}

// WithTx runs fn in a transaction. A returned error or a panic rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("library: begin tx: %w", err)
	}
	tx := &Tx{conn: conn{q: sqlTx, dialect: s.dialect}, tx: sqlTx}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("library: commit: %w", err)
	}
	committed = true

	for _, hook := range tx.onCommit {
		hook()
	}
	return nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("library: rows affected: %w", err)
	}
	return n, nil
}
