package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"recruitment-tracker-go/internal/apperr"
)

// dialect captures the few places Postgres and SQLite disagree. Queries are
// written with ? placeholders and rebound for Postgres.
type dialect struct {
	name       string
	numbered   bool
	lockSuffix string
	schema     string
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs queries against either the pool or an open transaction. Every
// Reader and Tx method lives on conn.
type conn struct {
	q queryer
	d dialect
}

func (c conn) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := c.q.ExecContext(ctx, c.d.rebind(query), args...)
	if err != nil {
		return nil, classify(op, err)
	}
	return res, nil
}

func (c conn) query(ctx context.Context, op, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.q.QueryContext(ctx, c.d.rebind(query), args...)
	if err != nil {
		return nil, classify(op, err)
	}
	return rows, nil
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// SQLStore is the database/sql implementation of Store, UserStore and PushStore.
type SQLStore struct {
	conn
	db *sql.DB
}

type sqlTx struct {
	conn
}

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	return &SQLStore{conn: conn{q: db, d: d}, db: db}
}

// Dialect names the backend, "postgres" or "sqlite".
func (s *SQLStore) Dialect() string {
	return s.d.name
}

// RunMigrations creates tables, indexes and triggers if they don't exist.
func (s *SQLStore) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// WithTx runs fn in a transaction. fn's error, a panic, or a cancelled ctx
// rolls everything back.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{conn: conn{q: tx, d: s.d}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB exposes the pool for maintenance tooling and tests.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return " LIMIT " + strconv.Itoa(limit)
}

func notFound(resource, id string) error {
	return apperr.NotFound(resource, id)
}
