package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

var sqliteDialect = dialect{
	name:   "sqlite",
	schema: sqliteSchema,
}

// NewSQLiteStore opens a single-file database for development and tests.
// Transactions begin IMMEDIATE and the pool holds one connection, so writers
// are serialized by SQLite itself.
func NewSQLiteStore(path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return newSQLStore(db, sqliteDialect), nil
}
