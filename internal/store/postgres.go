package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema_postgres.sql
var postgresSchema string

var postgresDialect = dialect{
	name:       "postgres",
	numbered:   true,
	lockSuffix: " FOR UPDATE",
	schema:     postgresSchema,
}

// NewPostgresStore opens a lib/pq pool. Call RunMigrations before use.
func NewPostgresStore(databaseURL string) (*SQLStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newSQLStore(db, postgresDialect), nil
}
