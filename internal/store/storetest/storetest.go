// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"recruitment-tracker-go/internal/store"
)

// New returns a migrated store backed by a file in t.TempDir. It is closed
// when the test ends.
func New(t testing.TB) *store.SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recruitment.sqlite")
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close sqlite store: %v", err)
		}
	})
	if err := s.RunMigrations(context.Background()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return s
}
