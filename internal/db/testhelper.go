package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestCommitLog opens a migrated commit log in t.TempDir() and closes
// it when the test ends.
func OpenTestCommitLog(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenCommitLog(context.Background(), filepath.Join(t.TempDir(), "commits.sqlite"))
	if err != nil {
		t.Fatalf("open test commit log: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
