package db

import (
	"path/filepath"
	"testing"
)

// NewTestDB creates a fresh migrated SQLite database in a temporary
// directory. A file is used instead of :memory: so that every pooled
// connection sees the same database.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	d, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := Migrate(d); err != nil {
		d.Close()
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() { d.Close() })

	return d
}
