package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/vbonduro/shelfinv/internal/db"
)

// OpenDB opens a migrated SQLite database in a per-test directory. It is
// closed when the test finishes.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "shelfinv.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}
