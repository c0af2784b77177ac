package storage

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates an in-memory SQLite database with foreign keys enabled
// and the full schema. It is closed automatically when the test ends.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// NewTestDBFile creates a file-based database in t.TempDir() and returns
// its path. Use it to test persistence across connections.
func NewTestDBFile(t testing.TB) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), DatabaseFileName)
	db, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return dbPath
}
