// Package storage persists usage graphs in SQLite so they can be queried
// with SQL alongside the JSON/YAML graph file.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is the version recorded in graph_metadata.
const SchemaVersion = "1"

// DatabaseFileName is the name of the SQLite file in the output directory.
const DatabaseFileName = "usage-graph.db"

// Open opens (or creates) a database with foreign keys enabled and the
// schema in place.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// In-memory databases exist per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// CreateSchema creates all tables and indexes. It is safe to call on a
// database that already has the schema.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	// Create all tables in dependency order
	tables := []struct {
		name string
		ddl  string
	}{
		{"symbols", createSymbolsTable},
		{"edges", createEdgesTable},
		{"diagnostics", createDiagnosticsTable},
		{"graph_metadata", createMetadataTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO graph_metadata (key, value) VALUES ('schema_version', ?)", SchemaVersion,
	); err != nil {
		return fmt.Errorf("failed to bootstrap graph_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion retrieves the schema version from graph_metadata.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var version string
	err := db.QueryRow("SELECT value FROM graph_metadata WHERE key = 'schema_version'").Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in graph_metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

const createSymbolsTable = `
CREATE TABLE IF NOT EXISTS symbols (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	language    TEXT NOT NULL DEFAULT '',
	external    INTEGER NOT NULL DEFAULT 0,
	file        TEXT,
	start_line  INTEGER,
	start_col   INTEGER,
	end_line    INTEGER,
	end_col     INTEGER,
	start_byte  INTEGER,
	end_byte    INTEGER
)`

const createEdgesTable = `
CREATE TABLE IF NOT EXISTS edges (
	seq             INTEGER PRIMARY KEY,
	kind            TEXT NOT NULL,
	subject_id      TEXT REFERENCES symbols(id) ON DELETE CASCADE,
	subject_raw     TEXT NOT NULL DEFAULT '',
	subject_reason  TEXT NOT NULL DEFAULT '',
	object_id       TEXT REFERENCES symbols(id) ON DELETE CASCADE,
	object_raw      TEXT NOT NULL DEFAULT '',
	object_reason   TEXT NOT NULL DEFAULT '',
	file            TEXT NOT NULL,
	start_line      INTEGER NOT NULL,
	start_col       INTEGER NOT NULL,
	end_line        INTEGER NOT NULL,
	end_col         INTEGER NOT NULL,
	start_byte      INTEGER NOT NULL,
	end_byte        INTEGER NOT NULL
)`

const createDiagnosticsTable = `
CREATE TABLE IF NOT EXISTS diagnostics (
	seq       INTEGER PRIMARY KEY,
	severity  TEXT NOT NULL,
	code      TEXT NOT NULL,
	file      TEXT NOT NULL DEFAULT '',
	line      INTEGER NOT NULL DEFAULT 0,
	col       INTEGER NOT NULL DEFAULT 0,
	message   TEXT NOT NULL
)`

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS graph_metadata (
	key    TEXT PRIMARY KEY,
	value  TEXT NOT NULL
)`

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)",
	"CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(kind)",
	"CREATE INDEX IF NOT EXISTS idx_edges_subject ON edges(subject_id)",
	"CREATE INDEX IF NOT EXISTS idx_edges_object ON edges(object_id)",
	"CREATE INDEX IF NOT EXISTS idx_edges_file ON edges(file)",
	"CREATE INDEX IF NOT EXISTS idx_diagnostics_code ON diagnostics(code)",
}
