package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLiteAppliesSchema(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "trace.db")
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (id TEXT PRIMARY KEY);`,
		`CREATE INDEX IF NOT EXISTS runs_id_idx ON runs(id);`,
	}
	db, err := OpenSQLite(context.Background(), dbPath, schema)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var name string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='runs';").Scan(&name); err != nil {
		t.Fatalf("table runs missing: %v", err)
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}

	// Reopening is idempotent.
	if err := Bootstrap(context.Background(), db, schema); err != nil {
		t.Fatalf("Bootstrap again: %v", err)
	}
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQLite(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenSQLiteBadSchema(t *testing.T) {
	t.Parallel()

	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bad.db"), []string{"CREATE NONSENSE"})
	if err == nil {
		t.Fatal("expected bootstrap error")
	}
}
