package migrate

import (
	"testing"

	"trackline/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("schema_migrations rows = %d, want 1", n)
	}

	var version int
	if err := conn.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != 1 {
		t.Fatalf("version = %d, want 1", version)
	}

	if _, err := conn.Exec(`SELECT id FROM tasks LIMIT 1`); err != nil {
		t.Fatalf("tasks table missing: %v", err)
	}
}

func TestVersionOf(t *testing.T) {
	v, err := versionOf("001_init.sql")
	if err != nil {
		t.Fatalf("versionOf: %v", err)
	}
	if v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
	if _, err := versionOf("no-prefix.sql"); err == nil {
		t.Fatal("expected error for filename without version prefix")
	}
}
