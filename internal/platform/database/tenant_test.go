package database

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	"relaydesk/internal/platform/config"
)

func TestTenantDBPool_ForTenant(t *testing.T) {
	pool := NewTenantDBPool(config.TenantDBConfig{BasePath: t.TempDir(), MaxConnectionsPerOrg: 2})
	defer pool.CloseAll()

	db, err := pool.ForTenant("org_1")
	if err != nil {
		t.Fatalf("ForTenant() error = %v", err)
	}
	if _, err := os.Stat(pool.Path("org_1")); err != nil {
		t.Fatalf("tenant file not created: %v", err)
	}

	for _, table := range []string{"filters", "workflows", "webhooks", "delivery_logs"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	again, err := pool.ForTenant("org_1")
	if err != nil {
		t.Fatalf("ForTenant() second call error = %v", err)
	}
	if again != db {
		t.Error("expected cached handle on second call")
	}
}

func TestTenantDBPool_RejectsUnsafeIDs(t *testing.T) {
	pool := NewTenantDBPool(config.TenantDBConfig{BasePath: t.TempDir()})
	defer pool.CloseAll()

	for _, id := range []string{"", "../escape", "a/b", "org 1"} {
		if _, err := pool.ForTenant(id); !errors.Is(err, ErrInvalidTenant) {
			t.Errorf("ForTenant(%q) error = %v, want ErrInvalidTenant", id, err)
		}
	}
}

func TestMigrate_UpDownGlobal(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := MigrateGlobal(db); err != nil {
		t.Fatalf("MigrateGlobal() error = %v", err)
	}
	// Re-running is a no-op.
	if err := MigrateGlobal(db); err != nil {
		t.Fatalf("MigrateGlobal() second run error = %v", err)
	}
	if _, err := db.Exec(`INSERT INTO organizations (id, slug, name, created_at) VALUES ('org_1', 'acme', 'Acme', 1)`); err != nil {
		t.Fatalf("insert after migrate: %v", err)
	}

	if err := Migrate(db, TargetGlobal, "down"); err != nil {
		t.Fatalf("Migrate(down) error = %v", err)
	}
	if _, err := db.Exec(`SELECT 1 FROM organizations`); err == nil {
		t.Error("organizations should be dropped after down migration")
	}
}

func TestMigrate_InvalidArguments(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := Migrate(db, "billing", "up"); err == nil {
		t.Error("expected error for unknown target")
	}
	if err := Migrate(db, TargetTenant, "sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
}
