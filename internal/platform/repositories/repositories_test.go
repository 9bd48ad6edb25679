package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"

	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/models"
)

type singleTenantDB struct {
	db *sql.DB
}

func (s singleTenantDB) ForTenant(string) (*sql.DB, error) {
	return s.db, nil
}

func openMemoryDB(t *testing.T, migrate func(*sql.DB) error) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTenantDBs(t *testing.T) singleTenantDB {
	return singleTenantDB{db: openMemoryDB(t, database.MigrateTenant)}
}

func TestOrganizationRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
		WithArgs("org_missing").
		WillReturnError(sql.ErrNoRows)

	org, err := NewOrganizationRepository(db).GetByID(context.Background(), "org_missing")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if org != nil {
		t.Errorf("GetByID() = %+v, want nil", org)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestOrganizationRepository_DuplicateSlug(t *testing.T) {
	repo := NewOrganizationRepository(openMemoryDB(t, database.MigrateGlobal))
	ctx := context.Background()

	if err := repo.Create(ctx, &models.Organization{Slug: "acme", Name: "Acme"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, &models.Organization{Slug: "acme", Name: "Acme again"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Create() duplicate error = %v, want ErrConflict", err)
	}

	orgs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(orgs) != 1 {
		t.Errorf("List() returned %d orgs, want 1", len(orgs))
	}
}
