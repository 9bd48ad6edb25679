package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/global/*.sql migrations/tenant/*.sql
var migrationsFS embed.FS

const (
	TargetGlobal = "global"
	TargetTenant = "tenant"
)

func MigrateGlobal(db *sql.DB) error {
	return Migrate(db, TargetGlobal, "up")
}

func MigrateTenant(db *sql.DB) error {
	return Migrate(db, TargetTenant, "up")
}

// Migrate applies the embedded migrations of target ("global" or "tenant")
// in the given direction ("up" or "down"). The database handle stays open.
func Migrate(db *sql.DB, target, direction string) error {
	if target != TargetGlobal && target != TargetTenant {
		return fmt.Errorf("unknown migration target %q", target)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+target)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer src.Close()

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s %s: %w", target, direction, err)
	}
	return nil
}
