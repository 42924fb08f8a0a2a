package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Up applies every pending migration for dialect ("sqlite" or "postgres") to db.
// The migrator takes ownership of db and closes it when done, so callers pass a
// handle dedicated to migrating.
func Up(db *sql.DB, dialect string) (err error) {
	src, err := iofs.New(files, dialect)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", dialect, err)
	}

	var driver database.Driver
	switch dialect {
	case "sqlite":
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case "postgres":
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return fmt.Errorf("no migrations for dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("migration driver %s: %w", dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		return fmt.Errorf("migrator %s: %w", dialect, err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
