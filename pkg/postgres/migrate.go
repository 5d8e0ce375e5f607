package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all pending migrations from the local directory dir
// against the database at dsn. An already up-to-date schema is not an error.
func RunMigrations(dir, dsn string) error {
	const op = "postgres.RunMigrations"

	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare migrations: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to apply migrations: %w", op, err)
	}

	return nil
}
