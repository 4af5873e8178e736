// Package migrations embeds the schema migrations and applies them with
// golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-extras/go-kit/must"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// FS returns the migration files rooted at the sql directory.
func FS() fs.FS {
	return must.Must(fs.Sub(files, "sql"))
}

// New builds a migrator for the given postgres:// URL.
func New(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return m, nil
}

// Up applies all pending migrations. Being up to date is not an error.
func Up(databaseURL string) error {
	m, err := New(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up failed: %w", err)
	}
	return nil
}

// Down rolls back the given number of migrations; steps <= 0 rolls back all.
func Down(databaseURL string, steps int) error {
	m, err := New(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = m.Close()
	}()

	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down failed: %w", err)
	}
	return nil
}
