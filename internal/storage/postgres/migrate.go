package postgres

import (
    "embed"
    "errors"
    "fmt"

    "github.com/golang-migrate/migrate/v4"
    migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
    "github.com/golang-migrate/migrate/v4/source/iofs"
    "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies pending schema migrations through a database/sql handle
// borrowed from the pool.
func (s *Store) Migrate() error {
    db := stdlib.OpenDBFromPool(s.pool)
    defer db.Close()
    driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
    if err != nil { return fmt.Errorf("create pgx driver: %w", err) }
    src, err := iofs.New(migrationsFS, "migrations")
    if err != nil { return fmt.Errorf("create iofs source: %w", err) }
    m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
    if err != nil { return fmt.Errorf("create migrate instance: %w", err) }
    if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) { return fmt.Errorf("run migrations: %w", err) }
    return nil
}
