package sqlite

import (
    "database/sql"
    "embed"
    "errors"
    "fmt"

    "github.com/golang-migrate/migrate/v4"
    migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
    "github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies pending schema migrations on a dedicated connection.
func RunMigrations(dsn string) error {
    migrateDB, err := sql.Open("sqlite", dsn)
    if err != nil { return fmt.Errorf("open migration database: %w", err) }
    defer migrateDB.Close()

    driver, err := migratesqlite.WithInstance(migrateDB, &migratesqlite.Config{})
    if err != nil { return fmt.Errorf("create sqlite driver: %w", err) }
    src, err := iofs.New(migrationsFS, "migrations")
    if err != nil { return fmt.Errorf("create iofs source: %w", err) }
    m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
    if err != nil { return fmt.Errorf("create migrate instance: %w", err) }
    defer m.Close()

    if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) { return fmt.Errorf("run migrations: %w", err) }
    return nil
}
