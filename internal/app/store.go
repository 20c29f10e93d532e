package app

import (
    "context"
    "fmt"
    "log/slog"

    "github.com/tinoosan/hishab/internal/config"
    "github.com/tinoosan/hishab/internal/storage"
    "github.com/tinoosan/hishab/internal/storage/memory"
    "github.com/tinoosan/hishab/internal/storage/postgres"
    "github.com/tinoosan/hishab/internal/storage/sqlite"
)

// OpenStore opens the configured backend and applies pending migrations.
func OpenStore(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (storage.Store, error) {
    switch cfg.Backend {
    case "memory":
        log.Info("storage backend: memory")
        return memory.New(), nil
    case "sqlite":
        st, err := sqlite.Open(ctx, cfg.SQLitePath)
        if err != nil { return nil, fmt.Errorf("open sqlite store: %w", err) }
        log.Info("storage backend: sqlite", "path", cfg.SQLitePath)
        return st, nil
    case "postgres":
        st, err := postgres.Open(ctx, cfg.PostgresDSN)
        if err != nil { return nil, fmt.Errorf("connect to postgres: %w", err) }
        if err := st.Migrate(); err != nil {
            st.Close()
            return nil, err
        }
        log.Info("storage backend: postgres")
        return st, nil
    default:
        return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
    }
}
