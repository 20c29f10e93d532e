package main

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/tinoosan/hishab/internal/app"
    "github.com/tinoosan/hishab/internal/config"
    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/httpapi"
    v1 "github.com/tinoosan/hishab/internal/httpapi/v1"
    "github.com/tinoosan/hishab/internal/seed"
    "github.com/tinoosan/hishab/internal/service/budget"
)

func main() {
    if err := run(); err != nil {
        fmt.Fprintln(os.Stderr, "hishab:", err)
        os.Exit(1)
    }
}

func run() error {
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    config.LoadDotEnv()
    cfg, err := config.Load()
    if err != nil { return err }
    if err := cfg.Validate(); err != nil { return fmt.Errorf("invalid configuration: %w", err) }
    logger := cfg.Logger()
    slog.SetDefault(logger)
    loc, _ := cfg.Location()
    mode, _ := budget.ParseCopyMode(cfg.Budget.CopyMode, budget.CopyOverwrite)

    st, err := app.OpenStore(ctx, cfg.Storage, logger)
    if err != nil { return err }
    defer st.Close()

    a := app.New(st, logger, app.Options{Currency: cfg.Ledger.Currency, Location: loc, CopyMode: mode})

    if cfg.AMQP.URL != "" {
        pub, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
        if err != nil { return err }
        defer pub.Close()
        a.Bus.Subscribe("amqp", pub.Subscriber())
        logger.Info("publishing events", "exchange", cfg.AMQP.Exchange)
    }

    if cfg.Seed.Enabled {
        seeded, err := seed.Apply(ctx, st, seed.Options{Currency: cfg.Ledger.Currency, Location: loc, Log: logger, Pub: a.Bus})
        if err != nil { return fmt.Errorf("seed: %w", err) }
        if seeded {
            logger.Info("first run: starter data installed")
        }
    }

    srv := &http.Server{
        Addr:              cfg.HTTP.Addr,
        Handler:           v1.New(httpapi.DepsFrom(a), logger).Handler(),
        ReadTimeout:       5 * time.Second,
        ReadHeaderTimeout: 5 * time.Second,
        WriteTimeout:      10 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    errCh := make(chan error, 1)
    go func() {
        logger.Info("hishab listening", "addr", srv.Addr, "timezone", loc.String())
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errCh <- err
        }
    }()

    select {
    case <-ctx.Done():
        ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if err := srv.Shutdown(ctxShutdown); err != nil {
            logger.Error("server shutdown error", "err", err)
        }
        return nil
    case err := <-errCh:
        return fmt.Errorf("server error: %w", err)
    }
}
