// Package app assembles the services around one store and one event bus.
package app

import (
    "log/slog"
    "time"

    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/service/account"
    "github.com/tinoosan/hishab/internal/service/backup"
    "github.com/tinoosan/hishab/internal/service/budget"
    "github.com/tinoosan/hishab/internal/service/category"
    "github.com/tinoosan/hishab/internal/service/goal"
    "github.com/tinoosan/hishab/internal/service/journal"
    "github.com/tinoosan/hishab/internal/service/snapshot"
    "github.com/tinoosan/hishab/internal/storage"
    "github.com/tinoosan/hishab/internal/view"
)

type Options struct {
    Currency string
    Location *time.Location
    CopyMode budget.CopyMode
}

// App holds the wired services. Every mutation publishes on Bus, which
// invalidates Dashboard before any other subscriber runs.
type App struct {
    Store    storage.Store
    Bus      *events.Bus
    Log      *slog.Logger
    Location *time.Location

    Accounts   account.Service
    Categories category.Service
    Journal    journal.Service
    Budgets    budget.Service
    Goals      goal.Service
    Snapshots  snapshot.Service
    Backup     backup.Service
    Dashboard  *view.Cache
}

func New(st storage.Store, log *slog.Logger, opt Options) *App {
    if log == nil {
        log = slog.Default()
    }
    if opt.Location == nil {
        opt.Location = time.UTC
    }
    bus := events.NewBus(log)
    dash := view.NewCache(st, opt.Location)
    bus.Subscribe("dashboard", dash.Invalidate)
    return &App{
        Store:      st,
        Bus:        bus,
        Log:        log,
        Location:   opt.Location,
        Accounts:   account.New(st, bus, log, opt.Currency),
        Categories: category.New(st, bus, log),
        Journal:    journal.New(st, bus, log, opt.Location),
        Budgets:    budget.New(st, bus, log, opt.Location, opt.CopyMode),
        Goals:      goal.New(st, bus, log),
        Snapshots:  snapshot.New(st, bus, log, opt.Location),
        Backup:     backup.New(st, bus, log),
        Dashboard:  dash,
    }
}
