// Package httpapi wires the HTTP surface of the ledger service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
    "context"
    "log/slog"
    "net/http"
    "sync"
    "time"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"

    "github.com/tinoosan/hishab/internal/app"
    "github.com/tinoosan/hishab/internal/service/account"
    "github.com/tinoosan/hishab/internal/service/backup"
    "github.com/tinoosan/hishab/internal/service/budget"
    "github.com/tinoosan/hishab/internal/service/category"
    "github.com/tinoosan/hishab/internal/service/goal"
    "github.com/tinoosan/hishab/internal/service/journal"
    "github.com/tinoosan/hishab/internal/service/snapshot"
    "github.com/tinoosan/hishab/internal/view"
)

// Deps are the services the API delegates to.
type Deps struct {
    Accounts   account.Service
    Categories category.Service
    Journal    journal.Service
    Budgets    budget.Service
    Goals      goal.Service
    Snapshots  snapshot.Service
    Backup     backup.Service
    Dashboard  *view.Cache
    // Ready backs /readyz; nil means always ready.
    Ready func(ctx context.Context) error
    // Location interprets month keys and date-only inputs.
    Location *time.Location
}

// Server wires handlers and middleware using Chi.
type Server struct {
    d   Deps
    log *slog.Logger
    rt  *chi.Mux

    idemRun sync.Mutex
    idemMu  sync.RWMutex
    idem    map[string]storedResponse
    idemTTL time.Duration
    idemMax int
    now     func() time.Time
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging and panic recovery.
func New(d Deps, logger *slog.Logger) *Server {
    if logger == nil { logger = slog.Default() }
    if d.Location == nil { d.Location = time.UTC }
    r := chi.NewRouter()
    r.Use(chimw.RequestID)
    r.Use(requestLogger(logger))
    r.Use(recoverer(logger))
    r.Use(metricsMiddleware)

    s := &Server{
        d: d, log: logger, rt: r,
        idem: map[string]storedResponse{}, idemTTL: defaultIdemTTL, idemMax: defaultIdemMax,
        now: func() time.Time { return time.Now().UTC() },
    }
    s.routes()
    return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
    s.rt.Get("/healthz", s.healthz)
    s.rt.Get("/readyz", s.readyz)
    s.rt.Handle("/metrics", metricsHandler())

    s.rt.Route("/v1", func(r chi.Router) {
        r.Use(requireJSON)
        r.Get("/dictionary", s.getDictionary)

        r.Route("/accounts", func(r chi.Router) {
            r.Get("/", s.listAccounts)
            r.Post("/", s.postAccount)
            r.Get("/reconcile", s.reconcileAccounts)
            r.Get("/{id}", s.getAccount)
            r.Patch("/{id}", s.patchAccount)
            r.Delete("/{id}", s.deleteAccount)
        })
        r.Route("/categories", func(r chi.Router) {
            r.Get("/", s.listCategories)
            r.Post("/", s.postCategory)
            r.Patch("/{id}", s.patchCategory)
            r.Delete("/{id}", s.deleteCategory)
        })
        r.Route("/transactions", func(r chi.Router) {
            r.Get("/", s.listTransactions)
            r.With(s.idempotent).Post("/", s.postTransaction)
            r.Get("/{id}", s.getTransaction)
            r.Patch("/{id}", s.patchTransaction)
            r.Delete("/{id}", s.deleteTransaction)
        })
        r.Route("/budgets", func(r chi.Router) {
            r.Get("/", s.listBudgets)
            r.Put("/{month}", s.putBudgets)
            r.Post("/{month}/copy-previous", s.copyBudgets)
            r.Delete("/{id}", s.deleteBudget)
        })
        r.Route("/goals", func(r chi.Router) {
            r.Get("/", s.listGoals)
            r.Post("/", s.postGoal)
            r.Patch("/{id}", s.patchGoal)
            r.Delete("/{id}", s.deleteGoal)
        })
        r.Route("/snapshots", func(r chi.Router) {
            r.Get("/", s.listSnapshots)
            r.Post("/{month}", s.postSnapshot)
        })
        r.Route("/reports", func(r chi.Router) {
            r.Get("/dashboard", s.getDashboard)
            r.Get("/cash-flow", s.getCashFlow)
            r.Get("/net-worth", s.getNetWorth)
        })
        r.Route("/backup", func(r chi.Router) {
            r.Delete("/", s.clearData)
            r.Get("/export", s.exportBackup)
            r.Post("/import", s.importBackup)
        })
    })
}

// DepsFrom collects the services of a.
func DepsFrom(a *app.App) Deps {
    return Deps{
        Accounts:   a.Accounts,
        Categories: a.Categories,
        Journal:    a.Journal,
        Budgets:    a.Budgets,
        Goals:      a.Goals,
        Snapshots:  a.Snapshots,
        Backup:     a.Backup,
        Dashboard:  a.Dashboard,
        Ready:      a.Store.Ready,
        Location:   a.Location,
    }
}
