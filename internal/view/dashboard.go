// Package view keeps derived read models. The store stays the only source of
// truth: cached views are dropped on every committed mutation and rebuilt on
// the next read.
package view

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "golang.org/x/sync/singleflight"

    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/report"
    "github.com/tinoosan/hishab/internal/storage"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
    Name: "hishab_view_cache_lookups_total",
    Help: "Dashboard cache lookups by result (hit|miss).",
}, []string{"result"})

// GoalStatus is a goal with its progress ratio.
type GoalStatus struct {
    ledger.SavingsGoal
    Progress float64 `json:"progress"`
}

// Dashboard is the month overview shown on the landing page.
type Dashboard struct {
    Month    ledger.Month         `json:"month"`
    NetWorth ledger.Money         `json:"netWorth"`
    CashFlow report.CashFlow      `json:"cashFlow"`
    Budgets  []report.BudgetUsage `json:"budgets"`
    Goals    []GoalStatus         `json:"goals"`
    BuiltAt  time.Time            `json:"builtAt"`
}

// Cache memoizes dashboards per month until the next event.
type Cache struct {
    store storage.Reader
    loc   *time.Location

    mu      sync.RWMutex
    gen     uint64
    entries map[ledger.Month]Dashboard
    group   singleflight.Group
}

func NewCache(store storage.Reader, loc *time.Location) *Cache {
    if loc == nil {
        loc = time.UTC
    }
    return &Cache{store: store, loc: loc, entries: map[ledger.Month]Dashboard{}}
}

// Invalidate drops every cached view. Its signature matches events.Subscriber.
func (c *Cache) Invalidate(context.Context, events.Event) error {
    c.mu.Lock()
    c.gen++
    c.entries = map[ledger.Month]Dashboard{}
    c.mu.Unlock()
    return nil
}

// Dashboard returns the cached view for month, rebuilding it on a miss.
// Concurrent misses for one month and generation share a single rebuild; a
// read after an invalidation never joins a rebuild started before it.
func (c *Cache) Dashboard(ctx context.Context, month ledger.Month) (Dashboard, error) {
    c.mu.RLock()
    d, ok := c.entries[month]
    gen := c.gen
    c.mu.RUnlock()
    if ok {
        cacheLookups.WithLabelValues("hit").Inc()
        return d, nil
    }
    cacheLookups.WithLabelValues("miss").Inc()
    v, err, _ := c.group.Do(fmt.Sprintf("%s@%d", month, gen), func() (any, error) {
        d, err := Build(ctx, c.store, month, c.loc)
        if err != nil { return Dashboard{}, err }
        c.mu.Lock()
        // an event that landed mid-build makes d stale; serve it but do not keep it
        if c.gen == gen {
            c.entries[month] = d
        }
        c.mu.Unlock()
        return d, nil
    })
    if err != nil { return Dashboard{}, err }
    return v.(Dashboard), nil
}

// Build computes a dashboard straight from the store.
func Build(ctx context.Context, st storage.Reader, month ledger.Month, loc *time.Location) (Dashboard, error) {
    accts, err := st.ListAccounts(ctx)
    if err != nil { return Dashboard{}, err }
    from, to := month.Start(loc), month.End(loc)
    txns, err := st.ListTransactions(ctx, storage.TransactionFilter{From: &from, To: &to})
    if err != nil { return Dashboard{}, err }
    budgets, err := st.ListBudgets(ctx, month)
    if err != nil { return Dashboard{}, err }
    goals, err := st.ListGoals(ctx)
    if err != nil { return Dashboard{}, err }
    d := Dashboard{Month: month, BuiltAt: time.Now().UTC()}
    if d.NetWorth, err = report.NetWorth(accts); err != nil { return Dashboard{}, err }
    if d.CashFlow, err = report.MonthlyCashFlow(txns, month, loc); err != nil { return Dashboard{}, err }
    if d.Budgets, err = report.BudgetUsages(budgets, txns); err != nil { return Dashboard{}, err }
    d.Goals = make([]GoalStatus, 0, len(goals))
    for _, g := range goals {
        d.Goals = append(d.Goals, GoalStatus{SavingsGoal: g, Progress: report.GoalProgress(g)})
    }
    return d, nil
}
