package view

import (
    "context"
    "sync/atomic"
    "testing"
    "time"

    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/service/journal"
    "github.com/tinoosan/hishab/internal/storage/memory"
)

func TestCache_InvalidatedByEvents(t *testing.T) {
    ctx := context.Background()
    st := memory.New()
    day := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
    _ = st.PutAccount(ctx, ledger.Account{ID: "acct-a", Name: "City Bank", Type: ledger.AccountTypeBank, Balance: ledger.MustMoney("1000"), OpeningBalance: ledger.MustMoney("1000"), CreatedAt: day, UpdatedAt: day})
    _ = st.PutCategory(ctx, ledger.Category{ID: "cat-food", Name: "Food", Type: ledger.CategoryTypeExpense, CreatedAt: day, UpdatedAt: day})

    cache := NewCache(st, time.UTC)
    bus := events.NewBus(nil)
    bus.Subscribe("dashboard", cache.Invalidate)
    j := journal.New(st, bus, nil, time.UTC)

    d, err := cache.Dashboard(ctx, "2025-03")
    if err != nil { t.Fatalf("dashboard: %v", err) }
    if !d.NetWorth.Equal(ledger.MustMoney("1000")) { t.Fatalf("net worth = %s", d.NetWorth) }

    // a write that bypasses the bus leaves the cached view in place
    _ = st.PutAccount(ctx, ledger.Account{ID: "acct-b", Name: "Cash", Type: ledger.AccountTypeCash, Balance: ledger.MustMoney("5"), CreatedAt: day, UpdatedAt: day})
    if d, _ = cache.Dashboard(ctx, "2025-03"); !d.NetWorth.Equal(ledger.MustMoney("1000")) {
        t.Fatalf("cache was not used: %s", d.NetWorth)
    }

    exp, _ := ledger.NewExpense(ledger.IntentBase{Date: day, Amount: ledger.MustMoney("100"), AccountID: "acct-a"}, "cat-food")
    if _, err := j.Create(ctx, exp); err != nil { t.Fatalf("create: %v", err) }
    d, err = cache.Dashboard(ctx, "2025-03")
    if err != nil { t.Fatalf("dashboard: %v", err) }
    if !d.NetWorth.Equal(ledger.MustMoney("905")) { t.Fatalf("net worth after event = %s", d.NetWorth) }
    if !d.CashFlow.Expense.Equal(ledger.MustMoney("100")) || !d.CashFlow.Net.Equal(ledger.MustMoney("-100")) {
        t.Fatalf("cash flow = %+v", d.CashFlow)
    }
}

// gatedReader blocks the first ListAccounts call until release is closed.
type gatedReader struct {
    *memory.Store
    gated   atomic.Bool
    entered chan struct{}
    release chan struct{}
}

func (g *gatedReader) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
    if g.gated.CompareAndSwap(false, true) {
        list, err := g.Store.ListAccounts(ctx)
        close(g.entered)
        <-g.release
        return list, err
    }
    return g.Store.ListAccounts(ctx)
}

func TestCache_ReadAfterInvalidateSkipsInFlightRebuild(t *testing.T) {
    ctx := context.Background()
    st := memory.New()
    day := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
    acct := ledger.Account{ID: "acct-a", Name: "City Bank", Type: ledger.AccountTypeBank, Balance: ledger.MustMoney("1000"), OpeningBalance: ledger.MustMoney("1000"), CreatedAt: day, UpdatedAt: day}
    _ = st.PutAccount(ctx, acct)

    g := &gatedReader{Store: st, entered: make(chan struct{}), release: make(chan struct{})}
    cache := NewCache(g, time.UTC)

    stale := make(chan Dashboard, 1)
    go func() {
        d, _ := cache.Dashboard(ctx, "2025-03")
        stale <- d
    }()
    <-g.entered

    acct.Balance = ledger.MustMoney("700")
    _ = st.PutAccount(ctx, acct)
    _ = cache.Invalidate(ctx, events.New(events.AccountUpdated, acct.ID))

    fresh := make(chan Dashboard, 1)
    go func() {
        d, _ := cache.Dashboard(ctx, "2025-03")
        fresh <- d
    }()
    select {
    case d := <-fresh:
        if !d.NetWorth.Equal(ledger.MustMoney("700")) { t.Fatalf("net worth after invalidate = %s, want 700", d.NetWorth) }
    case <-time.After(2 * time.Second):
        t.Fatalf("read after invalidate waited on the earlier rebuild")
    }

    close(g.release)
    if d := <-stale; !d.NetWorth.Equal(ledger.MustMoney("1000")) { t.Fatalf("in-flight rebuild = %s, want 1000", d.NetWorth) }
    d, err := cache.Dashboard(ctx, "2025-03")
    if err != nil { t.Fatalf("dashboard: %v", err) }
    if !d.NetWorth.Equal(ledger.MustMoney("700")) { t.Fatalf("cached net worth = %s, want 700", d.NetWorth) }
}
