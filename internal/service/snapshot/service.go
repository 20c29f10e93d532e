// Package snapshot produces immutable month roll-ups for trend charts.
package snapshot

import (
    "context"
    "log/slog"
    "time"

    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/report"
    "github.com/tinoosan/hishab/internal/storage"
)

// DefaultLimit is how many snapshots List returns when limit <= 0.
const DefaultLimit = 24

type Service interface {
    // Rollup records net worth, cash flow and expense totals per category for
    // month. Each call appends a new snapshot; earlier ones are kept.
    Rollup(ctx context.Context, month ledger.Month) (ledger.Snapshot, error)
    List(ctx context.Context, limit int) ([]ledger.Snapshot, error)
}

type service struct {
    store storage.Store
    pub   events.Publisher
    log   *slog.Logger
    loc   *time.Location
    now   func() time.Time
}

func New(store storage.Store, pub events.Publisher, log *slog.Logger, loc *time.Location) Service {
    if log == nil { log = slog.Default() }
    if loc == nil { loc = time.UTC }
    return &service{store: store, pub: events.OrNop(pub), log: log, loc: loc, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) Rollup(ctx context.Context, month ledger.Month) (ledger.Snapshot, error) {
    month, err := ledger.ParseMonth(string(month))
    if err != nil { return ledger.Snapshot{}, err }
    var snap ledger.Snapshot
    err = s.store.Atomic(ctx, func(tx storage.Tx) error {
        accts, err := tx.ListAccounts(ctx)
        if err != nil { return err }
        from, to := month.Start(s.loc), month.End(s.loc)
        txns, err := tx.ListTransactions(ctx, storage.TransactionFilter{From: &from, To: &to})
        if err != nil { return err }
        worth, err := report.NetWorth(accts)
        if err != nil { return err }
        cf, err := report.MonthlyCashFlow(txns, month, s.loc)
        if err != nil { return err }
        byCat, err := report.CategoryTotals(txns, ledger.TransactionTypeExpense)
        if err != nil { return err }
        snap = ledger.Snapshot{
            ID:         ledger.NewID(ledger.PrefixSnapshot),
            Month:      month,
            NetWorth:   worth,
            Totals:     ledger.SnapshotTotals{Income: cf.Income, Expense: cf.Expense},
            ByCategory: byCat,
            CreatedAt:  s.now(),
        }
        return tx.PutSnapshot(ctx, snap)
    })
    if err != nil { return ledger.Snapshot{}, err }
    s.log.InfoContext(ctx, "snapshot created", "snapshot_id", snap.ID, "month", string(month), "net_worth", snap.NetWorth.String())
    s.pub.Publish(ctx, events.New(events.SnapshotCreated, snap.ID))
    return snap, nil
}

func (s *service) List(ctx context.Context, limit int) ([]ledger.Snapshot, error) {
    if limit <= 0 { limit = DefaultLimit }
    return s.store.ListSnapshots(ctx, limit)
}
