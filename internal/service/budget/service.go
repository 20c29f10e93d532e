// Package budget implements the monthly envelope lifecycle: upsert keyed by
// (month, category), copy from the previous month and usage listing.
package budget

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/report"
    "github.com/tinoosan/hishab/internal/storage"
)

// CopyMode selects how CopyFromPreviousMonth treats allocations already set
// for the target month.
type CopyMode string

const (
    // CopyOverwrite replaces every current allocation that has a previous one.
    CopyOverwrite CopyMode = "overwrite"
    // CopyMerge only fills categories without a current allocation.
    CopyMerge CopyMode = "merge"
)

// ParseCopyMode maps "" to def.
func ParseCopyMode(s string, def CopyMode) (CopyMode, error) {
    switch CopyMode(s) {
    case "":
        return def, nil
    case CopyOverwrite, CopyMerge:
        return CopyMode(s), nil
    }
    return "", fmt.Errorf("copy mode %q: want overwrite or merge: %w", s, errs.ErrInvalid)
}

// Allocation is one row of a bulk upsert.
type Allocation struct {
    CategoryID string       `json:"categoryId"`
    Amount     ledger.Money `json:"amount"`
}

type Service interface {
    Upsert(ctx context.Context, month ledger.Month, categoryID string, amount ledger.Money) (ledger.Budget, error)
    UpsertMany(ctx context.Context, month ledger.Month, rows []Allocation) ([]ledger.Budget, error)
    CopyFromPreviousMonth(ctx context.Context, month ledger.Month, mode CopyMode) (int, error)
    Delete(ctx context.Context, id string) error
    List(ctx context.Context, month ledger.Month) ([]report.BudgetUsage, error)
}

type service struct {
    store    storage.Store
    pub      events.Publisher
    log      *slog.Logger
    loc      *time.Location
    copyMode CopyMode
    now      func() time.Time
}

func New(store storage.Store, pub events.Publisher, log *slog.Logger, loc *time.Location, copyMode CopyMode) Service {
    if log == nil { log = slog.Default() }
    if loc == nil { loc = time.UTC }
    if copyMode == "" { copyMode = CopyOverwrite }
    return &service{store: store, pub: events.OrNop(pub), log: log, loc: loc, copyMode: copyMode, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) Upsert(ctx context.Context, month ledger.Month, categoryID string, amount ledger.Money) (ledger.Budget, error) {
    out, err := s.UpsertMany(ctx, month, []Allocation{{CategoryID: categoryID, Amount: amount}})
    if err != nil { return ledger.Budget{}, err }
    return out[0], nil
}

// UpsertMany applies every row in one atomic scope; one bad row rejects all.
func (s *service) UpsertMany(ctx context.Context, month ledger.Month, rows []Allocation) ([]ledger.Budget, error) {
    month, err := ledger.ParseMonth(string(month))
    if err != nil { return nil, err }
    out := make([]ledger.Budget, 0, len(rows))
    err = s.store.Atomic(ctx, func(tx storage.Tx) error {
        now := s.now()
        for _, r := range rows {
            if r.Amount.IsNeg() {
                return fmt.Errorf("budget for %q: amount must be >= 0: %w", r.CategoryID, errs.ErrInvalidOperation)
            }
            if _, err := tx.GetCategory(ctx, r.CategoryID); err != nil { return fmt.Errorf("budget category: %w", err) }
            b, err := upsert(ctx, tx, month, r.CategoryID, r.Amount, now)
            if err != nil { return err }
            out = append(out, b)
        }
        return nil
    })
    if err != nil { return nil, err }
    for _, b := range out {
        s.log.DebugContext(ctx, "budget upserted", "budget_id", b.ID, "month", string(month), "category_id", b.CategoryID, "amount", b.Amount.String())
        s.pub.Publish(ctx, events.New(events.BudgetUpserted, b.ID))
    }
    return out, nil
}

func upsert(ctx context.Context, tx storage.Tx, month ledger.Month, categoryID string, amount ledger.Money, now time.Time) (ledger.Budget, error) {
    b, err := tx.BudgetFor(ctx, month, categoryID)
    switch {
    case err == nil:
        b.Amount = amount
        b.UpdatedAt = now
    case errors.Is(err, errs.ErrNotFound):
        b = ledger.Budget{
            ID:         ledger.NewID(ledger.PrefixBudget),
            Month:      month,
            CategoryID: categoryID,
            Amount:     amount,
            Spent:      ledger.Zero,
            CreatedAt:  now,
            UpdatedAt:  now,
        }
    default:
        return ledger.Budget{}, err
    }
    if err := tx.PutBudget(ctx, b); err != nil { return ledger.Budget{}, err }
    return b, nil
}

// CopyFromPreviousMonth upserts last month's allocations into month and
// returns how many rows were written. mode "" uses the configured default.
func (s *service) CopyFromPreviousMonth(ctx context.Context, month ledger.Month, mode CopyMode) (int, error) {
    month, err := ledger.ParseMonth(string(month))
    if err != nil { return 0, err }
    if mode == "" { mode = s.copyMode }
    prev := month.Prev()
    n := 0
    err = s.store.Atomic(ctx, func(tx storage.Tx) error {
        src, err := tx.ListBudgets(ctx, prev)
        if err != nil { return err }
        now := s.now()
        for _, b := range src {
            if mode == CopyMerge {
                _, err := tx.BudgetFor(ctx, month, b.CategoryID)
                if err == nil { continue }
                if !errors.Is(err, errs.ErrNotFound) { return err }
            }
            if _, err := upsert(ctx, tx, month, b.CategoryID, b.Amount, now); err != nil { return err }
            n++
        }
        return nil
    })
    if err != nil { return 0, err }
    s.log.InfoContext(ctx, "budgets copied", "from", string(prev), "to", string(month), "mode", string(mode), "count", n)
    if n > 0 { s.pub.Publish(ctx, events.New(events.BudgetsCopied, string(month))) }
    return n, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
    if err := s.store.DeleteBudget(ctx, id); err != nil { return err }
    s.pub.Publish(ctx, events.New(events.BudgetDeleted, id))
    return nil
}

// List returns month's budgets with usage recomputed from that month's expenses.
func (s *service) List(ctx context.Context, month ledger.Month) ([]report.BudgetUsage, error) {
    month, err := ledger.ParseMonth(string(month))
    if err != nil { return nil, err }
    budgets, err := s.store.ListBudgets(ctx, month)
    if err != nil { return nil, err }
    from, to := month.Start(s.loc), month.End(s.loc)
    txns, err := s.store.ListTransactions(ctx, storage.TransactionFilter{From: &from, To: &to})
    if err != nil { return nil, err }
    return report.BudgetUsages(budgets, txns)
}
