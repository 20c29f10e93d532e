// Package seed installs the first-run starter data: three accounts, the
// default categories and an empty budget per expense category for the
// current month.
package seed

import (
    "context"
    "log/slog"
    "time"

    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
)

type account struct {
    id, name string
    typ      ledger.AccountType
    opening  string
}

type category struct {
    id, name string
    typ      ledger.CategoryType
}

var accounts = []account{
    {"acct-bank-001", "City Bank", ledger.AccountTypeBank, "120000"},
    {"acct-bkash-001", "bKash Wallet", ledger.AccountTypeWallet, "15000"},
    {"acct-cash-001", "Cash", ledger.AccountTypeCash, "8000"},
}

var categories = []category{
    {"cat-exp-food", "Food & Groceries", ledger.CategoryTypeExpense},
    {"cat-exp-transport", "Transport", ledger.CategoryTypeExpense},
    {"cat-exp-bills", "Bills & Utilities", ledger.CategoryTypeExpense},
    {"cat-exp-rent", "Rent", ledger.CategoryTypeExpense},
    {"cat-exp-education", "Education", ledger.CategoryTypeExpense},
    {"cat-exp-health", "Health", ledger.CategoryTypeExpense},
    {"cat-exp-entertainment", "Entertainment", ledger.CategoryTypeExpense},
    {"cat-exp-shopping", "Shopping", ledger.CategoryTypeExpense},
    {"cat-exp-gifts", "Gifts & Donations", ledger.CategoryTypeExpense},
    {"cat-exp-fees", "Fees & Charges", ledger.CategoryTypeExpense},
    {"cat-inc-salary", "Salary", ledger.CategoryTypeIncome},
    {"cat-inc-bonus", "Bonus", ledger.CategoryTypeIncome},
    {"cat-inc-interest", "Interest", ledger.CategoryTypeIncome},
    {"cat-inc-gifts", "Gift Received", ledger.CategoryTypeIncome},
    {"cat-inc-other", "Other", ledger.CategoryTypeIncome},
}

// Options tune Apply. Zero values give BDT, UTC and the wall clock.
type Options struct {
    Currency string
    Location *time.Location
    Now      func() time.Time
    Log      *slog.Logger
    Pub      events.Publisher
}

// Apply seeds st when it holds no accounts and reports whether it did.
// Everything is written in one atomic scope.
func Apply(ctx context.Context, st storage.Store, opt Options) (bool, error) {
    if opt.Currency == "" {
        opt.Currency = "BDT"
    }
    if opt.Location == nil {
        opt.Location = time.UTC
    }
    if opt.Now == nil {
        opt.Now = time.Now
    }
    if opt.Log == nil {
        opt.Log = slog.Default()
    }
    now := opt.Now().UTC()
    month := ledger.MonthOf(now, opt.Location)
    applied := false
    err := st.Atomic(ctx, func(tx storage.Tx) error {
        existing, err := tx.ListAccounts(ctx)
        if err != nil { return err }
        if len(existing) > 0 { return nil }
        for i, a := range accounts {
            opening := ledger.MustMoney(a.opening)
            // distinct createdAt keeps listing order stable
            created := now.Add(time.Duration(i) * time.Millisecond)
            if err := tx.PutAccount(ctx, ledger.Account{
                ID:             a.id,
                Name:           a.name,
                Type:           a.typ,
                Balance:        opening,
                OpeningBalance: opening,
                Currency:       opt.Currency,
                CreatedAt:      created,
                UpdatedAt:      created,
            }); err != nil {
                return err
            }
        }
        for _, c := range categories {
            if err := tx.PutCategory(ctx, ledger.Category{ID: c.id, Name: c.name, Type: c.typ, CreatedAt: now, UpdatedAt: now}); err != nil {
                return err
            }
            if c.typ != ledger.CategoryTypeExpense { continue }
            if err := tx.PutBudget(ctx, ledger.Budget{
                ID:         ledger.PrefixBudget + "-" + c.id,
                Month:      month,
                CategoryID: c.id,
                Amount:     ledger.Zero,
                Spent:      ledger.Zero,
                CreatedAt:  now,
                UpdatedAt:  now,
            }); err != nil {
                return err
            }
        }
        applied = true
        return nil
    })
    if err != nil { return false, err }
    if applied {
        opt.Log.InfoContext(ctx, "seed applied", "accounts", len(accounts), "categories", len(categories), "month", string(month))
        events.OrNop(opt.Pub).Publish(ctx, events.New(events.SeedApplied, string(month)))
    }
    return applied, nil
}
