// Package storage defines the entity store contract shared by the memory,
// SQLite and Postgres backends. Services depend on these interfaces only.
package storage

import (
    "context"
    "sort"
    "strings"
    "time"

    "github.com/tinoosan/hishab/internal/ledger"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no filter";
// From/To are inclusive bounds on Transaction.Date.
type TransactionFilter struct {
    From       *time.Time
    To         *time.Time
    CategoryID string
    AccountID  string
}

// Match reports whether t satisfies the filter. AccountID matches either role.
func (f TransactionFilter) Match(t ledger.Transaction) bool {
    if f.From != nil && t.Date.Before(*f.From) { return false }
    if f.To != nil && t.Date.After(*f.To) { return false }
    if f.CategoryID != "" && ledger.StrVal(t.CategoryID) != f.CategoryID { return false }
    if f.AccountID != "" && !t.Touches(f.AccountID) { return false }
    return true
}

// Reader is the read side of the entity store. Get* return errs.ErrNotFound
// when the id does not resolve.
type Reader interface {
    GetAccount(ctx context.Context, id string) (ledger.Account, error)
    // ListAccounts returns accounts ordered by CreatedAt ascending.
    ListAccounts(ctx context.Context) ([]ledger.Account, error)
    // CountAccountReferences counts transactions using id as primary or counterparty.
    CountAccountReferences(ctx context.Context, id string) (int, error)

    GetCategory(ctx context.Context, id string) (ledger.Category, error)
    // ListCategories returns categories ordered by name.
    ListCategories(ctx context.Context) ([]ledger.Category, error)

    GetBudget(ctx context.Context, id string) (ledger.Budget, error)
    // BudgetFor resolves the budget for a (month, category) pair.
    BudgetFor(ctx context.Context, month ledger.Month, categoryID string) (ledger.Budget, error)
    // ListBudgets returns budgets for month, or all budgets when month is empty.
    ListBudgets(ctx context.Context, month ledger.Month) ([]ledger.Budget, error)

    GetTransaction(ctx context.Context, id string) (ledger.Transaction, error)
    // ListTransactions returns matches in canonical order (see SortTransactions).
    ListTransactions(ctx context.Context, f TransactionFilter) ([]ledger.Transaction, error)

    GetGoal(ctx context.Context, id string) (ledger.SavingsGoal, error)
    // ListGoals returns goals ordered by target date, undated goals last.
    ListGoals(ctx context.Context) ([]ledger.SavingsGoal, error)

    // ListSnapshots returns the newest snapshots by month; limit <= 0 means all.
    ListSnapshots(ctx context.Context, limit int) ([]ledger.Snapshot, error)
}

// Writer is the write side. Put* upsert by id; Delete* are no-ops for missing ids.
type Writer interface {
    PutAccount(ctx context.Context, a ledger.Account) error
    DeleteAccount(ctx context.Context, id string) error
    PutCategory(ctx context.Context, c ledger.Category) error
    DeleteCategory(ctx context.Context, id string) error
    PutBudget(ctx context.Context, b ledger.Budget) error
    DeleteBudget(ctx context.Context, id string) error
    PutTransaction(ctx context.Context, t ledger.Transaction) error
    DeleteTransaction(ctx context.Context, id string) error
    PutGoal(ctx context.Context, g ledger.SavingsGoal) error
    DeleteGoal(ctx context.Context, id string) error
    PutSnapshot(ctx context.Context, s ledger.Snapshot) error
    // Truncate removes every row of all six collections.
    Truncate(ctx context.Context) error
}

// Tx is the view of the store inside an atomic scope.
type Tx interface {
    Reader
    Writer
}

// Store is the entity store. Outside Atomic, each call stands alone.
type Store interface {
    Tx
    // Atomic runs fn in one transaction scope: all writes made through tx commit
    // together or not at all. Concurrent scopes touching the same accounts are
    // serialized so balance read-modify-write cycles cannot lose updates.
    Atomic(ctx context.Context, fn func(tx Tx) error) error
    Ready(ctx context.Context) error
    Close() error
}

// SortTransactions orders by date desc, then createdAt desc, then id desc.
func SortTransactions(list []ledger.Transaction) {
    sort.SliceStable(list, func(i, j int) bool {
        a, b := list[i], list[j]
        if !a.Date.Equal(b.Date) { return a.Date.After(b.Date) }
        if !a.CreatedAt.Equal(b.CreatedAt) { return a.CreatedAt.After(b.CreatedAt) }
        return a.ID > b.ID
    })
}

// SortCategories orders by case-insensitive name, then id.
func SortCategories(list []ledger.Category) {
    sort.SliceStable(list, func(i, j int) bool {
        ni, nj := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
        if ni != nj { return ni < nj }
        return list[i].ID < list[j].ID
    })
}

// SortAccounts orders by createdAt, then id.
func SortAccounts(list []ledger.Account) {
    sort.SliceStable(list, func(i, j int) bool {
        if !list[i].CreatedAt.Equal(list[j].CreatedAt) { return list[i].CreatedAt.Before(list[j].CreatedAt) }
        return list[i].ID < list[j].ID
    })
}

// SortGoals orders by target date ascending with undated goals last, then name.
func SortGoals(list []ledger.SavingsGoal) {
    sort.SliceStable(list, func(i, j int) bool {
        a, b := list[i].TargetDate, list[j].TargetDate
        switch {
        case a != nil && b == nil:
            return true
        case a == nil && b != nil:
            return false
        case a != nil && b != nil && !a.Equal(*b):
            return a.Before(*b)
        }
        return list[i].Name < list[j].Name
    })
}

// SortSnapshots orders by month desc, then createdAt desc.
func SortSnapshots(list []ledger.Snapshot) {
    sort.SliceStable(list, func(i, j int) bool {
        if list[i].Month != list[j].Month { return list[i].Month > list[j].Month }
        return list[i].CreatedAt.After(list[j].CreatedAt)
    })
}
