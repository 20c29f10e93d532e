// Package memory provides an in-memory entity store used for development and tests.
// Atomic scopes run against a staged copy of the state that is swapped in on success.
package memory

import (
    "context"
    "fmt"
    "slices"
    "sort"
    "sync"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
)

// txnKey tracks transaction ordering: sorted asc by (Date, ID).
type txnKey struct {
    Date time.Time
    ID   string
}

type budgetKey struct {
    Month      ledger.Month
    CategoryID string
}

// state holds every collection plus its secondary indexes. It is not safe for
// concurrent use; Store guards it.
type state struct {
    accounts   map[string]ledger.Account
    categories map[string]ledger.Category
    budgets    map[string]ledger.Budget
    budgetIdx  map[budgetKey]string
    txns       map[string]ledger.Transaction
    txnKeys    []txnKey
    goals      map[string]ledger.SavingsGoal
    snapshots  map[string]ledger.Snapshot
}

func newState() *state {
    return &state{
        accounts:   make(map[string]ledger.Account),
        categories: make(map[string]ledger.Category),
        budgets:    make(map[string]ledger.Budget),
        budgetIdx:  make(map[budgetKey]string),
        txns:       make(map[string]ledger.Transaction),
        goals:      make(map[string]ledger.SavingsGoal),
        snapshots:  make(map[string]ledger.Snapshot),
    }
}

func (st *state) clone() *state {
    out := &state{
        accounts:   make(map[string]ledger.Account, len(st.accounts)),
        categories: make(map[string]ledger.Category, len(st.categories)),
        budgets:    make(map[string]ledger.Budget, len(st.budgets)),
        budgetIdx:  make(map[budgetKey]string, len(st.budgetIdx)),
        txns:       make(map[string]ledger.Transaction, len(st.txns)),
        txnKeys:    slices.Clone(st.txnKeys),
        goals:      make(map[string]ledger.SavingsGoal, len(st.goals)),
        snapshots:  make(map[string]ledger.Snapshot, len(st.snapshots)),
    }
    for k, v := range st.accounts {
        out.accounts[k] = v
    }
    for k, v := range st.categories {
        out.categories[k] = v
    }
    for k, v := range st.budgets {
        out.budgets[k] = v
    }
    for k, v := range st.budgetIdx {
        out.budgetIdx[k] = v
    }
    for k, v := range st.txns {
        out.txns[k] = v
    }
    for k, v := range st.goals {
        out.goals[k] = v
    }
    for k, v := range st.snapshots {
        out.snapshots[k] = v
    }
    return out
}

// Store is an in-memory implementation of storage.Store guarded by an RWMutex.
type Store struct {
    mu sync.RWMutex
    st *state
}

var _ storage.Store = (*Store)(nil)

// New constructs an empty in-memory store.
func New() *Store { return &Store{st: newState()} }

// Reset drops all data.
func (s *Store) Reset() {
    s.mu.Lock()
    s.st = newState()
    s.mu.Unlock()
}

// Atomic stages writes on a copy of the state and publishes it only if fn succeeds.
// The write lock is held for the whole scope, serializing concurrent scopes.
func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    staged := s.st.clone()
    if err := fn(staged); err != nil { return err }
    if err := ctx.Err(); err != nil { return fmt.Errorf("commit: %w", err) }
    s.st = staged
    return nil
}

func (s *Store) Ready(context.Context) error { return nil }
func (s *Store) Close() error                { return nil }

// --- locked delegates ---

func (s *Store) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.GetAccount(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.ListAccounts(ctx)
}

func (s *Store) CountAccountReferences(ctx context.Context, id string) (int, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.CountAccountReferences(ctx, id)
}

func (s *Store) GetCategory(ctx context.Context, id string) (ledger.Category, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.GetCategory(ctx, id)
}

func (s *Store) ListCategories(ctx context.Context) ([]ledger.Category, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.ListCategories(ctx)
}

func (s *Store) GetBudget(ctx context.Context, id string) (ledger.Budget, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.GetBudget(ctx, id)
}

func (s *Store) BudgetFor(ctx context.Context, month ledger.Month, categoryID string) (ledger.Budget, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.BudgetFor(ctx, month, categoryID)
}

func (s *Store) ListBudgets(ctx context.Context, month ledger.Month) ([]ledger.Budget, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.ListBudgets(ctx, month)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.GetTransaction(ctx, id)
}

func (s *Store) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]ledger.Transaction, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.ListTransactions(ctx, f)
}

func (s *Store) GetGoal(ctx context.Context, id string) (ledger.SavingsGoal, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.GetGoal(ctx, id)
}

func (s *Store) ListGoals(ctx context.Context) ([]ledger.SavingsGoal, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.ListGoals(ctx)
}

func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]ledger.Snapshot, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.st.ListSnapshots(ctx, limit)
}

func (s *Store) PutAccount(ctx context.Context, a ledger.Account) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.PutAccount(ctx, a)
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.DeleteAccount(ctx, id)
}

func (s *Store) PutCategory(ctx context.Context, c ledger.Category) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.PutCategory(ctx, c)
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.DeleteCategory(ctx, id)
}

func (s *Store) PutBudget(ctx context.Context, b ledger.Budget) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.PutBudget(ctx, b)
}

func (s *Store) DeleteBudget(ctx context.Context, id string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.DeleteBudget(ctx, id)
}

func (s *Store) PutTransaction(ctx context.Context, t ledger.Transaction) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.PutTransaction(ctx, t)
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.DeleteTransaction(ctx, id)
}

func (s *Store) PutGoal(ctx context.Context, g ledger.SavingsGoal) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.PutGoal(ctx, g)
}

func (s *Store) DeleteGoal(ctx context.Context, id string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.DeleteGoal(ctx, id)
}

func (s *Store) PutSnapshot(ctx context.Context, snap ledger.Snapshot) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.PutSnapshot(ctx, snap)
}

func (s *Store) Truncate(ctx context.Context) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.Truncate(ctx)
}

// --- state implements storage.Tx ---

func notFound(kind, id string) error {
    return fmt.Errorf("%s %q: %w", kind, id, errs.ErrNotFound)
}

func (st *state) GetAccount(_ context.Context, id string) (ledger.Account, error) {
    a, ok := st.accounts[id]
    if !ok { return ledger.Account{}, notFound("account", id) }
    return a, nil
}

func (st *state) ListAccounts(_ context.Context) ([]ledger.Account, error) {
    out := make([]ledger.Account, 0, len(st.accounts))
    for _, a := range st.accounts {
        out = append(out, a)
    }
    storage.SortAccounts(out)
    return out, nil
}

func (st *state) CountAccountReferences(_ context.Context, id string) (int, error) {
    n := 0
    for _, t := range st.txns {
        if t.Touches(id) {
            n++
        }
    }
    return n, nil
}

func (st *state) GetCategory(_ context.Context, id string) (ledger.Category, error) {
    c, ok := st.categories[id]
    if !ok { return ledger.Category{}, notFound("category", id) }
    return c, nil
}

func (st *state) ListCategories(_ context.Context) ([]ledger.Category, error) {
    out := make([]ledger.Category, 0, len(st.categories))
    for _, c := range st.categories {
        out = append(out, c)
    }
    storage.SortCategories(out)
    return out, nil
}

func (st *state) GetBudget(_ context.Context, id string) (ledger.Budget, error) {
    b, ok := st.budgets[id]
    if !ok { return ledger.Budget{}, notFound("budget", id) }
    return b, nil
}

func (st *state) BudgetFor(_ context.Context, month ledger.Month, categoryID string) (ledger.Budget, error) {
    id, ok := st.budgetIdx[budgetKey{Month: month, CategoryID: categoryID}]
    if !ok { return ledger.Budget{}, notFound("budget", string(month)+"/"+categoryID) }
    return st.budgets[id], nil
}

func (st *state) ListBudgets(_ context.Context, month ledger.Month) ([]ledger.Budget, error) {
    out := make([]ledger.Budget, 0)
    for _, b := range st.budgets {
        if month == "" || b.Month == month {
            out = append(out, b)
        }
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].Month != out[j].Month { return out[i].Month < out[j].Month }
        if out[i].CategoryID != out[j].CategoryID { return out[i].CategoryID < out[j].CategoryID }
        return out[i].ID < out[j].ID
    })
    return out, nil
}

func (st *state) GetTransaction(_ context.Context, id string) (ledger.Transaction, error) {
    t, ok := st.txns[id]
    if !ok { return ledger.Transaction{}, notFound("transaction", id) }
    return cloneTxn(t), nil
}

func (st *state) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]ledger.Transaction, error) {
    keys := st.rangeByTime(f.From, f.To)
    out := make([]ledger.Transaction, 0, len(keys))
    for _, k := range keys {
        t, ok := st.txns[k.ID]
        if !ok || !f.Match(t) { continue }
        out = append(out, cloneTxn(t))
    }
    storage.SortTransactions(out)
    return out, nil
}

func (st *state) GetGoal(_ context.Context, id string) (ledger.SavingsGoal, error) {
    g, ok := st.goals[id]
    if !ok { return ledger.SavingsGoal{}, notFound("goal", id) }
    return g, nil
}

func (st *state) ListGoals(_ context.Context) ([]ledger.SavingsGoal, error) {
    out := make([]ledger.SavingsGoal, 0, len(st.goals))
    for _, g := range st.goals {
        out = append(out, g)
    }
    storage.SortGoals(out)
    return out, nil
}

func (st *state) ListSnapshots(_ context.Context, limit int) ([]ledger.Snapshot, error) {
    out := make([]ledger.Snapshot, 0, len(st.snapshots))
    for _, s := range st.snapshots {
        out = append(out, s)
    }
    storage.SortSnapshots(out)
    if limit > 0 && len(out) > limit {
        out = out[:limit]
    }
    return out, nil
}

func (st *state) PutAccount(_ context.Context, a ledger.Account) error {
    st.accounts[a.ID] = a
    return nil
}

func (st *state) DeleteAccount(_ context.Context, id string) error {
    delete(st.accounts, id)
    return nil
}

func (st *state) PutCategory(_ context.Context, c ledger.Category) error {
    st.categories[c.ID] = c
    return nil
}

func (st *state) DeleteCategory(_ context.Context, id string) error {
    delete(st.categories, id)
    return nil
}

// PutBudget enforces (month, categoryId) uniqueness like a unique index would.
func (st *state) PutBudget(_ context.Context, b ledger.Budget) error {
    k := budgetKey{Month: b.Month, CategoryID: b.CategoryID}
    if other, ok := st.budgetIdx[k]; ok && other != b.ID {
        return fmt.Errorf("budget %s/%s already exists: %w", b.Month, b.CategoryID, errs.ErrConflict)
    }
    if prev, ok := st.budgets[b.ID]; ok {
        delete(st.budgetIdx, budgetKey{Month: prev.Month, CategoryID: prev.CategoryID})
    }
    st.budgets[b.ID] = b
    st.budgetIdx[k] = b.ID
    return nil
}

func (st *state) DeleteBudget(_ context.Context, id string) error {
    if prev, ok := st.budgets[id]; ok {
        delete(st.budgetIdx, budgetKey{Month: prev.Month, CategoryID: prev.CategoryID})
        delete(st.budgets, id)
    }
    return nil
}

func (st *state) PutTransaction(_ context.Context, t ledger.Transaction) error {
    if prev, ok := st.txns[t.ID]; ok {
        st.removeTxnKey(txnKey{Date: prev.Date, ID: prev.ID})
    }
    st.txns[t.ID] = cloneTxn(t)
    st.insertTxnKey(txnKey{Date: t.Date, ID: t.ID})
    return nil
}

func (st *state) DeleteTransaction(_ context.Context, id string) error {
    if prev, ok := st.txns[id]; ok {
        st.removeTxnKey(txnKey{Date: prev.Date, ID: prev.ID})
        delete(st.txns, id)
    }
    return nil
}

func (st *state) PutGoal(_ context.Context, g ledger.SavingsGoal) error {
    st.goals[g.ID] = g
    return nil
}

func (st *state) DeleteGoal(_ context.Context, id string) error {
    delete(st.goals, id)
    return nil
}

func (st *state) PutSnapshot(_ context.Context, s ledger.Snapshot) error {
    s.ByCategory = slices.Clone(s.ByCategory)
    st.snapshots[s.ID] = s
    return nil
}

func (st *state) Truncate(_ context.Context) error {
    *st = *newState()
    return nil
}

func cloneTxn(t ledger.Transaction) ledger.Transaction {
    t.Tags = slices.Clone(t.Tags)
    if t.Tags == nil {
        t.Tags = []string{}
    }
    return t
}

func keyLess(a, b txnKey) bool {
    if !a.Date.Equal(b.Date) { return a.Date.Before(b.Date) }
    return a.ID < b.ID
}

// insertTxnKey inserts k keeping txnKeys sorted asc by (Date, ID).
func (st *state) insertTxnKey(k txnKey) {
    i := sort.Search(len(st.txnKeys), func(i int) bool { return keyLess(k, st.txnKeys[i]) })
    st.txnKeys = slices.Insert(st.txnKeys, i, k)
}

func (st *state) removeTxnKey(k txnKey) {
    i := sort.Search(len(st.txnKeys), func(i int) bool { return !keyLess(st.txnKeys[i], k) })
    if i < len(st.txnKeys) && st.txnKeys[i].ID == k.ID {
        st.txnKeys = slices.Delete(st.txnKeys, i, i+1)
    }
}

// rangeByTime returns the keys within [from,to] inclusive.
func (st *state) rangeByTime(from, to *time.Time) []txnKey {
    keys := st.txnKeys
    start := 0
    if from != nil {
        f := *from
        start = sort.Search(len(keys), func(i int) bool { return !keys[i].Date.Before(f) })
    }
    end := len(keys)
    if to != nil {
        t := *to
        end = sort.Search(len(keys), func(i int) bool { return keys[i].Date.After(t) })
    }
    if start >= end { return nil }
    return keys[start:end]
}
