// Package storagetest is a conformance suite every storage.Store backend runs
// from its own tests.
package storagetest

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
)

// Factory returns a fresh, empty store. Cleanup is the caller's job via t.Cleanup.
type Factory func(t *testing.T) storage.Store

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
    t.Run("AccountsRoundTrip", func(t *testing.T) { testAccounts(t, newStore(t)) })
    t.Run("CategoriesOrdered", func(t *testing.T) { testCategories(t, newStore(t)) })
    t.Run("BudgetUniqueness", func(t *testing.T) { testBudgets(t, newStore(t)) })
    t.Run("TransactionFilterAndOrder", func(t *testing.T) { testTransactions(t, newStore(t)) })
    t.Run("GoalsAndSnapshots", func(t *testing.T) { testGoalsSnapshots(t, newStore(t)) })
    t.Run("AtomicCommit", func(t *testing.T) { testAtomicCommit(t, newStore(t)) })
    t.Run("AtomicRollback", func(t *testing.T) { testAtomicRollback(t, newStore(t)) })
    t.Run("Truncate", func(t *testing.T) { testTruncate(t, newStore(t)) })
}

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func ctx(t *testing.T) context.Context {
    t.Helper()
    c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    t.Cleanup(cancel)
    return c
}

// Account builds a test account with the given opening balance.
func Account(id, balance string, created time.Time) ledger.Account {
    m := ledger.MustMoney(balance)
    return ledger.Account{
        ID: id, Name: id, Type: ledger.AccountTypeBank, Balance: m, OpeningBalance: m,
        Currency: "BDT", CreatedAt: created, UpdatedAt: created,
    }
}

// Txn builds a test transaction.
func Txn(id string, typ ledger.TransactionType, date time.Time, amount, account, counterparty, category string) ledger.Transaction {
    return ledger.Transaction{
        ID: id, Date: date, Type: typ, Amount: ledger.MustMoney(amount),
        AccountID: account, CounterpartyAccountID: ledger.StrPtr(counterparty),
        CategoryID: ledger.StrPtr(category), Tags: []string{},
        CreatedAt: date, UpdatedAt: date,
    }
}

func testAccounts(t *testing.T, s storage.Store) {
    c := ctx(t)
    if _, err := s.GetAccount(c, "missing"); !errors.Is(err, errs.ErrNotFound) { t.Fatalf("expected not found, got %v", err) }
    a := Account("acct-b", "120.50", base.Add(time.Hour))
    b := Account("acct-a", "-3", base)
    for _, acc := range []ledger.Account{a, b} {
        if err := s.PutAccount(c, acc); err != nil { t.Fatalf("put account: %v", err) }
    }
    got, err := s.GetAccount(c, "acct-b")
    if err != nil { t.Fatalf("get: %v", err) }
    if !got.Balance.Equal(ledger.MustMoney("120.5")) || got.Currency != "BDT" || got.Type != ledger.AccountTypeBank {
        t.Fatalf("unexpected account: %+v", got)
    }
    list, err := s.ListAccounts(c)
    if err != nil { t.Fatalf("list: %v", err) }
    if len(list) != 2 || list[0].ID != "acct-a" { t.Fatalf("expected createdAt order, got %+v", list) }
    a.Balance = ledger.MustMoney("99")
    a.Archived = true
    if err := s.PutAccount(c, a); err != nil { t.Fatalf("update: %v", err) }
    got, _ = s.GetAccount(c, "acct-b")
    if !got.Balance.Equal(ledger.MustMoney("99")) || !got.Archived { t.Fatalf("update not persisted: %+v", got) }
    if err := s.DeleteAccount(c, "acct-a"); err != nil { t.Fatalf("delete: %v", err) }
    if err := s.DeleteAccount(c, "acct-a"); err != nil { t.Fatalf("second delete must be a no-op: %v", err) }
    if _, err := s.GetAccount(c, "acct-a"); !errors.Is(err, errs.ErrNotFound) {
        t.Fatalf("expected not found after delete, got %v", err)
    }
}

func testCategories(t *testing.T, s storage.Store) {
    c := ctx(t)
    parent := ledger.Category{ID: "cat-1", Name: "food", Type: ledger.CategoryTypeExpense, CreatedAt: base, UpdatedAt: base}
    child := ledger.Category{ID: "cat-2", Name: "Dining", Type: ledger.CategoryTypeExpense, ParentID: ledger.StrPtr("cat-1"), CreatedAt: base, UpdatedAt: base}
    salary := ledger.Category{ID: "cat-3", Name: "Salary", Type: ledger.CategoryTypeIncome, CreatedAt: base, UpdatedAt: base}
    for _, cat := range []ledger.Category{parent, child, salary} {
        if err := s.PutCategory(c, cat); err != nil { t.Fatalf("put category: %v", err) }
    }
    list, err := s.ListCategories(c)
    if err != nil { t.Fatalf("list: %v", err) }
    if len(list) != 3 || list[0].Name != "Dining" || list[1].Name != "food" || list[2].Name != "Salary" {
        t.Fatalf("expected name order, got %+v", list)
    }
    got, _ := s.GetCategory(c, "cat-2")
    if ledger.StrVal(got.ParentID) != "cat-1" { t.Fatalf("parent lost: %+v", got) }
    if err := s.DeleteCategory(c, "cat-3"); err != nil { t.Fatalf("delete: %v", err) }
    if _, err := s.GetCategory(c, "cat-3"); !errors.Is(err, errs.ErrNotFound) { t.Fatalf("expected not found, got %v", err) }
}

func testBudgets(t *testing.T, s storage.Store) {
    c := ctx(t)
    cat := ledger.Category{ID: "cat-1", Name: "Food", Type: ledger.CategoryTypeExpense, CreatedAt: base, UpdatedAt: base}
    if err := s.PutCategory(c, cat); err != nil { t.Fatalf("put category: %v", err) }
    b := ledger.Budget{ID: "bdg-1", Month: "2025-03", CategoryID: "cat-1", Amount: ledger.MustMoney("500"), CreatedAt: base, UpdatedAt: base}
    if err := s.PutBudget(c, b); err != nil { t.Fatalf("put budget: %v", err) }
    dup := b
    dup.ID = "bdg-2"
    if err := s.PutBudget(c, dup); err == nil { t.Fatalf("expected duplicate (month, category) to fail") }
    b.Amount = ledger.MustMoney("650")
    if err := s.PutBudget(c, b); err != nil { t.Fatalf("update budget: %v", err) }
    got, err := s.BudgetFor(c, "2025-03", "cat-1")
    if err != nil { t.Fatalf("budget for: %v", err) }
    if got.ID != "bdg-1" || !got.Amount.Equal(ledger.MustMoney("650")) { t.Fatalf("unexpected budget: %+v", got) }
    if _, err := s.BudgetFor(c, "2025-04", "cat-1"); !errors.Is(err, errs.ErrNotFound) {
        t.Fatalf("expected not found for other month, got %v", err)
    }
    other := ledger.Budget{ID: "bdg-3", Month: "2025-04", CategoryID: "cat-1", Amount: ledger.MustMoney("1"), CreatedAt: base, UpdatedAt: base}
    if err := s.PutBudget(c, other); err != nil { t.Fatalf("put other: %v", err) }
    march, _ := s.ListBudgets(c, "2025-03")
    all, _ := s.ListBudgets(c, "")
    if len(march) != 1 || len(all) != 2 { t.Fatalf("expected 1 march and 2 total budgets, got %d and %d", len(march), len(all)) }
    if err := s.DeleteBudget(c, "bdg-1"); err != nil { t.Fatalf("delete: %v", err) }
    if _, err := s.BudgetFor(c, "2025-03", "cat-1"); !errors.Is(err, errs.ErrNotFound) {
        t.Fatalf("expected not found after delete, got %v", err)
    }
}

func testTransactions(t *testing.T, s storage.Store) {
    c := ctx(t)
    for _, a := range []ledger.Account{Account("acct-1", "0", base), Account("acct-2", "0", base)} {
        if err := s.PutAccount(c, a); err != nil { t.Fatalf("put account: %v", err) }
    }
    for _, cat := range []ledger.Category{
        {ID: "cat-f", Name: "Food", Type: ledger.CategoryTypeExpense, CreatedAt: base, UpdatedAt: base},
        {ID: "cat-s", Name: "Salary", Type: ledger.CategoryTypeIncome, CreatedAt: base, UpdatedAt: base},
    } {
        if err := s.PutCategory(c, cat); err != nil { t.Fatalf("put category: %v", err) }
    }
    d1 := base.AddDate(0, 0, 2)
    d2 := base.AddDate(0, 0, 5)
    txns := []ledger.Transaction{
        Txn("txn-a", ledger.TransactionTypeExpense, d1, "10", "acct-1", "", "cat-f"),
        Txn("txn-b", ledger.TransactionTypeExpense, d1, "20", "acct-1", "", "cat-f"),
        Txn("txn-c", ledger.TransactionTypeIncome, d2, "300", "acct-1", "", "cat-s"),
        Txn("txn-d", ledger.TransactionTypeTransfer, d2.AddDate(0, 1, 0), "5", "acct-1", "acct-2", ""),
    }
    txns[0].Tags = []string{"lunch", "team"}
    txns[0].Notes = "with team"
    for _, txn := range txns {
        if err := s.PutTransaction(c, txn); err != nil { t.Fatalf("put txn %s: %v", txn.ID, err) }
    }
    all, err := s.ListTransactions(c, storage.TransactionFilter{})
    if err != nil { t.Fatalf("list: %v", err) }
    want := []string{"txn-d", "txn-c", "txn-b", "txn-a"}
    if len(all) != len(want) { t.Fatalf("expected %d txns, got %d", len(want), len(all)) }
    for i, id := range want {
        if all[i].ID != id { t.Fatalf("order[%d]: want %s got %s", i, id, all[i].ID) }
    }
    got, err := s.GetTransaction(c, "txn-a")
    if err != nil { t.Fatalf("get: %v", err) }
    if len(got.Tags) != 2 || got.Tags[0] != "lunch" || got.Notes != "with team" || ledger.StrVal(got.CategoryID) != "cat-f" {
        t.Fatalf("fields lost: %+v", got)
    }
    from, to := ledger.Month("2025-03").Start(time.UTC), ledger.Month("2025-03").End(time.UTC)
    march, _ := s.ListTransactions(c, storage.TransactionFilter{From: &from, To: &to})
    if len(march) != 3 { t.Fatalf("expected 3 march txns, got %d", len(march)) }
    food, _ := s.ListTransactions(c, storage.TransactionFilter{CategoryID: "cat-f"})
    if len(food) != 2 { t.Fatalf("expected 2 food txns, got %d", len(food)) }
    touching, _ := s.ListTransactions(c, storage.TransactionFilter{AccountID: "acct-2"})
    if len(touching) != 1 || touching[0].ID != "txn-d" { t.Fatalf("expected counterparty match, got %+v", touching) }
    n, err := s.CountAccountReferences(c, "acct-2")
    if err != nil || n != 1 { t.Fatalf("count refs: n=%d err=%v", n, err) }
    moved := txns[0]
    moved.Date = d2.AddDate(0, 2, 0)
    if err := s.PutTransaction(c, moved); err != nil { t.Fatalf("update txn: %v", err) }
    march, _ = s.ListTransactions(c, storage.TransactionFilter{From: &from, To: &to})
    if len(march) != 2 { t.Fatalf("date index not updated, got %d march txns", len(march)) }
    if err := s.DeleteTransaction(c, "txn-d"); err != nil { t.Fatalf("delete: %v", err) }
    if n, _ := s.CountAccountReferences(c, "acct-2"); n != 0 { t.Fatalf("expected no refs after delete, got %d", n) }
}

func testGoalsSnapshots(t *testing.T, s storage.Store) {
    c := ctx(t)
    late := base.AddDate(1, 0, 0)
    early := base.AddDate(0, 6, 0)
    goals := []ledger.SavingsGoal{
        {ID: "goal-1", Name: "Someday", TargetAmount: ledger.MustMoney("10"), CreatedAt: base, UpdatedAt: base},
        {ID: "goal-2", Name: "Laptop", TargetAmount: ledger.MustMoney("90000"), TargetDate: &late, CreatedAt: base, UpdatedAt: base},
        {ID: "goal-3", Name: "Trip", TargetAmount: ledger.MustMoney("5000"), TargetDate: &early, CurrentAllocated: ledger.MustMoney("250"), CreatedAt: base, UpdatedAt: base},
    }
    for _, g := range goals {
        if err := s.PutGoal(c, g); err != nil { t.Fatalf("put goal: %v", err) }
    }
    list, _ := s.ListGoals(c)
    if len(list) != 3 || list[0].ID != "goal-3" || list[1].ID != "goal-2" || list[2].ID != "goal-1" {
        t.Fatalf("expected target-date order, got %+v", list)
    }
    if !list[0].CurrentAllocated.Equal(ledger.MustMoney("250")) { t.Fatalf("allocated lost: %+v", list[0]) }
    if err := s.DeleteGoal(c, "goal-1"); err != nil { t.Fatalf("delete goal: %v", err) }
    for i, m := range []ledger.Month{"2025-01", "2025-03", "2025-02"} {
        snap := ledger.Snapshot{
            ID: "snap-" + string(m), Month: m, NetWorth: ledger.MustMoney("100"),
            Totals:     ledger.SnapshotTotals{Income: ledger.MustMoney("10"), Expense: ledger.MustMoney("4")},
            ByCategory: []ledger.CategoryTotal{{CategoryID: "cat-1", Amount: ledger.MustMoney("4")}},
            CreatedAt:  base.Add(time.Duration(i) * time.Minute),
        }
        if err := s.PutSnapshot(c, snap); err != nil { t.Fatalf("put snapshot: %v", err) }
    }
    snaps, err := s.ListSnapshots(c, 2)
    if err != nil { t.Fatalf("list snapshots: %v", err) }
    if len(snaps) != 2 || snaps[0].Month != "2025-03" || snaps[1].Month != "2025-02" {
        t.Fatalf("expected newest two months, got %+v", snaps)
    }
    if len(snaps[0].ByCategory) != 1 || !snaps[0].Totals.Expense.Equal(ledger.MustMoney("4")) {
        t.Fatalf("snapshot body lost: %+v", snaps[0])
    }
}

func testAtomicCommit(t *testing.T, s storage.Store) {
    c := ctx(t)
    err := s.Atomic(c, func(tx storage.Tx) error {
        if err := tx.PutAccount(c, Account("acct-1", "10", base)); err != nil { return err }
        // reads inside the scope observe earlier writes
        a, err := tx.GetAccount(c, "acct-1")
        if err != nil { return err }
        a.Balance = ledger.MustMoney("15")
        return tx.PutAccount(c, a)
    })
    if err != nil { t.Fatalf("atomic: %v", err) }
    a, err := s.GetAccount(c, "acct-1")
    if err != nil || !a.Balance.Equal(ledger.MustMoney("15")) { t.Fatalf("commit not visible: %+v err=%v", a, err) }
}

func testAtomicRollback(t *testing.T, s storage.Store) {
    c := ctx(t)
    if err := s.PutAccount(c, Account("acct-1", "10", base)); err != nil { t.Fatalf("seed: %v", err) }
    boom := errors.New("boom")
    err := s.Atomic(c, func(tx storage.Tx) error {
        a, _ := tx.GetAccount(c, "acct-1")
        a.Balance = ledger.MustMoney("999")
        if err := tx.PutAccount(c, a); err != nil { return err }
        if err := tx.PutAccount(c, Account("acct-2", "1", base)); err != nil { return err }
        return boom
    })
    if !errors.Is(err, boom) { t.Fatalf("expected fn error to surface, got %v", err) }
    a, _ := s.GetAccount(c, "acct-1")
    if !a.Balance.Equal(ledger.MustMoney("10")) { t.Fatalf("rollback failed, balance %s", a.Balance) }
    if _, err := s.GetAccount(c, "acct-2"); !errors.Is(err, errs.ErrNotFound) {
        t.Fatalf("rolled back insert is visible: %v", err)
    }
}

func testTruncate(t *testing.T, s storage.Store) {
    c := ctx(t)
    _ = s.PutAccount(c, Account("acct-1", "1", base))
    _ = s.PutCategory(c, ledger.Category{ID: "cat-1", Name: "x", Type: ledger.CategoryTypeExpense, CreatedAt: base, UpdatedAt: base})
    _ = s.PutTransaction(c, Txn("txn-1", ledger.TransactionTypeExpense, base, "1", "acct-1", "", "cat-1"))
    err := s.Atomic(c, func(tx storage.Tx) error { return tx.Truncate(c) })
    if err != nil { t.Fatalf("truncate: %v", err) }
    accts, _ := s.ListAccounts(c)
    cats, _ := s.ListCategories(c)
    txns, _ := s.ListTransactions(c, storage.TransactionFilter{})
    if len(accts)+len(cats)+len(txns) != 0 { t.Fatalf("truncate left rows: %d/%d/%d", len(accts), len(cats), len(txns)) }
}
