// Package report computes derived metrics from an entity snapshot. Every
// function is pure: the same inputs always give the same figures, so callers
// may cache results keyed on the store's state.
package report

import (
    "fmt"
    "sort"
    "time"

    "github.com/tinoosan/hishab/internal/ledger"
)

// CashFlow is one month's income, expense and their difference.
type CashFlow struct {
    Month   ledger.Month `json:"month"`
    Income  ledger.Money `json:"income"`
    Expense ledger.Money `json:"expense"`
    Net     ledger.Money `json:"net"`
}

// BudgetUsage is a budget with its spending recomputed from transactions.
// Remaining goes negative when over budget; Progress is clamped to [0, 1].
type BudgetUsage struct {
    ledger.Budget
    Spent     ledger.Money `json:"spent"`
    Remaining ledger.Money `json:"remaining"`
    Progress  float64      `json:"progress"`
}

// NetWorth sums balances of accounts that are not archived.
func NetWorth(accts []ledger.Account) (ledger.Money, error) {
    total := ledger.Zero
    for _, a := range accts {
        if a.Archived { continue }
        next, err := total.Add(a.Balance)
        if err != nil { return ledger.Zero, fmt.Errorf("net worth: %w", err) }
        total = next
    }
    return total, nil
}

// MonthlyCashFlow totals income and expense dated within month, with month
// boundaries taken in loc. Transfers are ignored.
func MonthlyCashFlow(txns []ledger.Transaction, month ledger.Month, loc *time.Location) (CashFlow, error) {
    cf := CashFlow{Month: month, Income: ledger.Zero, Expense: ledger.Zero}
    var err error
    for _, t := range txns {
        if !month.Contains(t.Date, loc) { continue }
        switch t.Type {
        case ledger.TransactionTypeIncome:
            cf.Income, err = cf.Income.Add(t.Amount)
        case ledger.TransactionTypeExpense:
            cf.Expense, err = cf.Expense.Add(t.Amount)
        }
        if err != nil { return CashFlow{}, fmt.Errorf("cash flow: %w", err) }
    }
    if cf.Net, err = cf.Income.Sub(cf.Expense); err != nil { return CashFlow{}, fmt.Errorf("cash flow: %w", err) }
    return cf, nil
}

// BudgetUsages pairs each budget with the expenses in its category. The
// caller passes transactions already scoped to the budgets' month.
func BudgetUsages(budgets []ledger.Budget, txns []ledger.Transaction) ([]BudgetUsage, error) {
    spent := map[string]ledger.Money{}
    for _, t := range txns {
        if t.Type != ledger.TransactionTypeExpense || t.CategoryID == nil { continue }
        next, err := spent[*t.CategoryID].Add(t.Amount)
        if err != nil { return nil, fmt.Errorf("budget usage: %w", err) }
        spent[*t.CategoryID] = next
    }
    out := make([]BudgetUsage, 0, len(budgets))
    for _, b := range budgets {
        u := BudgetUsage{Budget: b, Spent: spent[b.CategoryID]}
        rem, err := b.Amount.Sub(u.Spent)
        if err != nil { return nil, fmt.Errorf("budget usage: %w", err) }
        u.Remaining = rem
        u.Progress = Ratio(u.Spent, b.Amount)
        out = append(out, u)
    }
    return out, nil
}

// CategoryTotals sums transactions of type typ per category, largest first,
// ties broken by category id.
func CategoryTotals(txns []ledger.Transaction, typ ledger.TransactionType) ([]ledger.CategoryTotal, error) {
    sums := map[string]ledger.Money{}
    for _, t := range txns {
        if t.Type != typ || t.CategoryID == nil { continue }
        next, err := sums[*t.CategoryID].Add(t.Amount)
        if err != nil { return nil, fmt.Errorf("category totals: %w", err) }
        sums[*t.CategoryID] = next
    }
    out := make([]ledger.CategoryTotal, 0, len(sums))
    for id, amt := range sums {
        out = append(out, ledger.CategoryTotal{CategoryID: id, Amount: amt})
    }
    sort.Slice(out, func(i, j int) bool {
        if c := out[i].Amount.Cmp(out[j].Amount); c != 0 { return c > 0 }
        return out[i].CategoryID < out[j].CategoryID
    })
    return out, nil
}

// GoalProgress is allocated/target clamped to [0, 1].
func GoalProgress(g ledger.SavingsGoal) float64 {
    return Ratio(g.CurrentAllocated, g.TargetAmount)
}

// Ratio returns part/whole clamped to [0, 1]; a non-positive whole yields 0.
func Ratio(part, whole ledger.Money) float64 {
    if !whole.IsPos() || !part.IsPos() { return 0 }
    if part.Cmp(whole) >= 0 { return 1 }
    q, err := part.Quo(whole)
    if err != nil { return 0 }
    return q.Float64()
}
