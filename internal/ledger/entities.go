package ledger

import (
    "time"
)

// AccountType enumerates the kinds of money holders a user tracks.
type AccountType string

const (
    AccountTypeCash   AccountType = "cash"
    AccountTypeBank   AccountType = "bank"
    AccountTypeWallet AccountType = "wallet"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
    switch t {
    case AccountTypeCash, AccountTypeBank, AccountTypeWallet:
        return true
    }
    return false
}

// CategoryType separates spending categories from earning categories.
type CategoryType string

const (
    CategoryTypeExpense CategoryType = "expense"
    CategoryTypeIncome  CategoryType = "income"
)

func (t CategoryType) Valid() bool { return t == CategoryTypeExpense || t == CategoryTypeIncome }

// TransactionType identifies the posting logic applied to a transaction.
type TransactionType string

const (
    TransactionTypeIncome   TransactionType = "income"
    TransactionTypeExpense  TransactionType = "expense"
    TransactionTypeTransfer TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
    switch t {
    case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
        return true
    }
    return false
}

// Account is a money holder. Balance is a materialized running total that only
// the journal service mutates; it always equals OpeningBalance plus the effects
// of every transaction touching the account.
type Account struct {
    ID             string      `json:"id"`
    Name           string      `json:"name"`
    Type           AccountType `json:"type"`
    Balance        Money       `json:"balance"`
    OpeningBalance Money       `json:"openingBalance"`
    Currency       string      `json:"currency"`
    Archived       bool        `json:"archived"`
    CreatedAt      time.Time   `json:"createdAt"`
    UpdatedAt      time.Time   `json:"updatedAt"`
}

// Category groups transactions and budgets. ParentID forms an acyclic tree.
type Category struct {
    ID        string       `json:"id"`
    Name      string       `json:"name"`
    Type      CategoryType `json:"type"`
    ParentID  *string      `json:"parentId"`
    Archived  bool         `json:"archived"`
    CreatedAt time.Time    `json:"createdAt"`
    UpdatedAt time.Time    `json:"updatedAt"`
}

// Budget is a monthly envelope for one category. (Month, CategoryID) is unique.
// Spent is informational only; usage is recomputed from transactions on read.
type Budget struct {
    ID         string    `json:"id"`
    Month      Month     `json:"month"`
    CategoryID string    `json:"categoryId"`
    Amount     Money     `json:"amount"`
    Spent      Money     `json:"spent"`
    CreatedAt  time.Time `json:"createdAt"`
    UpdatedAt  time.Time `json:"updatedAt"`
}

// Transaction is one row of the ledger, the source of truth for money movement.
type Transaction struct {
    ID                    string          `json:"id"`
    Date                  time.Time       `json:"date"`
    Type                  TransactionType `json:"type"`
    Amount                Money           `json:"amount"`
    AccountID             string          `json:"accountId"`
    CounterpartyAccountID *string         `json:"counterpartyAccountId"`
    CategoryID            *string         `json:"categoryId"`
    Notes                 string          `json:"notes,omitempty"`
    Tags                  []string        `json:"tags"`
    CreatedAt             time.Time       `json:"createdAt"`
    UpdatedAt             time.Time       `json:"updatedAt"`
}

// Touches reports whether the transaction references accountID in any role.
func (t Transaction) Touches(accountID string) bool {
    if t.AccountID == accountID { return true }
    return t.CounterpartyAccountID != nil && *t.CounterpartyAccountID == accountID
}

// SavingsGoal tracks a manually funded target. CurrentAllocated is not derived
// from transactions.
type SavingsGoal struct {
    ID               string     `json:"id"`
    Name             string     `json:"name"`
    TargetAmount     Money      `json:"targetAmount"`
    TargetDate       *time.Time `json:"targetDate"`
    CurrentAllocated Money      `json:"currentAllocated"`
    CreatedAt        time.Time  `json:"createdAt"`
    UpdatedAt        time.Time  `json:"updatedAt"`
}

// SnapshotTotals holds one month's income and expense totals.
type SnapshotTotals struct {
    Income  Money `json:"income"`
    Expense Money `json:"expense"`
}

// CategoryTotal is the amount spent in one category.
type CategoryTotal struct {
    CategoryID string `json:"categoryId"`
    Amount     Money  `json:"amount"`
}

// Snapshot is an immutable month roll-up used for trend charts.
type Snapshot struct {
    ID         string          `json:"id"`
    Month      Month           `json:"month"`
    NetWorth   Money           `json:"netWorth"`
    Totals     SnapshotTotals  `json:"totals"`
    ByCategory []CategoryTotal `json:"byCategory"`
    CreatedAt  time.Time       `json:"createdAt"`
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
    if s == "" { return nil }
    return &s
}

// StrVal dereferences p, returning "" for nil.
func StrVal(p *string) string {
    if p == nil { return "" }
    return *p
}
