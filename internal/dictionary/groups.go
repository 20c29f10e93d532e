// Package dictionary serves the enum vocabulary UIs need to build forms.
package dictionary

import (
    "sort"

    "github.com/tinoosan/hishab/internal/ledger"
)

type Entry struct {
    Code  string `json:"code"`
    Label string `json:"label"`
}

var accountTypes = []Entry{
    {Code: string(ledger.AccountTypeBank), Label: "Bank"},
    {Code: string(ledger.AccountTypeCash), Label: "Cash"},
    {Code: string(ledger.AccountTypeWallet), Label: "Mobile Wallet"},
}

var categoryTypes = []Entry{
    {Code: string(ledger.CategoryTypeExpense), Label: "Expense"},
    {Code: string(ledger.CategoryTypeIncome), Label: "Income"},
}

// transactionTypes also records which category kind each type posts against;
// transfers take none.
var transactionTypes = map[ledger.TransactionType]struct {
    label    string
    category ledger.CategoryType
}{
    ledger.TransactionTypeIncome:   {"Income", ledger.CategoryTypeIncome},
    ledger.TransactionTypeExpense:  {"Expense", ledger.CategoryTypeExpense},
    ledger.TransactionTypeTransfer: {"Transfer", ""},
}

// TransactionType is a transaction type with the category kind it requires.
type TransactionType struct {
    Entry
    CategoryType ledger.CategoryType `json:"categoryType,omitempty"`
}

// Dictionary is the full vocabulary.
type Dictionary struct {
    AccountTypes     []Entry           `json:"accountTypes"`
    CategoryTypes    []Entry           `json:"categoryTypes"`
    TransactionTypes []TransactionType `json:"transactionTypes"`
}

func Get() Dictionary {
    d := Dictionary{
        AccountTypes:  append([]Entry(nil), accountTypes...),
        CategoryTypes: append([]Entry(nil), categoryTypes...),
    }
    for t, def := range transactionTypes {
        d.TransactionTypes = append(d.TransactionTypes, TransactionType{Entry: Entry{Code: string(t), Label: def.label}, CategoryType: def.category})
    }
    sort.Slice(d.TransactionTypes, func(i, j int) bool { return d.TransactionTypes[i].Code < d.TransactionTypes[j].Code })
    return d
}

// CategoryTypeFor returns the category kind t posts against, or false for
// transfers and unknown types.
func CategoryTypeFor(t ledger.TransactionType) (ledger.CategoryType, bool) {
    def, ok := transactionTypes[t]
    if !ok || def.category == "" { return "", false }
    return def.category, true
}

// AccountTypeLabel returns the display label for t, or its code when unknown.
func AccountTypeLabel(t ledger.AccountType) string {
    for _, e := range accountTypes {
        if e.Code == string(t) { return e.Label }
    }
    return string(t)
}
