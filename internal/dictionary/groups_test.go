package dictionary

import (
    "testing"

    "github.com/tinoosan/hishab/internal/ledger"
)

func TestGet_CoversEnums(t *testing.T) {
    d := Get()
    if len(d.AccountTypes) != 3 || len(d.CategoryTypes) != 2 || len(d.TransactionTypes) != 3 {
        t.Fatalf("unexpected sizes: %+v", d)
    }
    for _, e := range d.AccountTypes {
        if !ledger.AccountType(e.Code).Valid() { t.Fatalf("unknown account type %q", e.Code) }
    }
    if d.TransactionTypes[0].Code != "expense" || d.TransactionTypes[2].Code != "transfer" {
        t.Fatalf("transaction types not sorted: %+v", d.TransactionTypes)
    }
}

func TestCategoryTypeFor(t *testing.T) {
    if ct, ok := CategoryTypeFor(ledger.TransactionTypeExpense); !ok || ct != ledger.CategoryTypeExpense {
        t.Fatalf("expense -> %q %v", ct, ok)
    }
    if _, ok := CategoryTypeFor(ledger.TransactionTypeTransfer); ok { t.Fatalf("transfer should have no category type") }
    if AccountTypeLabel(ledger.AccountTypeWallet) != "Mobile Wallet" { t.Fatalf("label mismatch") }
}
