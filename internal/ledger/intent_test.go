package ledger

import (
    "errors"
    "testing"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
)

func base(amount string) IntentBase {
    return IntentBase{Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), Amount: MustMoney(amount), AccountID: "acct-a"}
}

func TestNewIntent_Valid(t *testing.T) {
    in, err := NewIntent(TransactionTypeTransfer, base("300"), "", "acct-b")
    if err != nil { t.Fatalf("transfer: %v", err) }
    tr, ok := in.(Transfer)
    if !ok || tr.ToAccountID != "acct-b" || in.Kind() != TransactionTypeTransfer { t.Fatalf("unexpected intent %#v", in) }
    if _, err := NewIntent(TransactionTypeExpense, base("1"), "cat-food", ""); err != nil { t.Fatalf("expense: %v", err) }
    if _, err := NewIntent(TransactionTypeIncome, base("0.01"), "cat-salary", ""); err != nil { t.Fatalf("income: %v", err) }
}

func TestNewIntent_Rejects(t *testing.T) {
    cases := []struct {
        name         string
        typ          TransactionType
        b            IntentBase
        cat, counter string
    }{
        {"zero amount", TransactionTypeExpense, base("0"), "cat", ""},
        {"negative amount", TransactionTypeIncome, base("-5"), "cat", ""},
        {"missing account", TransactionTypeExpense, IntentBase{Date: time.Now(), Amount: MustMoney("1")}, "cat", ""},
        {"missing date", TransactionTypeExpense, IntentBase{Amount: MustMoney("1"), AccountID: "a"}, "cat", ""},
        {"expense without category", TransactionTypeExpense, base("1"), "", ""},
        {"income with counterparty", TransactionTypeIncome, base("1"), "cat", "acct-b"},
        {"transfer without counterparty", TransactionTypeTransfer, base("1"), "", ""},
        {"transfer to self", TransactionTypeTransfer, base("1"), "", "acct-a"},
        {"transfer with category", TransactionTypeTransfer, base("1"), "cat", "acct-b"},
        {"unknown type", TransactionType("loan"), base("1"), "cat", ""},
    }
    for _, tc := range cases {
        if _, err := NewIntent(tc.typ, tc.b, tc.cat, tc.counter); !errors.Is(err, errs.ErrInvalidOperation) {
            t.Fatalf("%s: expected invalid operation, got %v", tc.name, err)
        }
    }
}

func TestValidate_StructLiterals(t *testing.T) {
    cases := []struct {
        name string
        in   TransactionIntent
        ok   bool
    }{
        {"valid transfer", Transfer{IntentBase: base("5"), ToAccountID: "acct-b"}, true},
        {"self transfer", Transfer{IntentBase: base("5"), ToAccountID: "acct-a"}, false},
        {"negative expense", Expense{IntentBase: base("-1"), CategoryID: "cat"}, false},
        {"income without category", Income{IntentBase: base("1")}, false},
    }
    for _, tc := range cases {
        err := tc.in.Validate()
        if tc.ok && err != nil { t.Fatalf("%s: %v", tc.name, err) }
        if !tc.ok && !errors.Is(err, errs.ErrInvalidOperation) { t.Fatalf("%s: want invalid operation, got %v", tc.name, err) }
    }
}
