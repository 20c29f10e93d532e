package ledger

import "testing"

func TestEffect(t *testing.T) {
    amt := MustMoney("250.75")
    cases := []struct {
        typ  TransactionType
        role Role
        want string
    }{
        {TransactionTypeIncome, RolePrimary, "250.75"},
        {TransactionTypeIncome, RoleCounterparty, "0"},
        {TransactionTypeExpense, RolePrimary, "-250.75"},
        {TransactionTypeExpense, RoleCounterparty, "0"},
        {TransactionTypeTransfer, RolePrimary, "-250.75"},
        {TransactionTypeTransfer, RoleCounterparty, "250.75"},
        {TransactionType("refund"), RolePrimary, "0"},
    }
    for _, tc := range cases {
        got := Effect(tc.typ, amt, tc.role)
        if !got.Equal(MustMoney(tc.want)) { t.Fatalf("Effect(%s, %s) = %s, want %s", tc.typ, tc.role, got, tc.want) }
    }
}

func TestEffectOn(t *testing.T) {
    to := "acct-b"
    txn := Transaction{Type: TransactionTypeTransfer, Amount: MustMoney("300"), AccountID: "acct-a", CounterpartyAccountID: &to}
    if got := EffectOn(txn, "acct-a"); !got.Equal(MustMoney("-300")) { t.Fatalf("source effect %s", got) }
    if got := EffectOn(txn, "acct-b"); !got.Equal(MustMoney("300")) { t.Fatalf("destination effect %s", got) }
    if got := EffectOn(txn, "acct-c"); !got.IsZero() { t.Fatalf("bystander effect %s", got) }
    if !txn.Touches("acct-b") || txn.Touches("acct-c") { t.Fatalf("Touches mismatch") }
}
