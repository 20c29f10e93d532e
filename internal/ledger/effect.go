package ledger

// Role is the position an account occupies in a transaction.
type Role string

const (
    // RolePrimary is the transaction's accountId (the source of a transfer).
    RolePrimary Role = "primary"
    // RoleCounterparty is the destination of a transfer.
    RoleCounterparty Role = "counterparty"
)

// Effect returns the signed balance delta a transaction of type t and amount
// applies to an account in the given role. Combinations that do not move money
// (e.g. an expense seen from a counterparty) yield zero.
func Effect(t TransactionType, amount Money, role Role) Money {
    switch t {
    case TransactionTypeIncome:
        if role == RolePrimary { return amount }
    case TransactionTypeExpense:
        if role == RolePrimary { return amount.Neg() }
    case TransactionTypeTransfer:
        switch role {
        case RolePrimary:
            return amount.Neg()
        case RoleCounterparty:
            return amount
        }
    }
    return Zero
}

// EffectOn returns the total delta txn applies to accountID across both roles.
func EffectOn(txn Transaction, accountID string) Money {
    total := Zero
    if txn.AccountID == accountID {
        total = Effect(txn.Type, txn.Amount, RolePrimary)
    }
    if txn.Type == TransactionTypeTransfer && txn.CounterpartyAccountID != nil && *txn.CounterpartyAccountID == accountID {
        if v, err := total.Add(Effect(txn.Type, txn.Amount, RoleCounterparty)); err == nil {
            total = v
        }
    }
    return total
}
