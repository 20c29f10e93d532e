package ledger

import (
    "fmt"
    "strings"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
)

// TransactionIntent is a request to post a new transaction: one of Income,
// Expense or Transfer. The constructors validate; Validate repeats the checks
// for intents built as struct literals.
type TransactionIntent interface {
    Kind() TransactionType
    Base() IntentBase
    Validate() error
    isIntent()
}

// IntentBase holds the fields every intent shares.
type IntentBase struct {
    Date      time.Time
    Amount    Money
    AccountID string
    Notes     string
    Tags      []string
}

// Income credits AccountID under an income category.
type Income struct {
    IntentBase
    CategoryID string
}

// Expense debits AccountID under an expense category.
type Expense struct {
    IntentBase
    CategoryID string
}

// Transfer moves Amount from AccountID to ToAccountID.
type Transfer struct {
    IntentBase
    ToAccountID string
}

func (Income) Kind() TransactionType   { return TransactionTypeIncome }
func (Expense) Kind() TransactionType  { return TransactionTypeExpense }
func (Transfer) Kind() TransactionType { return TransactionTypeTransfer }

func (i Income) Base() IntentBase   { return i.IntentBase }
func (e Expense) Base() IntentBase  { return e.IntentBase }
func (t Transfer) Base() IntentBase { return t.IntentBase }

func (Income) isIntent()   {}
func (Expense) isIntent()  {}
func (Transfer) isIntent() {}

func invalid(format string, args ...any) error {
    return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errs.ErrInvalidOperation)
}

func validateBase(b IntentBase) error {
    if strings.TrimSpace(b.AccountID) == "" { return invalid("accountId is required") }
    if !b.Amount.IsPos() { return invalid("amount must be > 0") }
    if b.Date.IsZero() { return invalid("date is required") }
    return nil
}

// Validate requires a category.
func (i Income) Validate() error {
    if err := validateBase(i.IntentBase); err != nil { return err }
    if strings.TrimSpace(i.CategoryID) == "" { return invalid("categoryId is required for income") }
    return nil
}

// Validate requires a category.
func (e Expense) Validate() error {
    if err := validateBase(e.IntentBase); err != nil { return err }
    if strings.TrimSpace(e.CategoryID) == "" { return invalid("categoryId is required for expense") }
    return nil
}

// Validate requires a destination distinct from the source.
func (t Transfer) Validate() error {
    if err := validateBase(t.IntentBase); err != nil { return err }
    if strings.TrimSpace(t.ToAccountID) == "" { return invalid("counterpartyAccountId is required for transfer") }
    if t.ToAccountID == t.AccountID { return invalid("transfer source and destination must differ") }
    return nil
}

// NewIncome builds an Income intent.
func NewIncome(b IntentBase, categoryID string) (Income, error) {
    in := Income{IntentBase: b, CategoryID: categoryID}
    if err := in.Validate(); err != nil { return Income{}, err }
    return in, nil
}

// NewExpense builds an Expense intent.
func NewExpense(b IntentBase, categoryID string) (Expense, error) {
    e := Expense{IntentBase: b, CategoryID: categoryID}
    if err := e.Validate(); err != nil { return Expense{}, err }
    return e, nil
}

// NewTransfer builds a Transfer intent. Source and destination must differ.
func NewTransfer(b IntentBase, toAccountID string) (Transfer, error) {
    t := Transfer{IntentBase: b, ToAccountID: toAccountID}
    if err := t.Validate(); err != nil { return Transfer{}, err }
    return t, nil
}

// NewIntent dispatches on t; used by decoders that receive the flat shape.
func NewIntent(t TransactionType, b IntentBase, categoryID, counterpartyID string) (TransactionIntent, error) {
    switch t {
    case TransactionTypeIncome:
        if counterpartyID != "" { return nil, invalid("counterpartyAccountId is only valid for transfers") }
        return NewIncome(b, categoryID)
    case TransactionTypeExpense:
        if counterpartyID != "" { return nil, invalid("counterpartyAccountId is only valid for transfers") }
        return NewExpense(b, categoryID)
    case TransactionTypeTransfer:
        if categoryID != "" { return nil, invalid("categoryId is not allowed on transfers") }
        return NewTransfer(b, counterpartyID)
    default:
        return nil, invalid("unknown transaction type %q", t)
    }
}
