package httpapi

import (
    "fmt"
    "strings"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/ledger"
)

type listResponse[T any] struct {
    Items []T `json:"items"`
}

func items[T any](list []T) listResponse[T] {
    if list == nil {
        list = []T{}
    }
    return listResponse[T]{Items: list}
}

type postAccountRequest struct {
    Name           string             `json:"name"`
    Type           ledger.AccountType `json:"type"`
    OpeningBalance ledger.Money       `json:"openingBalance"`
    Currency       string             `json:"currency"`
}

type patchAccountRequest struct {
    Name     *string `json:"name"`
    Archived *bool   `json:"archived"`
}

// accountResponse adds a display string such as "BDT 120000.00".
type accountResponse struct {
    ledger.Account
    BalanceDisplay string `json:"balanceDisplay"`
}

func toAccountResponse(a ledger.Account) accountResponse {
    return accountResponse{Account: a, BalanceDisplay: a.Balance.Format(a.Currency)}
}

type postCategoryRequest struct {
    Name     string              `json:"name"`
    Type     ledger.CategoryType `json:"type"`
    ParentID string              `json:"parentId"`
}

type patchCategoryRequest struct {
    Name     *string          `json:"name"`
    ParentID optional[string] `json:"parentId"`
    Archived *bool            `json:"archived"`
}

type postTransactionRequest struct {
    Date                  string                 `json:"date"`
    Type                  ledger.TransactionType `json:"type"`
    Amount                ledger.Money           `json:"amount"`
    AccountID             string                 `json:"accountId"`
    CounterpartyAccountID string                 `json:"counterpartyAccountId"`
    CategoryID            string                 `json:"categoryId"`
    Notes                 string                 `json:"notes"`
    Tags                  []string               `json:"tags"`
}

type patchTransactionRequest struct {
    Amount     *ledger.Money    `json:"amount"`
    Date       *string          `json:"date"`
    CategoryID optional[string] `json:"categoryId"`
    Notes      *string          `json:"notes"`
    Tags       *[]string        `json:"tags"`
}

type allocationRequest struct {
    CategoryID string       `json:"categoryId"`
    Amount     ledger.Money `json:"amount"`
}

type putBudgetsRequest struct {
    Budgets []allocationRequest `json:"budgets"`
}

type postGoalRequest struct {
    Name             string       `json:"name"`
    TargetAmount     ledger.Money `json:"targetAmount"`
    TargetDate       *string      `json:"targetDate"`
    CurrentAllocated ledger.Money `json:"currentAllocated"`
}

type patchGoalRequest struct {
    Name             *string          `json:"name"`
    TargetAmount     *ledger.Money    `json:"targetAmount"`
    TargetDate       optional[string] `json:"targetDate"`
    CurrentAllocated *ledger.Money    `json:"currentAllocated"`
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates, the latter
// taken as midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
    s = strings.TrimSpace(s)
    if s == "" { return time.Time{}, fmt.Errorf("date is required: %w", errs.ErrInvalid) }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil { return t.UTC(), nil }
    if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil { return t.UTC(), nil }
    return time.Time{}, fmt.Errorf("date %q: want RFC 3339 or YYYY-MM-DD: %w", s, errs.ErrInvalid)
}
