// Package account implements the account lifecycle: validated creation with an
// opening balance, rename/archive edits, and deletion guarded by references.
// Balances are never edited here; only the journal service moves them.
package account

import (
    "context"
    "fmt"
    "log/slog"
    "strings"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
)

// Input describes a new account. Currency falls back to the service default.
type Input struct {
    Name           string
    Type           ledger.AccountType
    OpeningBalance ledger.Money
    Currency       string
}

// Patch lists editable fields; nil means unchanged.
type Patch struct {
    Name     *string
    Archived *bool
}

type Service interface {
    ValidateCreate(in Input) (Input, error)
    Create(ctx context.Context, in Input) (ledger.Account, error)
    Get(ctx context.Context, id string) (ledger.Account, error)
    List(ctx context.Context) ([]ledger.Account, error)
    Update(ctx context.Context, id string, p Patch) (ledger.Account, error)
    Delete(ctx context.Context, id string) error
}

type service struct {
    store           storage.Store
    pub             events.Publisher
    log             *slog.Logger
    defaultCurrency string
    now             func() time.Time
}

func New(store storage.Store, pub events.Publisher, log *slog.Logger, defaultCurrency string) Service {
    if log == nil { log = slog.Default() }
    if defaultCurrency == "" { defaultCurrency = "BDT" }
    return &service{store: store, pub: events.OrNop(pub), log: log, defaultCurrency: strings.ToUpper(defaultCurrency), now: func() time.Time { return time.Now().UTC() }}
}

func invalid(msg string) error { return fmt.Errorf("%s: %w", msg, errs.ErrInvalidOperation) }

// ValidateCreate normalizes name and currency and checks the rest.
func (s *service) ValidateCreate(in Input) (Input, error) {
    in.Name = strings.TrimSpace(in.Name)
    in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
    if in.Currency == "" { in.Currency = s.defaultCurrency }
    if in.Name == "" { return Input{}, invalid("name is required") }
    if !in.Type.Valid() { return Input{}, invalid(fmt.Sprintf("invalid account type %q", in.Type)) }
    if !ledger.ValidCurrency(in.Currency) { return Input{}, invalid(fmt.Sprintf("unknown currency %q", in.Currency)) }
    return in, nil
}

func (s *service) Create(ctx context.Context, in Input) (ledger.Account, error) {
    in, err := s.ValidateCreate(in)
    if err != nil { return ledger.Account{}, err }
    now := s.now()
    a := ledger.Account{
        ID:             ledger.NewID(ledger.PrefixAccount),
        Name:           in.Name,
        Type:           in.Type,
        Balance:        in.OpeningBalance,
        OpeningBalance: in.OpeningBalance,
        Currency:       in.Currency,
        CreatedAt:      now,
        UpdatedAt:      now,
    }
    if err := s.store.PutAccount(ctx, a); err != nil { return ledger.Account{}, err }
    s.log.InfoContext(ctx, "account created", "account_id", a.ID, "type", string(a.Type), "opening_balance", a.OpeningBalance.String())
    s.pub.Publish(ctx, events.New(events.AccountCreated, a.ID))
    return a, nil
}

func (s *service) Get(ctx context.Context, id string) (ledger.Account, error) {
    return s.store.GetAccount(ctx, id)
}

func (s *service) List(ctx context.Context) ([]ledger.Account, error) {
    return s.store.ListAccounts(ctx)
}

// Update renames or (un)archives an account inside an atomic scope so a
// concurrent posting cannot have its balance write overwritten.
func (s *service) Update(ctx context.Context, id string, p Patch) (ledger.Account, error) {
    var out ledger.Account
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        a, err := tx.GetAccount(ctx, id)
        if err != nil { return err }
        if p.Name != nil {
            name := strings.TrimSpace(*p.Name)
            if name == "" { return invalid("name is required") }
            a.Name = name
        }
        if p.Archived != nil { a.Archived = *p.Archived }
        a.UpdatedAt = s.now()
        if err := tx.PutAccount(ctx, a); err != nil { return err }
        out = a
        return nil
    })
    if err != nil { return ledger.Account{}, err }
    s.pub.Publish(ctx, events.New(events.AccountUpdated, out.ID))
    return out, nil
}

// Delete removes an account that no transaction references, as primary or counterparty.
func (s *service) Delete(ctx context.Context, id string) error {
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        if _, err := tx.GetAccount(ctx, id); err != nil { return err }
        n, err := tx.CountAccountReferences(ctx, id)
        if err != nil { return err }
        if n > 0 { return fmt.Errorf("account %q is referenced by %d transaction(s): %w", id, n, errs.ErrInvalidOperation) }
        return tx.DeleteAccount(ctx, id)
    })
    if err != nil { return err }
    s.log.InfoContext(ctx, "account deleted", "account_id", id)
    s.pub.Publish(ctx, events.New(events.AccountDeleted, id))
    return nil
}
