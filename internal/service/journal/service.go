// Package journal is the ledger engine: it posts, edits and removes
// transactions and keeps every touched account balance consistent with the
// transaction log inside one atomic store scope.
package journal

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "sort"
    "strings"
    "time"

    "github.com/tinoosan/hishab/internal/dictionary"
    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
    "github.com/tinoosan/hishab/internal/tags"
)

// Filter narrows List. Month is a YYYY-MM key interpreted in the service location.
type Filter struct {
    Month      ledger.Month
    CategoryID string
    AccountID  string
}

// Patch lists the mutable fields of a posted transaction; nil means unchanged.
// Type and both account references are fixed at creation.
type Patch struct {
    Amount     *ledger.Money
    Date       *time.Time
    CategoryID *string
    Notes      *string
    Tags       *[]string
}

// Drift reports how far a stored balance is from the one implied by the log.
type Drift struct {
    AccountID string       `json:"accountId"`
    Name      string       `json:"name"`
    Stored    ledger.Money `json:"stored"`
    Expected  ledger.Money `json:"expected"`
    Drift     ledger.Money `json:"drift"`
}

// Service exposes the ledger engine.
type Service interface {
    Create(ctx context.Context, in ledger.TransactionIntent) (ledger.Transaction, error)
    Update(ctx context.Context, id string, p Patch) (ledger.Transaction, error)
    Delete(ctx context.Context, id string) error
    Get(ctx context.Context, id string) (ledger.Transaction, error)
    List(ctx context.Context, f Filter) ([]ledger.Transaction, error)
    Reconcile(ctx context.Context) ([]Drift, error)
}

type service struct {
    store storage.Store
    pub   events.Publisher
    log   *slog.Logger
    loc   *time.Location
    now   func() time.Time
}

// New wires the engine to a store. pub, log and loc may be nil.
func New(store storage.Store, pub events.Publisher, log *slog.Logger, loc *time.Location) Service {
    if log == nil { log = slog.Default() }
    if loc == nil { loc = time.UTC }
    return &service{store: store, pub: events.OrNop(pub), log: log, loc: loc, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) Create(ctx context.Context, in ledger.TransactionIntent) (ledger.Transaction, error) {
    if in == nil { return ledger.Transaction{}, fmt.Errorf("missing transaction: %w", errs.ErrInvalidOperation) }
    if err := in.Validate(); err != nil { return ledger.Transaction{}, err }
    base := in.Base()
    cleanTags, err := tags.Clean(base.Tags)
    if err != nil { return ledger.Transaction{}, err }
    now := s.now()
    txn := ledger.Transaction{
        ID:        ledger.NewID(ledger.PrefixTransaction),
        Date:      base.Date,
        Type:      in.Kind(),
        Amount:    base.Amount,
        AccountID: base.AccountID,
        Notes:     strings.TrimSpace(base.Notes),
        Tags:      cleanTags,
        CreatedAt: now,
        UpdatedAt: now,
    }
    switch v := in.(type) {
    case ledger.Income:
        txn.CategoryID = ledger.StrPtr(v.CategoryID)
    case ledger.Expense:
        txn.CategoryID = ledger.StrPtr(v.CategoryID)
    case ledger.Transfer:
        txn.CounterpartyAccountID = ledger.StrPtr(v.ToAccountID)
    }

    err = s.store.Atomic(ctx, func(tx storage.Tx) error {
        accts, err := loadAccounts(ctx, tx, txn.AccountID, ledger.StrVal(txn.CounterpartyAccountID))
        if err != nil { return err }
        primary, ok := accts[txn.AccountID]
        if !ok { return fmt.Errorf("account %q: %w", txn.AccountID, errs.ErrNotFound) }
        if txn.Type == ledger.TransactionTypeTransfer {
            counter, ok := accts[ledger.StrVal(txn.CounterpartyAccountID)]
            if !ok {
                return fmt.Errorf("counterparty account %q does not exist: %w", ledger.StrVal(txn.CounterpartyAccountID), errs.ErrInvalidOperation)
            }
            if txn.Notes == "" {
                txn.Notes = fmt.Sprintf("Transfer from %s to %s", primary.Name, counter.Name)
            }
        } else if err := checkCategory(ctx, tx, txn.Type, ledger.StrVal(txn.CategoryID)); err != nil {
            return err
        }
        if err := tx.PutTransaction(ctx, txn); err != nil { return err }
        return applyEffects(ctx, tx, accts, txn, txn.Amount, now, nil)
    })
    if err != nil { return ledger.Transaction{}, err }
    postings.WithLabelValues("create", string(txn.Type)).Inc()
    s.log.InfoContext(ctx, "transaction created", "txn_id", txn.ID, "type", string(txn.Type), "amount", txn.Amount.String(), "account_id", txn.AccountID)
    s.pub.Publish(ctx, events.New(events.TransactionCreated, txn.ID))
    return txn, nil
}

func (s *service) Update(ctx context.Context, id string, p Patch) (ledger.Transaction, error) {
    if p.Amount != nil && !p.Amount.IsPos() {
        return ledger.Transaction{}, fmt.Errorf("amount must be > 0: %w", errs.ErrInvalidOperation)
    }
    if p.Date != nil && p.Date.IsZero() {
        return ledger.Transaction{}, fmt.Errorf("date is required: %w", errs.ErrInvalidOperation)
    }
    var cleanTags []string
    if p.Tags != nil {
        var err error
        if cleanTags, err = tags.Clean(*p.Tags); err != nil { return ledger.Transaction{}, err }
    }
    var out ledger.Transaction
    var skipped []string
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        cur, err := tx.GetTransaction(ctx, id)
        if err != nil { return err }
        next := cur
        if p.Date != nil { next.Date = *p.Date }
        if p.Notes != nil { next.Notes = strings.TrimSpace(*p.Notes) }
        if p.Tags != nil { next.Tags = cleanTags }
        if p.CategoryID != nil {
            catID := strings.TrimSpace(*p.CategoryID)
            if cur.Type == ledger.TransactionTypeTransfer {
                if catID != "" { return fmt.Errorf("categoryId is not allowed on transfers: %w", errs.ErrInvalidOperation) }
            } else {
                if catID == "" { return fmt.Errorf("categoryId is required for %s: %w", cur.Type, errs.ErrInvalidOperation) }
                if err := checkCategory(ctx, tx, cur.Type, catID); err != nil { return err }
                next.CategoryID = ledger.StrPtr(catID)
            }
        }
        now := s.now()
        next.UpdatedAt = now
        if p.Amount != nil && !p.Amount.Equal(cur.Amount) {
            next.Amount = *p.Amount
            accts, err := loadAccounts(ctx, tx, cur.AccountID, ledger.StrVal(cur.CounterpartyAccountID))
            if err != nil { return err }
            // apply new - old so the balance ends up as if the new amount was posted originally
            diff, err := next.Amount.Sub(cur.Amount)
            if err != nil { return err }
            if err := applyEffects(ctx, tx, accts, cur, diff, now, &skipped); err != nil { return err }
        }
        if err := tx.PutTransaction(ctx, next); err != nil { return err }
        out = next
        return nil
    })
    if err != nil { return ledger.Transaction{}, err }
    s.warnSkipped(ctx, id, skipped)
    postings.WithLabelValues("update", string(out.Type)).Inc()
    s.log.InfoContext(ctx, "transaction updated", "txn_id", out.ID, "amount", out.Amount.String())
    s.pub.Publish(ctx, events.New(events.TransactionUpdated, out.ID))
    return out, nil
}

// Delete removes a transaction and reverses its effects. Missing ids are a no-op;
// accounts that no longer exist are skipped.
func (s *service) Delete(ctx context.Context, id string) error {
    var removed *ledger.Transaction
    var skipped []string
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        cur, err := tx.GetTransaction(ctx, id)
        if errors.Is(err, errs.ErrNotFound) { return nil }
        if err != nil { return err }
        accts, err := loadAccounts(ctx, tx, cur.AccountID, ledger.StrVal(cur.CounterpartyAccountID))
        if err != nil { return err }
        if err := tx.DeleteTransaction(ctx, id); err != nil { return err }
        if err := applyEffects(ctx, tx, accts, cur, cur.Amount.Neg(), s.now(), &skipped); err != nil { return err }
        removed = &cur
        return nil
    })
    if err != nil { return err }
    if removed == nil {
        s.log.DebugContext(ctx, "transaction delete: already absent", "txn_id", id)
        return nil
    }
    s.warnSkipped(ctx, id, skipped)
    postings.WithLabelValues("delete", string(removed.Type)).Inc()
    s.log.InfoContext(ctx, "transaction deleted", "txn_id", id, "type", string(removed.Type), "amount", removed.Amount.String())
    s.pub.Publish(ctx, events.New(events.TransactionDeleted, id))
    return nil
}

func (s *service) Get(ctx context.Context, id string) (ledger.Transaction, error) {
    return s.store.GetTransaction(ctx, id)
}

func (s *service) List(ctx context.Context, f Filter) ([]ledger.Transaction, error) {
    sf := storage.TransactionFilter{CategoryID: f.CategoryID, AccountID: f.AccountID}
    if f.Month != "" {
        m, err := ledger.ParseMonth(string(f.Month))
        if err != nil { return nil, err }
        from, to := m.Start(s.loc), m.End(s.loc)
        sf.From, sf.To = &from, &to
    }
    return s.store.ListTransactions(ctx, sf)
}

// Reconcile recomputes every balance from opening balance plus the log and
// reports the difference from the stored value. It runs in one atomic scope so
// the accounts and transactions it reads belong to the same state.
func (s *service) Reconcile(ctx context.Context) ([]Drift, error) {
    var out []Drift
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        accts, err := tx.ListAccounts(ctx)
        if err != nil { return err }
        txns, err := tx.ListTransactions(ctx, storage.TransactionFilter{})
        if err != nil { return err }
        out, err = Reconcile(accts, txns)
        return err
    })
    if err != nil { return nil, err }
    return out, nil
}

// Reconcile is the pure form used by the service and by backup import checks.
func Reconcile(accts []ledger.Account, txns []ledger.Transaction) ([]Drift, error) {
    sums := make(map[string]ledger.Money, len(accts))
    for _, t := range txns {
        for _, id := range []string{t.AccountID, ledger.StrVal(t.CounterpartyAccountID)} {
            if id == "" { continue }
            next, err := sums[id].Add(ledger.EffectOn(t, id))
            if err != nil { return nil, err }
            sums[id] = next
        }
    }
    out := make([]Drift, 0, len(accts))
    for _, a := range accts {
        expected, err := a.OpeningBalance.Add(sums[a.ID])
        if err != nil { return nil, err }
        drift, err := a.Balance.Sub(expected)
        if err != nil { return nil, err }
        out = append(out, Drift{AccountID: a.ID, Name: a.Name, Stored: a.Balance, Expected: expected, Drift: drift})
    }
    return out, nil
}

func (s *service) warnSkipped(ctx context.Context, txnID string, skipped []string) {
    for _, acct := range skipped {
        s.log.WarnContext(ctx, "balance adjustment skipped: account missing", "txn_id", txnID, "account_id", acct)
    }
}

// loadAccounts reads the non-empty ids in sorted order so concurrent scopes
// lock rows in the same order. Missing accounts are absent from the map.
func loadAccounts(ctx context.Context, tx storage.Tx, ids ...string) (map[string]ledger.Account, error) {
    uniq := make([]string, 0, len(ids))
    for _, id := range ids {
        if id != "" && !contains(uniq, id) { uniq = append(uniq, id) }
    }
    sort.Strings(uniq)
    out := make(map[string]ledger.Account, len(uniq))
    for _, id := range uniq {
        a, err := tx.GetAccount(ctx, id)
        if errors.Is(err, errs.ErrNotFound) { continue }
        if err != nil { return nil, err }
        out[id] = a
    }
    return out, nil
}

func contains(list []string, v string) bool {
    for _, x := range list {
        if x == v { return true }
    }
    return false
}

// applyEffects adds Effect(t.Type, amount, role) to each account t touches.
// A nil skipped slice makes a missing account an error; otherwise its id is recorded.
func applyEffects(ctx context.Context, tx storage.Tx, accts map[string]ledger.Account, t ledger.Transaction, amount ledger.Money, now time.Time, skipped *[]string) error {
    sides := []struct {
        id   string
        role ledger.Role
    }{{t.AccountID, ledger.RolePrimary}}
    if t.Type == ledger.TransactionTypeTransfer && t.CounterpartyAccountID != nil {
        sides = append(sides, struct {
            id   string
            role ledger.Role
        }{*t.CounterpartyAccountID, ledger.RoleCounterparty})
    }
    for _, side := range sides {
        delta := ledger.Effect(t.Type, amount, side.role)
        if delta.IsZero() { continue }
        a, ok := accts[side.id]
        if !ok {
            if skipped == nil { return fmt.Errorf("account %q: %w", side.id, errs.ErrNotFound) }
            *skipped = append(*skipped, side.id)
            continue
        }
        bal, err := a.Balance.Add(delta)
        if err != nil { return fmt.Errorf("adjust balance of %s: %w", a.ID, err) }
        a.Balance = bal
        a.UpdatedAt = now
        if err := tx.PutAccount(ctx, a); err != nil { return err }
        accts[side.id] = a
    }
    return nil
}

// checkCategory requires the category to exist and to match the transaction kind.
func checkCategory(ctx context.Context, tx storage.Tx, t ledger.TransactionType, categoryID string) error {
    cat, err := tx.GetCategory(ctx, categoryID)
    if err != nil { return err }
    want, ok := dictionary.CategoryTypeFor(t)
    if !ok || cat.Type != want {
        return fmt.Errorf("category %q is %s, transaction is %s: %w", cat.ID, cat.Type, t, errs.ErrInvalidOperation)
    }
    return nil
}
