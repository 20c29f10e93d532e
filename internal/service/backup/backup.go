// Package backup exports the whole ledger as one JSON document and restores it.
// Import and Clear are destructive: each replaces or empties every collection
// in a single atomic scope.
package backup

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "time"

    "golang.org/x/sync/errgroup"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
)

// CurrentVersion is the payload version written by Export.
const CurrentVersion = 1

// Payload is the backup document.
type Payload struct {
    Version    int       `json:"version"`
    ExportedAt time.Time `json:"exportedAt"`
    Data       Data      `json:"data"`
}

// Data holds the six collections.
type Data struct {
    Accounts     []ledger.Account     `json:"accounts"`
    Categories   []ledger.Category    `json:"categories"`
    Budgets      []ledger.Budget      `json:"budgets"`
    Transactions []ledger.Transaction `json:"transactions"`
    Goals        []ledger.SavingsGoal `json:"goals"`
    Snapshots    []ledger.Snapshot    `json:"snapshots"`
}

// Summary reports what an import wrote.
type Summary struct {
    Version      int `json:"version"`
    Accounts     int `json:"accounts"`
    Categories   int `json:"categories"`
    Budgets      int `json:"budgets"`
    Transactions int `json:"transactions"`
    Goals        int `json:"goals"`
    Snapshots    int `json:"snapshots"`
    // Backfilled counts accounts whose openingBalance was derived on import.
    Backfilled int `json:"backfilled"`
}

type Service interface {
    Export(ctx context.Context) (Payload, error)
    Import(ctx context.Context, raw []byte) (Summary, error)
    // Clear removes every row of all six collections.
    Clear(ctx context.Context) error
}

type service struct {
    store storage.Store
    pub   events.Publisher
    log   *slog.Logger
    now   func() time.Time
}

func New(store storage.Store, pub events.Publisher, log *slog.Logger) Service {
    if log == nil {
        log = slog.Default()
    }
    return &service{store: store, pub: events.OrNop(pub), log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Export reads the collections concurrently. The reads are not one atomic
// view; a mutation landing mid-export can make accounts and transactions
// disagree. Callers wanting a consistent file should export while idle.
func (s *service) Export(ctx context.Context) (Payload, error) {
    p := Payload{Version: CurrentVersion, ExportedAt: s.now()}
    g, ctx := errgroup.WithContext(ctx)
    g.Go(func() (err error) {
        p.Data.Accounts, err = s.store.ListAccounts(ctx)
        return err
    })
    g.Go(func() (err error) {
        p.Data.Categories, err = s.store.ListCategories(ctx)
        return err
    })
    g.Go(func() (err error) {
        p.Data.Budgets, err = s.store.ListBudgets(ctx, "")
        return err
    })
    g.Go(func() (err error) {
        p.Data.Transactions, err = s.store.ListTransactions(ctx, storage.TransactionFilter{})
        return err
    })
    g.Go(func() (err error) {
        p.Data.Goals, err = s.store.ListGoals(ctx)
        return err
    })
    g.Go(func() (err error) {
        p.Data.Snapshots, err = s.store.ListSnapshots(ctx, 0)
        return err
    })
    if err := g.Wait(); err != nil { return Payload{}, fmt.Errorf("export: %w", err) }
    p.Data.normalize()
    return p, nil
}

func (s *service) Import(ctx context.Context, raw []byte) (Summary, error) {
    p, backfill, err := Decode(raw)
    if err != nil { return Summary{}, err }
    n, err := backfillOpening(&p.Data, backfill)
    if err != nil { return Summary{}, err }
    if err := p.Data.validate(); err != nil { return Summary{}, err }
    err = s.store.Atomic(ctx, func(tx storage.Tx) error {
        if err := tx.Truncate(ctx); err != nil { return err }
        return p.Data.write(ctx, tx)
    })
    if err != nil {
        if errors.Is(err, errs.ErrConflict) { return Summary{}, fmt.Errorf("import: %v: %w", err, errs.ErrInvalidFormat) }
        return Summary{}, fmt.Errorf("import: %w", err)
    }
    sum := Summary{
        Version:      p.Version,
        Accounts:     len(p.Data.Accounts),
        Categories:   len(p.Data.Categories),
        Budgets:      len(p.Data.Budgets),
        Transactions: len(p.Data.Transactions),
        Goals:        len(p.Data.Goals),
        Snapshots:    len(p.Data.Snapshots),
        Backfilled:   n,
    }
    s.log.InfoContext(ctx, "backup imported", "accounts", sum.Accounts, "transactions", sum.Transactions, "backfilled", sum.Backfilled)
    s.pub.Publish(ctx, events.New(events.BackupImported, ""))
    return sum, nil
}

func bad(format string, args ...any) error {
    return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errs.ErrInvalidFormat)
}

// Decode parses raw into a current-version payload. It also returns the ids
// of accounts that carried no openingBalance.
func Decode(raw []byte) (Payload, []string, error) {
    raw = bytes.TrimSpace(raw)
    if len(raw) == 0 || raw[0] != '{' {
        return Payload{}, nil, bad("backup must be a JSON object")
    }
    var top map[string]json.RawMessage
    if err := json.Unmarshal(raw, &top); err != nil { return Payload{}, nil, bad("backup: %v", err) }
    data, ok := top["data"]
    if !ok || !isObject(data) { return Payload{}, nil, bad("backup is missing the data object") }
    version := 0
    if v, ok := top["version"]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
        if err := json.Unmarshal(v, &version); err != nil { return Payload{}, nil, bad("version must be an integer") }
    }
    var collections map[string]json.RawMessage
    if err := json.Unmarshal(data, &collections); err != nil { return Payload{}, nil, bad("data: %v", err) }
    if err := migrate(version, collections); err != nil { return Payload{}, nil, err }
    var p Payload
    p.Version = CurrentVersion
    if v, ok := top["exportedAt"]; ok {
        // informational only; an unparsable stamp is not fatal
        _ = json.Unmarshal(v, &p.ExportedAt)
    }
    if err := decodeCollection(collections, "accounts", &p.Data.Accounts); err != nil { return Payload{}, nil, err }
    if err := decodeCollection(collections, "categories", &p.Data.Categories); err != nil { return Payload{}, nil, err }
    if err := decodeCollection(collections, "budgets", &p.Data.Budgets); err != nil { return Payload{}, nil, err }
    if err := decodeCollection(collections, "transactions", &p.Data.Transactions); err != nil { return Payload{}, nil, err }
    if err := decodeCollection(collections, "goals", &p.Data.Goals); err != nil { return Payload{}, nil, err }
    if err := decodeCollection(collections, "snapshots", &p.Data.Snapshots); err != nil { return Payload{}, nil, err }
    var openings []struct {
        ID             string          `json:"id"`
        OpeningBalance json.RawMessage `json:"openingBalance"`
    }
    if err := decodeCollection(collections, "accounts", &openings); err != nil { return Payload{}, nil, err }
    var missing []string
    for _, o := range openings {
        if len(o.OpeningBalance) == 0 || bytes.Equal(o.OpeningBalance, []byte("null")) {
            missing = append(missing, o.ID)
        }
    }
    p.Data.normalize()
    return p, missing, nil
}

func isObject(raw json.RawMessage) bool {
    raw = bytes.TrimSpace(raw)
    return len(raw) > 0 && raw[0] == '{'
}

// decodeCollection fills dst from collections[name]; absent or null means empty.
func decodeCollection(collections map[string]json.RawMessage, name string, dst any) error {
    raw, ok := collections[name]
    if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) { return nil }
    if err := json.Unmarshal(raw, dst); err != nil { return bad("data.%s: %v", name, err) }
    return nil
}

// backfillOpening derives openingBalance = balance - sum(effects) for ids.
func backfillOpening(d *Data, ids []string) (int, error) {
    if len(ids) == 0 { return 0, nil }
    want := make(map[string]bool, len(ids))
    for _, id := range ids {
        want[id] = true
    }
    n := 0
    for i := range d.Accounts {
        a := &d.Accounts[i]
        if !want[a.ID] { continue }
        opening := a.Balance
        for _, t := range d.Transactions {
            next, err := opening.Sub(ledger.EffectOn(t, a.ID))
            if err != nil { return 0, bad("account %q: %v", a.ID, err) }
            opening = next
        }
        a.OpeningBalance = opening
        n++
    }
    return n, nil
}

// normalize puts times in UTC and replaces nil slices so exports are stable.
func (d *Data) normalize() {
    if d.Accounts == nil {
        d.Accounts = []ledger.Account{}
    }
    if d.Categories == nil {
        d.Categories = []ledger.Category{}
    }
    if d.Budgets == nil {
        d.Budgets = []ledger.Budget{}
    }
    if d.Transactions == nil {
        d.Transactions = []ledger.Transaction{}
    }
    if d.Goals == nil {
        d.Goals = []ledger.SavingsGoal{}
    }
    if d.Snapshots == nil {
        d.Snapshots = []ledger.Snapshot{}
    }
    for i := range d.Accounts {
        a := &d.Accounts[i]
        a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
    }
    for i := range d.Categories {
        c := &d.Categories[i]
        c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
    }
    for i := range d.Budgets {
        b := &d.Budgets[i]
        b.CreatedAt, b.UpdatedAt = b.CreatedAt.UTC(), b.UpdatedAt.UTC()
    }
    for i := range d.Transactions {
        t := &d.Transactions[i]
        t.Date, t.CreatedAt, t.UpdatedAt = t.Date.UTC(), t.CreatedAt.UTC(), t.UpdatedAt.UTC()
        if t.Tags == nil {
            t.Tags = []string{}
        }
    }
    for i := range d.Goals {
        g := &d.Goals[i]
        g.CreatedAt, g.UpdatedAt = g.CreatedAt.UTC(), g.UpdatedAt.UTC()
        if g.TargetDate != nil {
            v := g.TargetDate.UTC()
            g.TargetDate = &v
        }
    }
    for i := range d.Snapshots {
        s := &d.Snapshots[i]
        s.CreatedAt = s.CreatedAt.UTC()
        if s.ByCategory == nil {
            s.ByCategory = []ledger.CategoryTotal{}
        }
    }
}

// validate checks the shape rules the store cannot express: ids present and
// unique per collection, known enums, and one budget per (month, category).
func (d *Data) validate() error {
    seen := map[string]bool{}
    check := func(kind, id string) error {
        if id == "" { return bad("%s without id", kind) }
        key := kind + "/" + id
        if seen[key] { return bad("duplicate %s id %q", kind, id) }
        seen[key] = true
        return nil
    }
    for _, a := range d.Accounts {
        if err := check("account", a.ID); err != nil { return err }
        if !a.Type.Valid() { return bad("account %q: unknown type %q", a.ID, a.Type) }
    }
    for _, c := range d.Categories {
        if err := check("category", c.ID); err != nil { return err }
        if !c.Type.Valid() { return bad("category %q: unknown type %q", c.ID, c.Type) }
    }
    pairs := map[string]bool{}
    for _, b := range d.Budgets {
        if err := check("budget", b.ID); err != nil { return err }
        if _, err := ledger.ParseMonth(string(b.Month)); err != nil { return bad("budget %q: %v", b.ID, err) }
        key := string(b.Month) + "/" + b.CategoryID
        if pairs[key] { return bad("duplicate budget for %s", key) }
        pairs[key] = true
    }
    for _, t := range d.Transactions {
        if err := check("transaction", t.ID); err != nil { return err }
        if !t.Type.Valid() { return bad("transaction %q: unknown type %q", t.ID, t.Type) }
    }
    for _, g := range d.Goals {
        if err := check("goal", g.ID); err != nil { return err }
    }
    for _, s := range d.Snapshots {
        if err := check("snapshot", s.ID); err != nil { return err }
    }
    return nil
}

func (d *Data) write(ctx context.Context, tx storage.Tx) error {
    for _, a := range d.Accounts {
        if err := tx.PutAccount(ctx, a); err != nil { return err }
    }
    for _, c := range d.Categories {
        if err := tx.PutCategory(ctx, c); err != nil { return err }
    }
    for _, b := range d.Budgets {
        if err := tx.PutBudget(ctx, b); err != nil { return err }
    }
    for _, t := range d.Transactions {
        if err := tx.PutTransaction(ctx, t); err != nil { return err }
    }
    for _, g := range d.Goals {
        if err := tx.PutGoal(ctx, g); err != nil { return err }
    }
    for _, s := range d.Snapshots {
        if err := tx.PutSnapshot(ctx, s); err != nil { return err }
    }
    return nil
}

func (s *service) Clear(ctx context.Context) error {
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        return tx.Truncate(ctx)
    })
    if err != nil { return err }
    s.log.WarnContext(ctx, "all data cleared")
    s.pub.Publish(ctx, events.New(events.DataCleared, ""))
    return nil
}
