// Package category manages the category tree. Parents must exist, share the
// child's type and never make a category its own ancestor.
package category

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

type Input struct {
    Name     string
    Type     ledger.CategoryType
    ParentID string
}

// Patch lists editable fields; nil means unchanged. A ParentID pointing at ""
// detaches the category from its parent.
type Patch struct {
    Name     *string
    ParentID *string
    Archived *bool
}

type Service interface {
    Create(ctx context.Context, in Input) (ledger.Category, error)
    Get(ctx context.Context, id string) (ledger.Category, error)
    List(ctx context.Context) ([]ledger.Category, error)
    Update(ctx context.Context, id string, p Patch) (ledger.Category, error)
    Delete(ctx context.Context, id string) error
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

func invalid(format string, args ...any) error {
    return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errs.ErrInvalidOperation)
}

func (s *service) Create(ctx context.Context, in Input) (ledger.Category, error) {
    name := strings.TrimSpace(in.Name)
    if name == "" { return ledger.Category{}, invalid("name is required") }
    if !in.Type.Valid() { return ledger.Category{}, invalid("invalid category type %q", in.Type) }
    now := s.now()
    c := ledger.Category{
        ID:        ledger.NewID(ledger.PrefixCategory),
        Name:      name,
        Type:      in.Type,
        ParentID:  ledger.StrPtr(strings.TrimSpace(in.ParentID)),
        CreatedAt: now,
        UpdatedAt: now,
    }
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        if err := checkParent(ctx, tx, c); err != nil { return err }
        return tx.PutCategory(ctx, c)
    })
    if err != nil { return ledger.Category{}, err }
    s.log.InfoContext(ctx, "category created", "category_id", c.ID, "type", string(c.Type))
    s.pub.Publish(ctx, events.New(events.CategoryCreated, c.ID))
    return c, nil
}

func (s *service) Get(ctx context.Context, id string) (ledger.Category, error) {
    return s.store.GetCategory(ctx, id)
}

func (s *service) List(ctx context.Context) ([]ledger.Category, error) {
    return s.store.ListCategories(ctx)
}

func (s *service) Update(ctx context.Context, id string, p Patch) (ledger.Category, error) {
    var out ledger.Category
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        c, err := tx.GetCategory(ctx, id)
        if err != nil { return err }
        if p.Name != nil {
            name := strings.TrimSpace(*p.Name)
            if name == "" { return invalid("name is required") }
            c.Name = name
        }
        if p.Archived != nil {
            c.Archived = *p.Archived
        }
        if p.ParentID != nil {
            c.ParentID = ledger.StrPtr(strings.TrimSpace(*p.ParentID))
            if err := checkParent(ctx, tx, c); err != nil { return err }
        }
        c.UpdatedAt = s.now()
        if err := tx.PutCategory(ctx, c); err != nil { return err }
        out = c
        return nil
    })
    if err != nil { return ledger.Category{}, err }
    s.pub.Publish(ctx, events.New(events.CategoryUpdated, out.ID))
    return out, nil
}

// Delete removes a leaf category that no transaction uses, together with its budgets.
func (s *service) Delete(ctx context.Context, id string) error {
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        if _, err := tx.GetCategory(ctx, id); err != nil { return err }
        all, err := tx.ListCategories(ctx)
        if err != nil { return err }
        for _, c := range all {
            if ledger.StrVal(c.ParentID) == id { return invalid("category %q has child %q", id, c.ID) }
        }
        used, err := tx.ListTransactions(ctx, storage.TransactionFilter{CategoryID: id})
        if err != nil { return err }
        if len(used) > 0 { return invalid("category %q is used by %d transaction(s)", id, len(used)) }
        budgets, err := tx.ListBudgets(ctx, "")
        if err != nil { return err }
        for _, b := range budgets {
            if b.CategoryID == id {
                if err := tx.DeleteBudget(ctx, b.ID); err != nil { return err }
            }
        }
        return tx.DeleteCategory(ctx, id)
    })
    if err != nil { return err }
    s.log.InfoContext(ctx, "category deleted", "category_id", id)
    s.pub.Publish(ctx, events.New(events.CategoryDeleted, id))
    return nil
}

// checkParent validates c.ParentID against the stored tree.
func checkParent(ctx context.Context, tx storage.Tx, c ledger.Category) error {
    if c.ParentID == nil { return nil }
    parent, err := tx.GetCategory(ctx, *c.ParentID)
    if err != nil { return fmt.Errorf("parent: %w", err) }
    if parent.Type != c.Type { return invalid("parent %q is %s, category is %s", parent.ID, parent.Type, c.Type) }
    seen := map[string]bool{}
    for cur := parent; ; {
        if cur.ID == c.ID { return invalid("category %q cannot be its own ancestor", c.ID) }
        if seen[cur.ID] || cur.ParentID == nil { return nil }
        seen[cur.ID] = true
        next, err := tx.GetCategory(ctx, *cur.ParentID)
        if err != nil {
            // a dangling ancestor ends the chain
            return nil
        }
        cur = next
    }
}
