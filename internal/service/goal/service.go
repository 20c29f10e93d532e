// Package goal manages savings goals. Allocation is recorded by hand and never
// derived from transactions.
package goal

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
    Name             string
    TargetAmount     ledger.Money
    TargetDate       *time.Time
    CurrentAllocated ledger.Money
}

// Patch lists editable fields; nil means unchanged. ClearTargetDate removes
// the date and wins over TargetDate.
type Patch struct {
    Name             *string
    TargetAmount     *ledger.Money
    TargetDate       *time.Time
    ClearTargetDate  bool
    CurrentAllocated *ledger.Money
}

type Service interface {
    Create(ctx context.Context, in Input) (ledger.SavingsGoal, error)
    Get(ctx context.Context, id string) (ledger.SavingsGoal, error)
    List(ctx context.Context) ([]ledger.SavingsGoal, error)
    Update(ctx context.Context, id string, p Patch) (ledger.SavingsGoal, error)
    Delete(ctx context.Context, id string) error
}

type service struct {
    store storage.Store
    pub   events.Publisher
    log   *slog.Logger
    now   func() time.Time
}

func New(store storage.Store, pub events.Publisher, log *slog.Logger) Service {
    if log == nil { log = slog.Default() }
    return &service{store: store, pub: events.OrNop(pub), log: log, now: func() time.Time { return time.Now().UTC() }}
}

func invalid(msg string) error { return fmt.Errorf("%s: %w", msg, errs.ErrInvalidOperation) }

func validate(g ledger.SavingsGoal) error {
    if g.Name == "" { return invalid("name is required") }
    if !g.TargetAmount.IsPos() { return invalid("targetAmount must be > 0") }
    if g.CurrentAllocated.IsNeg() { return invalid("currentAllocated must be >= 0") }
    return nil
}

func (s *service) Create(ctx context.Context, in Input) (ledger.SavingsGoal, error) {
    now := s.now()
    g := ledger.SavingsGoal{
        ID:               ledger.NewID(ledger.PrefixGoal),
        Name:             strings.TrimSpace(in.Name),
        TargetAmount:     in.TargetAmount,
        TargetDate:       utc(in.TargetDate),
        CurrentAllocated: in.CurrentAllocated,
        CreatedAt:        now,
        UpdatedAt:        now,
    }
    if err := validate(g); err != nil { return ledger.SavingsGoal{}, err }
    if err := s.store.PutGoal(ctx, g); err != nil { return ledger.SavingsGoal{}, err }
    s.log.InfoContext(ctx, "goal created", "goal_id", g.ID, "target", g.TargetAmount.String())
    s.pub.Publish(ctx, events.New(events.GoalCreated, g.ID))
    return g, nil
}

func (s *service) Get(ctx context.Context, id string) (ledger.SavingsGoal, error) {
    return s.store.GetGoal(ctx, id)
}

func (s *service) List(ctx context.Context) ([]ledger.SavingsGoal, error) {
    return s.store.ListGoals(ctx)
}

func (s *service) Update(ctx context.Context, id string, p Patch) (ledger.SavingsGoal, error) {
    var out ledger.SavingsGoal
    err := s.store.Atomic(ctx, func(tx storage.Tx) error {
        g, err := tx.GetGoal(ctx, id)
        if err != nil { return err }
        if p.Name != nil { g.Name = strings.TrimSpace(*p.Name) }
        if p.TargetAmount != nil { g.TargetAmount = *p.TargetAmount }
        if p.CurrentAllocated != nil { g.CurrentAllocated = *p.CurrentAllocated }
        switch {
        case p.ClearTargetDate:
            g.TargetDate = nil
        case p.TargetDate != nil:
            g.TargetDate = utc(p.TargetDate)
        }
        if err := validate(g); err != nil { return err }
        g.UpdatedAt = s.now()
        if err := tx.PutGoal(ctx, g); err != nil { return err }
        out = g
        return nil
    })
    if err != nil { return ledger.SavingsGoal{}, err }
    s.pub.Publish(ctx, events.New(events.GoalUpdated, out.ID))
    return out, nil
}

// Delete is idempotent.
func (s *service) Delete(ctx context.Context, id string) error {
    if err := s.store.DeleteGoal(ctx, id); err != nil { return err }
    s.pub.Publish(ctx, events.New(events.GoalDeleted, id))
    return nil
}

func utc(t *time.Time) *time.Time {
    if t == nil || t.IsZero() { return nil }
    v := t.UTC()
    return &v
}
