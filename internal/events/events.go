// Package events is the after-commit notification channel. Services publish an
// Event once a mutation has committed; subscribers (the dashboard cache, the
// AMQP sink) react to it. A subscriber failure never fails the mutation.
package events

import (
    "context"
    "encoding/json"
    "log/slog"
    "sync"
    "time"
)

// Kind names what happened, in entity.verb form. It doubles as the AMQP routing key.
type Kind string

const (
    AccountCreated     Kind = "account.created"
    AccountUpdated     Kind = "account.updated"
    AccountDeleted     Kind = "account.deleted"
    CategoryCreated    Kind = "category.created"
    CategoryUpdated    Kind = "category.updated"
    CategoryDeleted    Kind = "category.deleted"
    BudgetUpserted     Kind = "budget.upserted"
    BudgetDeleted      Kind = "budget.deleted"
    BudgetsCopied      Kind = "budget.copied"
    TransactionCreated Kind = "transaction.created"
    TransactionUpdated Kind = "transaction.updated"
    TransactionDeleted Kind = "transaction.deleted"
    GoalCreated        Kind = "goal.created"
    GoalUpdated        Kind = "goal.updated"
    GoalDeleted        Kind = "goal.deleted"
    SnapshotCreated    Kind = "snapshot.created"
    BackupImported     Kind = "backup.imported"
    DataCleared        Kind = "data.cleared"
    SeedApplied        Kind = "seed.applied"
)

// Event is the notification payload.
type Event struct {
    Kind     Kind      `json:"kind"`
    EntityID string    `json:"entityId,omitempty"`
    At       time.Time `json:"at"`
}

// New stamps an event with the current time.
func New(kind Kind, entityID string) Event {
    return Event{Kind: kind, EntityID: entityID, At: time.Now().UTC()}
}

// ToJSON encodes the event for transport.
func (e Event) ToJSON() ([]byte, error) { return json.Marshal(e) }

// Publisher is what services depend on.
type Publisher interface {
    Publish(ctx context.Context, e Event)
}

// Subscriber handles one event. Returned errors are logged, not propagated.
type Subscriber func(ctx context.Context, e Event) error

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
    mu   sync.RWMutex
    subs []namedSub
    log  *slog.Logger
}

type namedSub struct {
    name string
    fn   Subscriber
}

// NewBus returns an empty bus. A nil logger falls back to slog.Default.
func NewBus(log *slog.Logger) *Bus {
    if log == nil {
        log = slog.Default()
    }
    return &Bus{log: log}
}

// Subscribe registers fn under name (used in failure logs).
func (b *Bus) Subscribe(name string, fn Subscriber) {
    b.mu.Lock()
    b.subs = append(b.subs, namedSub{name: name, fn: fn})
    b.mu.Unlock()
}

// Publish delivers e to every subscriber.
func (b *Bus) Publish(ctx context.Context, e Event) {
    b.mu.RLock()
    subs := make([]namedSub, len(b.subs))
    copy(subs, b.subs)
    b.mu.RUnlock()
    for _, s := range subs {
        if err := s.fn(ctx, e); err != nil {
            b.log.WarnContext(ctx, "event subscriber failed", "subscriber", s.name, "kind", string(e.Kind), "entity_id", e.EntityID, "err", err)
        }
    }
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// OrNop returns p, or Nop when p is nil.
func OrNop(p Publisher) Publisher {
    if p == nil { return Nop{} }
    return p
}

// Recorder keeps every published event; handy in tests.
type Recorder struct {
    mu     sync.Mutex
    Events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
    r.mu.Lock()
    r.Events = append(r.Events, e)
    r.mu.Unlock()
}

// Kinds returns the recorded kinds in order.
func (r *Recorder) Kinds() []Kind {
    r.mu.Lock()
    defer r.mu.Unlock()
    out := make([]Kind, len(r.Events))
    for i, e := range r.Events {
        out[i] = e.Kind
    }
    return out
}
