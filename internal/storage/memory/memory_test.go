package memory

import (
    "context"
    "sync"
    "testing"

    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
    "github.com/tinoosan/hishab/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
    storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestAtomic_SerializesReadModifyWrite(t *testing.T) {
    s := New()
    ctx := context.Background()
    if err := s.PutAccount(ctx, storagetest.Account("acct-1", "0", ledger.Month("2025-01").Start(nil))); err != nil {
        t.Fatalf("seed: %v", err)
    }
    var wg sync.WaitGroup
    for i := 0; i < 50; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            _ = s.Atomic(ctx, func(tx storage.Tx) error {
                a, err := tx.GetAccount(ctx, "acct-1")
                if err != nil { return err }
                a.Balance, _ = a.Balance.Add(ledger.MustMoney("1"))
                return tx.PutAccount(ctx, a)
            })
        }()
    }
    wg.Wait()
    a, _ := s.GetAccount(ctx, "acct-1")
    if !a.Balance.Equal(ledger.MustMoney("50")) { t.Fatalf("lost updates: balance %s", a.Balance) }
}

func TestReturnedTagsAreCopies(t *testing.T) {
    s := New()
    ctx := context.Background()
    txn := storagetest.Txn("txn-1", ledger.TransactionTypeExpense, ledger.Month("2025-01").Start(nil), "1", "acct-1", "", "cat-1")
    txn.Tags = []string{"a"}
    _ = s.PutTransaction(ctx, txn)
    got, _ := s.GetTransaction(ctx, "txn-1")
    got.Tags[0] = "mutated"
    again, _ := s.GetTransaction(ctx, "txn-1")
    if again.Tags[0] != "a" { t.Fatalf("store state leaked through returned slice") }
}
