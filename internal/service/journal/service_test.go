package journal

import (
    "context"
    "errors"
    "fmt"
    "math/rand"
    "testing"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
    "github.com/tinoosan/hishab/internal/storage/memory"
)

var day = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*memory.Store, Service, *events.Recorder) {
    t.Helper()
    ctx := context.Background()
    st := memory.New()
    now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
    for _, a := range []ledger.Account{
        {ID: "acct-a", Name: "City Bank", Type: ledger.AccountTypeBank, Balance: ledger.MustMoney("1000"), OpeningBalance: ledger.MustMoney("1000"), Currency: "BDT", CreatedAt: now, UpdatedAt: now},
        {ID: "acct-b", Name: "bKash Wallet", Type: ledger.AccountTypeWallet, Balance: ledger.Zero, OpeningBalance: ledger.Zero, Currency: "BDT", CreatedAt: now, UpdatedAt: now},
    } {
        if err := st.PutAccount(ctx, a); err != nil { t.Fatalf("seed account: %v", err) }
    }
    for _, c := range []ledger.Category{
        {ID: "cat-food", Name: "Food", Type: ledger.CategoryTypeExpense, CreatedAt: now, UpdatedAt: now},
        {ID: "cat-salary", Name: "Salary", Type: ledger.CategoryTypeIncome, CreatedAt: now, UpdatedAt: now},
    } {
        if err := st.PutCategory(ctx, c); err != nil { t.Fatalf("seed category: %v", err) }
    }
    rec := &events.Recorder{}
    return st, New(st, rec, nil, time.UTC), rec
}

func balance(t *testing.T, st storage.Store, id string) ledger.Money {
    t.Helper()
    a, err := st.GetAccount(context.Background(), id)
    if err != nil { t.Fatalf("get account %s: %v", id, err) }
    return a.Balance
}

func wantBalance(t *testing.T, st storage.Store, id, want string) {
    t.Helper()
    if got := balance(t, st, id); !got.Equal(ledger.MustMoney(want)) { t.Fatalf("balance of %s = %s, want %s", id, got, want) }
}

func mustIntent(t *testing.T, typ ledger.TransactionType, amount, account, category, counter string) ledger.TransactionIntent {
    t.Helper()
    in, err := ledger.NewIntent(typ, ledger.IntentBase{Date: day, Amount: ledger.MustMoney(amount), AccountID: account}, category, counter)
    if err != nil { t.Fatalf("intent: %v", err) }
    return in
}

func TestScenario_TransferExpenseDelete(t *testing.T) {
    st, svc, rec := setup(t)
    ctx := context.Background()

    transfer, err := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeTransfer, "300", "acct-a", "", "acct-b"))
    if err != nil { t.Fatalf("transfer: %v", err) }
    wantBalance(t, st, "acct-a", "700")
    wantBalance(t, st, "acct-b", "300")
    if transfer.Notes != "Transfer from City Bank to bKash Wallet" { t.Fatalf("default note: %q", transfer.Notes) }

    expense, err := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeExpense, "100", "acct-a", "cat-food", ""))
    if err != nil { t.Fatalf("expense: %v", err) }
    wantBalance(t, st, "acct-a", "600")

    march, err := svc.List(ctx, Filter{Month: "2025-03"})
    if err != nil || len(march) != 2 { t.Fatalf("list march: %d %v", len(march), err) }

    if err := svc.Delete(ctx, expense.ID); err != nil { t.Fatalf("delete expense: %v", err) }
    wantBalance(t, st, "acct-a", "700")
    if err := svc.Delete(ctx, transfer.ID); err != nil { t.Fatalf("delete transfer: %v", err) }
    wantBalance(t, st, "acct-a", "1000")
    wantBalance(t, st, "acct-b", "0")

    kinds := rec.Kinds()
    want := []events.Kind{events.TransactionCreated, events.TransactionCreated, events.TransactionDeleted, events.TransactionDeleted}
    if fmt.Sprint(kinds) != fmt.Sprint(want) { t.Fatalf("events %v, want %v", kinds, want) }
}

func TestCreate_Errors(t *testing.T) {
    _, svc, _ := setup(t)
    ctx := context.Background()
    if _, err := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeExpense, "5", "acct-missing", "cat-food", "")); !errors.Is(err, errs.ErrNotFound) {
        t.Fatalf("missing primary: %v", err)
    }
    if _, err := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeTransfer, "5", "acct-a", "", "acct-missing")); !errors.Is(err, errs.ErrInvalidOperation) {
        t.Fatalf("missing counterparty: %v", err)
    }
    if _, err := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeExpense, "5", "acct-a", "cat-nope", "")); !errors.Is(err, errs.ErrNotFound) {
        t.Fatalf("missing category: %v", err)
    }
    if _, err := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeExpense, "5", "acct-a", "cat-salary", "")); !errors.Is(err, errs.ErrInvalidOperation) {
        t.Fatalf("category kind mismatch: %v", err)
    }
    if _, err := svc.Create(ctx, nil); !errors.Is(err, errs.ErrInvalidOperation) { t.Fatalf("nil intent: %v", err) }
}

func TestCreate_RejectsUnvalidatedIntents(t *testing.T) {
    st, svc, rec := setup(t)
    ctx := context.Background()
    base := func(amount string) ledger.IntentBase {
        return ledger.IntentBase{Date: day, Amount: ledger.MustMoney(amount), AccountID: "acct-a"}
    }
    cases := []struct {
        name string
        in   ledger.TransactionIntent
    }{
        {"self transfer", ledger.Transfer{IntentBase: base("50"), ToAccountID: "acct-a"}},
        {"transfer without destination", ledger.Transfer{IntentBase: base("50")}},
        {"negative expense", ledger.Expense{IntentBase: base("-100"), CategoryID: "cat-food"}},
        {"zero income", ledger.Income{IntentBase: base("0"), CategoryID: "cat-salary"}},
        {"expense without category", ledger.Expense{IntentBase: base("10")}},
        {"missing date", ledger.Income{IntentBase: ledger.IntentBase{Amount: ledger.MustMoney("10"), AccountID: "acct-a"}, CategoryID: "cat-salary"}},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            if _, err := svc.Create(ctx, tc.in); !errors.Is(err, errs.ErrInvalidOperation) {
                t.Fatalf("want invalid operation, got %v", err)
            }
        })
    }
    wantBalance(t, st, "acct-a", "1000")
    txns, err := st.ListTransactions(ctx, storage.TransactionFilter{})
    if err != nil || len(txns) != 0 { t.Fatalf("stored %d transactions (%v)", len(txns), err) }
    if len(rec.Kinds()) != 0 { t.Fatalf("unexpected events %v", rec.Kinds()) }
}

func TestCreate_KeepsExplicitNotesAndNormalizesTags(t *testing.T) {
    _, svc, _ := setup(t)
    in, _ := ledger.NewTransfer(ledger.IntentBase{Date: day, Amount: ledger.MustMoney("1"), AccountID: "acct-a", Notes: "  rent share ", Tags: []string{"Rent", "rent", "Family Split"}}, "acct-b")
    txn, err := svc.Create(context.Background(), in)
    if err != nil { t.Fatalf("create: %v", err) }
    if txn.Notes != "rent share" { t.Fatalf("notes %q", txn.Notes) }
    if len(txn.Tags) != 2 || txn.Tags[0] != "rent" || txn.Tags[1] != "family-split" { t.Fatalf("tags %v", txn.Tags) }
}

func TestUpdate_AmountReadjustsBalances(t *testing.T) {
    st, svc, _ := setup(t)
    ctx := context.Background()
    tr, _ := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeTransfer, "300", "acct-a", "", "acct-b"))
    amt := ledger.MustMoney("120.50")
    notes := "adjusted"
    updated, err := svc.Update(ctx, tr.ID, Patch{Amount: &amt, Notes: &notes})
    if err != nil { t.Fatalf("update: %v", err) }
    if !updated.Amount.Equal(amt) || updated.Notes != "adjusted" { t.Fatalf("patch not applied: %+v", updated) }
    wantBalance(t, st, "acct-a", "879.50")
    wantBalance(t, st, "acct-b", "120.50")

    // date-only edits leave balances alone
    later := day.AddDate(0, 1, 0)
    if _, err := svc.Update(ctx, tr.ID, Patch{Date: &later}); err != nil { t.Fatalf("update date: %v", err) }
    wantBalance(t, st, "acct-a", "879.50")

    if err := svc.Delete(ctx, tr.ID); err != nil { t.Fatalf("delete: %v", err) }
    wantBalance(t, st, "acct-a", "1000")
    wantBalance(t, st, "acct-b", "0")
}

func TestUpdate_Validation(t *testing.T) {
    _, svc, _ := setup(t)
    ctx := context.Background()
    exp, _ := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeExpense, "10", "acct-a", "cat-food", ""))
    tr, _ := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeTransfer, "10", "acct-a", "", "acct-b"))
    zero := ledger.Zero
    empty := ""
    food := "cat-food"
    salary := "cat-salary"
    cases := []struct {
        name string
        id   string
        p    Patch
        want error
    }{
        {"missing id", "txn-nope", Patch{}, errs.ErrNotFound},
        {"zero amount", exp.ID, Patch{Amount: &zero}, errs.ErrInvalidOperation},
        {"clear category", exp.ID, Patch{CategoryID: &empty}, errs.ErrInvalidOperation},
        {"wrong kind category", exp.ID, Patch{CategoryID: &salary}, errs.ErrInvalidOperation},
        {"category on transfer", tr.ID, Patch{CategoryID: &food}, errs.ErrInvalidOperation},
    }
    for _, tc := range cases {
        if _, err := svc.Update(ctx, tc.id, tc.p); !errors.Is(err, tc.want) {
            t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
        }
    }
}

func TestDelete_IdempotentAndBestEffort(t *testing.T) {
    st, svc, rec := setup(t)
    ctx := context.Background()
    if err := svc.Delete(ctx, "txn-never"); err != nil { t.Fatalf("missing id must be a no-op: %v", err) }
    if len(rec.Events) != 0 { t.Fatalf("no event expected for no-op delete") }

    tr, _ := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeTransfer, "50", "acct-a", "", "acct-b"))
    // destination vanished out of band
    if err := st.DeleteAccount(ctx, "acct-b"); err != nil { t.Fatalf("delete account: %v", err) }
    if err := svc.Delete(ctx, tr.ID); err != nil { t.Fatalf("delete with missing side: %v", err) }
    wantBalance(t, st, "acct-a", "1000")
    if _, err := st.GetTransaction(ctx, tr.ID); !errors.Is(err, errs.ErrNotFound) { t.Fatalf("transaction still present") }
    if err := svc.Delete(ctx, tr.ID); err != nil { t.Fatalf("second delete: %v", err) }
}

// failingStore makes PutAccount fail for one id inside atomic scopes.
type failingStore struct {
    storage.Store
    failOn string
}

func (f failingStore) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
    return f.Store.Atomic(ctx, func(tx storage.Tx) error { return fn(failingTx{Tx: tx, failOn: f.failOn}) })
}

type failingTx struct {
    storage.Tx
    failOn string
}

func (f failingTx) PutAccount(ctx context.Context, a ledger.Account) error {
    if a.ID == f.failOn { return fmt.Errorf("disk full: %w", errs.ErrStorage) }
    return f.Tx.PutAccount(ctx, a)
}

func TestCreate_RollsBackOnStorageFailure(t *testing.T) {
    st, _, _ := setup(t)
    ctx := context.Background()
    svc := New(failingStore{Store: st, failOn: "acct-b"}, nil, nil, time.UTC)
    _, err := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeTransfer, "300", "acct-a", "", "acct-b"))
    if !errors.Is(err, errs.ErrStorage) { t.Fatalf("expected storage failure, got %v", err) }
    wantBalance(t, st, "acct-a", "1000")
    wantBalance(t, st, "acct-b", "0")
    txns, _ := st.ListTransactions(ctx, storage.TransactionFilter{})
    if len(txns) != 0 { t.Fatalf("transaction row survived rollback") }
}

func TestBalanceInvariant_RandomSequences(t *testing.T) {
    for seed := int64(1); seed <= 20; seed++ {
        st, svc, _ := setup(t)
        ctx := context.Background()
        rng := rand.New(rand.NewSource(seed))
        live := []string{}
        for step := 0; step < 60; step++ {
            if len(live) > 0 && rng.Intn(3) == 0 {
                i := rng.Intn(len(live))
                if err := svc.Delete(ctx, live[i]); err != nil { t.Fatalf("seed %d delete: %v", seed, err) }
                live = append(live[:i], live[i+1:]...)
                continue
            }
            amount := fmt.Sprintf("%d.%02d", rng.Intn(500)+1, rng.Intn(100))
            accts := []string{"acct-a", "acct-b"}
            src := accts[rng.Intn(2)]
            var in ledger.TransactionIntent
            switch rng.Intn(3) {
            case 0:
                in = mustIntent(t, ledger.TransactionTypeIncome, amount, src, "cat-salary", "")
            case 1:
                in = mustIntent(t, ledger.TransactionTypeExpense, amount, src, "cat-food", "")
            default:
                dst := "acct-a"
                if src == "acct-a" { dst = "acct-b" }
                in = mustIntent(t, ledger.TransactionTypeTransfer, amount, src, "", dst)
            }
            txn, err := svc.Create(ctx, in)
            if err != nil { t.Fatalf("seed %d create: %v", seed, err) }
            live = append(live, txn.ID)
            if rng.Intn(5) == 0 {
                amt := ledger.MustMoney(fmt.Sprintf("%d", rng.Intn(900)+1))
                if _, err := svc.Update(ctx, txn.ID, Patch{Amount: &amt}); err != nil { t.Fatalf("seed %d update: %v", seed, err) }
            }
        }
        drifts, err := svc.Reconcile(ctx)
        if err != nil { t.Fatalf("reconcile: %v", err) }
        for _, d := range drifts {
            if !d.Drift.IsZero() { t.Fatalf("seed %d: account %s drifted by %s", seed, d.AccountID, d.Drift) }
        }
        // cross-check the pure reconciliation against a direct sum
        txns, _ := st.ListTransactions(ctx, storage.TransactionFilter{})
        sum := ledger.MustMoney("1000")
        for _, tx := range txns { sum, _ = sum.Add(ledger.EffectOn(tx, "acct-a")) }
        wantBalance(t, st, "acct-a", sum.String())
    }
}

func TestReconcile_ReportsDrift(t *testing.T) {
    st, svc, _ := setup(t)
    ctx := context.Background()
    if _, err := svc.Create(ctx, mustIntent(t, ledger.TransactionTypeIncome, "25", "acct-b", "cat-salary", "")); err != nil { t.Fatalf("create: %v", err) }
    a, _ := st.GetAccount(ctx, "acct-b")
    a.Balance = ledger.MustMoney("30")
    _ = st.PutAccount(ctx, a)
    drifts, err := svc.Reconcile(ctx)
    if err != nil { t.Fatalf("reconcile: %v", err) }
    for _, d := range drifts {
        if d.AccountID == "acct-b" {
            if !d.Expected.Equal(ledger.MustMoney("25")) || !d.Drift.Equal(ledger.MustMoney("5")) { t.Fatalf("drift %+v", d) }
            return
        }
    }
    t.Fatalf("acct-b missing from reconciliation")
}

func TestList_Filters(t *testing.T) {
    _, svc, _ := setup(t)
    ctx := context.Background()
    _, _ = svc.Create(ctx, mustIntent(t, ledger.TransactionTypeExpense, "10", "acct-a", "cat-food", ""))
    _, _ = svc.Create(ctx, mustIntent(t, ledger.TransactionTypeTransfer, "10", "acct-a", "", "acct-b"))
    got, _ := svc.List(ctx, Filter{AccountID: "acct-b"})
    if len(got) != 1 || got[0].Type != ledger.TransactionTypeTransfer { t.Fatalf("account filter: %+v", got) }
    got, _ = svc.List(ctx, Filter{CategoryID: "cat-food"})
    if len(got) != 1 { t.Fatalf("category filter: %d", len(got)) }
    got, _ = svc.List(ctx, Filter{Month: "2025-04"})
    if len(got) != 0 { t.Fatalf("month filter: %d", len(got)) }
    if _, err := svc.List(ctx, Filter{Month: "March"}); !errors.Is(err, errs.ErrInvalid) { t.Fatalf("bad month: %v", err) }
}
