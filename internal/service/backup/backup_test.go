package backup

import (
    "context"
    "encoding/json"
    "errors"
    "testing"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/events"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/service/journal"
    "github.com/tinoosan/hishab/internal/storage/memory"
)

func populate(t *testing.T, st *memory.Store) {
    t.Helper()
    ctx := context.Background()
    day := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
    for _, a := range []ledger.Account{
        {ID: "acct-bank-001", Name: "City Bank", Type: ledger.AccountTypeBank, Balance: ledger.MustMoney("120000"), OpeningBalance: ledger.MustMoney("120000"), Currency: "BDT", CreatedAt: day, UpdatedAt: day},
        {ID: "acct-cash-001", Name: "Cash", Type: ledger.AccountTypeCash, Balance: ledger.MustMoney("8000"), OpeningBalance: ledger.MustMoney("8000"), Currency: "BDT", CreatedAt: day.Add(time.Second), UpdatedAt: day},
    } {
        if err := st.PutAccount(ctx, a); err != nil { t.Fatalf("account: %v", err) }
    }
    if err := st.PutCategory(ctx, ledger.Category{ID: "cat-exp-food", Name: "Food & Groceries", Type: ledger.CategoryTypeExpense, CreatedAt: day, UpdatedAt: day}); err != nil {
        t.Fatalf("category: %v", err)
    }
    if err := st.PutBudget(ctx, ledger.Budget{ID: "bdg-cat-exp-food", Month: "2025-03", CategoryID: "cat-exp-food", Amount: ledger.MustMoney("6000"), CreatedAt: day, UpdatedAt: day}); err != nil {
        t.Fatalf("budget: %v", err)
    }
    target := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
    if err := st.PutGoal(ctx, ledger.SavingsGoal{ID: "goal-1", Name: "Laptop", TargetAmount: ledger.MustMoney("90000"), TargetDate: &target, CurrentAllocated: ledger.MustMoney("1000"), CreatedAt: day, UpdatedAt: day}); err != nil {
        t.Fatalf("goal: %v", err)
    }
    if err := st.PutSnapshot(ctx, ledger.Snapshot{ID: "snap-1", Month: "2025-02", NetWorth: ledger.MustMoney("128000"), ByCategory: []ledger.CategoryTotal{{CategoryID: "cat-exp-food", Amount: ledger.MustMoney("10.5")}}, CreatedAt: day}); err != nil {
        t.Fatalf("snapshot: %v", err)
    }
    j := journal.New(st, nil, nil, time.UTC)
    b := ledger.IntentBase{Date: day, Amount: ledger.MustMoney("250.75"), AccountID: "acct-bank-001", Tags: []string{"bazar"}}
    exp, _ := ledger.NewExpense(b, "cat-exp-food")
    if _, err := j.Create(ctx, exp); err != nil { t.Fatalf("expense: %v", err) }
    b.Amount, b.Tags = ledger.MustMoney("500"), nil
    tr, _ := ledger.NewTransfer(b, "acct-cash-001")
    if _, err := j.Create(ctx, tr); err != nil { t.Fatalf("transfer: %v", err) }
}

func dataJSON(t *testing.T, p Payload) string {
    t.Helper()
    b, err := json.Marshal(p.Data)
    if err != nil { t.Fatalf("marshal: %v", err) }
    return string(b)
}

func TestExportImport_FixedPoint(t *testing.T) {
    ctx := context.Background()
    src := memory.New()
    populate(t, src)
    first, err := New(src, nil, nil).Export(ctx)
    if err != nil { t.Fatalf("export: %v", err) }
    if first.Version != CurrentVersion || len(first.Data.Transactions) != 2 {
        t.Fatalf("unexpected export: version=%d txns=%d", first.Version, len(first.Data.Transactions))
    }
    raw, err := json.Marshal(first)
    if err != nil { t.Fatalf("marshal: %v", err) }

    dst := memory.New()
    rec := &events.Recorder{}
    svc := New(dst, rec, nil)
    sum, err := svc.Import(ctx, raw)
    if err != nil { t.Fatalf("import: %v", err) }
    if sum.Accounts != 2 || sum.Transactions != 2 || sum.Backfilled != 0 { t.Fatalf("unexpected summary: %+v", sum) }
    second, err := svc.Export(ctx)
    if err != nil { t.Fatalf("re-export: %v", err) }
    if a, b := dataJSON(t, first), dataJSON(t, second); a != b { t.Fatalf("round trip differs:\n%s\n%s", a, b) }
    if kinds := rec.Kinds(); len(kinds) != 1 || kinds[0] != events.BackupImported { t.Fatalf("events = %v", kinds) }
}

func TestImport_RejectsMalformed(t *testing.T) {
    cases := map[string]string{
        "array":         `[]`,
        "string":        `"backup"`,
        "no data":       `{"version":1}`,
        "data is array": `{"version":1,"data":[]}`,
        "newer version": `{"version":2,"data":{}}`,
        "bad version":   `{"version":"one","data":{}}`,
        "bad accounts":  `{"version":1,"data":{"accounts":{}}}`,
        "missing id":    `{"version":1,"data":{"accounts":[{"name":"x","type":"bank","balance":0}]}}`,
        "dup budget":    `{"version":1,"data":{"budgets":[{"id":"b1","month":"2025-03","categoryId":"c","amount":1},{"id":"b2","month":"2025-03","categoryId":"c","amount":2}]}}`,
    }
    for name, body := range cases {
        t.Run(name, func(t *testing.T) {
            st := memory.New()
            populate(t, st)
            _, err := New(st, nil, nil).Import(context.Background(), []byte(body))
            if !errors.Is(err, errs.ErrInvalidFormat) { t.Fatalf("expected invalid format, got %v", err) }
            if accts, _ := st.ListAccounts(context.Background()); len(accts) != 2 {
                t.Fatalf("store changed on rejected import: %d accounts", len(accts))
            }
        })
    }
}

func TestImport_UnversionedBackfillsOpeningBalance(t *testing.T) {
    body := `{
      "exportedAt": "2025-03-02T10:00:00+06:00",
      "data": {
        "accounts": [
          {"id":"acct-a","name":"City Bank","type":"bank","balance":700,"currency":"BDT","createdAt":"2025-03-01T00:00:00Z","updatedAt":"2025-03-01T00:00:00Z"},
          {"id":"acct-b","name":"Cash","type":"cash","balance":300,"openingBalance":0,"currency":"BDT","createdAt":"2025-03-01T00:00:00Z","updatedAt":"2025-03-01T00:00:00Z"}
        ],
        "transactions": [
          {"id":"txn-1","date":"2025-03-01T00:00:00Z","type":"transfer","amount":"300","accountId":"acct-a","counterpartyAccountId":"acct-b","categoryId":null,"createdAt":"2025-03-01T00:00:00Z","updatedAt":"2025-03-01T00:00:00Z"}
        ]
      }
    }`
    st := memory.New()
    sum, err := New(st, nil, nil).Import(context.Background(), []byte(body))
    if err != nil { t.Fatalf("import: %v", err) }
    if sum.Backfilled != 1 { t.Fatalf("backfilled = %d", sum.Backfilled) }
    a, _ := st.GetAccount(context.Background(), "acct-a")
    if !a.OpeningBalance.Equal(ledger.MustMoney("1000")) { t.Fatalf("opening balance = %s", a.OpeningBalance) }
    drift, err := journal.New(st, nil, nil, time.UTC).Reconcile(context.Background())
    if err != nil { t.Fatalf("reconcile: %v", err) }
    for _, d := range drift {
        if !d.Drift.IsZero() { t.Fatalf("drift after import: %+v", d) }
    }
}

func TestClear_EmptiesEveryCollection(t *testing.T) {
    ctx := context.Background()
    st := memory.New()
    populate(t, st)
    rec := &events.Recorder{}
    svc := New(st, rec, nil)

    if err := svc.Clear(ctx); err != nil { t.Fatalf("clear: %v", err) }
    p, err := svc.Export(ctx)
    if err != nil { t.Fatalf("export: %v", err) }
    d := p.Data
    if n := len(d.Accounts) + len(d.Categories) + len(d.Budgets) + len(d.Transactions) + len(d.Goals) + len(d.Snapshots); n != 0 {
        t.Fatalf("%d rows left after clear", n)
    }
    if k := rec.Kinds(); len(k) != 1 || k[0] != events.DataCleared { t.Fatalf("events = %v", k) }
    // clearing an empty store is fine
    if err := svc.Clear(ctx); err != nil { t.Fatalf("second clear: %v", err) }
}
