package httpapi

import (
    "bytes"
    "encoding/json"
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/tinoosan/hishab/internal/app"
    "github.com/tinoosan/hishab/internal/storage/memory"
)

func testLogger() *slog.Logger {
    return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type acctResp struct {
    ID             string      `json:"id"`
    Name           string      `json:"name"`
    Type           string      `json:"type"`
    Balance        json.Number `json:"balance"`
    OpeningBalance json.Number `json:"openingBalance"`
    Currency       string      `json:"currency"`
    BalanceDisplay string      `json:"balanceDisplay"`
}

type txnResp struct {
    ID         string      `json:"id"`
    Type       string      `json:"type"`
    Amount     json.Number `json:"amount"`
    Notes      string      `json:"notes"`
    CategoryID *string     `json:"categoryId"`
    Tags       []string    `json:"tags"`
}

type errResp struct {
    Error string `json:"error"`
    Code  string `json:"code"`
}

func setup(t *testing.T) http.Handler {
    t.Helper()
    a := app.New(memory.New(), testLogger(), app.Options{Currency: "BDT", Location: time.UTC})
    return New(DepsFrom(a), testLogger()).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
    t.Helper()
    var rd io.Reader
    if body != nil {
        switch b := body.(type) {
        case string:
            rd = strings.NewReader(b)
        default:
            raw, err := json.Marshal(b)
            if err != nil { t.Fatalf("marshal: %v", err) }
            rd = bytes.NewReader(raw)
        }
    }
    req := httptest.NewRequest(method, path, rd)
    if body != nil {
        req.Header.Set("Content-Type", "application/json")
    }
    rec := httptest.NewRecorder()
    h.ServeHTTP(rec, req)
    return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    dec := json.NewDecoder(rec.Body)
    dec.UseNumber()
    if err := dec.Decode(&v); err != nil { t.Fatalf("decode: %v", err) }
    return v
}

func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
    t.Helper()
    if rec.Code != want { t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String()) }
}

func createAccount(t *testing.T, h http.Handler, name, typ, opening string) acctResp {
    t.Helper()
    rec := do(t, h, http.MethodPost, "/v1/accounts", map[string]any{"name": name, "type": typ, "openingBalance": json.Number(opening)})
    mustStatus(t, rec, http.StatusCreated)
    return decode[acctResp](t, rec)
}

func createCategory(t *testing.T, h http.Handler, name, typ string) string {
    t.Helper()
    rec := do(t, h, http.MethodPost, "/v1/categories", map[string]any{"name": name, "type": typ})
    mustStatus(t, rec, http.StatusCreated)
    return decode[struct {
        ID string `json:"id"`
    }](t, rec).ID
}

func balanceOf(t *testing.T, h http.Handler, id string) string {
    t.Helper()
    rec := do(t, h, http.MethodGet, "/v1/accounts/"+id, nil)
    mustStatus(t, rec, http.StatusOK)
    return decode[acctResp](t, rec).Balance.String()
}

func TestTransferExpenseScenario(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "City Bank", "bank", "1000")
    b := createAccount(t, h, "bKash Wallet", "wallet", "0")
    food := createCategory(t, h, "Food", "expense")
    if a.Currency != "BDT" || a.BalanceDisplay == "" { t.Fatalf("unexpected account: %+v", a) }

    rec := do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
        "date": "2025-03-01", "type": "transfer", "amount": 300, "accountId": a.ID, "counterpartyAccountId": b.ID,
    })
    mustStatus(t, rec, http.StatusCreated)
    transfer := decode[txnResp](t, rec)
    if transfer.Notes != "Transfer from City Bank to bKash Wallet" || transfer.CategoryID != nil {
        t.Fatalf("unexpected transfer: %+v", transfer)
    }
    if got := balanceOf(t, h, a.ID); got != "700" { t.Fatalf("A = %s, want 700", got) }
    if got := balanceOf(t, h, b.ID); got != "300" { t.Fatalf("B = %s, want 300", got) }

    rec = do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
        "date": "2025-03-02T10:00:00Z", "type": "expense", "amount": "100", "accountId": a.ID, "categoryId": food, "tags": []string{"Bazar", "bazar"},
    })
    mustStatus(t, rec, http.StatusCreated)
    expense := decode[txnResp](t, rec)
    if len(expense.Tags) != 1 || expense.Tags[0] != "bazar" { t.Fatalf("tags = %v", expense.Tags) }
    if got := balanceOf(t, h, a.ID); got != "600" { t.Fatalf("A = %s, want 600", got) }

    rec = do(t, h, http.MethodGet, "/v1/reports/cash-flow?month=2025-03", nil)
    mustStatus(t, rec, http.StatusOK)
    cf := decode[map[string]json.Number](t, rec)
    if cf["income"].String() != "0" || cf["expense"].String() != "100" || cf["net"].String() != "-100" {
        t.Fatalf("cash flow = %v", cf)
    }

    rec = do(t, h, http.MethodGet, "/v1/transactions?month=2025-03&accountId="+b.ID, nil)
    mustStatus(t, rec, http.StatusOK)
    if list := decode[listResponse[txnResp]](t, rec); len(list.Items) != 1 || list.Items[0].ID != transfer.ID {
        t.Fatalf("filter by counterparty account: %+v", list)
    }

    mustStatus(t, do(t, h, http.MethodDelete, "/v1/transactions/"+expense.ID, nil), http.StatusNoContent)
    if got := balanceOf(t, h, a.ID); got != "700" { t.Fatalf("A = %s, want 700", got) }
    mustStatus(t, do(t, h, http.MethodDelete, "/v1/transactions/"+transfer.ID, nil), http.StatusNoContent)
    mustStatus(t, do(t, h, http.MethodDelete, "/v1/transactions/"+transfer.ID, nil), http.StatusNoContent)
    if balanceOf(t, h, a.ID) != "1000" || balanceOf(t, h, b.ID) != "0" { t.Fatalf("balances not restored") }

    rec = do(t, h, http.MethodGet, "/v1/accounts/reconcile", nil)
    mustStatus(t, rec, http.StatusOK)
    if !decode[struct {
        Balanced bool `json:"balanced"`
    }](t, rec).Balanced {
        t.Fatalf("ledger should reconcile")
    }
}

func TestErrorMapping(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Cash", "cash", "50")
    b := createAccount(t, h, "City Bank", "bank", "0")

    cases := []struct {
        name   string
        method string
        path   string
        body   any
        status int
        code   string
    }{
        {"missing account", http.MethodPost, "/v1/transactions", map[string]any{"date": "2025-03-01", "type": "transfer", "amount": 5, "accountId": "acct-nope", "counterpartyAccountId": b.ID}, http.StatusNotFound, "not_found"},
        {"missing counterparty", http.MethodPost, "/v1/transactions", map[string]any{"date": "2025-03-01", "type": "transfer", "amount": 5, "accountId": a.ID, "counterpartyAccountId": "acct-nope"}, http.StatusUnprocessableEntity, "invalid_operation"},
        {"self transfer", http.MethodPost, "/v1/transactions", map[string]any{"date": "2025-03-01", "type": "transfer", "amount": 5, "accountId": a.ID, "counterpartyAccountId": a.ID}, http.StatusUnprocessableEntity, "invalid_operation"},
        {"zero amount", http.MethodPost, "/v1/transactions", map[string]any{"date": "2025-03-01", "type": "transfer", "amount": 0, "accountId": a.ID, "counterpartyAccountId": b.ID}, http.StatusUnprocessableEntity, "invalid_operation"},
        {"bad date", http.MethodPost, "/v1/transactions", map[string]any{"date": "yesterday", "type": "transfer", "amount": 5, "accountId": a.ID, "counterpartyAccountId": b.ID}, http.StatusBadRequest, "bad_request"},
        {"unknown field", http.MethodPost, "/v1/accounts", map[string]any{"name": "x", "type": "cash", "balance": 5}, http.StatusBadRequest, "bad_request"},
        {"bad month", http.MethodGet, "/v1/transactions?month=2025-13", nil, http.StatusBadRequest, "bad_request"},
        {"missing goal", http.MethodPatch, "/v1/goals/goal-nope", map[string]any{"name": "x"}, http.StatusNotFound, "not_found"},
        {"backup not object", http.MethodPost, "/v1/backup/import", "[1,2]", http.StatusBadRequest, "invalid_format"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            rec := do(t, h, tc.method, tc.path, tc.body)
            mustStatus(t, rec, tc.status)
            if e := decode[errResp](t, rec); e.Code != tc.code { t.Fatalf("code = %q, want %q (%s)", e.Code, tc.code, e.Error) }
        })
    }
}

func TestAccountDeleteGuard(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Cash", "cash", "50")
    b := createAccount(t, h, "City Bank", "bank", "0")
    rec := do(t, h, http.MethodPost, "/v1/transactions", map[string]any{"date": "2025-03-01", "type": "transfer", "amount": 5, "accountId": a.ID, "counterpartyAccountId": b.ID})
    mustStatus(t, rec, http.StatusCreated)

    rec = do(t, h, http.MethodDelete, "/v1/accounts/"+b.ID, nil)
    mustStatus(t, rec, http.StatusUnprocessableEntity)
    if balanceOf(t, h, b.ID) != "5" { t.Fatalf("account changed by rejected delete") }
    c := createAccount(t, h, "Spare", "wallet", "0")
    mustStatus(t, do(t, h, http.MethodDelete, "/v1/accounts/"+c.ID, nil), http.StatusNoContent)
}

func TestRequireJSON(t *testing.T) {
    h := setup(t)
    req := httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader(`{"name":"x","type":"cash"}`))
    req.Header.Set("Content-Type", "text/plain")
    rec := httptest.NewRecorder()
    h.ServeHTTP(rec, req)
    mustStatus(t, rec, http.StatusUnsupportedMediaType)

    req = httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader(`{"name":"x","type":"cash"}`))
    req.Header.Set("Content-Type", "application/json; charset=utf-8")
    rec = httptest.NewRecorder()
    h.ServeHTTP(rec, req)
    mustStatus(t, rec, http.StatusCreated)
}

func TestIdempotencyKey(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Cash", "cash", "500")
    cat := createCategory(t, h, "Food", "expense")
    post := func(body string) *httptest.ResponseRecorder {
        req := httptest.NewRequest(http.MethodPost, "/v1/transactions", strings.NewReader(body))
        req.Header.Set("Content-Type", "application/json")
        req.Header.Set("Idempotency-Key", "k-1")
        rec := httptest.NewRecorder()
        h.ServeHTTP(rec, req)
        return rec
    }
    body := `{"date":"2025-03-01","type":"expense","amount":40,"accountId":"` + a.ID + `","categoryId":"` + cat + `"}`
    first := post(body)
    mustStatus(t, first, http.StatusCreated)
    second := post(body)
    mustStatus(t, second, http.StatusCreated)
    if first.Body.String() != second.Body.String() || second.Header().Get("Idempotent-Replay") != "true" {
        t.Fatalf("expected replay of first response")
    }
    if got := balanceOf(t, h, a.ID); got != "460" { t.Fatalf("balance = %s, want 460 (posted once)", got) }
    mustStatus(t, post(strings.Replace(body, "40", "41", 1)), http.StatusConflict)
}

func TestIdempotencyCacheIsBounded(t *testing.T) {
    a := app.New(memory.New(), testLogger(), app.Options{Currency: "BDT", Location: time.UTC})
    srv := New(DepsFrom(a), testLogger())
    srv.idemMax = 2
    clock := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
    srv.now = func() time.Time { return clock }
    h := srv.Handler()

    acct := createAccount(t, h, "Cash", "cash", "500")
    cat := createCategory(t, h, "Food", "expense")
    post := func(key, amount string) *httptest.ResponseRecorder {
        body := `{"date":"2025-03-01","type":"expense","amount":` + amount + `,"accountId":"` + acct.ID + `","categoryId":"` + cat + `"}`
        req := httptest.NewRequest(http.MethodPost, "/v1/transactions", strings.NewReader(body))
        req.Header.Set("Content-Type", "application/json")
        req.Header.Set("Idempotency-Key", key)
        rec := httptest.NewRecorder()
        h.ServeHTTP(rec, req)
        return rec
    }
    for _, k := range []string{"k-1", "k-2", "k-3"} {
        mustStatus(t, post(k, "10"), http.StatusCreated)
        clock = clock.Add(time.Minute)
    }
    if n := len(srv.idem); n != 2 { t.Fatalf("cache holds %d entries, want 2", n) }
    // the oldest key was evicted, so its retry posts again
    if rec := post("k-1", "10"); rec.Header().Get("Idempotent-Replay") != "" { t.Fatalf("evicted key was replayed") }
    if rec := post("k-3", "10"); rec.Header().Get("Idempotent-Replay") != "true" { t.Fatalf("recent key was not replayed") }

    // entries expire by age
    clock = clock.Add(defaultIdemTTL)
    if rec := post("k-3", "10"); rec.Header().Get("Idempotent-Replay") != "" { t.Fatalf("expired key was replayed") }
    if got := balanceOf(t, h, acct.ID); got != "450" { t.Fatalf("balance = %s, want 450", got) }
}

func TestCategoryParentPatch(t *testing.T) {
    h := setup(t)
    parent := createCategory(t, h, "Bills", "expense")
    rec := do(t, h, http.MethodPost, "/v1/categories", map[string]any{"name": "Power", "type": "expense", "parentId": parent})
    mustStatus(t, rec, http.StatusCreated)
    child := decode[struct {
        ID       string  `json:"id"`
        ParentID *string `json:"parentId"`
    }](t, rec)
    if child.ParentID == nil || *child.ParentID != parent { t.Fatalf("parent not set: %+v", child) }
    mustStatus(t, do(t, h, http.MethodPatch, "/v1/categories/"+parent, map[string]any{"parentId": child.ID}), http.StatusUnprocessableEntity)
    mustStatus(t, do(t, h, http.MethodDelete, "/v1/categories/"+parent, nil), http.StatusUnprocessableEntity)

    rec = do(t, h, http.MethodPatch, "/v1/categories/"+child.ID, `{"parentId":null}`)
    mustStatus(t, rec, http.StatusOK)
    if got := decode[struct {
        ParentID *string `json:"parentId"`
    }](t, rec); got.ParentID != nil {
        t.Fatalf("parent not cleared")
    }
    mustStatus(t, do(t, h, http.MethodDelete, "/v1/categories/"+parent, nil), http.StatusNoContent)
}

func TestBudgetsAndDashboard(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Cash", "cash", "1000")
    food := createCategory(t, h, "Food", "expense")
    rent := createCategory(t, h, "Rent", "expense")

    rec := do(t, h, http.MethodPut, "/v1/budgets/2025-02", map[string]any{"budgets": []map[string]any{
        {"categoryId": food, "amount": 200}, {"categoryId": rent, "amount": 500},
    }})
    mustStatus(t, rec, http.StatusOK)
    rec = do(t, h, http.MethodPost, "/v1/budgets/2025-03/copy-previous?mode=merge", nil)
    mustStatus(t, rec, http.StatusOK)
    if n := decode[map[string]any](t, rec)["copied"]; n != json.Number("2") { t.Fatalf("copied = %v", n) }
    mustStatus(t, do(t, h, http.MethodPost, "/v1/budgets/2025-03/copy-previous?mode=replace", nil), http.StatusBadRequest)

    mustStatus(t, do(t, h, http.MethodPost, "/v1/transactions", map[string]any{"date": "2025-03-05", "type": "expense", "amount": 250, "accountId": a.ID, "categoryId": food}), http.StatusCreated)

    rec = do(t, h, http.MethodGet, "/v1/budgets?month=2025-03", nil)
    mustStatus(t, rec, http.StatusOK)
    usage := decode[struct {
        Items []struct {
            CategoryID string      `json:"categoryId"`
            Spent      json.Number `json:"spent"`
            Remaining  json.Number `json:"remaining"`
            Progress   json.Number `json:"progress"`
        } `json:"items"`
    }](t, rec)
    found := false
    for _, u := range usage.Items {
        if u.CategoryID == food {
            found = true
            if u.Spent != "250" || u.Remaining != "-50" || u.Progress != "1" { t.Fatalf("food usage = %+v", u) }
        }
    }
    if !found { t.Fatalf("food budget missing: %+v", usage) }

    rec = do(t, h, http.MethodGet, "/v1/reports/dashboard?month=2025-03", nil)
    mustStatus(t, rec, http.StatusOK)
    dash := decode[struct {
        NetWorth json.Number `json:"netWorth"`
        Budgets  []any       `json:"budgets"`
    }](t, rec)
    if dash.NetWorth != "750" || len(dash.Budgets) != 2 { t.Fatalf("dashboard = %+v", dash) }
}

func TestGoalsAndSnapshots(t *testing.T) {
    h := setup(t)
    createAccount(t, h, "Cash", "cash", "300")
    rec := do(t, h, http.MethodPost, "/v1/goals", map[string]any{"name": "Laptop", "targetAmount": 1000, "targetDate": "2025-12-01", "currentAllocated": 250})
    mustStatus(t, rec, http.StatusCreated)
    g := decode[struct {
        ID         string      `json:"id"`
        Progress   json.Number `json:"progress"`
        TargetDate *string     `json:"targetDate"`
    }](t, rec)
    if g.Progress != "0.25" || g.TargetDate == nil { t.Fatalf("goal = %+v", g) }
    rec = do(t, h, http.MethodPatch, "/v1/goals/"+g.ID, `{"targetDate":null}`)
    mustStatus(t, rec, http.StatusOK)
    if got := decode[struct {
        TargetDate *string `json:"targetDate"`
    }](t, rec); got.TargetDate != nil {
        t.Fatalf("target date not cleared")
    }

    mustStatus(t, do(t, h, http.MethodPost, "/v1/snapshots/2025-03", nil), http.StatusCreated)
    rec = do(t, h, http.MethodGet, "/v1/snapshots?limit=5", nil)
    mustStatus(t, rec, http.StatusOK)
    snaps := decode[listResponse[struct {
        Month    string      `json:"month"`
        NetWorth json.Number `json:"netWorth"`
    }]](t, rec)
    if len(snaps.Items) != 1 || snaps.Items[0].NetWorth != "300" { t.Fatalf("snapshots = %+v", snaps) }
}

func TestBackupRoundTripOverHTTP(t *testing.T) {
    src := setup(t)
    a := createAccount(t, src, "City Bank", "bank", "120000")
    b := createAccount(t, src, "Cash", "cash", "8000")
    mustStatus(t, do(t, src, http.MethodPost, "/v1/transactions", map[string]any{"date": "2025-03-01", "type": "transfer", "amount": "1500.50", "accountId": a.ID, "counterpartyAccountId": b.ID}), http.StatusCreated)

    rec := do(t, src, http.MethodGet, "/v1/backup/export", nil)
    mustStatus(t, rec, http.StatusOK)
    if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "hishab-backup-") {
        t.Fatalf("content disposition = %q", cd)
    }
    exported := rec.Body.String()

    dst := setup(t)
    rec = do(t, dst, http.MethodPost, "/v1/backup/import", exported)
    mustStatus(t, rec, http.StatusOK)
    if balanceOf(t, dst, a.ID) != "118499.50" || balanceOf(t, dst, b.ID) != "9500.50" { t.Fatalf("balances not restored") }
}

func TestClearData(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Cash", "cash", "50")
    createCategory(t, h, "Food", "expense")

    mustStatus(t, do(t, h, http.MethodDelete, "/v1/backup", nil), http.StatusNoContent)
    mustStatus(t, do(t, h, http.MethodGet, "/v1/accounts/"+a.ID, nil), http.StatusNotFound)
    for _, path := range []string{"/v1/accounts", "/v1/categories", "/v1/transactions", "/v1/goals"} {
        rec := do(t, h, http.MethodGet, path, nil)
        mustStatus(t, rec, http.StatusOK)
        if list := decode[listResponse[json.RawMessage]](t, rec); len(list.Items) != 0 {
            t.Fatalf("%s: %d items left", path, len(list.Items))
        }
    }
    rec := do(t, h, http.MethodGet, "/v1/reports/net-worth", nil)
    mustStatus(t, rec, http.StatusOK)
    if nw := decode[map[string]json.Number](t, rec)["netWorth"]; nw != "0" { t.Fatalf("net worth after clear = %s", nw) }
}

func TestMetricsLabelledByRoute(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Cash", "cash", "5")
    mustStatus(t, do(t, h, http.MethodGet, "/v1/accounts/"+a.ID, nil), http.StatusOK)
    rec := do(t, h, http.MethodGet, "/metrics", nil)
    mustStatus(t, rec, http.StatusOK)
    body := rec.Body.String()
    if !strings.Contains(body, `route="/v1/accounts/{id}"`) {
        t.Fatalf("metrics missing route pattern label")
    }
    if strings.Contains(body, a.ID) { t.Fatalf("metrics leak raw ids") }
}

func TestHealthAndDictionary(t *testing.T) {
    h := setup(t)
    mustStatus(t, do(t, h, http.MethodGet, "/healthz", nil), http.StatusOK)
    mustStatus(t, do(t, h, http.MethodGet, "/readyz", nil), http.StatusOK)
    mustStatus(t, do(t, h, http.MethodGet, "/metrics", nil), http.StatusOK)
    rec := do(t, h, http.MethodGet, "/v1/dictionary", nil)
    mustStatus(t, rec, http.StatusOK)
    if !strings.Contains(rec.Body.String(), `"wallet"`) {
        t.Fatalf("dictionary missing wallet: %s", rec.Body.String())
    }
}
