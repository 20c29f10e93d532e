package httpapi

import (
    "net/http"
    "time"

    chi "github.com/go-chi/chi/v5"

    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/service/budget"
)

// monthParam reads month from the query or path; empty means the current month.
func (s *Server) monthParam(raw string) (ledger.Month, error) {
    if raw == "" { return ledger.MonthOf(time.Now(), s.d.Location), nil }
    return ledger.ParseMonth(raw)
}

// GET /v1/budgets?month=
func (s *Server) listBudgets(w http.ResponseWriter, r *http.Request) {
    month, err := s.monthParam(r.URL.Query().Get("month"))
    if err != nil { s.writeServiceErr(w, r, err); return }
    list, err := s.d.Budgets.List(r.Context(), month)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, map[string]any{"month": month, "items": list})
}

// PUT /v1/budgets/{month} upserts every row in one atomic step.
func (s *Server) putBudgets(w http.ResponseWriter, r *http.Request) {
    month, err := ledger.ParseMonth(chi.URLParam(r, "month"))
    if err != nil { s.writeServiceErr(w, r, err); return }
    var req putBudgetsRequest
    if !decodeJSON(w, r, &req) { return }
    if len(req.Budgets) == 0 { badRequest(w, "budgets is required"); return }
    rows := make([]budget.Allocation, 0, len(req.Budgets))
    for _, b := range req.Budgets {
        rows = append(rows, budget.Allocation{CategoryID: b.CategoryID, Amount: b.Amount})
    }
    out, err := s.d.Budgets.UpsertMany(r.Context(), month, rows)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, items(out))
}

// POST /v1/budgets/{month}/copy-previous?mode=overwrite|merge
func (s *Server) copyBudgets(w http.ResponseWriter, r *http.Request) {
    month, err := ledger.ParseMonth(chi.URLParam(r, "month"))
    if err != nil { s.writeServiceErr(w, r, err); return }
    mode, err := budget.ParseCopyMode(r.URL.Query().Get("mode"), "")
    if err != nil { s.writeServiceErr(w, r, err); return }
    n, err := s.d.Budgets.CopyFromPreviousMonth(r.Context(), month, mode)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, map[string]any{"month": month, "from": month.Prev(), "copied": n})
}

func (s *Server) deleteBudget(w http.ResponseWriter, r *http.Request) {
    if err := s.d.Budgets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
        s.writeServiceErr(w, r, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}
