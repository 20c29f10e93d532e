package httpapi

import (
    "net/http"
    "strings"

    chi "github.com/go-chi/chi/v5"

    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/service/journal"
)

// GET /v1/transactions?month=&categoryId=&accountId=
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    list, err := s.d.Journal.List(r.Context(), journal.Filter{
        Month:      ledger.Month(strings.TrimSpace(q.Get("month"))),
        CategoryID: strings.TrimSpace(q.Get("categoryId")),
        AccountID:  strings.TrimSpace(q.Get("accountId")),
    })
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, items(list))
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
    t, err := s.d.Journal.Get(r.Context(), chi.URLParam(r, "id"))
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, t)
}

func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
    var req postTransactionRequest
    if !decodeJSON(w, r, &req) { return }
    date, err := parseDate(req.Date, s.d.Location)
    if err != nil { s.writeServiceErr(w, r, err); return }
    intent, err := ledger.NewIntent(req.Type, ledger.IntentBase{
        Date:      date,
        Amount:    req.Amount,
        AccountID: strings.TrimSpace(req.AccountID),
        Notes:     req.Notes,
        Tags:      req.Tags,
    }, strings.TrimSpace(req.CategoryID), strings.TrimSpace(req.CounterpartyAccountID))
    if err != nil { s.writeServiceErr(w, r, err); return }
    t, err := s.d.Journal.Create(r.Context(), intent)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusCreated, t)
}

func (s *Server) patchTransaction(w http.ResponseWriter, r *http.Request) {
    var req patchTransactionRequest
    if !decodeJSON(w, r, &req) { return }
    p := journal.Patch{Amount: req.Amount, Notes: req.Notes, Tags: req.Tags}
    if req.Date != nil {
        d, err := parseDate(*req.Date, s.d.Location)
        if err != nil { s.writeServiceErr(w, r, err); return }
        p.Date = &d
    }
    if req.CategoryID.Set {
        cat := req.CategoryID.Value
        p.CategoryID = &cat
    }
    t, err := s.d.Journal.Update(r.Context(), chi.URLParam(r, "id"), p)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, t)
}

// DELETE is idempotent: a missing id still answers 204.
func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
    if err := s.d.Journal.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
        s.writeServiceErr(w, r, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}
