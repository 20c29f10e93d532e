package httpapi

import (
    "net/http"

    chi "github.com/go-chi/chi/v5"

    "github.com/tinoosan/hishab/internal/service/account"
)

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
    list, err := s.d.Accounts.List(r.Context())
    if err != nil { s.writeServiceErr(w, r, err); return }
    out := make([]accountResponse, 0, len(list))
    for _, a := range list {
        out = append(out, toAccountResponse(a))
    }
    toJSON(w, http.StatusOK, items(out))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
    a, err := s.d.Accounts.Get(r.Context(), chi.URLParam(r, "id"))
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, toAccountResponse(a))
}

func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
    var req postAccountRequest
    if !decodeJSON(w, r, &req) { return }
    a, err := s.d.Accounts.Create(r.Context(), account.Input{
        Name:           req.Name,
        Type:           req.Type,
        OpeningBalance: req.OpeningBalance,
        Currency:       req.Currency,
    })
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusCreated, toAccountResponse(a))
}

func (s *Server) patchAccount(w http.ResponseWriter, r *http.Request) {
    var req patchAccountRequest
    if !decodeJSON(w, r, &req) { return }
    a, err := s.d.Accounts.Update(r.Context(), chi.URLParam(r, "id"), account.Patch{Name: req.Name, Archived: req.Archived})
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, toAccountResponse(a))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
    if err := s.d.Accounts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
        s.writeServiceErr(w, r, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// GET /v1/accounts/reconcile
func (s *Server) reconcileAccounts(w http.ResponseWriter, r *http.Request) {
    drift, err := s.d.Journal.Reconcile(r.Context())
    if err != nil { s.writeServiceErr(w, r, err); return }
    balanced := true
    for _, d := range drift {
        if !d.Drift.IsZero() { balanced = false }
    }
    toJSON(w, http.StatusOK, map[string]any{"balanced": balanced, "items": drift})
}
