package httpapi

import (
    "net/http"
    "strconv"

    chi "github.com/go-chi/chi/v5"

    "github.com/tinoosan/hishab/internal/ledger"
)

// GET /v1/snapshots?limit=
func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
    limit := 0
    if raw := r.URL.Query().Get("limit"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n < 0 { badRequest(w, "invalid limit"); return }
        limit = n
    }
    list, err := s.d.Snapshots.List(r.Context(), limit)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, items(list))
}

// POST /v1/snapshots/{month}
func (s *Server) postSnapshot(w http.ResponseWriter, r *http.Request) {
    snap, err := s.d.Snapshots.Rollup(r.Context(), ledger.Month(chi.URLParam(r, "month")))
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusCreated, snap)
}

// GET /v1/reports/dashboard?month=
func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
    month, err := s.monthParam(r.URL.Query().Get("month"))
    if err != nil { s.writeServiceErr(w, r, err); return }
    d, err := s.d.Dashboard.Dashboard(r.Context(), month)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, d)
}

// GET /v1/reports/cash-flow?month=
func (s *Server) getCashFlow(w http.ResponseWriter, r *http.Request) {
    month, err := s.monthParam(r.URL.Query().Get("month"))
    if err != nil { s.writeServiceErr(w, r, err); return }
    d, err := s.d.Dashboard.Dashboard(r.Context(), month)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, d.CashFlow)
}

// GET /v1/reports/net-worth
func (s *Server) getNetWorth(w http.ResponseWriter, r *http.Request) {
    month, _ := s.monthParam("")
    d, err := s.d.Dashboard.Dashboard(r.Context(), month)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, map[string]any{"netWorth": d.NetWorth})
}
