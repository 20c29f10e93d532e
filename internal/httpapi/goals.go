package httpapi

import (
    "net/http"

    chi "github.com/go-chi/chi/v5"

    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/report"
    "github.com/tinoosan/hishab/internal/service/goal"
)

type goalResponse struct {
    ledger.SavingsGoal
    Progress float64 `json:"progress"`
}

func toGoalResponse(g ledger.SavingsGoal) goalResponse {
    return goalResponse{SavingsGoal: g, Progress: report.GoalProgress(g)}
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
    list, err := s.d.Goals.List(r.Context())
    if err != nil { s.writeServiceErr(w, r, err); return }
    out := make([]goalResponse, 0, len(list))
    for _, g := range list {
        out = append(out, toGoalResponse(g))
    }
    toJSON(w, http.StatusOK, items(out))
}

func (s *Server) postGoal(w http.ResponseWriter, r *http.Request) {
    var req postGoalRequest
    if !decodeJSON(w, r, &req) { return }
    in := goal.Input{Name: req.Name, TargetAmount: req.TargetAmount, CurrentAllocated: req.CurrentAllocated}
    if req.TargetDate != nil && *req.TargetDate != "" {
        d, err := parseDate(*req.TargetDate, s.d.Location)
        if err != nil { s.writeServiceErr(w, r, err); return }
        in.TargetDate = &d
    }
    g, err := s.d.Goals.Create(r.Context(), in)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusCreated, toGoalResponse(g))
}

func (s *Server) patchGoal(w http.ResponseWriter, r *http.Request) {
    var req patchGoalRequest
    if !decodeJSON(w, r, &req) { return }
    p := goal.Patch{Name: req.Name, TargetAmount: req.TargetAmount, CurrentAllocated: req.CurrentAllocated}
    switch {
    case req.TargetDate.Null, req.TargetDate.Set && req.TargetDate.Value == "":
        p.ClearTargetDate = true
    case req.TargetDate.Set:
        d, err := parseDate(req.TargetDate.Value, s.d.Location)
        if err != nil { s.writeServiceErr(w, r, err); return }
        p.TargetDate = &d
    }
    g, err := s.d.Goals.Update(r.Context(), chi.URLParam(r, "id"), p)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, toGoalResponse(g))
}

func (s *Server) deleteGoal(w http.ResponseWriter, r *http.Request) {
    if err := s.d.Goals.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
        s.writeServiceErr(w, r, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}
