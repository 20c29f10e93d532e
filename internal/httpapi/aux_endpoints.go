package httpapi

import (
    "context"
    "net/http"
    "time"

    "github.com/tinoosan/hishab/internal/dictionary"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
    if s.d.Ready == nil { w.WriteHeader(http.StatusOK); return }
    ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
    defer cancel()
    if err := s.d.Ready(ctx); err != nil {
        s.log.WarnContext(r.Context(), "not ready", "err", err)
        w.WriteHeader(http.StatusServiceUnavailable)
        return
    }
    w.WriteHeader(http.StatusOK)
}

// GET /v1/dictionary
func (s *Server) getDictionary(w http.ResponseWriter, r *http.Request) {
    toJSON(w, http.StatusOK, dictionary.Get())
}
