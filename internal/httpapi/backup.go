package httpapi

import (
    "fmt"
    "io"
    "net/http"
    "time"
)

// GET /v1/backup/export streams the backup as a download.
func (s *Server) exportBackup(w http.ResponseWriter, r *http.Request) {
    p, err := s.d.Backup.Export(r.Context())
    if err != nil { s.writeServiceErr(w, r, err); return }
    name := fmt.Sprintf("hishab-backup-%s.json", p.ExportedAt.In(s.d.Location).Format(time.DateOnly))
    w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
    toJSON(w, http.StatusOK, p)
}

// POST /v1/backup/import replaces all data with the uploaded backup.
func (s *Server) importBackup(w http.ResponseWriter, r *http.Request) {
    raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
    if err != nil { badRequest(w, "read body: "+err.Error()); return }
    sum, err := s.d.Backup.Import(r.Context(), raw)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, sum)
}

// DELETE /v1/backup wipes every collection.
func (s *Server) clearData(w http.ResponseWriter, r *http.Request) {
    if err := s.d.Backup.Clear(r.Context()); err != nil { s.writeServiceErr(w, r, err); return }
    w.WriteHeader(http.StatusNoContent)
}
