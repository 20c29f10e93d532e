package httpapi

import (
    "net/http"

    chi "github.com/go-chi/chi/v5"

    "github.com/tinoosan/hishab/internal/service/category"
)

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
    list, err := s.d.Categories.List(r.Context())
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, items(list))
}

func (s *Server) postCategory(w http.ResponseWriter, r *http.Request) {
    var req postCategoryRequest
    if !decodeJSON(w, r, &req) { return }
    c, err := s.d.Categories.Create(r.Context(), category.Input{Name: req.Name, Type: req.Type, ParentID: req.ParentID})
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusCreated, c)
}

func (s *Server) patchCategory(w http.ResponseWriter, r *http.Request) {
    var req patchCategoryRequest
    if !decodeJSON(w, r, &req) { return }
    p := category.Patch{Name: req.Name, Archived: req.Archived}
    if req.ParentID.Set {
        // null detaches; the service treats "" as no parent
        parent := req.ParentID.Value
        p.ParentID = &parent
    }
    c, err := s.d.Categories.Update(r.Context(), chi.URLParam(r, "id"), p)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
    if err := s.d.Categories.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
        s.writeServiceErr(w, r, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}
