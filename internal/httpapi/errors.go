package httpapi

import (
    "errors"
    "net/http"

    "github.com/tinoosan/hishab/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
    Error string `json:"error"`
    Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
    toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "bad_request") }

// writeServiceErr maps the errs taxonomy onto HTTP statuses.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
    status, code := statusFor(err)
    if status >= http.StatusInternalServerError {
        s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
        writeErr(w, status, "internal error", code)
        return
    }
    writeErr(w, status, err.Error(), code)
}

func statusFor(err error) (int, string) {
    switch {
    case errors.Is(err, errs.ErrNotFound):
        return http.StatusNotFound, "not_found"
    case errors.Is(err, errs.ErrInvalidOperation):
        return http.StatusUnprocessableEntity, "invalid_operation"
    case errors.Is(err, errs.ErrInvalidFormat):
        return http.StatusBadRequest, "invalid_format"
    case errors.Is(err, errs.ErrInvalid):
        return http.StatusBadRequest, "bad_request"
    case errors.Is(err, errs.ErrConflict):
        return http.StatusConflict, "conflict"
    case errors.Is(err, errs.ErrStorage):
        return http.StatusInternalServerError, "storage_failure"
    default:
        return http.StatusInternalServerError, "internal"
    }
}
