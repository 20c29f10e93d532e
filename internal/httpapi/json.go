package httpapi

import (
    "encoding/json"
    "errors"
    "io"
    "net/http"
)

const maxBodyBytes = 32 << 20

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

// decodeJSON strictly decodes one JSON value from the body into dst and
// writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
    dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
    dec.DisallowUnknownFields()
    if err := dec.Decode(dst); err != nil {
        if errors.Is(err, io.EOF) {
            badRequest(w, "request body is required")
            return false
        }
        badRequest(w, "invalid JSON: "+err.Error())
        return false
    }
    return true
}

// optional distinguishes an absent JSON field from an explicit null.
type optional[T any] struct {
    Set   bool
    Null  bool
    Value T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
    o.Set = true
    if string(b) == "null" {
        o.Null = true
        return nil
    }
    return json.Unmarshal(b, &o.Value)
}
