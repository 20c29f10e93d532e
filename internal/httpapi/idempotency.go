package httpapi

import (
    "bytes"
    "crypto/sha256"
    "encoding/hex"
    "io"
    "net/http"
    "time"
)

const (
    defaultIdemTTL = 24 * time.Hour
    defaultIdemMax = 1024
)

type storedResponse struct {
    BodyHash string
    Status   int
    Payload  []byte
    At       time.Time
}

func hashBytes(b []byte) string {
    h := sha256.Sum256(b)
    return hex.EncodeToString(h[:])
}

// idempotent replays the first successful response for a repeated
// Idempotency-Key with the same body; a different body under the same key is
// a 409. Requests without the header pass through.
func (s *Server) idempotent(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        key := r.Header.Get("Idempotency-Key")
        if key == "" {
            next.ServeHTTP(w, r)
            return
        }
        body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
        if err != nil {
            badRequest(w, "read body: "+err.Error())
            return
        }
        h := hashBytes(body)
        key = r.URL.Path + "|" + key
        // keyed requests run one at a time so a concurrent retry cannot post twice
        s.idemRun.Lock()
        defer s.idemRun.Unlock()
        s.idemMu.RLock()
        prev, ok := s.idem[key]
        s.idemMu.RUnlock()
        if ok && s.now().Sub(prev.At) >= s.idemTTL { ok = false }
        if ok {
            if prev.BodyHash != h {
                writeErr(w, http.StatusConflict, "idempotency_mismatch", "idempotency_mismatch")
                return
            }
            w.Header().Set("Content-Type", "application/json")
            w.Header().Set("Idempotent-Replay", "true")
            w.WriteHeader(prev.Status)
            _, _ = w.Write(prev.Payload)
            return
        }
        r.Body = io.NopCloser(bytes.NewReader(body))
        rw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rw, r)
        if rw.status >= 200 && rw.status < 300 {
            s.rememberResponse(key, storedResponse{BodyHash: h, Status: rw.status, Payload: append([]byte(nil), rw.buf...), At: s.now()})
        }
    })
}

// rememberResponse stores resp under key after dropping expired entries and,
// when the cache is full, the oldest one.
func (s *Server) rememberResponse(key string, resp storedResponse) {
    s.idemMu.Lock()
    defer s.idemMu.Unlock()
    for k, v := range s.idem {
        if resp.At.Sub(v.At) >= s.idemTTL { delete(s.idem, k) }
    }
    for len(s.idem) >= s.idemMax {
        oldest, first := "", true
        for k, v := range s.idem {
            if first || v.At.Before(s.idem[oldest].At) { oldest, first = k, false }
        }
        delete(s.idem, oldest)
    }
    s.idem[key] = resp
}

type captureWriter struct {
    http.ResponseWriter
    status int
    buf    []byte
}

func (w *captureWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }
func (w *captureWriter) Write(b []byte) (int, error) {
    w.buf = append(w.buf, b...)
    return w.ResponseWriter.Write(b)
}
