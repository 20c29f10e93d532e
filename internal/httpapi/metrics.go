package httpapi

import (
    "net/http"
    "strconv"
    "time"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Requests are labelled by chi route pattern (e.g. /v1/transactions/{id}) so
// ids and months do not explode the series count.
var (
    httpRequestsTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "hishab",
            Name:      "http_requests_total",
            Help:      "HTTP requests by route, method and status.",
        },
        []string{"route", "method", "status"},
    )
    httpRequestDuration = promauto.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "hishab",
            Name:      "http_request_duration_seconds",
            Help:      "HTTP request latency by route and method.",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"route", "method"},
    )
)

func metricsHandler() http.Handler {
    return promhttp.Handler()
}

// routePattern is read after routing; unmatched paths share one label.
func routePattern(r *http.Request) string {
    if rc := chi.RouteContext(r.Context()); rc != nil {
        if p := rc.RoutePattern(); p != "" { return p }
    }
    return "unmatched"
}

func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
        start := time.Now()
        next.ServeHTTP(ww, r)
        route := routePattern(r)
        httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
        httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
    })
}
