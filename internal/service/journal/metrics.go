package journal

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var postings = promauto.NewCounterVec(
    prometheus.CounterOpts{
        Name: "hishab_ledger_postings_total",
        Help: "Committed ledger mutations by operation and transaction type.",
    },
    []string{"op", "type"},
)
