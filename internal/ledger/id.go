package ledger

import (
    "strings"

    "github.com/google/uuid"
)

// ID prefixes per entity kind.
const (
    PrefixAccount     = "acct"
    PrefixCategory    = "cat"
    PrefixBudget      = "bdg"
    PrefixTransaction = "txn"
    PrefixGoal        = "goal"
    PrefixSnapshot    = "snap"
)

// NewID returns "<prefix>-<12 hex chars>" drawn from a random UUID.
func NewID(prefix string) string {
    base := strings.ReplaceAll(uuid.NewString(), "-", "")
    return prefix + "-" + base[:12]
}
