// Package tags normalizes and validates the free-form labels on transactions.
package tags

import (
    "fmt"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/slug"
)

// MaxTags caps how many labels one transaction may carry.
const MaxTags = 20

// Normalize slugifies each tag, drops empties and duplicates (first occurrence
// wins) and never returns nil.
func Normalize(in []string) []string {
    out := make([]string, 0, len(in))
    seen := make(map[string]struct{}, len(in))
    for _, raw := range in {
        t := slug.Slugify(raw)
        if t == "" { continue }
        if _, ok := seen[t]; ok { continue }
        seen[t] = struct{}{}
        out = append(out, t)
    }
    return out
}

// Validate rejects tag sets that exceed MaxTags after normalization.
func Validate(in []string) error {
    if n := len(Normalize(in)); n > MaxTags {
        return fmt.Errorf("too many tags (%d > %d): %w", n, MaxTags, errs.ErrInvalidOperation)
    }
    return nil
}

// Clean is Validate followed by Normalize.
func Clean(in []string) ([]string, error) {
    out := Normalize(in)
    if len(out) > MaxTags { return nil, fmt.Errorf("too many tags (%d > %d): %w", len(out), MaxTags, errs.ErrInvalidOperation) }
    return out, nil
}

// Contains reports whether set holds tag after normalizing tag.
func Contains(set []string, tag string) bool {
    want := slug.Slugify(tag)
    for _, t := range set {
        if t == want { return true }
    }
    return false
}
