// Package slug turns free text into compact lowercase keys.
package slug

import (
    "strings"
    "unicode"
)

// MaxLen bounds the length of a slug in runes.
const MaxLen = 40

// Slugify lowercases s, keeps letters and digits from any script, and collapses
// every other run of characters into a single '-'. Leading and trailing
// separators are trimmed and the result is cut at MaxLen runes.
func Slugify(s string) string {
    if s == "" { return s }
    out := make([]rune, 0, len(s))
    prevSep := true
    for _, r := range strings.ToLower(s) {
        if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc) {
            out = append(out, r)
            prevSep = false
        } else if !prevSep {
            out = append(out, '-')
            prevSep = true
        }
        if len(out) >= MaxLen { break }
    }
    return strings.Trim(string(out), "-")
}

// IsSlug reports whether s is already in slug form.
func IsSlug(s string) bool {
    return s != "" && Slugify(s) == s
}
