package ledger

import (
    "fmt"
    "time"

    "github.com/tinoosan/hishab/internal/errs"
)

// Month is a calendar month key in YYYY-MM form.
type Month string

const monthLayout = "2006-01"

// ParseMonth validates and normalizes a YYYY-MM key.
func ParseMonth(s string) (Month, error) {
    t, err := time.Parse(monthLayout, s)
    if err != nil { return "", fmt.Errorf("month %q: expected YYYY-MM: %w", s, errs.ErrInvalid) }
    return Month(t.Format(monthLayout)), nil
}

// MonthOf returns the month containing t in loc.
func MonthOf(t time.Time, loc *time.Location) Month {
    if loc == nil {
        loc = time.UTC
    }
    return Month(t.In(loc).Format(monthLayout))
}

func (m Month) String() string { return string(m) }

// Start is the first instant of the month in loc.
func (m Month) Start(loc *time.Location) time.Time {
    if loc == nil {
        loc = time.UTC
    }
    t, err := time.ParseInLocation(monthLayout, string(m), loc)
    if err != nil { return time.Time{} }
    return t
}

// End is the last representable instant of the month in loc (inclusive bound).
func (m Month) End(loc *time.Location) time.Time {
    return m.Start(loc).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// Contains reports whether t falls within [Start, End] in loc.
func (m Month) Contains(t time.Time, loc *time.Location) bool {
    return !t.Before(m.Start(loc)) && !t.After(m.End(loc))
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
    return Month(m.Start(time.UTC).AddDate(0, -1, 0).Format(monthLayout))
}
