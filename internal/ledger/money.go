package ledger

import (
    "bytes"
    "database/sql/driver"
    "fmt"
    "strconv"

    "github.com/govalues/decimal"
    "github.com/govalues/money"
)

// Money is an exact decimal amount. It encodes as a bare JSON number so backup
// files stay compatible with payloads produced by other clients, and it
// accepts either numbers or strings on decode.
type Money struct {
    d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// ParseMoney parses a decimal string such as "120.50".
func ParseMoney(s string) (Money, error) {
    d, err := decimal.Parse(s)
    if err != nil { return Money{}, fmt.Errorf("parse amount %q: %w", s, err) }
    return Money{d: d}, nil
}

// MustMoney is ParseMoney that panics; intended for constants and tests.
func MustMoney(s string) Money {
    m, err := ParseMoney(s)
    if err != nil {
        panic(err)
    }
    return m
}

// MoneyFromDecimal wraps d.
func MoneyFromDecimal(d decimal.Decimal) Money { return Money{d: d} }

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) (Money, error) {
    d, err := m.d.Add(o.d)
    if err != nil { return Money{}, err }
    return Money{d: d}, nil
}

func (m Money) Sub(o Money) (Money, error) {
    d, err := m.d.Sub(o.d)
    if err != nil { return Money{}, err }
    return Money{d: d}, nil
}

// Quo divides m by o. Division by zero is an error.
func (m Money) Quo(o Money) (Money, error) {
    d, err := m.d.Quo(o.d)
    if err != nil { return Money{}, err }
    return Money{d: d}, nil
}

func (m Money) Neg() Money       { return Money{d: m.d.Neg()} }
func (m Money) Cmp(o Money) int  { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Cmp(o.d) == 0 }
func (m Money) Sign() int        { return m.d.Sign() }
func (m Money) IsZero() bool     { return m.d.Sign() == 0 }
func (m Money) IsPos() bool      { return m.d.Sign() > 0 }
func (m Money) IsNeg() bool      { return m.d.Sign() < 0 }
func (m Money) String() string   { return m.d.String() }

// Float64 is a lossy conversion used for ratios only.
func (m Money) Float64() float64 {
    f, _ := strconv.ParseFloat(m.d.String(), 64)
    return f
}

// Format renders m with its currency code, e.g. "BDT 1200.50".
// It falls back to the bare number when currency is unknown.
func (m Money) Format(currency string) string {
    a, err := money.ParseAmount(currency, m.d.String())
    if err != nil { return m.d.String() }
    return a.String()
}

func (m Money) MarshalJSON() ([]byte, error) { return []byte(m.d.String()), nil }

func (m *Money) UnmarshalJSON(b []byte) error {
    b = bytes.TrimSpace(b)
    if len(b) == 0 || bytes.Equal(b, []byte("null")) {
        *m = Money{}
        return nil
    }
    if b[0] == '"' {
        s, err := strconv.Unquote(string(b))
        if err != nil { return err }
        b = []byte(s)
    }
    parsed, err := ParseMoney(string(b))
    if err != nil { return err }
    *m = parsed
    return nil
}

// Value stores Money as its canonical decimal string.
func (m Money) Value() (driver.Value, error) { return m.d.String(), nil }

// Scan reads Money from TEXT, NUMERIC or float columns.
func (m *Money) Scan(src any) error {
    switch v := src.(type) {
    case nil:
        *m = Money{}
        return nil
    case string:
        return m.parseInto(v)
    case []byte:
        return m.parseInto(string(v))
    case int64:
        return m.parseInto(strconv.FormatInt(v, 10))
    case float64:
        return m.parseInto(strconv.FormatFloat(v, 'f', -1, 64))
    default:
        return fmt.Errorf("money: unsupported scan type %T", src)
    }
}

func (m *Money) parseInto(s string) error {
    parsed, err := ParseMoney(s)
    if err != nil { return err }
    *m = parsed
    return nil
}

// ValidCurrency reports whether code is a known ISO 4217 currency.
func ValidCurrency(code string) bool {
    _, err := money.ParseCurr(code)
    return err == nil
}
