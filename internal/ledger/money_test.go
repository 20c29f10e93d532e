package ledger

import (
    "encoding/json"
    "testing"
)

func TestMoney_JSON(t *testing.T) {
    var v struct {
        A Money `json:"a"`
        B Money `json:"b"`
        C Money `json:"c"`
    }
    if err := json.Unmarshal([]byte(`{"a": 120000, "b": "15.50", "c": null}`), &v); err != nil {
        t.Fatalf("unmarshal: %v", err)
    }
    if !v.A.Equal(MustMoney("120000")) || !v.B.Equal(MustMoney("15.5")) || !v.C.IsZero() {
        t.Fatalf("decoded %s %s %s", v.A, v.B, v.C)
    }
    b, err := json.Marshal(v)
    if err != nil { t.Fatalf("marshal: %v", err) }
    if string(b) != `{"a":120000,"b":15.50,"c":0}` {
        t.Fatalf("encoded %s", b)
    }
    if err := json.Unmarshal([]byte(`{"a": "abc"}`), &v); err == nil {
        t.Fatalf("expected parse error")
    }
}

func TestMoney_ExactArithmetic(t *testing.T) {
    sum := Zero
    for i := 0; i < 10; i++ {
        var err error
        if sum, err = sum.Add(MustMoney("0.1")); err != nil { t.Fatalf("add: %v", err) }
    }
    if !sum.Equal(MustMoney("1")) { t.Fatalf("expected exact 1, got %s", sum) }
    diff, _ := MustMoney("100").Sub(MustMoney("250"))
    if !diff.IsNeg() || diff.Sign() != -1 || !diff.Neg().Equal(MustMoney("150")) { t.Fatalf("sub/neg: %s", diff) }
    if _, err := MustMoney("1").Quo(Zero); err == nil { t.Fatalf("expected division by zero error") }
}

func TestMoney_Scan(t *testing.T) {
    var m Money
    for _, src := range []any{"12.34", []byte("12.34"), float64(12.34)} {
        if err := m.Scan(src); err != nil || !m.Equal(MustMoney("12.34")) { t.Fatalf("scan %T: %s %v", src, m, err) }
    }
    if err := m.Scan(int64(7)); err != nil || !m.Equal(MustMoney("7")) { t.Fatalf("scan int64: %s %v", m, err) }
    if err := m.Scan(true); err == nil { t.Fatalf("expected unsupported type error") }
}

func TestValidCurrency(t *testing.T) {
    if !ValidCurrency("BDT") || !ValidCurrency("USD") { t.Fatalf("expected BDT and USD to be valid") }
    if ValidCurrency("XYZ1") { t.Fatalf("expected XYZ1 to be invalid") }
}
