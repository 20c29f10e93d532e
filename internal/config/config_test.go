package config

import (
    "log/slog"
    "os"
    "path/filepath"
    "strings"
    "testing"
)

func TestLoad_Defaults(t *testing.T) {
    t.Setenv("HOME", t.TempDir())
    t.Setenv("HISHAB_CONFIG", "")
    c, err := Load()
    if err != nil { t.Fatalf("load: %v", err) }
    if c.HTTP.Addr != ":8080" || c.Storage.Backend != "sqlite" || c.Ledger.Currency != "BDT" || c.Ledger.Timezone != "Asia/Dhaka" {
        t.Fatalf("unexpected defaults: %+v", c)
    }
    if !c.Seed.Enabled || c.Budget.CopyMode != "overwrite" { t.Fatalf("unexpected defaults: %+v", c) }
    if err := c.Validate(); err != nil { t.Fatalf("defaults should validate: %v", err) }
}

func TestLoad_FileThenEnv(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "config.toml")
    body := "[storage]\nbackend = \"memory\"\n\n[ledger]\ncurrency = \"usd\"\n"
    if err := os.WriteFile(path, []byte(body), 0o600); err != nil { t.Fatalf("write: %v", err) }
    t.Setenv("HISHAB_CONFIG", path)
    t.Setenv("HISHAB_HTTP_ADDR", ":9090")
    c, err := Load()
    if err != nil { t.Fatalf("load: %v", err) }
    if c.Storage.Backend != "memory" || c.Ledger.Currency != "USD" || c.HTTP.Addr != ":9090" {
        t.Fatalf("unexpected config: %+v", c)
    }
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, ".env")
    if err := os.WriteFile(path, []byte("HISHAB_LOG_LEVEL=debug\nHISHAB_AMQP_EXCHANGE=from-file\n"), 0o600); err != nil {
        t.Fatalf("write: %v", err)
    }
    t.Setenv("HISHAB_AMQP_EXCHANGE", "from-env")
    t.Setenv("HISHAB_LOG_LEVEL", "")
    os.Unsetenv("HISHAB_LOG_LEVEL")
    LoadDotEnv(path)
    if got := os.Getenv("HISHAB_AMQP_EXCHANGE"); got != "from-env" { t.Fatalf("exchange = %q", got) }
    if got := os.Getenv("HISHAB_LOG_LEVEL"); got != "debug" { t.Fatalf("level = %q", got) }
}

func TestValidate_AggregatesErrors(t *testing.T) {
    c := Config{
        HTTP:    HTTPConfig{Addr: ":8080"},
        Storage: StorageConfig{Backend: "postgres"},
        Log:     LogConfig{Format: "xml"},
        AMQP:    AMQPConfig{URL: "http://broker"},
        Ledger:  LedgerConfig{Timezone: "Mars/Olympus"},
        Budget:  BudgetConfig{CopyMode: "replace"},
    }
    err := c.Validate()
    if err == nil { t.Fatalf("expected errors") }
    for _, want := range []string{"postgres_dsn", "log.format", "AMQP URL scheme", "amqp.exchange", "ledger.timezone", "copy_mode"} {
        if !strings.Contains(err.Error(), want) { t.Fatalf("error %q does not mention %q", err, want) }
    }
}

func TestParseLevel(t *testing.T) {
    if parseLevel("DEBUG") != slog.LevelDebug || parseLevel("warning") != slog.LevelWarn || parseLevel("") != slog.LevelInfo {
        t.Fatalf("level mapping broken")
    }
}
