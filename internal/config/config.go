// Package config loads settings from defaults, an optional TOML file, .env
// files and HISHAB_* environment variables, in increasing precedence.
package config

import (
    "errors"
    "fmt"
    "log/slog"
    "net/url"
    "os"
    "path/filepath"
    "strings"
    "time"
    _ "time/tzdata"

    "github.com/joho/godotenv"
    "github.com/spf13/viper"
)

type Config struct {
    HTTP    HTTPConfig    `mapstructure:"http"`
    Storage StorageConfig `mapstructure:"storage"`
    Log     LogConfig     `mapstructure:"log"`
    AMQP    AMQPConfig    `mapstructure:"amqp"`
    Seed    SeedConfig    `mapstructure:"seed"`
    Ledger  LedgerConfig  `mapstructure:"ledger"`
    Budget  BudgetConfig  `mapstructure:"budget"`
}

type HTTPConfig struct {
    Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
    // Backend is memory, sqlite or postgres.
    Backend     string `mapstructure:"backend"`
    SQLitePath  string `mapstructure:"sqlite_path"`
    PostgresDSN string `mapstructure:"postgres_dsn"`
}

type LogConfig struct {
    Level  string `mapstructure:"level"`
    Format string `mapstructure:"format"`
}

// AMQPConfig enables event publishing when URL is set.
type AMQPConfig struct {
    URL      string `mapstructure:"url"`
    Exchange string `mapstructure:"exchange"`
}

type SeedConfig struct {
    Enabled bool `mapstructure:"enabled"`
}

type LedgerConfig struct {
    Currency string `mapstructure:"currency"`
    // Timezone is the IANA zone month boundaries are computed in.
    Timezone string `mapstructure:"timezone"`
}

type BudgetConfig struct {
    CopyMode string `mapstructure:"copy_mode"`
}

const envPrefix = "HISHAB"

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) {
    if len(paths) == 0 {
        paths = []string{".env"}
    }
    for _, p := range paths {
        _ = godotenv.Load(p)
    }
}

func setDefaults(v *viper.Viper) {
    v.SetDefault("http.addr", ":8080")
    v.SetDefault("storage.backend", "sqlite")
    v.SetDefault("storage.sqlite_path", filepath.Join(dataHome(), "hishab", "hishab.db"))
    v.SetDefault("storage.postgres_dsn", "")
    v.SetDefault("log.level", "info")
    v.SetDefault("log.format", "json")
    v.SetDefault("amqp.url", "")
    v.SetDefault("amqp.exchange", "hishab")
    v.SetDefault("seed.enabled", true)
    v.SetDefault("ledger.currency", "BDT")
    v.SetDefault("ledger.timezone", "Asia/Dhaka")
    v.SetDefault("budget.copy_mode", "overwrite")
}

func dataHome() string {
    if d := os.Getenv("XDG_DATA_HOME"); d != "" { return d }
    return filepath.Join(os.Getenv("HOME"), ".local", "share")
}

// Load reads the configuration. The file comes from HISHAB_CONFIG or
// $HOME/.config/hishab/config.toml; a missing file is not an error.
func Load() (Config, error) {
    v := viper.New()
    setDefaults(v)

    v.SetConfigType("toml")
    if p := os.Getenv(envPrefix + "_CONFIG"); p != "" {
        v.SetConfigFile(p)
    } else {
        v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "hishab"))
        v.SetConfigName("config")
    }

    v.SetEnvPrefix(envPrefix)
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    if err := v.ReadInConfig(); err != nil {
        var notFound viper.ConfigFileNotFoundError
        if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) { return Config{}, fmt.Errorf("read config: %w", err) }
    }

    var c Config
    if err := v.Unmarshal(&c); err != nil { return Config{}, fmt.Errorf("unmarshal config: %w", err) }
    c.Ledger.Currency = strings.ToUpper(strings.TrimSpace(c.Ledger.Currency))
    c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
    return c, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
    var errs []error
    switch c.Storage.Backend {
    case "memory":
    case "sqlite":
        if c.Storage.SQLitePath == "" {
            errs = append(errs, errors.New("storage.sqlite_path cannot be empty when using sqlite backend"))
        }
    case "postgres":
        if c.Storage.PostgresDSN == "" {
            errs = append(errs, errors.New("storage.postgres_dsn cannot be empty when using postgres backend"))
        }
    default:
        errs = append(errs, fmt.Errorf("invalid storage backend %q: must be one of memory, sqlite, postgres", c.Storage.Backend))
    }
    if c.HTTP.Addr == "" {
        errs = append(errs, errors.New("http.addr cannot be empty"))
    }
    if c.AMQP.URL != "" {
        if u, err := url.Parse(c.AMQP.URL); err != nil {
            errs = append(errs, fmt.Errorf("invalid AMQP URL: %v", err))
        } else if u.Scheme != "amqp" && u.Scheme != "amqps" {
            errs = append(errs, fmt.Errorf("invalid AMQP URL scheme %q: must be amqp or amqps", u.Scheme))
        }
        if c.AMQP.Exchange == "" {
            errs = append(errs, errors.New("amqp.exchange cannot be empty when amqp.url is set"))
        }
    }
    if _, err := c.Location(); err != nil {
        errs = append(errs, err)
    }
    switch c.Budget.CopyMode {
    case "overwrite", "merge":
    default:
        errs = append(errs, fmt.Errorf("invalid budget.copy_mode %q: must be overwrite or merge", c.Budget.CopyMode))
    }
    switch strings.ToLower(c.Log.Format) {
    case "json", "text":
    default:
        errs = append(errs, fmt.Errorf("invalid log.format %q: must be json or text", c.Log.Format))
    }
    return errors.Join(errs...)
}

// Location resolves Ledger.Timezone.
func (c Config) Location() (*time.Location, error) {
    loc, err := time.LoadLocation(c.Ledger.Timezone)
    if err != nil { return nil, fmt.Errorf("invalid ledger.timezone %q: %w", c.Ledger.Timezone, err) }
    return loc, nil
}

// Logger builds the process logger from the log section.
func (c Config) Logger() *slog.Logger {
    opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
    if strings.EqualFold(c.Log.Format, "text") { return slog.New(slog.NewTextHandler(os.Stdout, opts)) }
    return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Leveler {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "debug":
        return slog.LevelDebug
    case "warn", "warning":
        return slog.LevelWarn
    case "error", "err":
        return slog.LevelError
    default:
        return slog.LevelInfo
    }
}
