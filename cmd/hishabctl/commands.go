package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "io"
    "os"
    "text/tabwriter"
    "time"

    "github.com/google/subcommands"

    "github.com/tinoosan/hishab/internal/app"
    "github.com/tinoosan/hishab/internal/config"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/seed"
    "github.com/tinoosan/hishab/internal/service/budget"
)

var commands = []subcommands.Command{
    &exportCmd{},
    &importCmd{},
    &resetCmd{},
    &migrateCmd{},
    &seedCmd{},
    &rollupCmd{},
    &verifyCmd{},
}

// openApp loads the configuration and wires the services around the
// configured store. The returned func closes the store.
func openApp(ctx context.Context) (*app.App, config.Config, func(), error) {
    config.LoadDotEnv()
    cfg, err := config.Load()
    if err != nil { return nil, cfg, nil, err }
    if err := cfg.Validate(); err != nil { return nil, cfg, nil, fmt.Errorf("invalid configuration: %w", err) }
    logger := cfg.Logger()
    loc, _ := cfg.Location()
    mode, _ := budget.ParseCopyMode(cfg.Budget.CopyMode, budget.CopyOverwrite)
    st, err := app.OpenStore(ctx, cfg.Storage, logger)
    if err != nil { return nil, cfg, nil, err }
    a := app.New(st, logger, app.Options{Currency: cfg.Ledger.Currency, Location: loc, CopyMode: mode})
    return a, cfg, func() { st.Close() }, nil
}

func fail(err error) subcommands.ExitStatus {
    fmt.Fprintln(os.Stderr, err)
    return subcommands.ExitFailure
}

type exportCmd struct {
    out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a JSON backup of every collection" }
func (*exportCmd) Usage() string {
    return `hishabctl export [-o <file>]

  Writes the versioned backup document to <file>, or to stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
    f.StringVar(&c.out, "o", "", "output file (default stdout)")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    a, _, closeFn, err := openApp(ctx)
    if err != nil { return fail(err) }
    defer closeFn()
    p, err := a.Backup.Export(ctx)
    if err != nil { return fail(err) }
    var w io.Writer = os.Stdout
    if c.out != "" {
        f, err := os.Create(c.out)
        if err != nil { return fail(err) }
        defer f.Close()
        w = f
    }
    enc := json.NewEncoder(w)
    enc.SetIndent("", "  ")
    if err := enc.Encode(p); err != nil { return fail(err) }
    return subcommands.ExitSuccess
}

type importCmd struct {
    in string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace the store contents with a JSON backup" }
func (*importCmd) Usage() string {
    return `hishabctl import -i <file>

  Validates the backup and replaces all six collections in one atomic step.
  Use "-" to read from stdin.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
    f.StringVar(&c.in, "i", "", "backup file, or - for stdin")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    if c.in == "" {
        fmt.Fprintln(os.Stderr, "missing -i")
        return subcommands.ExitUsageError
    }
    var raw []byte
    var err error
    if c.in == "-" {
        raw, err = io.ReadAll(os.Stdin)
    } else {
        raw, err = os.ReadFile(c.in)
    }
    if err != nil { return fail(err) }
    a, _, closeFn, err := openApp(ctx)
    if err != nil { return fail(err) }
    defer closeFn()
    sum, err := a.Backup.Import(ctx, raw)
    if err != nil { return fail(err) }
    out, _ := json.MarshalIndent(sum, "", "  ")
    fmt.Println(string(out))
    return subcommands.ExitSuccess
}

type resetCmd struct {
    yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "delete every account, category, budget, transaction, goal and snapshot" }
func (*resetCmd) Usage() string {
    return `hishabctl reset -yes

  Empties the store in one atomic step. Export a backup first.
`
}

func (c *resetCmd) SetFlags(f *flag.FlagSet) {
    f.BoolVar(&c.yes, "yes", false, "confirm the reset")
}

func (c *resetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    if !c.yes {
        fmt.Fprintln(os.Stderr, "refusing to reset without -yes")
        return subcommands.ExitUsageError
    }
    a, _, closeFn, err := openApp(ctx)
    if err != nil { return fail(err) }
    defer closeFn()
    if err := a.Backup.Clear(ctx); err != nil { return fail(err) }
    fmt.Println("all data cleared")
    return subcommands.ExitSuccess
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending schema migrations" }
func (*migrateCmd) Usage() string {
    return `hishabctl migrate

  Opens the configured store, which applies any pending migrations.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    _, cfg, closeFn, err := openApp(ctx)
    if err != nil { return fail(err) }
    closeFn()
    fmt.Printf("%s schema is up to date\n", cfg.Storage.Backend)
    return subcommands.ExitSuccess
}

type seedCmd struct{}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "install the starter accounts and categories into an empty store" }
func (*seedCmd) Usage() string {
    return `hishabctl seed

  Does nothing when the store already holds accounts.
`
}
func (*seedCmd) SetFlags(*flag.FlagSet) {}

func (*seedCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    a, cfg, closeFn, err := openApp(ctx)
    if err != nil { return fail(err) }
    defer closeFn()
    ok, err := seed.Apply(ctx, a.Store, seed.Options{Currency: cfg.Ledger.Currency, Location: a.Location, Log: a.Log, Pub: a.Bus})
    if err != nil { return fail(err) }
    if !ok {
        fmt.Println("store is not empty; nothing seeded")
        return subcommands.ExitSuccess
    }
    fmt.Println("seeded starter data")
    return subcommands.ExitSuccess
}

type rollupCmd struct {
    month string
}

func (*rollupCmd) Name() string     { return "rollup" }
func (*rollupCmd) Synopsis() string { return "record a monthly snapshot" }
func (*rollupCmd) Usage() string {
    return `hishabctl rollup [-m YYYY-MM]

  Appends a snapshot of net worth, cash flow and expense totals for the
  month (default: the previous month in the ledger timezone).
`
}

func (c *rollupCmd) SetFlags(f *flag.FlagSet) {
    f.StringVar(&c.month, "m", "", "month to roll up")
}

func (c *rollupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    a, _, closeFn, err := openApp(ctx)
    if err != nil { return fail(err) }
    defer closeFn()
    month := ledger.MonthOf(time.Now(), a.Location).Prev()
    if c.month != "" {
        if month, err = ledger.ParseMonth(c.month); err != nil { return fail(err) }
    }
    snap, err := a.Snapshots.Rollup(ctx, month)
    if err != nil { return fail(err) }
    fmt.Printf("%s  net worth %s  income %s  expense %s\n", snap.Month, snap.NetWorth, snap.Totals.Income, snap.Totals.Expense)
    return subcommands.ExitSuccess
}

type verifyCmd struct{}

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "check stored balances against the transaction log" }
func (*verifyCmd) Usage() string {
    return `hishabctl verify

  Recomputes every balance as opening balance plus transaction effects and
  exits non-zero when any stored balance drifts.
`
}
func (*verifyCmd) SetFlags(*flag.FlagSet) {}

func (*verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    a, _, closeFn, err := openApp(ctx)
    if err != nil { return fail(err) }
    defer closeFn()
    drifts, err := a.Journal.Reconcile(ctx)
    if err != nil { return fail(err) }
    tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
    fmt.Fprintln(tw, "ACCOUNT\tSTORED\tEXPECTED\tDRIFT")
    bad := 0
    for _, d := range drifts {
        if !d.Drift.IsZero() {
            bad++
        }
        fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Stored, d.Expected, d.Drift)
    }
    tw.Flush()
    if bad > 0 {
        fmt.Fprintf(os.Stderr, "%d account(s) out of balance\n", bad)
        return subcommands.ExitFailure
    }
    return subcommands.ExitSuccess
}
