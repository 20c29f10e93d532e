// Command hishabctl runs maintenance tasks against the configured store:
// backups, migrations, monthly rollups and balance verification.
package main

import (
    "context"
    "flag"
    "os"
    "os/signal"
    "path"
    "syscall"

    "github.com/google/subcommands"
)

func main() {
    commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
    commander.Register(commander.HelpCommand(), "")
    commander.Register(commander.FlagsCommand(), "")
    for _, c := range commands {
        commander.Register(c, "")
    }

    flag.Parse()
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    code := commander.Execute(ctx)
    stop()
    os.Exit(int(code))
}
