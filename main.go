package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/3leaps/nsupdates/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func init() {
	cli.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.RunContext(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
