package main

import (
	"context"
	"fmt"
	"github.com/forbiddencoding/ruddit/cmd/ruddit"
	"github.com/forbiddencoding/ruddit/common/errs"
	_ "github.com/joho/godotenv/autoload"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := ruddit.BuildCLI().Run(ctx, os.Args)
	stop()

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errs.Message(err))
		os.Exit(errs.ExitCode(err))
	}
}
