package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(newAppContext()).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(provisionerrors.ExitCode(err))
	}
}
