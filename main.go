package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dasbindgen/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.NewCLI().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(cmd.ExitCode(err))
	}
}
