package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pevans/paperboy/credentials"
	"github.com/spf13/afero"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp(&app{
		fs:     afero.NewOsFs(),
		store:  credentials.NewStore(),
		stderr: os.Stderr,
		ctx:    ctx,
		run:    runWorkflow,
	}).Run(os.Args)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "paperboy: %v\n", err)
	}
	os.Exit(exitCode(err))
}
