// Package main provides the seotests command. It drives a real browser
// through Google's page tools for every configured page and writes the
// screenshots, verdicts and reports of the run.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := newRootCommand(ctx, afero.NewOsFs(), os.Stdin, os.Stdout)
	err := cmd.Execute()
	stop()

	if err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(2)
	}
}
