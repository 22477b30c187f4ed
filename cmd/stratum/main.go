package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "stratum",
		Usage:   "Build, test, and deploy Python Lambda functions and shared layers",
		Version: Version,
		Commands: []*cli.Command{
			initCmd(),
			buildCmd(),
			layerCmd(),
			testCmd(),
			listCmd(),
			invokeCmd(),
			deployCmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: false,
	})
}
