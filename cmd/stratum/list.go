package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/internal/lambdafn"
	"github.com/strataops/stratum/internal/manifest"
	"github.com/urfave/cli/v3"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List project resources",
		Commands: []*cli.Command{
			{
				Name:   "lambdas",
				Usage:  "List Lambda functions",
				Action: config.RunWithConfig(runListLambdas),
			},
			{
				Name:   "libs",
				Usage:  "List shared libraries and their dependencies",
				Action: config.RunWithConfig(runListLibs),
			},
		},
	}
}

func runListLambdas(ctx context.Context, cmd *cli.Command, cfg config.Config) error {
	return doListLambdas(cfg, os.Stdout)
}

func runListLibs(ctx context.Context, cmd *cli.Command, cfg config.Config) error {
	return doListLibs(cfg, os.Stdout)
}

func doListLambdas(cfg config.Config, output io.Writer) error {
	fns, err := lambdafn.Discover(cfg.LambdasDir())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FUNCTION\tLOGICAL ID\tDIR")
	for _, fn := range fns {
		fmt.Fprintf(w, "%s\t%s\t%s\n", fn.Name, fn.LogicalID(), fn.Dir)
	}
	return w.Flush()
}

func doListLibs(cfg config.Config, output io.Writer) error {
	libs, err := manifest.Discover(cfg.LibsDir(), newLogger(output))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LIBRARY\tMANIFEST\tDEPENDENCIES")
	for _, lib := range libs {
		manifestState := "yes"
		if !lib.HasManifest {
			manifestState = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", lib.Name, manifestState, len(lib.Dependencies))
	}
	return w.Flush()
}
