package main

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/internal/lambdafn"
	"github.com/urfave/cli/v3"
)

func buildCmd() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Package Lambda functions as deployable zip archives",
		ArgsUsage: "[function]",
		Action:    config.RunWithConfig(runBuild),
	}
}

type buildOptions struct {
	Function string
	Output   io.Writer
}

func runBuild(ctx context.Context, cmd *cli.Command, cfg config.Config) error {
	return doBuild(ctx, cfg, buildOptions{
		Function: cmd.Args().First(),
		Output:   os.Stdout,
	})
}

func doBuild(_ context.Context, cfg config.Config, opts buildOptions) error {
	logger := newLogger(opts.Output)

	var fns []lambdafn.Function
	if opts.Function != "" {
		fn, err := lambdafn.Find(cfg.LambdasDir(), opts.Function)
		if err != nil {
			return err
		}
		fns = []lambdafn.Function{fn}
	} else {
		var err error
		fns, err = lambdafn.Discover(cfg.LambdasDir())
		if err != nil {
			return err
		}
		if len(fns) == 0 {
			return errors.Newf("no Lambda functions found under %s", cfg.LambdasDir())
		}
	}

	for _, fn := range fns {
		zipPath, err := lambdafn.Package(fn, cfg.OutputDir(), logger)
		if err != nil {
			return errors.Wrapf(err, "failed to package function %s", fn.Name)
		}
		logger.Info("function packaged", "function", fn.Name, "zip", zipPath)
	}
	return nil
}
