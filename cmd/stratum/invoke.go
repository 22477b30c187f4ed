package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/strataops/stratum/internal/cmdexec"
	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/internal/lambdafn"
	"github.com/strataops/stratum/internal/sam"
	"github.com/urfave/cli/v3"
)

func invokeCmd() *cli.Command {
	return &cli.Command{
		Name:      "invoke",
		Usage:     "Invoke a Lambda function locally through SAM",
		ArgsUsage: "<function>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "event",
				Aliases: []string{"e"},
				Usage:   "Event payload file (absolute, or relative to the function directory)",
			},
		},
		Action: config.RunWithConfig(runInvoke),
	}
}

type invokeOptions struct {
	Function  string
	EventFile string
	Output    io.Writer
}

func runInvoke(ctx context.Context, cmd *cli.Command, cfg config.Config) error {
	if cmd.Args().First() == "" {
		return errors.New("function name is required")
	}
	return doInvoke(ctx, cfg, invokeOptions{
		Function:  cmd.Args().First(),
		EventFile: cmd.String("event"),
		Output:    os.Stdout,
	})
}

func doInvoke(ctx context.Context, cfg config.Config, opts invokeOptions) error {
	if !cmdexec.Available("sam") {
		return errors.New("sam not found on PATH: install the AWS SAM CLI")
	}

	logger := newLogger(opts.Output)

	fn, err := lambdafn.Find(cfg.LambdasDir(), opts.Function)
	if err != nil {
		return err
	}

	eventPath, cleanup, err := resolveEventFile(fn, opts.EventFile, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	tplPath, err := writeTemplateFile(fn, cfg.File.PythonVersion)
	if err != nil {
		return err
	}
	defer os.Remove(tplPath)

	exec := cmdexec.New(cfg.ProjectDir).WithOutput(opts.Output, opts.Output)
	return exec.Run(ctx, "sam", "local", "invoke",
		"-t", tplPath,
		"-e", eventPath,
		fn.LogicalID(),
	)
}

// resolveEventFile picks the event payload for an invocation. An explicit
// path wins, then the function's default event.json, then a minimal
// generated payload. The returned cleanup removes any generated file.
func resolveEventFile(fn lambdafn.Function, explicit string, logger *log.Logger) (string, func(), error) {
	noop := func() {}

	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, noop, nil
		}
		relative := filepath.Join(fn.Dir, explicit)
		if _, err := os.Stat(relative); err == nil {
			return relative, noop, nil
		}
		return "", noop, errors.Newf("event file %s not found", explicit)
	}

	if _, err := os.Stat(fn.EventPath()); err == nil {
		return fn.EventPath(), noop, nil
	}

	logger.Warn("no event file found, invoking with an empty payload", "function", fn.Name)

	tmp, err := os.CreateTemp("", "stratum-event-*.json")
	if err != nil {
		return "", noop, errors.Wrap(err, "failed to create default event file")
	}
	if _, err := tmp.WriteString(`{"body": "{}"}`); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", noop, errors.Wrap(err, "failed to write default event file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", noop, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func writeTemplateFile(fn lambdafn.Function, pythonVersion string) (string, error) {
	data, err := sam.NewTemplate(fn, pythonVersion).Marshal()
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "stratum-template-*.yaml")
	if err != nil {
		return "", errors.Wrap(err, "failed to create template file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to write template file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
