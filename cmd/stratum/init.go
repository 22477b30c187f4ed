package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"text/template"

	"github.com/cockroachdb/errors"
	"github.com/strataops/stratum/cmd/stratum/internal/initwizard"
	"github.com/strataops/stratum/internal/cmdexec"
	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/internal/dirhash"
	"github.com/urfave/cli/v3"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Initialize a new stratum project",
		ArgsUsage: "[directory]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "defaults",
				Usage: "Skip the wizard and scaffold with default answers",
			},
			&cli.BoolFlag{
				Name:  "accessible",
				Usage: "Run the wizard in accessible (screen-reader friendly) mode",
			},
		},
		Action: runInit,
	}
}

type initOptions struct {
	Dir    string
	Result initwizard.Result
}

func runInit(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return errors.Wrap(err, "failed to get current working directory")
		}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrap(err, "failed to get absolute path")
	}
	dir = absDir

	defaultName := filepath.Base(dir)
	var result initwizard.Result
	if cmd.Bool("defaults") {
		result = initwizard.DefaultResult(defaultName)
	} else {
		var runner initwizard.FormRunner = initwizard.NewInteractiveRunner()
		if cmd.Bool("accessible") {
			runner = initwizard.NewAccessibleRunner(os.Stdout, os.Stdin)
		}

		wizard := initwizard.New(initwizard.NewFormBuilder(), runner)
		result, err = wizard.Run(defaultName)
		if err != nil {
			return err
		}
	}

	return doInit(ctx, initOptions{Dir: dir, Result: result})
}

func doInit(ctx context.Context, opts initOptions) error {
	if err := ensureUsableDir(opts.Dir); err != nil {
		return err
	}

	if err := scaffold(opts.Dir, opts.Result); err != nil {
		return err
	}

	if cmdexec.Available("git") {
		if err := cmdexec.New(opts.Dir).Run(ctx, "git", "init"); err != nil {
			return err
		}
	}

	newLogger(os.Stdout).Info("project initialized",
		"dir", opts.Dir,
		"lambda", opts.Result.LambdaName,
		"lib", opts.Result.LibName,
	)
	return nil
}

func ensureUsableDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.Newf("%q is not a directory", dir)
		}
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return errors.Newf("directory %q already holds a stratum project", dir)
		}
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to check directory")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}
	return nil
}

// scaffold writes the project skeleton: the configuration file, a first
// Lambda function, and a first shared library with a passing test.
func scaffold(dir string, result initwizard.Result) error {
	file := config.Default()
	file.PythonVersion = result.PythonVersion
	if err := config.WriteToFile(dir, file, config.NewWriter()); err != nil {
		return err
	}

	data := struct {
		ProjectName   string
		PythonVersion string
		LambdaName    string
		LibName       string
	}{
		ProjectName:   result.ProjectName,
		PythonVersion: result.PythonVersion,
		LambdaName:    result.LambdaName,
		LibName:       result.LibName,
	}

	lambdaDir := filepath.Join(dir, file.LambdasDir, result.LambdaName)
	libDir := filepath.Join(dir, file.LibsDir, result.LibName)

	files := []struct {
		path string
		tmpl *template.Template
	}{
		{filepath.Join(lambdaDir, "app.py"), handlerTemplate},
		{filepath.Join(lambdaDir, "event.json"), eventTemplate},
		{filepath.Join(libDir, "pyproject.toml"), libManifestTemplate},
		{filepath.Join(libDir, "src", result.LibName, "__init__.py"), libInitTemplate},
		{filepath.Join(libDir, "tests", "test_"+result.LibName+".py"), libTestTemplate},
		{filepath.Join(dir, file.LibsDir, dirhash.IgnoreFileName), ignoreTemplate},
	}

	for _, f := range files {
		if err := writeTemplated(f.path, f.tmpl, data); err != nil {
			return err
		}
	}
	return nil
}

func writeTemplated(path string, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return errors.Wrapf(err, "failed to execute %s template", filepath.Base(path))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
