package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/strataops/stratum/internal/cmdexec"
	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/internal/manifest"
	"github.com/urfave/cli/v3"
)

func testCmd() *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "Run pytest for the shared libraries",
		ArgsUsage: "[library]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Pass -v to pytest",
			},
			&cli.BoolFlag{
				Name:  "coverage",
				Usage: "Collect coverage with pytest-cov",
			},
		},
		Action: config.RunWithConfig(runTests),
	}
}

type testOptions struct {
	Library  string
	Verbose  bool
	Coverage bool
	Output   io.Writer
}

func runTests(ctx context.Context, cmd *cli.Command, cfg config.Config) error {
	return doRunTests(ctx, cfg, testOptions{
		Library:  cmd.Args().First(),
		Verbose:  cmd.Bool("verbose"),
		Coverage: cmd.Bool("coverage"),
		Output:   os.Stdout,
	})
}

func doRunTests(ctx context.Context, cfg config.Config, opts testOptions) error {
	if !cmdexec.Available("pytest") {
		return errors.New("pytest not found on PATH: install it into your environment")
	}

	logger := newLogger(opts.Output)

	libs, err := manifest.Discover(cfg.LibsDir(), logger)
	if err != nil {
		return err
	}
	if len(libs) == 0 {
		return errors.Newf("no libraries found under %s", cfg.LibsDir())
	}

	// Sibling libraries stay importable even when testing a single one.
	pythonPath := pythonPathFor(libs)

	if opts.Library != "" {
		lib, ok := findLibrary(libs, opts.Library)
		if !ok {
			return errors.Newf("library %s not found under %s", opts.Library, cfg.LibsDir())
		}
		libs = []manifest.Library{lib}
	}

	args := []string{"tests"}
	if opts.Verbose {
		args = append(args, "-v")
	}
	if opts.Coverage {
		args = append(args, "--cov", "--cov-report", "term")
	}

	var failed []string
	for _, lib := range libs {
		if _, err := os.Stat(filepath.Join(lib.Dir, "tests")); err != nil {
			logger.Warn("library has no tests directory, skipping", "library", lib.Name)
			continue
		}

		logger.Info("running tests", "library", lib.Name)
		exec := cmdexec.New(lib.Dir).
			WithEnv("PYTHONPATH", pythonPath).
			WithOutput(opts.Output, opts.Output)
		if err := exec.Run(ctx, "pytest", args...); err != nil {
			logger.Error("tests failed", "library", lib.Name)
			failed = append(failed, lib.Name)
		}
	}

	if len(failed) > 0 {
		return errors.Newf("tests failed for: %s", strings.Join(failed, ", "))
	}
	return nil
}

func findLibrary(libs []manifest.Library, name string) (manifest.Library, bool) {
	for _, lib := range libs {
		if lib.Name == name {
			return lib, true
		}
	}
	return manifest.Library{}, false
}

// pythonPathFor joins the source directories of all libraries so tests can
// import sibling libraries without installing them.
func pythonPathFor(libs []manifest.Library) string {
	var dirs []string
	for _, lib := range libs {
		if _, err := os.Stat(lib.SrcDir()); err == nil {
			dirs = append(dirs, lib.SrcDir())
		}
	}
	return strings.Join(dirs, string(os.PathListSeparator))
}
