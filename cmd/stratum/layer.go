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
	"github.com/strataops/stratum/internal/dirhash"
	"github.com/strataops/stratum/internal/layer"
	"github.com/urfave/cli/v3"
)

// buildHashFile records the libs-tree hash of the last successful build so
// unchanged layers can be skipped on rebuild.
const buildHashFile = ".build-hash"

func layerCmd() *cli.Command {
	return &cli.Command{
		Name:  "layer",
		Usage: "Manage Lambda layers built from shared libraries",
		Commands: []*cli.Command{
			layerBuildCmd(),
		},
	}
}

func layerBuildCmd() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Build a layer from the shared libraries and their dependencies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "name",
				Usage: "Layer name (defaults to the configured layer name)",
			},
			&cli.BoolFlag{
				Name:  "zip",
				Usage: "Write a zip archive next to the layer directory",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "zip-name",
				Usage: "Base name for the zip archive (defaults to the layer name)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Rebuild even when the libraries are unchanged",
			},
		},
		Action: config.RunWithConfig(runLayerBuild),
	}
}

type layerBuildOptions struct {
	Name    string
	ZipBase string
	Zip     bool
	Force   bool
	Output  io.Writer
}

func runLayerBuild(ctx context.Context, cmd *cli.Command, cfg config.Config) error {
	return doLayerBuild(ctx, cfg, layerBuildOptions{
		Name:    cmd.String("name"),
		ZipBase: cmd.String("zip-name"),
		Zip:     cmd.Bool("zip"),
		Force:   cmd.Bool("force"),
		Output:  os.Stdout,
	})
}

func doLayerBuild(ctx context.Context, cfg config.Config, opts layerBuildOptions) error {
	if !cmdexec.Available("uv") {
		return errors.New("uv not found on PATH: install it from https://docs.astral.sh/uv/")
	}

	name := opts.Name
	if name == "" {
		name = cfg.File.Layer.Name
	}

	logger := newLogger(opts.Output)

	hash, hashErr := dirhash.New().Hash(cfg.LibsDir())
	if hashErr != nil {
		logger.Warn("failed to hash libraries, building unconditionally", "err", hashErr)
	}

	hashPath := filepath.Join(cfg.LayerDir(name), buildHashFile)
	if !opts.Force && hashErr == nil && layerUpToDate(hashPath, hash) {
		logger.Info("layer up to date, skipping build (use --force to rebuild)", "layer", name)
		return nil
	}

	exec := cmdexec.New(cfg.ProjectDir).WithOutput(opts.Output, opts.Output)
	builder := layer.New(cfg, exec, logger)

	result, err := builder.Build(ctx, layer.Options{
		Name:      name,
		CreateZip: opts.Zip,
		ZipBase:   opts.ZipBase,
	})
	if err != nil {
		return err
	}

	if hashErr == nil {
		if err := os.WriteFile(hashPath, []byte(hash+"\n"), 0o644); err != nil {
			logger.Warn("failed to record build hash", "err", err)
		}
	}

	logger.Info("layer built", "dir", result.Dir)
	if result.ZipPath != "" {
		logger.Info("layer archived", "zip", result.ZipPath)
	}
	return nil
}

func layerUpToDate(hashPath, hash string) bool {
	prev, err := os.ReadFile(hashPath)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(prev)) == hash
}
