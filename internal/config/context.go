package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
)

type contextKey struct{}

// Config is a loaded configuration anchored at a project directory.
type Config struct {
	File       File
	ProjectDir string
}

// LambdasDir returns the absolute lambdas directory.
func (c Config) LambdasDir() string {
	return filepath.Join(c.ProjectDir, c.File.LambdasDir)
}

// LibsDir returns the absolute shared-libraries directory.
func (c Config) LibsDir() string {
	return filepath.Join(c.ProjectDir, c.File.LibsDir)
}

// OutputDir returns the absolute build-output directory.
func (c Config) OutputDir() string {
	return filepath.Join(c.ProjectDir, c.File.OutputDir)
}

// LayerDir returns the output directory for a named layer.
func (c Config) LayerDir(name string) string {
	return filepath.Join(c.OutputDir(), "layers", name)
}

func WithContext(ctx context.Context, cfg Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

func FromContext(ctx context.Context) (Config, bool) {
	cfg, ok := ctx.Value(contextKey{}).(Config)
	return cfg, ok
}

var defaultFinder = NewFinder(NewLoader())

// Ensure returns config from context if present, otherwise loads it from disk.
// This enables lazy config loading - config is only loaded when an action needs it.
func Ensure(ctx context.Context) (context.Context, Config, error) {
	if cfg, ok := FromContext(ctx); ok {
		return ctx, cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ctx, Config{}, err
	}

	file, projectDir, err := defaultFinder.Find(cwd)
	if err != nil {
		return ctx, Config{}, err
	}

	cfg := Config{File: file, ProjectDir: projectDir}
	return WithContext(ctx, cfg), cfg, nil
}

// ActionFunc is a command action that receives the config.
type ActionFunc func(ctx context.Context, cmd *cli.Command, cfg Config) error

// RunWithConfig wraps an ActionFunc to lazily load config when the action runs.
// Config is only loaded when an actual command action executes, not when showing help.
func RunWithConfig(fn ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ctx, cfg, err := Ensure(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, cfg)
	}
}
