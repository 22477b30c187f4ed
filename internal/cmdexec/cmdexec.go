// Package cmdexec wraps external tool invocation behind an interface so
// the build pipeline can be tested with deterministic fakes.
package cmdexec

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Executor runs external commands in a fixed working directory.
// Executors are immutable; the With* methods return derived copies.
type Executor interface {
	// WithOutput returns an Executor that streams stdout/stderr to the given writers.
	WithOutput(stdout, stderr io.Writer) Executor

	// WithEnv returns an Executor with an extra environment variable set.
	WithEnv(key, value string) Executor

	// InSubdir returns an Executor rooted at a subdirectory of this one.
	InSubdir(subdir string) Executor

	// Dir returns the working directory commands run in.
	Dir() string

	// Run executes a command, streaming output to the configured writers.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes a command and returns its trimmed stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

type executor struct {
	dir    string
	stdout io.Writer
	stderr io.Writer
	env    []string
}

// New creates an Executor rooted at dir.
func New(dir string) Executor {
	return &executor{dir: dir}
}

func (e *executor) WithOutput(stdout, stderr io.Writer) Executor {
	clone := *e
	clone.stdout = stdout
	clone.stderr = stderr
	return &clone
}

func (e *executor) WithEnv(key, value string) Executor {
	clone := *e
	clone.env = append(append([]string(nil), e.env...), key+"="+value)
	return &clone
}

func (e *executor) InSubdir(subdir string) Executor {
	clone := *e
	clone.dir = filepath.Join(e.dir, subdir)
	return &clone
}

func (e *executor) Dir() string {
	return e.dir
}

func (e *executor) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.dir
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed", name)
	}

	return nil
}

func (e *executor) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.dir
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}

	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "%s failed", name)
	}

	return strings.TrimSpace(string(out)), nil
}

// Available reports whether a tool can be found on PATH. Commands use it
// to fail with a clear message before invoking a missing external tool.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
