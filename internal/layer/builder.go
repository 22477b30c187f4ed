// Package layer builds AWS Lambda layers: it installs the third-party
// dependencies declared by the shared libraries, packages the libraries
// themselves, and assembles the result into the python/ directory layout
// Lambda expects, optionally zipped for deployment.
package layer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"

	"github.com/strataops/stratum/internal/cmdexec"
	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/internal/manifest"
)

// RuntimeRoot is the directory name Lambda layers require at the archive root.
const RuntimeRoot = "python"

// Builder assembles a combined layer from the shared libraries.
type Builder struct {
	libsDir     string
	outputDir   string
	localPrefix string
	exec        cmdexec.Executor
	logger      *log.Logger
}

// Options controls a single layer build.
type Options struct {
	// Name of the layer, used for the output directory under layers/.
	Name string
	// CreateZip also writes a deployment archive next to the layer tree.
	CreateZip bool
	// ZipBase overrides the archive base name (defaults to Name).
	ZipBase string
}

// Result describes a finished layer build.
type Result struct {
	// Dir is the layer output directory containing the python/ tree.
	Dir string
	// ZipPath is the deployment archive, empty when no zip was requested.
	ZipPath string
}

func New(cfg config.Config, exec cmdexec.Executor, logger *log.Logger) *Builder {
	return &Builder{
		libsDir:     cfg.LibsDir(),
		outputDir:   cfg.OutputDir(),
		localPrefix: cfg.File.Layer.LocalPrefix,
		exec:        exec,
		logger:      logger,
	}
}

// Build runs the full pipeline: collect dependencies, install them and the
// packaged libraries into a temporary staging root, then copy the normalized
// tree to the output directory and optionally archive it.
//
// A failed dependency install aborts the build; per-library packaging
// failures fall back to copying the library sources and never abort.
func (b *Builder) Build(ctx context.Context, opts Options) (Result, error) {
	libs, err := manifest.Discover(b.libsDir, b.logger)
	if err != nil {
		return Result{}, err
	}

	staging, err := os.MkdirTemp("", "stratum-layer-*")
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(staging)

	packageRoot := filepath.Join(staging, RuntimeRoot)
	if err := os.Mkdir(packageRoot, 0o755); err != nil {
		return Result{}, errors.Wrap(err, "failed to create package root")
	}

	deps := manifest.Collect(libs, b.localPrefix)
	if err := b.installDependencies(ctx, packageRoot, deps); err != nil {
		return Result{}, err
	}

	for _, lib := range libs {
		if err := b.installLibrary(ctx, lib, packageRoot); err != nil {
			return Result{}, err
		}
	}

	outDir := filepath.Join(b.outputDir, "layers", opts.Name)
	if err := copyTree(packageRoot, filepath.Join(outDir, RuntimeRoot)); err != nil {
		return Result{}, errors.Wrap(err, "failed to copy layer contents")
	}

	result := Result{Dir: outDir}

	if opts.CreateZip {
		base := opts.ZipBase
		if base == "" {
			base = opts.Name
		}
		result.ZipPath = filepath.Join(outDir, base+".zip")
		if err := writeArchive(result.ZipPath, filepath.Join(outDir, RuntimeRoot)); err != nil {
			return Result{}, err
		}
		b.logger.Info("layer archive created", "path", result.ZipPath)
	}

	b.logger.Info("layer built", "name", opts.Name, "dir", outDir)
	return result, nil
}

// installDependencies installs the collected third-party dependencies with
// a single batched installer invocation. An empty set is a no-op; a failed
// install is fatal for the whole build, since a partially resolved
// dependency set is unsafe to ship.
func (b *Builder) installDependencies(ctx context.Context, target string, deps []string) error {
	if len(deps) == 0 {
		b.logger.Info("no third-party dependencies to install")
		return nil
	}

	tmp, err := os.MkdirTemp("", "stratum-reqs-*")
	if err != nil {
		return errors.Wrap(err, "failed to create requirements directory")
	}
	defer os.RemoveAll(tmp)

	reqPath := filepath.Join(tmp, "requirements.txt")
	content := ""
	for _, dep := range deps {
		content += dep + "\n"
	}
	if err := os.WriteFile(reqPath, []byte(content), 0o644); err != nil {
		return errors.Wrap(err, "failed to write requirements file")
	}

	b.logger.Info("installing dependencies", "count", len(deps), "target", target)
	err = b.exec.Run(ctx, "uv", "pip", "install", "--target", target, "-r", reqPath)
	if err != nil {
		return errors.Wrap(err, "failed to install layer dependencies")
	}

	return nil
}

// installLibrary packages one shared library into the package root. It
// first tries to build and install a wheel; on any build or install
// failure it falls back to copying the library's raw sources. Filesystem
// errors during the fallback copy remain fatal.
func (b *Builder) installLibrary(ctx context.Context, lib manifest.Library, target string) error {
	if !lib.HasManifest {
		b.logger.Debug("no manifest, copying sources", "library", lib.Name)
		return b.copySources(lib, target)
	}

	wheelDir, err := os.MkdirTemp("", "stratum-wheel-*")
	if err != nil {
		return errors.Wrap(err, "failed to create wheel directory")
	}
	defer os.RemoveAll(wheelDir)

	buildErr := b.exec.Run(ctx, "uv", "build", "--wheel", "--out-dir", wheelDir, lib.Dir)
	wheels, _ := filepath.Glob(filepath.Join(wheelDir, "*.whl"))

	if buildErr != nil || len(wheels) == 0 {
		b.logger.Warn("wheel build failed, falling back to source copy",
			"library", lib.Name, "err", buildErr)
		return b.copySources(lib, target)
	}

	// Transitive requirements are excluded: the batched dependency
	// install already covers them.
	err = b.exec.Run(ctx, "uv", "pip", "install", "--target", target, "--no-deps", wheels[0])
	if err != nil {
		b.logger.Warn("wheel install failed, falling back to source copy",
			"library", lib.Name, "err", err)
		return b.copySources(lib, target)
	}

	b.logger.Info("installed library wheel", "library", lib.Name, "wheel", filepath.Base(wheels[0]))
	return nil
}

// copySources copies the library's top-level source packages into the
// package root. Libraries without a src/ tree are skipped silently.
func (b *Builder) copySources(lib manifest.Library, target string) error {
	entries, err := os.ReadDir(lib.SrcDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to list sources of %s", lib.Name)
	}

	for _, entry := range entries {
		if !entry.IsDir() || entryIsInternal(entry.Name()) {
			continue
		}
		src := filepath.Join(lib.SrcDir(), entry.Name())
		if err := copyTree(src, filepath.Join(target, entry.Name())); err != nil {
			return errors.Wrapf(err, "failed to copy sources of %s", lib.Name)
		}
		b.logger.Info("copied library source", "library", lib.Name, "package", entry.Name())
	}

	return nil
}

// entryIsInternal reports whether a source directory is a private marker
// directory (e.g. __pycache__) rather than an importable package.
func entryIsInternal(name string) bool {
	return len(name) >= 2 && name[:2] == "__"
}
