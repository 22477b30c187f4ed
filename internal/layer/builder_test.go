package layer_test

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"

	"github.com/strataops/stratum/internal/cmdexec"
	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/internal/layer"
)

// fakeUV emulates the uv build/install invocations the pipeline makes.
// It materializes wheels and installed packages on disk so the assembler
// has real files to work with.
type fakeUV struct {
	dir   string
	calls [][]string

	failBuild   map[string]bool // library name -> fail wheel build
	emptyBuild  map[string]bool // library name -> exit 0 but no wheel
	failInstall map[string]bool // library name -> fail wheel install
	failDeps    bool            // fail the batched dependency install
}

func newFakeUV() *fakeUV {
	return &fakeUV{
		failBuild:   map[string]bool{},
		emptyBuild:  map[string]bool{},
		failInstall: map[string]bool{},
	}
}

func (f *fakeUV) WithOutput(stdout, stderr io.Writer) cmdexec.Executor { return f }
func (f *fakeUV) WithEnv(key, value string) cmdexec.Executor           { return f }
func (f *fakeUV) InSubdir(subdir string) cmdexec.Executor              { return f }
func (f *fakeUV) Dir() string                                          { return f.dir }

func (f *fakeUV) Output(ctx context.Context, name string, args ...string) (string, error) {
	return "", nil
}

func (f *fakeUV) Run(ctx context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if name != "uv" || len(args) == 0 {
		return nil
	}

	switch {
	case args[0] == "build":
		return f.runBuild(args)
	case args[0] == "pip" && len(args) > 1 && args[1] == "install":
		return f.runInstall(args)
	}
	return nil
}

func (f *fakeUV) runBuild(args []string) error {
	outDir := argAfter(args, "--out-dir")
	libName := filepath.Base(args[len(args)-1])

	if f.failBuild[libName] {
		return errors.New("build backend exploded")
	}
	if f.emptyBuild[libName] {
		return nil
	}

	wheel := filepath.Join(outDir, libName+"-0.1.0-py3-none-any.whl")
	return os.WriteFile(wheel, []byte("fake wheel"), 0o644)
}

func (f *fakeUV) runInstall(args []string) error {
	target := argAfter(args, "--target")

	if req := argAfter(args, "-r"); req != "" {
		if f.failDeps {
			return errors.New("resolution failed")
		}
		data, err := os.ReadFile(req)
		if err != nil {
			return err
		}
		for _, dep := range strings.Fields(string(data)) {
			if err := installPackage(target, dep, "from requirements"); err != nil {
				return err
			}
		}
		return nil
	}

	wheel := filepath.Base(args[len(args)-1])
	pkg := strings.SplitN(wheel, "-", 2)[0]
	if f.failInstall[pkg] {
		return errors.New("wheel install failed")
	}
	return installPackage(target, pkg, "from wheel")
}

func installPackage(target, name, origin string) error {
	dir := filepath.Join(target, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "__init__.py"), []byte("# "+origin+"\n"), 0o644)
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{File: config.Default(), ProjectDir: t.TempDir()}
}

func writeLib(t *testing.T, cfg config.Config, name, pyprojectContent string, srcPackages ...string) {
	t.Helper()

	libDir := filepath.Join(cfg.LibsDir(), name)
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if pyprojectContent != "" {
		if err := os.WriteFile(filepath.Join(libDir, "pyproject.toml"), []byte(pyprojectContent), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for _, pkg := range srcPackages {
		pkgDir := filepath.Join(libDir, "src", pkg)
		if err := os.MkdirAll(pkgDir, 0o755); err != nil {
			t.Fatal(err)
		}
		content := "VERSION = \"0.1.0\"  # " + pkg + "\n"
		if err := os.WriteFile(filepath.Join(pkgDir, "__init__.py"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newBuilder(cfg config.Config, fake *fakeUV) *layer.Builder {
	return layer.New(cfg, fake, log.New(io.Discard))
}

func TestBuildCombinedLayer(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeLib(t, cfg, "lib_utils", `[project]
name = "lib_utils"
dependencies = ["pydantic>=2.6.1", "lib_common"]
`, "lib_utils")
	writeLib(t, cfg, "lib_raw", "", "lib_raw")

	fake := newFakeUV()
	res, err := newBuilder(cfg, fake).Build(context.Background(), layer.Options{Name: "combined"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root := filepath.Join(res.Dir, layer.RuntimeRoot)
	for _, pkg := range []string{"pydantic", "lib_utils", "lib_raw"} {
		if _, err := os.Stat(filepath.Join(root, pkg, "__init__.py")); err != nil {
			t.Errorf("package %s missing from layer: %v", pkg, err)
		}
	}

	// Local libraries never reach the installer, and the install is batched.
	depInstalls := 0
	for _, call := range fake.calls {
		if slices.Contains(call, "-r") {
			depInstalls++
			joined := strings.Join(call, " ")
			if strings.Contains(joined, "lib_common") {
				t.Errorf("local library sent to installer: %v", call)
			}
		}
	}
	if depInstalls != 1 {
		t.Errorf("expected exactly 1 batched dependency install, got %d", depInstalls)
	}
}

func TestBuildFailsWhenDependencyInstallFails(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeLib(t, cfg, "lib_utils", `[project]
dependencies = ["pydantic"]
`, "lib_utils")

	fake := newFakeUV()
	fake.failDeps = true

	_, err := newBuilder(cfg, fake).Build(context.Background(), layer.Options{Name: "combined", CreateZip: true})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// No output and no archive may exist after a failed build.
	if _, statErr := os.Stat(cfg.LayerDir("combined")); !os.IsNotExist(statErr) {
		t.Error("layer output should not exist after failed dependency install")
	}
}

func TestWheelBuildFailureFallsBackToSourceCopy(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeLib(t, cfg, "lib_utils", `[project]
name = "lib_utils"
`, "lib_utils")

	fake := newFakeUV()
	fake.failBuild["lib_utils"] = true

	res, err := newBuilder(cfg, fake).Build(context.Background(), layer.Options{Name: "combined"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	initPath := filepath.Join(res.Dir, layer.RuntimeRoot, "lib_utils", "__init__.py")
	data, err := os.ReadFile(initPath)
	if err != nil {
		t.Fatalf("fallback source copy missing: %v", err)
	}
	if !strings.Contains(string(data), "lib_utils") {
		t.Errorf("unexpected fallback content: %q", data)
	}
}

func TestEmptyWheelOutputFallsBackToSourceCopy(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeLib(t, cfg, "lib_utils", `[project]
name = "lib_utils"
`, "lib_utils")

	fake := newFakeUV()
	fake.emptyBuild["lib_utils"] = true

	res, err := newBuilder(cfg, fake).Build(context.Background(), layer.Options{Name: "combined"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(res.Dir, layer.RuntimeRoot, "lib_utils")); err != nil {
		t.Errorf("fallback source copy missing: %v", err)
	}
}

func TestWheelInstallFailureFallsBackToSourceCopy(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeLib(t, cfg, "lib_utils", `[project]
name = "lib_utils"
`, "lib_utils")

	fake := newFakeUV()
	fake.failInstall["lib_utils"] = true

	res, err := newBuilder(cfg, fake).Build(context.Background(), layer.Options{Name: "combined"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(res.Dir, layer.RuntimeRoot, "lib_utils")); err != nil {
		t.Errorf("fallback source copy missing: %v", err)
	}
}

func TestBuildFailureWithoutSourcesSkipsLibrary(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeLib(t, cfg, "lib_headless", `[project]
name = "lib_headless"
`) // manifest but no src/ tree

	fake := newFakeUV()
	fake.failBuild["lib_headless"] = true

	if _, err := newBuilder(cfg, fake).Build(context.Background(), layer.Options{Name: "combined"}); err != nil {
		t.Fatalf("expected skip without crash, got: %v", err)
	}
}

func TestPycacheDirectoriesAreNotCopied(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeLib(t, cfg, "lib_utils", "", "lib_utils", "__pycache__")

	fake := newFakeUV()
	res, err := newBuilder(cfg, fake).Build(context.Background(), layer.Options{Name: "combined"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(res.Dir, layer.RuntimeRoot, "__pycache__")); !os.IsNotExist(err) {
		t.Error("__pycache__ should not be copied into the layer")
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeLib(t, cfg, "lib_utils", "", "lib_utils")
	writeLib(t, cfg, "lib_common", "", "lib_common")

	fake := newFakeUV()
	res, err := newBuilder(cfg, fake).Build(context.Background(),
		layer.Options{Name: "combined", CreateZip: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ZipPath == "" {
		t.Fatal("expected a zip path")
	}

	zr, err := zip.OpenReader(res.ZipPath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer zr.Close()

	archived := map[string][]byte{}
	for _, entry := range zr.File {
		if !strings.HasPrefix(entry.Name, layer.RuntimeRoot+"/") {
			t.Errorf("entry %q is not under the %s/ root", entry.Name, layer.RuntimeRoot)
		}
		rc, err := entry.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		archived[entry.Name] = data
	}

	// Every file in the built layer tree appears in the archive with
	// identical content.
	root := filepath.Join(res.Dir, layer.RuntimeRoot)
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(res.Dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		want, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		got, ok := archived[name]
		if !ok {
			t.Errorf("file %s missing from archive", name)
			return nil
		}
		if string(got) != string(want) {
			t.Errorf("archive content mismatch for %s", name)
		}
		delete(archived, name)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for name := range archived {
		t.Errorf("unexpected archive entry %s", name)
	}
}

func TestRebuildOverwritesPriorOutput(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeLib(t, cfg, "lib_utils", "", "lib_utils")

	b := newBuilder(cfg, newFakeUV())
	opts := layer.Options{Name: "combined", CreateZip: true}

	if _, err := b.Build(context.Background(), opts); err != nil {
		t.Fatalf("first build: %v", err)
	}
	res, err := b.Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if _, err := os.Stat(res.ZipPath); err != nil {
		t.Errorf("archive missing after rebuild: %v", err)
	}
}

func TestEmptyLibrariesRootInvokesNoTools(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	fake := newFakeUV()

	if _, err := newBuilder(cfg, fake).Build(context.Background(), layer.Options{Name: "combined"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("expected no tool invocations, got %v", fake.calls)
	}
}
