package lambdafn_test

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/strataops/stratum/internal/lambdafn"
)

func writeFunction(t *testing.T, lambdasDir, name string, files map[string]string) {
	t.Helper()

	dir := filepath.Join(lambdasDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for fname, content := range files {
		if err := os.WriteFile(filepath.Join(dir, fname), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("finds directories with a handler file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFunction(t, dir, "hello_world", map[string]string{"app.py": "def handler(e, c): ..."})
		writeFunction(t, dir, "no_handler", map[string]string{"README.md": "not a function"})

		fns, err := lambdafn.Discover(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fns) != 1 || fns[0].Name != "hello_world" {
			t.Errorf("expected only hello_world, got %+v", fns)
		}
	})

	t.Run("missing lambdas root is not an error", func(t *testing.T) {
		t.Parallel()
		fns, err := lambdafn.Discover(filepath.Join(t.TempDir(), "absent"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fns != nil {
			t.Errorf("expected nil, got %+v", fns)
		}
	})
}

func TestFind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFunction(t, dir, "hello_world", map[string]string{"app.py": ""})

	if _, err := lambdafn.Find(dir, "hello_world"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := lambdafn.Find(dir, "nope"); err == nil {
		t.Error("expected error for unknown function, got nil")
	}
}

func TestLogicalID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"hello_world", "HelloWorldFunction"},
		{"data_processor", "DataProcessorFunction"},
		{"api", "ApiFunction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fn := lambdafn.Function{Name: tt.name}
			if got := fn.LogicalID(); got != tt.want {
				t.Errorf("LogicalID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPackage(t *testing.T) {
	t.Parallel()

	lambdas := t.TempDir()
	writeFunction(t, lambdas, "hello_world", map[string]string{
		"app.py":     "def handler(event, context):\n    return {\"ok\": True}\n",
		"helpers.py": "PI = 3\n",
		"event.json": "{}",
	})

	fn, err := lambdafn.Find(lambdas, "hello_world")
	if err != nil {
		t.Fatal(err)
	}

	output := t.TempDir()
	outDir, err := lambdafn.Package(fn, output, log.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Sources are copied next to the archive.
	for _, f := range []string{"app.py", "helpers.py"} {
		if _, err := os.Stat(filepath.Join(outDir, f)); err != nil {
			t.Errorf("%s missing from output: %v", f, err)
		}
	}

	// The archive holds the python sources flat, nothing else.
	zr, err := zip.OpenReader(filepath.Join(outDir, "hello_world.zip"))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer zr.Close()

	names := map[string]bool{}
	for _, entry := range zr.File {
		names[entry.Name] = true
	}
	if !names["app.py"] || !names["helpers.py"] {
		t.Errorf("archive entries = %v, want app.py and helpers.py", names)
	}
	if names["event.json"] {
		t.Error("event.json should not be packaged")
	}
}
