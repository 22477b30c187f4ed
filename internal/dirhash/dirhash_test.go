package dirhash_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/strataops/stratum/internal/dirhash"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHashDeterministic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "lib_utils/src/lib_utils/__init__.py", "VERSION = 1")
	writeFile(t, dir, "lib_utils/pyproject.toml", "[project]\n")

	h := dirhash.New()
	hash1, err := h.Hash(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hash2, err := h.Hash(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if hash1 != hash2 {
		t.Errorf("hashes not deterministic: %s vs %s", hash1, hash2)
	}
	if len(hash1) != 12 {
		t.Errorf("expected 12 char hash, got %q", hash1)
	}
}

func TestHashChangesWithContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "lib_utils/src/lib_utils/__init__.py", "VERSION = 1")

	h := dirhash.New()
	before, _ := h.Hash(dir)

	writeFile(t, dir, "lib_utils/src/lib_utils/__init__.py", "VERSION = 2")
	after, _ := h.Hash(dir)

	if before == after {
		t.Error("hash should change when content changes")
	}
}

func TestHashIgnoresBytecodeByDefault(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "lib_utils/src/lib_utils/__init__.py", "VERSION = 1")

	h := dirhash.New()
	before, _ := h.Hash(dir)

	writeFile(t, dir, "lib_utils/src/lib_utils/__pycache__/cached.pyc", "bytecode")
	writeFile(t, dir, "lib_utils/src/lib_utils/loose.pyc", "bytecode")
	after, _ := h.Hash(dir)

	if before != after {
		t.Error("bytecode artifacts should not affect the hash")
	}
}

func TestHashHonorsIgnoreFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "lib_utils/pyproject.toml", "[project]\n")
	writeFile(t, dir, dirhash.IgnoreFileName, "docs\n")

	h := dirhash.New()
	before, _ := h.Hash(dir)

	writeFile(t, dir, "docs/README.md", "ignored")
	after, _ := h.Hash(dir)

	if before != after {
		t.Error("ignored paths should not affect the hash")
	}
}

func TestHashWithExtraPatterns(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "kept.py", "x = 1")

	plain := dirhash.New()
	filtered := dirhash.New(dirhash.WithPatterns("*.md"))

	writeFile(t, dir, "notes.md", "scratch")

	h1, _ := plain.Hash(dir)
	h2, _ := filtered.Hash(dir)

	if h1 == h2 {
		t.Error("extra pattern should change which files are hashed")
	}
}

func TestHashFullLength(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "a")

	h := dirhash.New(dirhash.WithTruncateLength(0))
	hash, err := h.Hash(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected full sha256 hex length 64, got %d", len(hash))
	}
}
