// Package dirhash computes a content-based hash of a directory tree with
// dockerignore-style pattern filtering. The layer build uses it to detect
// whether the shared libraries changed since the previous build.
package dirhash

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/moby/patternmatcher"
)

// IgnoreFileName is the optional per-project ignore file at the hashed root.
const IgnoreFileName = ".stratumignore"

// defaultIgnores are always excluded: interpreter artifacts and local
// environments that churn without affecting layer contents.
var defaultIgnores = []string{
	"__pycache__",
	"*.pyc",
	".venv",
	".pytest_cache",
	".ruff_cache",
}

// Hasher computes directory content hashes.
type Hasher struct {
	extraPatterns  []string
	truncateLength int
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithPatterns adds ignore patterns on top of the defaults.
func WithPatterns(patterns ...string) Option {
	return func(h *Hasher) {
		h.extraPatterns = append(h.extraPatterns, patterns...)
	}
}

// WithTruncateLength sets the hash output length (0 for the full hash).
func WithTruncateLength(n int) Option {
	return func(h *Hasher) {
		h.truncateLength = n
	}
}

// New creates a Hasher with the given options.
func New(opts ...Option) *Hasher {
	h := &Hasher{truncateLength: 12}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash computes the content hash of dir. Patterns come from the defaults,
// the options, and the ignore file at the directory root when present.
func (h *Hasher) Hash(dir string) (string, error) {
	matcher, err := h.loadPatterns(dir)
	if err != nil {
		return "", err
	}

	files, err := collectFiles(dir, matcher)
	if err != nil {
		return "", err
	}

	digest := sha256.New()
	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(dir, rel))
		if err != nil {
			return "", errors.Wrapf(err, "failed to read %s", rel)
		}
		digest.Write([]byte(rel))
		digest.Write([]byte{0})
		digest.Write(content)
	}

	full := fmt.Sprintf("%x", digest.Sum(nil))
	if h.truncateLength > 0 && len(full) > h.truncateLength {
		return full[:h.truncateLength], nil
	}
	return full, nil
}

func (h *Hasher) loadPatterns(dir string) (*patternmatcher.PatternMatcher, error) {
	patterns := append(append([]string(nil), defaultIgnores...), h.extraPatterns...)

	f, err := os.Open(filepath.Join(dir, IgnoreFileName))
	if err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", IgnoreFileName)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to open %s", IgnoreFileName)
	}

	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile ignore patterns")
	}
	return pm, nil
}

func collectFiles(dir string, matcher *patternmatcher.PatternMatcher) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		matched, err := matcher.MatchesOrParentMatches(rel)
		if err != nil {
			return errors.Wrapf(err, "pattern match failed for %s", rel)
		}

		if d.IsDir() {
			if matched {
				return filepath.SkipDir
			}
			return nil
		}
		if matched {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk directory")
	}

	sort.Strings(files)
	return files, nil
}
