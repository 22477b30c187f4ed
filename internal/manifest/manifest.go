// Package manifest discovers shared libraries in a libraries root and
// collects their declared dependencies from pyproject.toml files.
package manifest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the manifest file expected in each library directory.
const FileName = "pyproject.toml"

// DefaultLocalPrefix marks dependencies that are intra-repo libraries
// rather than installable third-party packages.
const DefaultLocalPrefix = "lib_"

// Specifier is a package name with an optional version constraint.
type Specifier struct {
	Name       string
	Constraint string
}

// Library describes one shared library under the libraries root.
type Library struct {
	Name string
	Dir  string
	// HasManifest is false when the directory has sources but no
	// pyproject.toml. Such libraries are packaged by source copy only.
	HasManifest  bool
	Dependencies []Specifier
}

// SrcDir returns the conventional source directory of the library.
func (l Library) SrcDir() string {
	return filepath.Join(l.Dir, "src")
}

// pyproject is the inline-list manifest layout:
//
//	[project]
//	dependencies = ["pydantic>=2.6.1", "boto3"]
type pyproject struct {
	Project struct {
		Name         string   `toml:"name"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
}

// legacyPyproject is the legacy section layout where dependencies form
// a table of name/constraint pairs under [project.dependencies].
type legacyPyproject struct {
	Project struct {
		Dependencies map[string]string `toml:"dependencies"`
	} `toml:"project"`
}

// ParseFile reads a manifest and returns its dependency specifiers.
// The inline list layout takes precedence over the legacy section layout.
func ParseFile(path string) ([]Specifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}

	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err == nil && len(doc.Project.Dependencies) > 0 {
		specs := make([]Specifier, 0, len(doc.Project.Dependencies))
		for _, raw := range doc.Project.Dependencies {
			if spec, ok := ParseSpecifier(raw); ok {
				specs = append(specs, spec)
			}
		}
		return specs, nil
	}

	var legacy legacyPyproject
	if err := toml.Unmarshal(data, &legacy); err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest")
	}

	specs := make([]Specifier, 0, len(legacy.Project.Dependencies))
	for name, constraint := range legacy.Project.Dependencies {
		spec, ok := ParseSpecifier(name)
		if !ok {
			continue
		}
		spec.Constraint = strings.TrimSpace(constraint)
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	return specs, nil
}

// ParseSpecifier normalizes a raw dependency entry into a Specifier.
// Entries are trimmed, stripped of surrounding quotes and trailing commas,
// and split at the first version operator (">=" before "="). Empty entries
// report ok=false.
func ParseSpecifier(raw string) (Specifier, bool) {
	entry := strings.TrimSpace(raw)
	entry = strings.TrimSuffix(entry, ",")
	entry = strings.Trim(entry, `"'`)
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return Specifier{}, false
	}

	for _, op := range []string{">=", "="} {
		if name, constraint, found := strings.Cut(entry, op); found {
			name = strings.TrimSpace(name)
			if name == "" {
				return Specifier{}, false
			}
			return Specifier{Name: name, Constraint: op + strings.TrimSpace(constraint)}, true
		}
	}

	return Specifier{Name: entry}, true
}

// Discover scans the libraries root for library directories. A directory
// qualifies when it holds a pyproject.toml or a src/ tree. Manifest parse
// failures are logged and the library is treated as manifest-less.
func Discover(libsDir string, logger *log.Logger) ([]Library, error) {
	entries, err := os.ReadDir(libsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list libraries in %s", libsDir)
	}

	var libs []Library
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		lib := Library{
			Name: entry.Name(),
			Dir:  filepath.Join(libsDir, entry.Name()),
		}

		manifestPath := filepath.Join(lib.Dir, FileName)
		if _, err := os.Stat(manifestPath); err != nil {
			if _, err := os.Stat(lib.SrcDir()); err != nil {
				continue
			}
			libs = append(libs, lib)
			continue
		}

		specs, err := ParseFile(manifestPath)
		if err != nil {
			logger.Warn("skipping malformed manifest", "library", lib.Name, "err", err)
			lib.HasManifest = true
			libs = append(libs, lib)
			continue
		}

		lib.HasManifest = true
		lib.Dependencies = specs
		libs = append(libs, lib)
	}

	return libs, nil
}

// Collect merges the dependencies of all libraries into a sorted set of
// bare package names. Names are deduplicated after constraint stripping,
// and names carrying the local-library prefix are excluded: those are
// intra-repo libraries and must never reach the external installer.
func Collect(libs []Library, localPrefix string) []string {
	if localPrefix == "" {
		localPrefix = DefaultLocalPrefix
	}

	seen := make(map[string]bool)
	for _, lib := range libs {
		for _, spec := range lib.Dependencies {
			if strings.HasPrefix(spec.Name, localPrefix) {
				continue
			}
			seen[spec.Name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
