// Package cargo reads package manifests and talks to the cargo toolchain.
//
// It covers the three interactions the fusion pipeline needs:
//   - parsing Cargo.toml manifests (direct dependency declarations)
//   - taking cargo metadata snapshots with file-cache support
//   - running cargo fmt / cargo check on forged output
package cargo

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cgfuse/cgfuse/pkg/errors"
)

// Manifest is a parsed Cargo.toml file.
// Dependency tables keep their raw TOML form because a dependency value is
// either a version string or an inline table ({ path = "...", ... }).
type Manifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
		Edition string `toml:"edition"`
	} `toml:"package"`
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`

	path string
}

// LoadManifest reads and parses the Cargo.toml at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "manifest not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read manifest %s", path)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse manifest %s", path)
	}
	if m.Package.Name == "" {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "manifest %s declares no package name", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	m.path = abs
	return &m, nil
}

// Path returns the absolute path of the manifest file.
func (m *Manifest) Path() string { return m.path }

// Dir returns the package root directory (the directory holding Cargo.toml).
func (m *Manifest) Dir() string { return filepath.Dir(m.path) }

// SrcDir returns the conventional source directory of the package.
func (m *Manifest) SrcDir() string { return filepath.Join(m.Dir(), "src") }

// DependencyNames returns the names of all declared direct dependencies
// (normal section only), sorted for deterministic iteration.
func (m *Manifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasDependency reports whether name is declared as a direct dependency.
// Cargo normalizes dashes and underscores, so the lookup does too.
func (m *Manifest) HasDependency(name string) bool {
	if _, ok := m.Dependencies[name]; ok {
		return true
	}
	norm := normalizeName(name)
	for dep := range m.Dependencies {
		if normalizeName(dep) == norm {
			return true
		}
	}
	return false
}

// LocalPath returns the resolved path of a path dependency, if name is one.
// The returned path is absolute, resolved against the manifest directory.
func (m *Manifest) LocalPath(name string) (string, bool) {
	raw, ok := m.Dependencies[name]
	if !ok {
		return "", false
	}
	table, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	p, ok := table["path"].(string)
	if !ok || p == "" {
		return "", false
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.Dir(), p)
	}
	return filepath.Clean(p), true
}

// normalizeName lowercases a crate name and folds dashes to underscores,
// matching how the crate is referenced in source code.
func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "_")
}
