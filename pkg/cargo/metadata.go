package cargo

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/cgfuse/cgfuse/pkg/cache"
	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/observability"
)

// Metadata is a decoded `cargo metadata` snapshot.
type Metadata struct {
	Packages        []Package `json:"packages"`
	WorkspaceRoot   string    `json:"workspace_root"`
	TargetDirectory string    `json:"target_directory"`
}

// Package describes one package in the metadata snapshot.
type Package struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	ID           string       `json:"id"`
	ManifestPath string       `json:"manifest_path"`
	Dependencies []Dependency `json:"dependencies"`
	Targets      []Target     `json:"targets"`
}

// Dependency describes one declared dependency of a package.
type Dependency struct {
	Name   string  `json:"name"`
	Kind   *string `json:"kind"`   // nil for normal deps, "dev" or "build" otherwise
	Source *string `json:"source"` // nil for path deps, registry URL otherwise
	Path   string  `json:"path"`   // set for path deps
}

// IsNormal reports whether the dependency belongs to the normal
// [dependencies] section (not dev or build).
func (d Dependency) IsNormal() bool { return d.Kind == nil }

// IsLocal reports whether the dependency is a path dependency.
func (d Dependency) IsLocal() bool { return d.Source == nil && d.Path != "" }

// Target describes one build target of a package.
type Target struct {
	Name    string   `json:"name"`
	Kind    []string `json:"kind"`
	SrcPath string   `json:"src_path"`
}

// IsBin reports whether the target is a binary.
func (t Target) IsBin() bool { return slices.Contains(t.Kind, "bin") }

// IsLib reports whether the target is a library.
func (t Target) IsLib() bool {
	return slices.Contains(t.Kind, "lib") || slices.Contains(t.Kind, "rlib")
}

// PackageByManifest returns the package whose manifest path matches path.
func (m *Metadata) PackageByManifest(path string) (*Package, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for i := range m.Packages {
		if m.Packages[i].ManifestPath == abs || m.Packages[i].ManifestPath == path {
			return &m.Packages[i], true
		}
	}
	return nil, false
}

// PackageByName returns the package with the given name.
func (m *Metadata) PackageByName(name string) (*Package, bool) {
	for i := range m.Packages {
		if m.Packages[i].Name == name {
			return &m.Packages[i], true
		}
	}
	return nil, false
}

// BinTarget returns the first binary target of the package.
func (p *Package) BinTarget() (Target, bool) {
	for _, t := range p.Targets {
		if t.IsBin() {
			return t, true
		}
	}
	return Target{}, false
}

// LibTarget returns the library target of the package.
func (p *Package) LibTarget() (Target, bool) {
	for _, t := range p.Targets {
		if t.IsLib() {
			return t, true
		}
	}
	return Target{}, false
}

// NormalDependencies returns the package's normal (non-dev, non-build)
// dependencies.
func (p *Package) NormalDependencies() []Dependency {
	var deps []Dependency
	for _, d := range p.Dependencies {
		if d.IsNormal() {
			deps = append(deps, d)
		}
	}
	return deps
}

// Snapshot loads a cargo metadata snapshot for the given manifest, consulting
// the cache first. The cache key covers the manifest and lockfile contents, so
// editing either invalidates the entry.
func Snapshot(ctx context.Context, manifestPath string, c cache.Cache, keyer cache.Keyer) (*Metadata, error) {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}

	key := keyer.MetadataKey(manifestPath, metadataKeyOpts(manifestPath))

	if data, hit, err := c.Get(ctx, key); err == nil && hit {
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err == nil {
			return &meta, nil
		}
		// Corrupt entry, fall through to a fresh snapshot.
		_ = c.Delete(ctx, key)
	}

	meta, err := runMetadata(ctx, manifestPath)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(meta); err == nil {
		_ = c.Set(ctx, key, data, cache.DefaultTTL)
	}
	return meta, nil
}

// metadataKeyOpts hashes the manifest and lockfile contents for cache keying.
func metadataKeyOpts(manifestPath string) cache.MetadataKeyOpts {
	opts := cache.MetadataKeyOpts{}
	if data, err := os.ReadFile(manifestPath); err == nil {
		opts.ManifestHash = cache.Hash(data)
	}
	lock := filepath.Join(filepath.Dir(manifestPath), "Cargo.lock")
	if data, err := os.ReadFile(lock); err == nil {
		opts.LockfileHash = cache.Hash(data)
	}
	return opts
}

// runMetadata invokes `cargo metadata` and decodes the JSON snapshot.
func runMetadata(ctx context.Context, manifestPath string) (*Metadata, error) {
	if _, err := exec.LookPath("cargo"); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMetadata, err, "cargo not found in PATH (install via rustup: https://rustup.rs)")
	}

	args := []string{"metadata", "--format-version", "1", "--manifest-path", manifestPath}
	cmd := exec.CommandContext(ctx, "cargo", args...)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	observability.Tools().OnToolRun(ctx, "cargo", args)
	start := time.Now()
	err := cmd.Run()
	observability.Tools().OnToolExit(ctx, "cargo", time.Since(start), err)

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMetadata, err, "cargo metadata for %s: %s", manifestPath, errBuf.String())
	}

	var meta Metadata
	if err := json.Unmarshal(out.Bytes(), &meta); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMetadata, err, "decode cargo metadata output")
	}
	return &meta, nil
}
