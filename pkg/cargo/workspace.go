package cargo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cgfuse/cgfuse/pkg/cache"
	"github.com/cgfuse/cgfuse/pkg/errors"
)

// registrySource is the source string reported for crates.io dependencies.
const registrySource = "registry+https://github.com/rust-lang/crates.io-index"

// Workspace is the loaded view of a challenge workspace: the metadata
// snapshot plus the parsed manifest of every local package (the challenge
// itself and its transitive path dependencies).
type Workspace struct {
	Meta      *Metadata
	Root      *Package
	Manifests map[string]*Manifest // local packages by name
}

// LoadWorkspace loads the workspace rooted at manifestPath. It prefers a
// cargo metadata snapshot and falls back to manifest discovery when the
// toolchain is not installed.
func LoadWorkspace(ctx context.Context, manifestPath string, c cache.Cache, keyer cache.Keyer) (*Workspace, error) {
	var (
		meta *Metadata
		err  error
	)
	if _, lookErr := exec.LookPath("cargo"); lookErr == nil {
		meta, err = Snapshot(ctx, manifestPath, c, keyer)
	} else {
		meta, err = Discover(manifestPath)
	}
	if err != nil {
		return nil, err
	}
	return NewWorkspace(meta, manifestPath)
}

// NewWorkspace assembles a workspace around an existing metadata snapshot,
// parsing the manifest of the root package and of every local path
// dependency it reaches.
func NewWorkspace(meta *Metadata, manifestPath string) (*Workspace, error) {
	root, ok := meta.PackageByManifest(manifestPath)
	if !ok {
		return nil, errors.New(errors.ErrCodeMetadata, "package for %s missing from metadata snapshot", manifestPath)
	}

	ws := &Workspace{
		Meta:      meta,
		Root:      root,
		Manifests: make(map[string]*Manifest),
	}

	queue := []*Package{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, done := ws.Manifests[p.Name]; done {
			continue
		}
		m, err := LoadManifest(p.ManifestPath)
		if err != nil {
			return nil, err
		}
		ws.Manifests[p.Name] = m

		for _, d := range p.NormalDependencies() {
			if !d.IsLocal() {
				continue
			}
			dep, ok := ws.localPackage(d)
			if !ok {
				return nil, errors.New(errors.ErrCodeMetadata,
					"path dependency %s of %s missing from metadata snapshot", d.Name, p.Name)
			}
			queue = append(queue, dep)
		}
	}
	return ws, nil
}

// localPackage finds the package a path dependency points at, by manifest
// path when the snapshot carries one and by name otherwise.
func (w *Workspace) localPackage(d Dependency) (*Package, bool) {
	if d.Path != "" {
		if p, ok := w.Meta.PackageByManifest(filepath.Join(d.Path, "Cargo.toml")); ok {
			return p, true
		}
	}
	return w.Meta.PackageByName(d.Name)
}

// Package returns the snapshot package with the given name.
func (w *Workspace) Package(name string) (*Package, bool) {
	return w.Meta.PackageByName(name)
}

// Manifest returns the parsed manifest of a local package.
func (w *Workspace) Manifest(name string) (*Manifest, bool) {
	m, ok := w.Manifests[name]
	return m, ok
}

// IsLocal reports whether name is one of the workspace's local packages.
func (w *Workspace) IsLocal(name string) bool {
	_, ok := w.Manifests[name]
	return ok
}

// LocalDependencies returns the local path dependencies of a package, in
// the snapshot's declaration order.
func (w *Workspace) LocalDependencies(p *Package) []*Package {
	var deps []*Package
	for _, d := range p.NormalDependencies() {
		if !d.IsLocal() {
			continue
		}
		if dep, ok := w.localPackage(d); ok {
			deps = append(deps, dep)
		}
	}
	return deps
}

// Discover builds a metadata snapshot by walking manifests and the
// conventional target layout (src/main.rs, src/bin/*.rs, src/lib.rs),
// without invoking cargo. Registry dependencies carry no version
// information beyond what the manifest declares.
func Discover(manifestPath string) (*Metadata, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		abs = manifestPath
	}

	meta := &Metadata{WorkspaceRoot: filepath.Dir(abs)}

	seen := make(map[string]bool)
	queue := []string{abs}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if seen[path] {
			continue
		}
		seen[path] = true

		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		pkg, err := discoverPackage(m)
		if err != nil {
			return nil, err
		}
		meta.Packages = append(meta.Packages, *pkg)

		for _, name := range m.DependencyNames() {
			if dir, ok := m.LocalPath(name); ok {
				queue = append(queue, filepath.Join(dir, "Cargo.toml"))
			}
		}
	}
	return meta, nil
}

// discoverPackage converts one parsed manifest into a snapshot package.
func discoverPackage(m *Manifest) (*Package, error) {
	name := m.Package.Name
	version := m.Package.Version
	if version == "" {
		version = "0.0.0"
	}

	pkg := &Package{
		Name:         name,
		Version:      version,
		ID:           fmt.Sprintf("path+file://%s#%s@%s", m.Dir(), name, version),
		ManifestPath: m.Path(),
	}

	for _, name := range m.DependencyNames() {
		pkg.Dependencies = append(pkg.Dependencies, discoverDependency(m, name))
	}
	for _, kind := range []string{"dev", "build"} {
		section := m.DevDependencies
		if kind == "build" {
			section = m.BuildDependencies
		}
		for dep := range section {
			k := kind
			pkg.Dependencies = append(pkg.Dependencies, Dependency{Name: dep, Kind: &k})
		}
	}

	targets, err := discoverTargets(m)
	if err != nil {
		return nil, err
	}
	pkg.Targets = targets
	return pkg, nil
}

// discoverDependency classifies one declared dependency as path or registry.
func discoverDependency(m *Manifest, name string) Dependency {
	d := Dependency{Name: name}
	if dir, ok := m.LocalPath(name); ok {
		d.Path = dir
		return d
	}
	d.Source = sourcePtr()
	return d
}

func sourcePtr() *string {
	s := registrySource
	return &s
}

// discoverTargets scans the conventional source layout of a package.
// Library target names fold dashes to underscores; binary targets keep the
// package name as declared, matching cargo's defaults.
func discoverTargets(m *Manifest) ([]Target, error) {
	var targets []Target
	src := m.SrcDir()

	if p := filepath.Join(src, "lib.rs"); fileExists(p) {
		targets = append(targets, Target{
			Name:    strings.ReplaceAll(m.Package.Name, "-", "_"),
			Kind:    []string{"lib"},
			SrcPath: p,
		})
	}
	if p := filepath.Join(src, "main.rs"); fileExists(p) {
		targets = append(targets, Target{
			Name:    m.Package.Name,
			Kind:    []string{"bin"},
			SrcPath: p,
		})
	}

	binDir := filepath.Join(src, "bin")
	entries, err := os.ReadDir(binDir)
	if err != nil {
		if os.IsNotExist(err) {
			return targets, nil
		}
		return nil, errors.Wrap(errors.ErrCodeMetadata, err, "scan %s", binDir)
	}
	for _, e := range entries {
		switch {
		case !e.IsDir() && strings.HasSuffix(e.Name(), ".rs"):
			targets = append(targets, Target{
				Name:    strings.TrimSuffix(e.Name(), ".rs"),
				Kind:    []string{"bin"},
				SrcPath: filepath.Join(binDir, e.Name()),
			})
		case e.IsDir():
			if p := filepath.Join(binDir, e.Name(), "main.rs"); fileExists(p) {
				targets = append(targets, Target{
					Name:    e.Name(),
					Kind:    []string{"bin"},
					SrcPath: p,
				})
			}
		}
	}
	return targets, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
