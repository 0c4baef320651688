package fusion

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/cgfuse/cgfuse/pkg/cargo"
	"github.com/cgfuse/cgfuse/pkg/graph"
	"github.com/cgfuse/cgfuse/pkg/rust"
)

// writeTree writes a fixture file tree and returns its root directory.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func testOptions(t *testing.T) *Options {
	t.Helper()
	opts := &Options{
		Logger: log.NewWithOptions(io.Discard, log.Options{}),
		Config: &Config{},
	}
	require.NoError(t, opts.ValidateAndSetDefaults())
	return opts
}

// challengeFiles is the smallest two-package workspace: a challenge binary
// next to one library. Callers override main.rs and the library sources.
func challengeFiles(mainRS string, lib map[string]string) map[string]string {
	files := map[string]string{
		"challenge/Cargo.toml": `[package]
name = "challenge"
version = "0.1.0"
edition = "2021"

[dependencies]
my_lib = { path = "../my_lib" }
`,
		"challenge/src/main.rs": mainRS,
		"my_lib/Cargo.toml": `[package]
name = "my_lib"
version = "0.1.0"
edition = "2021"
`,
	}
	for rel, content := range lib {
		files["my_lib/"+rel] = content
	}
	return files
}

// loadState runs the packages and sources phases over a fixture tree.
func loadState(t *testing.T, opts *Options, files map[string]string) *State {
	t.Helper()
	dir := writeTree(t, files)
	manifest := filepath.Join(dir, "challenge", "Cargo.toml")

	meta, err := cargo.Discover(manifest)
	require.NoError(t, err)
	ws, err := cargo.NewWorkspace(meta, manifest)
	require.NoError(t, err)

	platform, err := opts.ResolvedPlatform()
	require.NoError(t, err)
	g, err := BuildPackages(ws, platform, opts)
	require.NoError(t, err)

	bin, err := LoadSources(context.Background(), g, ws, opts)
	require.NoError(t, err)

	return &State{Workspace: ws, Graph: g, Platform: platform, BinCrate: bin}
}

// expandState additionally canonicalizes imports and links references.
func expandState(t *testing.T, opts *Options, files map[string]string) *State {
	t.Helper()
	st := loadState(t, opts, files)
	require.NoError(t, ExpandUses(st.Graph, opts))
	resolver, err := LinkReferences(st.Graph, opts)
	require.NoError(t, err)
	st.Resolver = resolver
	return st
}

// analyzeState runs the full local pipeline through the require phase.
func analyzeState(t *testing.T, opts *Options, oracle Oracle, files map[string]string) (*State, []Decision) {
	t.Helper()
	st := expandState(t, opts, files)
	decisions, err := MarkRequirements(context.Background(), st, oracle, opts)
	require.NoError(t, err)
	st.Decisions = decisions
	return st, decisions
}

// libCrate finds the library crate node of a local package by name.
func libCrate(t *testing.T, g *graph.Graph, pkg string) graph.NodeID {
	t.Helper()
	for id := range g.EdgeBFS(g.Root(), graph.EdgeDependency) {
		p, ok := g.Payload(id)
		if !ok {
			continue
		}
		if lp, isLocal := p.(*graph.LocalPackage); isLocal && lp.Name == pkg {
			lib, ok := g.LibCrate(id)
			require.True(t, ok, "package %s has no library crate", pkg)
			return lib
		}
	}
	t.Fatalf("package %s not in graph", pkg)
	return graph.InvalidNode
}

// childNamed finds a direct child item of a container by name.
func childNamed(t *testing.T, g *graph.Graph, container graph.NodeID, name string) graph.NodeID {
	t.Helper()
	for _, child := range g.Children(container, graph.EdgeSyn) {
		if it, ok := g.Item(child); ok && it.Name == name {
			return child
		}
	}
	t.Fatalf("no child named %q", name)
	return graph.InvalidNode
}

// implBlocks returns a container's impl block children in declaration order.
func implBlocks(g *graph.Graph, container graph.NodeID) []graph.NodeID {
	var out []graph.NodeID
	for _, child := range g.Children(container, graph.EdgeSyn) {
		if it, ok := g.Item(child); ok && it.Kind == rust.KindImpl {
			out = append(out, child)
		}
	}
	return out
}

// useSrcs returns the source text of a container's use declarations in
// declaration order.
func useSrcs(g *graph.Graph, container graph.NodeID) []string {
	var out []string
	for _, child := range g.Children(container, graph.EdgeSyn) {
		if it, ok := g.Item(child); ok && it.Kind == rust.KindUse {
			out = append(out, it.Src)
		}
	}
	return out
}
