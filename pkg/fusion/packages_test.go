package fusion

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgfuse/cgfuse/pkg/cargo"
	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/graph"
)

// discoverWorkspace loads a fixture workspace without the cargo binary.
func discoverWorkspace(t *testing.T, files map[string]string) *cargo.Workspace {
	t.Helper()
	dir := writeTree(t, files)
	manifest := filepath.Join(dir, "challenge", "Cargo.toml")
	meta, err := cargo.Discover(manifest)
	require.NoError(t, err)
	ws, err := cargo.NewWorkspace(meta, manifest)
	require.NoError(t, err)
	return ws
}

func TestBuildPackagesClassifiesDependencies(t *testing.T) {
	ws := discoverWorkspace(t, map[string]string{
		"challenge/Cargo.toml": `[package]
name = "challenge"
version = "0.1.0"

[dependencies]
rand = "0.8"
my_lib = { path = "../my_lib" }
`,
		"challenge/src/main.rs": "fn main() {}\n",
		"my_lib/Cargo.toml": `[package]
name = "my_lib"
version = "0.1.0"
`,
		"my_lib/src/lib.rs": "pub fn nop() {}\n",
	})

	opts := testOptions(t)
	g, err := BuildPackages(ws, CodinGame(), opts)
	require.NoError(t, err)

	var locals, supported, unsupported int
	for id := range g.EdgeBFS(g.Root(), graph.EdgeDependency) {
		p, ok := g.Payload(id)
		require.True(t, ok)
		switch p.(type) {
		case *graph.LocalPackage:
			locals++
		case *graph.ExternalSupportedPackage:
			supported++
		case *graph.ExternalUnsupportedPackage:
			unsupported++
		}
	}
	assert.Equal(t, 2, locals, "challenge and my_lib")
	assert.Equal(t, 1, supported, "rand is on the allow-list")
	assert.Equal(t, 0, unsupported)
}

func TestBuildPackagesRejectsUnsupportedChallengeDep(t *testing.T) {
	ws := discoverWorkspace(t, map[string]string{
		"challenge/Cargo.toml": `[package]
name = "challenge"
version = "0.1.0"

[dependencies]
serde = "1"
`,
		"challenge/src/main.rs": "fn main() {}\n",
	})

	opts := testOptions(t)
	_, err := BuildPackages(ws, CodinGame(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePolicy))

	// force does not excuse the challenge package itself
	opts.Force = true
	_, err = BuildPackages(ws, CodinGame(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePolicy))
}

func TestBuildPackagesUnsupportedLibraryDep(t *testing.T) {
	files := map[string]string{
		"challenge/Cargo.toml": `[package]
name = "challenge"
version = "0.1.0"

[dependencies]
my_lib = { path = "../my_lib" }
`,
		"challenge/src/main.rs": "fn main() {}\n",
		"my_lib/Cargo.toml": `[package]
name = "my_lib"
version = "0.1.0"

[dependencies]
serde = "1"
`,
		"my_lib/src/lib.rs": "pub fn nop() {}\n",
	}

	ws := discoverWorkspace(t, files)
	opts := testOptions(t)
	_, err := BuildPackages(ws, CodinGame(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePolicy))

	opts.Force = true
	g, err := BuildPackages(ws, CodinGame(), opts)
	require.NoError(t, err)

	found := false
	for id := range g.EdgeBFS(g.Root(), graph.EdgeDependency) {
		if p, ok := g.Payload(id); ok {
			if ext, isExt := p.(*graph.ExternalUnsupportedPackage); isExt {
				assert.Equal(t, "serde", ext.Name)
				found = true
			}
		}
	}
	assert.True(t, found, "serde should survive as an unsupported package node")
}

func TestBuildPackagesUndeclaredLocalLibrary(t *testing.T) {
	files := map[string]string{
		"challenge/Cargo.toml": `[package]
name = "challenge"
version = "0.1.0"

[dependencies]
my_lib = { path = "../my_lib" }
`,
		"challenge/src/main.rs": "fn main() {}\n",
		"my_lib/Cargo.toml": `[package]
name = "my_lib"
version = "0.1.0"

[dependencies]
hidden_lib = { path = "../hidden_lib" }
`,
		"my_lib/src/lib.rs": "pub fn nop() {}\n",
		"hidden_lib/Cargo.toml": `[package]
name = "hidden_lib"
version = "0.1.0"
`,
		"hidden_lib/src/lib.rs": "pub fn nop() {}\n",
	}

	ws := discoverWorkspace(t, files)
	opts := testOptions(t)
	_, err := BuildPackages(ws, CodinGame(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePolicy))

	opts.Force = true
	g, err := BuildPackages(ws, CodinGame(), opts)
	require.NoError(t, err)

	names := map[string]bool{}
	for id := range g.EdgeBFS(g.Root(), graph.EdgeDependency) {
		if p, ok := g.Payload(id); ok {
			if lp, isLocal := p.(*graph.LocalPackage); isLocal {
				names[lp.Name] = true
			}
		}
	}
	assert.True(t, names["hidden_lib"], "undeclared library should be linked under force")
}
