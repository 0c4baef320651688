// Package pkg provides the core libraries for cgfuse source fusion.
//
// # Overview
//
// cgfuse takes a multi-crate Cargo workspace and fuses it into a single
// .rs file that competitive programming judges accept as one submission.
// The pkg directory is organized into four main areas:
//
//  1. [cargo] - Workspace access (metadata, manifests, cargo check)
//  2. [rust] - Source parsing (items, use trees, visibility)
//  3. [graph] + [fusion] - Challenge graph and the fusion pipeline
//  4. [cache], [observability], [render], [io] - Supporting infrastructure
//
// # Architecture
//
// The typical data flow through cgfuse:
//
//	Cargo workspace (Cargo.toml + src/)
//	         ↓
//	    [cargo] package (metadata, manifests, platform policy)
//	         ↓
//	    [rust] package (parse crate sources into items)
//	         ↓
//	    [graph] package (challenge graph: packages, crates, items)
//	         ↓
//	    [fusion] package (expand → link → require → flatten → assemble)
//	         ↓
//	    One fused .rs file in src/bin/
//
// # Quick Start
//
// Fuse a challenge workspace programmatically:
//
//	import (
//	    "context"
//	    "github.com/cgfuse/cgfuse/pkg/fusion"
//	)
//
//	runner := fusion.NewRunner(nil, nil, nil)
//	res, err := runner.Execute(context.Background(), fusion.Options{
//	    ManifestPath: "challenge/Cargo.toml",
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.OutputPath)
//
// # Main Packages
//
// ## Workspace Access
//
// [cargo] - Runs cargo metadata and cargo check, parses workspace manifests
// with BurntSushi/toml, and caches both behind content-derived keys so
// unchanged workspaces never shell out twice.
//
// [rust] - Tree-sitter based parser producing [rust.Item] trees: item kinds,
// use trees, visibility modifiers, and the name references each item makes.
//
// ## Graph and Pipeline
//
// [graph] - The challenge graph. Nodes carry typed payloads (packages,
// crates, source files, items); edges are classified (dependency, syn, use,
// implementation, required). Traversals cover BFS, namespace walks, and
// visibility checks.
//
// [fusion] - The pipeline itself: package policy, source loading, glob
// expansion, reference linking, required-item tracing, module flattening,
// assembly, and the final forge step that writes and verifies the fused
// file. [fusion.Runner] ties the phases together.
//
// ## Supporting Infrastructure
//
// [cache] - Content-addressed file cache with an LRU memoization layer,
// used for cargo metadata and check results.
//
// [observability] - Process-wide hook registry. The CLI registers phase,
// cache, and tool hooks to drive spinners and counters without the
// pipeline knowing about terminals.
//
// [render] - DOT generation and SVG rendering of the challenge graph via
// the embedded Graphviz (goccy/go-graphviz).
//
// [io] - JSON export of graph snapshots for --json output and the viewer
// API.
//
// [errors] - Coded errors shared across packages, so callers can branch on
// failure class instead of message text.
//
// [buildinfo] - Version, commit, and build date injected at link time.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...           # All tests
//	go test ./pkg/fusion/...    # Specific package
//	go test -run Example        # Examples only
//
// [cargo]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/cargo
// [rust]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/rust
// [rust.Item]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/rust#Item
// [graph]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/graph
// [fusion]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/fusion
// [fusion.Runner]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/fusion#Runner
// [cache]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/cache
// [observability]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/observability
// [render]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/render
// [io]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/io
// [errors]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/errors
// [buildinfo]: https://pkg.go.dev/github.com/cgfuse/cgfuse/pkg/buildinfo
package pkg
