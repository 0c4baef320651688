package graph

import (
	"slices"
	"testing"

	"github.com/cgfuse/cgfuse/pkg/rust"
)

func mustEdge(t *testing.T, g *Graph, from, to NodeID, kind EdgeKind) {
	t.Helper()
	if err := g.AddEdge(from, to, kind); err != nil {
		t.Fatalf("add edge %d->%d (%s): %v", from, to, kind, err)
	}
}

func fnItem(name string, vis rust.Visibility) *rust.Item {
	return &rust.Item{Kind: rust.KindFn, Name: name, Vis: vis, Src: "fn " + name + "() {}"}
}

// testGraph is a small two-package challenge: a binary crate importing a
// struct from a local library with inherent and trait impls.
type testGraph struct {
	g *Graph

	bin     NodeID // binary crate of the challenge package
	libPkg  NodeID // local library package
	lib     NodeID // its library crate
	randPkg NodeID // external supported dependency

	srcFile NodeID
	useGo   NodeID
	mainFn  NodeID

	goStruct     NodeID
	inherentImpl NodeID
	newFn        NodeID
	updateFn     NodeID
	showTrait    NodeID
	showDecl     NodeID
	traitImpl    NodeID
	showImpl     NodeID
	helpersMod   NodeID
	helperFn     NodeID
	superFn      NodeID
}

func buildTestGraph(t *testing.T) *testGraph {
	t.Helper()
	g := New(&LocalPackage{Name: "challenge"})
	tg := &testGraph{g: g}

	tg.bin = g.AddNode(&BinaryCrate{Name: "main"})
	mustEdge(t, g, g.Root(), tg.bin, EdgeSyn)

	tg.libPkg = g.AddNode(&LocalPackage{Name: "my_lib"})
	mustEdge(t, g, g.Root(), tg.libPkg, EdgeDependency)
	tg.lib = g.AddNode(&LibraryCrate{Name: "my_lib"})
	mustEdge(t, g, tg.libPkg, tg.lib, EdgeSyn)

	tg.randPkg = g.AddNode(&ExternalSupportedPackage{Name: "rand"})
	mustEdge(t, g, g.Root(), tg.randPkg, EdgeDependency)

	pub := rust.ParseVisibility("pub")
	pubCrate := rust.ParseVisibility("pub(crate)")
	pubSuper := rust.ParseVisibility("pub(super)")

	tg.srcFile = g.AddNode(&SourceFile{Path: "/challenge/src/main.rs"})
	mustEdge(t, g, tg.bin, tg.srcFile, EdgeSyn)
	tg.useGo = g.AddNode(&SynItem{Item: &rust.Item{
		Kind: rust.KindUse,
		Use:  &rust.UseTree{Prefix: rust.Path{"my_lib"}, Name: "Go"},
		Src:  "use my_lib::Go;",
	}})
	mustEdge(t, g, tg.bin, tg.useGo, EdgeSyn)
	tg.mainFn = g.AddNode(&SynItem{Item: fnItem("main", rust.Visibility{})})
	mustEdge(t, g, tg.bin, tg.mainFn, EdgeSyn)

	tg.goStruct = g.AddNode(&SynItem{Item: &rust.Item{
		Kind: rust.KindStruct, Name: "Go", Vis: pub, Src: "pub struct Go;",
	}})
	mustEdge(t, g, tg.lib, tg.goStruct, EdgeSyn)

	tg.inherentImpl = g.AddNode(&SynItem{Item: &rust.Item{
		Kind: rust.KindImpl,
		Impl: &rust.ImplHeader{SelfType: rust.Path{"Go"}},
	}})
	mustEdge(t, g, tg.lib, tg.inherentImpl, EdgeSyn)
	tg.newFn = g.AddNode(&SynImplItem{Item: fnItem("new", pub)})
	mustEdge(t, g, tg.inherentImpl, tg.newFn, EdgeSyn)
	tg.updateFn = g.AddNode(&SynImplItem{Item: fnItem("update_node", rust.Visibility{})})
	mustEdge(t, g, tg.inherentImpl, tg.updateFn, EdgeSyn)

	tg.showTrait = g.AddNode(&SynItem{Item: &rust.Item{
		Kind: rust.KindTrait, Name: "Show", Vis: pub,
	}})
	mustEdge(t, g, tg.lib, tg.showTrait, EdgeSyn)
	tg.showDecl = g.AddNode(&SynTraitItem{Item: fnItem("show", rust.Visibility{})})
	mustEdge(t, g, tg.showTrait, tg.showDecl, EdgeSyn)

	tg.traitImpl = g.AddNode(&SynItem{Item: &rust.Item{
		Kind: rust.KindImpl,
		Impl: &rust.ImplHeader{SelfType: rust.Path{"Go"}, Trait: rust.Path{"Show"}},
	}})
	mustEdge(t, g, tg.lib, tg.traitImpl, EdgeSyn)
	tg.showImpl = g.AddNode(&SynImplItem{Item: fnItem("show", rust.Visibility{})})
	mustEdge(t, g, tg.traitImpl, tg.showImpl, EdgeSyn)

	tg.helpersMod = g.AddNode(&SynItem{Item: &rust.Item{
		Kind: rust.KindMod, Name: "helpers", Inline: true,
	}})
	mustEdge(t, g, tg.lib, tg.helpersMod, EdgeSyn)
	tg.helperFn = g.AddNode(&SynItem{Item: fnItem("helper_fn", pubCrate)})
	mustEdge(t, g, tg.helpersMod, tg.helperFn, EdgeSyn)
	tg.superFn = g.AddNode(&SynItem{Item: fnItem("super_fn", pubSuper)})
	mustEdge(t, g, tg.helpersMod, tg.superFn, EdgeSyn)

	mustEdge(t, g, tg.useGo, tg.goStruct, EdgeUse)
	mustEdge(t, g, tg.goStruct, tg.inherentImpl, EdgeImplementation)
	mustEdge(t, g, tg.goStruct, tg.traitImpl, EdgeImplementation)
	mustEdge(t, g, tg.showTrait, tg.traitImpl, EdgeImplementation)

	return tg
}

func TestGraphBasics(t *testing.T) {
	g := New(&LocalPackage{Name: "challenge"})
	if g.Root() != 0 {
		t.Fatalf("root = %d, want 0", g.Root())
	}

	a := g.AddNode(&BinaryCrate{Name: "main"})
	b := g.AddNode(&SynItem{Item: fnItem("main", rust.Visibility{})})

	if err := g.AddEdge(a, 99, EdgeSyn); err != ErrUnknownTargetNode {
		t.Errorf("edge to unknown target: err = %v", err)
	}
	if err := g.AddEdge(99, a, EdgeSyn); err != ErrUnknownSourceNode {
		t.Errorf("edge from unknown source: err = %v", err)
	}

	mustEdge(t, g, g.Root(), a, EdgeSyn)
	mustEdge(t, g, a, b, EdgeSyn)

	if got := g.NodeCount(); got != 3 {
		t.Errorf("node count = %d, want 3", got)
	}
	if got := g.EdgeCount(); got != 2 {
		t.Errorf("edge count = %d, want 2", got)
	}
	if children := g.Children(a, EdgeSyn); len(children) != 1 || children[0] != b {
		t.Errorf("children of %d = %v", a, children)
	}
	if parents := g.Parents(b, EdgeSyn); len(parents) != 1 || parents[0] != a {
		t.Errorf("parents of %d = %v", b, parents)
	}
	if parent, ok := g.SynParent(b); !ok || parent != a {
		t.Errorf("syn parent of %d = %d, %v", b, parent, ok)
	}
	if !g.HasEdge(a, b, EdgeSyn) {
		t.Errorf("missing edge %d->%d", a, b)
	}
	if g.HasEdge(a, b, EdgeUse) {
		t.Errorf("edge kind should not match")
	}
}

func TestRemoveNodeKeepsIdentity(t *testing.T) {
	tg := buildTestGraph(t)
	g := tg.g

	goID := tg.goStruct
	g.RemoveNode(tg.useGo)

	if g.Contains(tg.useGo) {
		t.Fatalf("removed node still present")
	}
	it, ok := g.Item(goID)
	if !ok || it.Name != "Go" {
		t.Fatalf("node ID shifted after removal: %v %v", it, ok)
	}
	if len(g.Parents(goID, EdgeUse)) != 0 {
		t.Errorf("use edge to removed node survived")
	}
	if slices.Contains(g.Children(tg.bin, EdgeSyn), tg.useGo) {
		t.Errorf("removed node still listed as child")
	}
	if err := g.AddEdge(tg.bin, tg.useGo, EdgeSyn); err != ErrUnknownTargetNode {
		t.Errorf("edge to tombstone: err = %v", err)
	}
	g.RemoveNode(tg.useGo) // second removal is a no-op
}

func TestRemoveEdge(t *testing.T) {
	tg := buildTestGraph(t)
	g := tg.g

	before := g.EdgeCount()
	g.RemoveEdge(tg.goStruct, tg.traitImpl, EdgeImplementation)
	if g.HasEdge(tg.goStruct, tg.traitImpl, EdgeImplementation) {
		t.Errorf("edge survived removal")
	}
	if got := g.EdgeCount(); got != before-1 {
		t.Errorf("edge count = %d, want %d", got, before-1)
	}
	// removing again is a no-op
	g.RemoveEdge(tg.goStruct, tg.traitImpl, EdgeImplementation)
	if got := g.EdgeCount(); got != before-1 {
		t.Errorf("edge count after no-op removal = %d", got)
	}
}

func TestSpliceChildren(t *testing.T) {
	tg := buildTestGraph(t)
	g := tg.g

	a := g.AddNode(&SynItem{Item: fnItem("split_a", rust.Visibility{})})
	b := g.AddNode(&SynItem{Item: fnItem("split_b", rust.Visibility{})})

	before := g.EdgeCount()
	if err := g.SpliceChildren(tg.bin, tg.useGo, []NodeID{a, b}, EdgeSyn); err != nil {
		t.Fatalf("splice: %v", err)
	}

	got := g.Children(tg.bin, EdgeSyn)
	want := []NodeID{tg.srcFile, a, b, tg.mainFn}
	if !slices.Equal(got, want) {
		t.Errorf("children after splice = %v, want %v", got, want)
	}
	if got := g.EdgeCount(); got != before+1 {
		t.Errorf("edge count = %d, want %d", got, before+1)
	}
	if parents := g.Parents(a, EdgeSyn); len(parents) != 1 || parents[0] != tg.bin {
		t.Errorf("parents of replacement = %v", parents)
	}
	if len(g.Parents(tg.useGo, EdgeSyn)) != 0 {
		t.Errorf("replaced child still has a syn parent")
	}

	// an empty replacement list drops the edge
	if err := g.SpliceChildren(tg.bin, tg.mainFn, nil, EdgeSyn); err != nil {
		t.Fatalf("splice with empty replacement: %v", err)
	}
	if got := g.Children(tg.bin, EdgeSyn); !slices.Equal(got, []NodeID{tg.srcFile, a, b}) {
		t.Errorf("children after drop = %v", got)
	}

	if err := g.SpliceChildren(tg.bin, tg.goStruct, []NodeID{a}, EdgeSyn); err != ErrUnknownEdge {
		t.Errorf("splice of non-child: err = %v", err)
	}
	if err := g.SpliceChildren(99, a, nil, EdgeSyn); err != ErrUnknownSourceNode {
		t.Errorf("splice on unknown parent: err = %v", err)
	}
	if err := g.SpliceChildren(tg.bin, tg.srcFile, []NodeID{99}, EdgeSyn); err != ErrUnknownTargetNode {
		t.Errorf("splice with unknown replacement: err = %v", err)
	}
}

func TestMarkRequired(t *testing.T) {
	tg := buildTestGraph(t)
	g := tg.g

	if !g.IsRequired(g.Root()) {
		t.Errorf("root must always be required")
	}
	if g.IsRequired(tg.mainFn) {
		t.Errorf("unmarked node reported required")
	}

	if err := g.MarkRequired(tg.mainFn); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !g.IsRequired(tg.mainFn) {
		t.Errorf("marked node not reported required")
	}

	before := g.EdgeCount()
	if err := g.MarkRequired(tg.mainFn); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if g.EdgeCount() != before {
		t.Errorf("marking is not idempotent")
	}

	if got := g.RequiredIDs(); len(got) != 1 || got[0] != tg.mainFn {
		t.Errorf("required ids = %v", got)
	}
}

func TestEdgeBFS(t *testing.T) {
	tg := buildTestGraph(t)
	g := tg.g

	got := slices.Collect(g.EdgeBFS(tg.lib, EdgeSyn))
	want := []NodeID{
		tg.lib,
		tg.goStruct, tg.inherentImpl, tg.showTrait, tg.traitImpl, tg.helpersMod,
		tg.newFn, tg.updateFn, tg.showDecl, tg.showImpl, tg.helperFn, tg.superFn,
	}
	if !slices.Equal(got, want) {
		t.Errorf("bfs order = %v, want %v", got, want)
	}

	// early break must not panic and must stop the walk
	count := 0
	for range g.EdgeBFS(tg.lib, EdgeSyn) {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Errorf("early break visited %d nodes", count)
	}
}

func TestNamespaceBFS(t *testing.T) {
	tg := buildTestGraph(t)
	g := tg.g

	got := slices.Collect(g.NamespaceBFS(tg.lib))

	for _, id := range []NodeID{tg.goStruct, tg.newFn, tg.updateFn, tg.showTrait, tg.helpersMod} {
		if !slices.Contains(got, id) {
			t.Errorf("namespace of lib missing node %d", id)
		}
	}
	for _, id := range []NodeID{tg.showImpl, tg.showDecl, tg.helperFn} {
		if slices.Contains(got, id) {
			t.Errorf("namespace of lib should not reach node %d", id)
		}
	}
}

func TestAscendHelpers(t *testing.T) {
	tg := buildTestGraph(t)
	g := tg.g

	if m, ok := g.OwningModule(tg.newFn); !ok || m != tg.lib {
		t.Errorf("owning module of impl member = %d, %v", m, ok)
	}
	if m, ok := g.OwningModule(tg.helperFn); !ok || m != tg.helpersMod {
		t.Errorf("owning module of helper_fn = %d, %v", m, ok)
	}
	if c, ok := g.CrateRoot(tg.helperFn); !ok || c != tg.lib {
		t.Errorf("crate root of helper_fn = %d, %v", c, ok)
	}
	if p, ok := g.PackageOf(tg.helperFn); !ok || p != tg.libPkg {
		t.Errorf("package of helper_fn = %d, %v", p, ok)
	}
	if p, ok := g.PackageOf(tg.mainFn); !ok || p != tg.g.Root() {
		t.Errorf("package of main = %d, %v", p, ok)
	}
	if !g.IsModule(tg.bin) || !g.IsModule(tg.helpersMod) {
		t.Errorf("crates and mod items are modules")
	}
	if g.IsModule(tg.goStruct) {
		t.Errorf("struct is not a module")
	}
}

func TestModulePath(t *testing.T) {
	tg := buildTestGraph(t)
	g := tg.g

	tests := []struct {
		name string
		id   NodeID
		want rust.Path
	}{
		{"library crate", tg.lib, rust.Path{"my_lib"}},
		{"inline module", tg.helpersMod, rust.Path{"my_lib", "helpers"}},
		{"nested item", tg.helperFn, rust.Path{"my_lib", "helpers", "helper_fn"}},
		{"top-level struct", tg.goStruct, rust.Path{"my_lib", "Go"}},
		{"binary item", tg.mainFn, rust.Path{"main", "main"}},
		{"impl skipped", tg.newFn, rust.Path{"my_lib", "new"}},
		{"package", tg.libPkg, nil},
		{"external package", tg.randPkg, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.ModulePath(tt.id)
			if !got.Equal(tt.want) {
				t.Errorf("ModulePath(%d) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestVisible(t *testing.T) {
	tg := buildTestGraph(t)
	g := tg.g

	tests := []struct {
		name string
		item NodeID
		from NodeID
		want bool
	}{
		{"pub from other crate", tg.newFn, tg.bin, true},
		{"private from own module", tg.updateFn, tg.lib, true},
		{"private from submodule", tg.updateFn, tg.helpersMod, true},
		{"private from other crate", tg.updateFn, tg.bin, false},
		{"pub(crate) from same crate", tg.helperFn, tg.lib, true},
		{"pub(crate) from other crate", tg.helperFn, tg.bin, false},
		{"pub(super) from parent", tg.superFn, tg.lib, true},
		{"pub(super) from other crate", tg.superFn, tg.bin, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Visible(tt.item, tt.from); got != tt.want {
				t.Errorf("Visible(%d, %d) = %v, want %v", tt.item, tt.from, got, tt.want)
			}
		})
	}
}
