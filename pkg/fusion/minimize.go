package fusion

import (
	"github.com/cgfuse/cgfuse/pkg/graph"
	"github.com/cgfuse/cgfuse/pkg/rust"
)

// MinimizePaths rewrites every required local import from its canonical
// crate-rooted form into the shortest path valid inside the fused file,
// where each library crate becomes a root-level module: targets inside the
// importing module chain become self paths, targets in a sibling subtree
// climb with super, and everything else is rooted at the fused crate with
// the crate keyword. Imports of registry crates and toolchain crates keep
// their text.
func MinimizePaths(g *graph.Graph, bin graph.NodeID) error {
	for _, id := range g.RequiredIDs() {
		it, ok := g.Item(id)
		if !ok || it.Kind != rust.KindUse || it.Use == nil {
			continue
		}
		targets := g.Children(id, graph.EdgeUse)
		if len(targets) == 0 || g.IsExternalPackage(targets[0]) {
			continue
		}
		module, ok := g.OwningModule(id)
		if !ok {
			continue
		}

		im := fusedPath(g, module)
		tp := fusedPath(g, targets[0])
		if tp.IsEmpty() {
			continue
		}
		rel := relativePath(im, tp)

		tree := it.Use
		if tree.Glob {
			it.Use = &rust.UseTree{Prefix: rel, Glob: true}
		} else {
			visible := tree.VisibleName()
			next := &rust.UseTree{Prefix: rel[:len(rel)-1].Clone(), Name: rel.Last()}
			if visible != "" && visible != next.VisibleName() {
				next.Alias = visible
			}
			it.Use = next
		}
		it.Src = useSrc(it.Attrs, it.Vis, it.Use)
	}
	return nil
}

// fusedPath returns a node's path inside the fused file: the binary crate
// contributes no segment because its items sit at the root, and a library
// crate contributes its module name.
func fusedPath(g *graph.Graph, id graph.NodeID) rust.Path {
	mp := g.ModulePath(id)
	if mp.IsEmpty() {
		return nil
	}
	root, ok := g.CrateRoot(id)
	if !ok {
		return mp
	}
	if p, ok := g.Payload(root); ok {
		if _, isBin := p.(*graph.BinaryCrate); isBin {
			return mp[1:].Clone()
		}
	}
	return mp
}

// relativePath builds the shortest use path from one fused module to a
// fused target: self when the target sits under the importing module,
// a super chain when they share a prefix, the crate root otherwise.
func relativePath(im, tp rust.Path) rust.Path {
	k := 0
	for k < len(im) && k < len(tp) && im[k] == tp[k] {
		k++
	}
	switch {
	case k == len(im) && k == len(tp):
		// importing a module from inside itself; nothing shorter exists
		return append(rust.Path{"crate"}, tp...)
	case k == len(im):
		return append(rust.Path{"self"}, tp[k:]...)
	case k == 0:
		return append(rust.Path{"crate"}, tp...)
	default:
		rel := make(rust.Path, 0, len(im)-k+len(tp)-k)
		for i := 0; i < len(im)-k; i++ {
			rel = append(rel, "super")
		}
		return append(rel, tp[k:]...)
	}
}
