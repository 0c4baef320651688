package fusion

import (
	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/graph"
	"github.com/cgfuse/cgfuse/pkg/rust"
)

// LinkReferences attaches every impl block to the declarations it
// implements: an Implementation edge from the self type's declaration, and
// a second one from the trait declaration for trait impls. Resolution
// starts at the impl's own module, so a block implementing a foreign trait
// for a foreign type simply gets no edges. The returned resolver memoizes
// over the now-complete edge set and serves the reachability phase.
func LinkReferences(g *graph.Graph, opts *Options) (*graph.Resolver, error) {
	edges := 0
	for _, id := range g.NodeIDs() {
		it, ok := g.Item(id)
		if !ok || it.Kind != rust.KindImpl || it.Impl == nil {
			continue
		}
		from, ok := g.OwningModule(id)
		if !ok {
			continue
		}

		selfDecl, ok := localDecl(g, it.Impl.SelfType, from, rust.ItemKind.IsTypeDecl)
		if !ok {
			opts.Logger.Debug("impl block has no local self type", "impl", it.Label())
			continue
		}
		if err := g.AddEdge(selfDecl, id, graph.EdgeImplementation); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "linking %q", it.Label())
		}
		edges++

		if it.Impl.IsInherent() {
			continue
		}
		traitDecl, ok := localDecl(g, it.Impl.Trait, from, func(k rust.ItemKind) bool { return k == rust.KindTrait })
		if !ok {
			continue
		}
		if err := g.AddEdge(traitDecl, id, graph.EdgeImplementation); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "linking %q", it.Label())
		}
		edges++
	}
	opts.Logger.Debug("linked impl blocks", "edges", edges)

	return graph.NewResolver(g, opts.MemoSize)
}

// localDecl resolves a path from the given module and keeps the target only
// when it is a declaration of the wanted kind inside the workspace.
func localDecl(g *graph.Graph, path rust.Path, from graph.NodeID, want func(rust.ItemKind) bool) (graph.NodeID, bool) {
	if path.IsEmpty() {
		return graph.InvalidNode, false
	}
	res := graph.ResolvePath(g, path, from)
	if res.State != graph.ResolutionResolved {
		return graph.InvalidNode, false
	}
	it, ok := g.Item(res.Target)
	if !ok || !want(it.Kind) {
		return graph.InvalidNode, false
	}
	return res.Target, true
}
