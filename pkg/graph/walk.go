package graph

import (
	"iter"

	"github.com/cgfuse/cgfuse/pkg/rust"
)

// EdgeBFS returns a lazy breadth-first sequence over the nodes reachable
// from start via edges of one kind. The start node is yielded first;
// revisits are suppressed. The sequence reads the graph live, so construct
// a fresh one after mutating.
func (g *Graph) EdgeBFS(start NodeID, kind EdgeKind) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if !g.Contains(start) {
			return
		}
		visited := map[NodeID]bool{start: true}
		queue := []NodeID{start}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if !yield(id) {
				return
			}
			for _, e := range g.nodes[id].out {
				if e.kind == kind && !visited[e.peer] && g.Contains(e.peer) {
					visited[e.peer] = true
					queue = append(queue, e.peer)
				}
			}
		}
	}
}

// NamespaceBFS returns a lazy sequence over the nodes whose names live in
// the namespace of a module: the module's direct Syn children, plus the
// members of inherent impl blocks among them. Trait blocks, trait impls
// and nested modules are yielded but not descended into; their members
// are not nameable from here.
func (g *Graph) NamespaceBFS(start NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if !g.Contains(start) {
			return
		}
		visited := map[NodeID]bool{start: true}
		queue := []NodeID{start}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if !yield(id) {
				return
			}
			if id != start && !g.isInherentImpl(id) {
				continue
			}
			for _, e := range g.nodes[id].out {
				if e.kind == EdgeSyn && !visited[e.peer] && g.Contains(e.peer) {
					visited[e.peer] = true
					queue = append(queue, e.peer)
				}
			}
		}
	}
}

func (g *Graph) isInherentImpl(id NodeID) bool {
	it, ok := g.Item(id)
	return ok && it.Kind == rust.KindImpl && it.Impl.IsInherent()
}

// IsModule reports whether the node acts as a module namespace: a crate
// root or a mod item.
func (g *Graph) IsModule(id NodeID) bool {
	p, ok := g.Payload(id)
	if !ok {
		return false
	}
	switch v := p.(type) {
	case *BinaryCrate, *LibraryCrate:
		return true
	case *SynItem:
		return v.Item.Kind == rust.KindMod
	default:
		return false
	}
}

// OwningModule returns the module whose namespace contains the node,
// ascending through impl and trait blocks. For a top-level item this is
// its crate node.
func (g *Graph) OwningModule(id NodeID) (NodeID, bool) {
	cur := id
	for {
		parent, ok := g.SynParent(cur)
		if !ok {
			return InvalidNode, false
		}
		if g.IsModule(parent) {
			return parent, true
		}
		cur = parent
	}
}

// CrateRoot returns the crate node containing the given node, or the node
// itself when it already is one.
func (g *Graph) CrateRoot(id NodeID) (NodeID, bool) {
	cur := id
	for g.Contains(cur) {
		switch g.nodes[cur].payload.(type) {
		case *BinaryCrate, *LibraryCrate:
			return cur, true
		}
		parent, ok := g.SynParent(cur)
		if !ok {
			return InvalidNode, false
		}
		cur = parent
	}
	return InvalidNode, false
}

// ModulePath returns the canonical path of a node: its crate name followed
// by the named containers down to the node, ending with the node's own
// name when it has one. Anonymous containers (impl blocks, source files)
// contribute no segment. Nodes outside any crate return nil.
func (g *Graph) ModulePath(id NodeID) rust.Path {
	var segs []string
	cur := id
	for {
		p, ok := g.Payload(cur)
		if !ok {
			return nil
		}
		switch v := p.(type) {
		case *BinaryCrate:
			return append(rust.Path{v.Name}, segs...)
		case *LibraryCrate:
			return append(rust.Path{v.Name}, segs...)
		case *LocalPackage, *ExternalSupportedPackage, *ExternalUnsupportedPackage:
			return nil
		default:
			if it, ok := ItemOf(p); ok && it.Name != "" {
				segs = append([]string{it.Name}, segs...)
			}
		}
		parent, ok := g.SynParent(cur)
		if !ok {
			return nil
		}
		cur = parent
	}
}

// PackageOf returns the local package containing the given node, or the
// node itself when it already is one.
func (g *Graph) PackageOf(id NodeID) (NodeID, bool) {
	cur := id
	for g.Contains(cur) {
		if _, ok := g.nodes[cur].payload.(*LocalPackage); ok {
			return cur, true
		}
		parent, ok := g.SynParent(cur)
		if !ok {
			return InvalidNode, false
		}
		cur = parent
	}
	return InvalidNode, false
}

// inModuleSubtree reports whether the node sits inside the module's
// containment subtree (or is the module itself).
func (g *Graph) inModuleSubtree(module, id NodeID) bool {
	cur := id
	for {
		if cur == module {
			return true
		}
		parent, ok := g.SynParent(cur)
		if !ok {
			return false
		}
		cur = parent
	}
}

// Visible reports whether an item node is nameable from the given module
// under the source language's visibility rules, approximated on the
// graph: pub is visible everywhere, private within the defining module's
// subtree, pub(crate) within the defining crate, pub(super) within the
// parent module's subtree. pub(in path) restrictions are widened to
// pub(crate); glob expansion errs on the side of importing too much
// rather than losing names.
func (g *Graph) Visible(item, from NodeID) bool {
	it, ok := g.Item(item)
	if !ok {
		return true
	}

	defining, ok := g.OwningModule(item)
	if !ok {
		return true
	}

	switch it.Vis.Kind {
	case rust.VisPub:
		return true
	case rust.VisPrivate:
		return g.inModuleSubtree(defining, from)
	case rust.VisSuper:
		parent, ok := g.OwningModule(defining)
		if !ok {
			return g.sameCrate(item, from)
		}
		return g.inModuleSubtree(parent, from)
	default: // VisCrate, VisRestricted
		return g.sameCrate(item, from)
	}
}

func (g *Graph) sameCrate(a, b NodeID) bool {
	ca, okA := g.CrateRoot(a)
	cb, okB := g.CrateRoot(b)
	return okA && okB && ca == cb
}
