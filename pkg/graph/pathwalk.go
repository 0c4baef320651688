package graph

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cgfuse/cgfuse/pkg/rust"
)

// DefaultMemoSize is the resolver memo capacity used when none is given.
const DefaultMemoSize = 4096

// CrateName converts a package name to the crate name it is imported as.
func CrateName(name string) string { return strings.ReplaceAll(name, "-", "_") }

// LookupName finds the binding for one name in a module's namespace.
// A declaration in the module (or in an inherent impl block reachable from
// it) wins over a use binding; impl blocks themselves are anonymous and
// never match. Missing bindings are InvalidNode.
func (g *Graph) LookupName(module NodeID, name string) (direct, useItem NodeID) {
	direct, useItem = InvalidNode, InvalidNode
	for id := range g.NamespaceBFS(module) {
		if id == module {
			continue
		}
		it, ok := g.Item(id)
		if !ok {
			continue
		}
		if it.Kind == rust.KindUse {
			if useItem == InvalidNode && it.Use.IsSingle() && it.Use.VisibleName() == name {
				useItem = id
			}
			continue
		}
		if it.Kind != rust.KindImpl && it.Name == name {
			return id, InvalidNode
		}
	}
	return direct, useItem
}

// LibCrate returns the library crate node of a local package.
func (g *Graph) LibCrate(pkg NodeID) (NodeID, bool) {
	for _, child := range g.Children(pkg, EdgeSyn) {
		if p, ok := g.Payload(child); ok {
			if _, isLib := p.(*LibraryCrate); isLib {
				return child, true
			}
		}
	}
	return InvalidNode, false
}

// DependencyCrate resolves a leading path segment against the extern
// prelude of the crate containing from: the library crates of local
// dependencies, external dependency packages, and the containing package's
// own library. Package names are compared after dash folding.
func (g *Graph) DependencyCrate(from NodeID, name string) (NodeID, bool) {
	pkgID, ok := g.PackageOf(from)
	if !ok {
		return InvalidNode, false
	}

	if p, ok := g.Payload(pkgID); ok {
		if local, isLocal := p.(*LocalPackage); isLocal && CrateName(local.Name) == name {
			if lib, ok := g.LibCrate(pkgID); ok {
				return lib, true
			}
		}
	}

	for _, depID := range g.Children(pkgID, EdgeDependency) {
		p, ok := g.Payload(depID)
		if !ok {
			continue
		}
		switch v := p.(type) {
		case *LocalPackage:
			if CrateName(v.Name) == name {
				if lib, ok := g.LibCrate(depID); ok {
					return lib, true
				}
			}
		case *ExternalSupportedPackage:
			if CrateName(v.Name) == name {
				return depID, true
			}
		case *ExternalUnsupportedPackage:
			if CrateName(v.Name) == name {
				return depID, true
			}
		}
	}
	return InvalidNode, false
}

// IsExternalPackage reports whether the node is a registry dependency,
// supported or not.
func (g *Graph) IsExternalPackage(id NodeID) bool {
	p, ok := g.Payload(id)
	if !ok {
		return false
	}
	switch p.(type) {
	case *ExternalSupportedPackage, *ExternalUnsupportedPackage:
		return true
	default:
		return false
	}
}

// ResolutionState classifies the outcome of a path walk.
type ResolutionState int

const (
	// ResolutionUnresolved means some segment had no binding. Paths into
	// the standard library and into macro-generated names end up here and
	// are ignored by callers.
	ResolutionUnresolved ResolutionState = iota
	// ResolutionResolved means every segment resolved to a local node.
	ResolutionResolved
	// ResolutionExternal means the walk reached an external package;
	// remaining segments live outside the graph.
	ResolutionExternal
)

// Resolution is the outcome of resolving one path from one module.
//
// Visited lists every node the walk stepped through in order, including
// pierced use items, traversed impl blocks and the final target. Callers
// that mark reachability mark exactly these nodes, so a partially
// resolvable path still contributes its resolvable prefix.
type Resolution struct {
	State   ResolutionState
	Target  NodeID
	Visited []NodeID
	// Rest holds the path segments the walk did not consume: everything
	// after the segment that reached an external package, or the failing
	// segment onward for unresolved walks.
	Rest rust.Path
}

type resolveKey struct {
	from NodeID
	path string
}

// Resolver resolves paths against the graph with an LRU memo. Results are
// only valid while the graph topology is unchanged; reachability marking
// adds required edges, which no resolution depends on, so one resolver can
// serve a whole fixed-point pass.
type Resolver struct {
	g    *Graph
	memo *lru.Cache[resolveKey, Resolution]
}

// NewResolver creates a resolver with the given memo capacity.
// Non-positive sizes fall back to DefaultMemoSize.
func NewResolver(g *Graph, memoSize int) (*Resolver, error) {
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := lru.New[resolveKey, Resolution](memoSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{g: g, memo: memo}, nil
}

// Resolve walks path segment by segment starting in the namespace of the
// from module. Use bindings are pierced through their use edges, so call
// this only after use expansion has finished.
func (r *Resolver) Resolve(path rust.Path, from NodeID) Resolution {
	if path.IsEmpty() || !r.g.Contains(from) {
		return Resolution{State: ResolutionUnresolved, Target: InvalidNode}
	}
	key := resolveKey{from: from, path: path.String()}
	if cached, ok := r.memo.Get(key); ok {
		return cached
	}
	res := resolveWalk(r.g, path, from)
	r.memo.Add(key, res)
	return res
}

// ResolvePath walks a path without memoization. Phases that rewrite the
// graph between resolutions use this directly; steady-state callers go
// through [Resolver.Resolve].
func ResolvePath(g *Graph, path rust.Path, from NodeID) Resolution {
	if path.IsEmpty() || !g.Contains(from) {
		return Resolution{State: ResolutionUnresolved, Target: InvalidNode}
	}
	return resolveWalk(g, path, from)
}

func resolveWalk(g *Graph, path rust.Path, from NodeID) Resolution {
	cur := from
	var visited []NodeID

	unresolved := func(i int) Resolution {
		return Resolution{State: ResolutionUnresolved, Target: InvalidNode, Visited: visited, Rest: path[i:].Clone()}
	}

	for i, seg := range path {
		if g.IsModule(cur) {
			switch seg {
			case "self":
				continue
			case "crate":
				root, ok := g.CrateRoot(cur)
				if !ok {
					return unresolved(i)
				}
				cur = root
				visited = append(visited, cur)
				continue
			case "super":
				parent, ok := g.OwningModule(cur)
				if !ok {
					return unresolved(i)
				}
				cur = parent
				visited = append(visited, cur)
				continue
			}
		}

		next, stepped, state := resolveStep(g, cur, seg, i == 0)
		visited = append(visited, stepped...)
		switch state {
		case stepFailed:
			return unresolved(i)
		case stepExternal:
			return Resolution{State: ResolutionExternal, Target: next, Visited: visited, Rest: path[i+1:].Clone()}
		}
		cur = next
	}

	return Resolution{State: ResolutionResolved, Target: cur, Visited: visited}
}

type stepState int

const (
	stepOK stepState = iota
	stepFailed
	stepExternal
)

// resolveStep consumes one path segment from the current position: a
// namespace lookup in module position, an associated-item lookup on type
// declarations, a member lookup on traits.
func resolveStep(g *Graph, cur NodeID, seg string, atStart bool) (NodeID, []NodeID, stepState) {
	if g.IsModule(cur) {
		direct, useItem := g.LookupName(cur, seg)
		if direct != InvalidNode {
			return direct, []NodeID{direct}, stepOK
		}
		if useItem != InvalidNode {
			targets := g.Children(useItem, EdgeUse)
			if len(targets) == 0 {
				return InvalidNode, []NodeID{useItem}, stepFailed
			}
			t := targets[0]
			stepped := []NodeID{useItem, t}
			if g.IsExternalPackage(t) {
				return t, stepped, stepExternal
			}
			return t, stepped, stepOK
		}
		if atStart {
			if dep, ok := g.DependencyCrate(cur, seg); ok {
				if g.IsExternalPackage(dep) {
					return dep, []NodeID{dep}, stepExternal
				}
				return dep, []NodeID{dep}, stepOK
			}
		}
		return InvalidNode, nil, stepFailed
	}

	it, ok := g.Item(cur)
	if !ok {
		return InvalidNode, nil, stepFailed
	}
	switch {
	case it.Kind.IsTypeDecl():
		return implMember(g, cur, seg)
	case it.Kind == rust.KindTrait:
		for _, child := range g.Children(cur, EdgeSyn) {
			if ci, ok := g.Item(child); ok && ci.Name == seg {
				return child, []NodeID{child}, stepOK
			}
		}
	}
	return InvalidNode, nil, stepFailed
}

// implMember finds an associated item by name, searching inherent impl
// blocks before trait impls.
func implMember(g *Graph, typeID NodeID, seg string) (NodeID, []NodeID, stepState) {
	impls := g.Children(typeID, EdgeImplementation)
	for _, wantInherent := range []bool{true, false} {
		for _, implID := range impls {
			implItem, ok := g.Item(implID)
			if !ok || implItem.Impl.IsInherent() != wantInherent {
				continue
			}
			for _, child := range g.Children(implID, EdgeSyn) {
				if ci, ok := g.Item(child); ok && ci.Name == seg {
					return child, []NodeID{implID, child}, stepOK
				}
			}
		}
	}
	return InvalidNode, nil, stepFailed
}
