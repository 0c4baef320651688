package fusion

import (
	"sort"

	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/graph"
	"github.com/cgfuse/cgfuse/pkg/rust"
)

// FlattenModules collapses modules into their parents where doing so
// cannot change meaning, to keep the fused file shallow. A module is
// collapsed only when none of its moved names collide in the parent, no
// import binds the module itself, no resolution walk of required code
// steps through it, and nothing inside it navigates with self, super or
// crate paths. Flattening never changes the required item set; the final
// validation re-resolves every required import and fails the run if a
// collapse broke one.
func FlattenModules(g *graph.Graph, bin graph.NodeID) (int, error) {
	f := &flattener{g: g}
	total := 0
	for {
		n, err := f.pass()
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	if err := f.validate(); err != nil {
		return total, err
	}
	return total, nil
}

type flattener struct {
	g *graph.Graph
}

// pass collapses at most one module, deepest candidates first, so chains
// fold bottom-up and every check runs against a settled graph.
func (f *flattener) pass() (int, error) {
	blocked := f.blockedByRefs()

	var mods []graph.NodeID
	for _, id := range f.g.RequiredIDs() {
		if it, ok := f.g.Item(id); ok && it.Kind == rust.KindMod {
			mods = append(mods, id)
		}
	}
	sort.Slice(mods, func(i, j int) bool {
		return len(f.g.ModulePath(mods[i])) > len(f.g.ModulePath(mods[j]))
	})

	for _, m := range mods {
		if blocked[m] || !f.flattenable(m) {
			continue
		}
		if err := f.collapse(m); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return 0, nil
}

// blockedByRefs marks every node some required reference walks through.
// Collapsing such a module would silently break the textual paths in item
// bodies, which no later phase rewrites.
func (f *flattener) blockedByRefs() map[graph.NodeID]bool {
	blocked := make(map[graph.NodeID]bool)
	for _, id := range f.g.RequiredIDs() {
		it, ok := f.g.Item(id)
		if !ok {
			continue
		}
		from, ok := f.g.OwningModule(id)
		if !ok {
			continue
		}
		for _, ref := range it.Refs {
			if ref.Path.IsEmpty() || rust.IsStdCrate(ref.Path.First()) {
				continue
			}
			res := graph.ResolvePath(f.g, ref.Path, from)
			if res.State == graph.ResolutionUnresolved {
				continue
			}
			for _, v := range res.Visited {
				blocked[v] = true
			}
		}
	}
	return blocked
}

func (f *flattener) flattenable(m graph.NodeID) bool {
	parent, ok := f.g.SynParent(m)
	if !ok || !f.g.IsModule(parent) {
		return false
	}
	// an import binding the module by name has nothing to bind afterwards
	if len(f.g.Parents(m, graph.EdgeUse)) > 0 {
		return false
	}

	for _, child := range f.g.Children(m, graph.EdgeSyn) {
		if p, ok := f.g.Payload(child); ok {
			if file, isFile := p.(*graph.SourceFile); isFile && len(file.Attrs) > 0 {
				// inner file attributes have no home once the braces go
				return false
			}
		}
	}

	// relative navigation inside the subtree is written against the
	// module's position and would silently re-root
	for id := range f.g.EdgeBFS(m, graph.EdgeSyn) {
		it, ok := f.g.Item(id)
		if !ok || id == m {
			continue
		}
		for _, ref := range it.Refs {
			switch ref.Path.First() {
			case "self", "super", "crate":
				return false
			}
		}
	}

	moved := f.bindingNames(m, graph.InvalidNode)
	outer := f.bindingNames(parent, m)
	for name := range moved {
		if outer[name] {
			return false
		}
	}
	return true
}

// bindingNames collects every name a module's direct children bind, with
// one child optionally ignored.
func (f *flattener) bindingNames(module, skip graph.NodeID) map[string]bool {
	names := make(map[string]bool)
	for _, child := range f.g.Children(module, graph.EdgeSyn) {
		if child == skip {
			continue
		}
		it, ok := f.g.Item(child)
		if !ok {
			continue
		}
		switch it.Kind {
		case rust.KindImpl, rust.KindForeignMod:
		case rust.KindUse:
			if it.Use.IsSingle() {
				names[it.Use.VisibleName()] = true
			}
		default:
			if it.Name != "" {
				names[it.Name] = true
			}
		}
	}
	return names
}

// collapse moves the module's children into its parent at the module's
// declaration position and re-roots every import into the subtree.
func (f *flattener) collapse(m graph.NodeID) error {
	it, _ := f.g.Item(m)
	parent, ok := f.g.SynParent(m)
	if !ok {
		return errors.New(errors.ErrCodeInternal, "module %q has no parent", it.Label())
	}
	canon := canonicalNodePath(f.g, m)

	var moved []graph.NodeID
	for _, child := range f.g.Children(m, graph.EdgeSyn) {
		if _, isFile := mustPayload(f.g, child).(*graph.SourceFile); isFile {
			continue
		}
		moved = append(moved, child)
	}
	if err := f.g.SpliceChildren(parent, m, moved, graph.EdgeSyn); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "flattening module %q", it.Label())
	}
	f.g.RemoveNode(m)

	f.reroot(canon)
	return nil
}

// reroot drops one path segment from every import that descends through
// the collapsed module.
func (f *flattener) reroot(canon rust.Path) {
	for _, id := range f.g.NodeIDs() {
		it, ok := f.g.Item(id)
		if !ok || it.Kind != rust.KindUse || it.Use == nil {
			continue
		}
		full := it.Use.FullPath()
		if !hasPathPrefix(full, canon) || len(full) == len(canon) {
			continue
		}
		next := append(canon[:len(canon)-1].Clone(), full[len(canon):]...)
		tree := &rust.UseTree{
			Prefix: next[:len(next)-1].Clone(),
			Name:   next.Last(),
			Alias:  it.Use.Alias,
			Glob:   it.Use.Glob,
		}
		if tree.Glob {
			tree.Prefix = next.Clone()
			tree.Name = ""
		}
		it.Use = tree
		it.Src = useSrc(it.Attrs, it.Vis, tree)
	}
}

// validate re-resolves every required local import and confirms it still
// reaches the node its Use edge recorded.
func (f *flattener) validate() error {
	for _, id := range f.g.RequiredIDs() {
		it, ok := f.g.Item(id)
		if !ok || it.Kind != rust.KindUse || it.Use == nil {
			continue
		}
		targets := f.g.Children(id, graph.EdgeUse)
		if len(targets) == 0 || f.g.IsExternalPackage(targets[0]) {
			continue
		}
		from, ok := f.g.OwningModule(id)
		if !ok {
			continue
		}
		res := graph.ResolvePath(f.g, it.Use.FullPath(), from)
		if res.State != graph.ResolutionResolved || res.Target != targets[0] {
			return errors.New(errors.ErrCodeInternal, "flattening broke import %q", it.Label())
		}
	}
	return nil
}

func hasPathPrefix(p, prefix rust.Path) bool {
	if len(p) < len(prefix) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

func mustPayload(g *graph.Graph, id graph.NodeID) graph.Payload {
	p, _ := g.Payload(id)
	return p
}
