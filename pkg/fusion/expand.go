package fusion

import (
	"slices"
	"strings"

	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/graph"
	"github.com/cgfuse/cgfuse/pkg/rust"
)

// ExpandUses rewrites every use declaration in the graph into canonical
// form: brace groups are split into single imports, globs over local
// modules are replaced by one named import per visible binding, and each
// remaining import is re-rooted at its target's crate so the statement
// resolves from anywhere. Each canonicalized statement gets a Use edge to
// the node it imports, which is what lets later path walks pierce through
// re-exports.
//
// Imports of toolchain crates (std, core, alloc) have no node to point at
// and keep their text. Statements whose target cannot exist in the graph
// are kept verbatim with a warning. Statements that only fail because some
// other import has not been canonicalized yet are retried; a statement
// still failing after Options.GlobExpansionMaxAttempts rounds aborts the
// phase.
func ExpandUses(g *graph.Graph, opts *Options) error {
	x := &expander{
		g:        g,
		opts:     opts,
		attempts: make(map[graph.NodeID]int),
		final:    make(map[graph.NodeID]bool),
	}
	x.seed()

	for len(x.queue) > 0 {
		id := x.queue[0]
		x.queue = x.queue[1:]
		if !g.Contains(id) {
			continue
		}
		if err := x.process(id); err != nil {
			return err
		}
	}
	return x.verify()
}

type expander struct {
	g     *graph.Graph
	opts  *Options
	queue []graph.NodeID

	// attempts counts how often a statement was requeued while waiting
	// for another import to settle.
	attempts map[graph.NodeID]int
	// final marks statements whose text will not change again: canonical
	// rewrites, toolchain imports, external survivors and statements kept
	// verbatim.
	final map[graph.NodeID]bool
}

// seed queues every use declaration of every crate, crate by crate in
// dependency order.
func (x *expander) seed() {
	for pkgID := range x.g.EdgeBFS(x.g.Root(), graph.EdgeDependency) {
		for _, crateID := range x.g.Children(pkgID, graph.EdgeSyn) {
			for id := range x.g.EdgeBFS(crateID, graph.EdgeSyn) {
				if it, ok := x.g.Item(id); ok && it.Kind == rust.KindUse {
					x.queue = append(x.queue, id)
				}
			}
		}
	}
}

func (x *expander) process(id graph.NodeID) error {
	it, ok := x.g.Item(id)
	if !ok || it.Kind != rust.KindUse || x.final[id] {
		return nil
	}
	if it.Use == nil {
		x.keepVerbatim(id, it, "statement has no recognizable shape")
		return nil
	}
	if it.Use.IsGroup() {
		return x.split(id, it)
	}

	tree := it.Use
	// `use a::b::{self}` arrives from a split as a trailing-self entry;
	// it imports the module a::b itself.
	if tree.Name == "self" && len(tree.Prefix) > 0 {
		tree = &rust.UseTree{
			Prefix: tree.Prefix[:len(tree.Prefix)-1].Clone(),
			Name:   tree.Prefix.Last(),
			Alias:  tree.Alias,
		}
		x.rewrite(it, tree)
	}

	if rust.IsStdCrate(tree.FullPath().First()) {
		x.final[id] = true
		return nil
	}
	if tree.Glob {
		return x.glob(id, it, tree)
	}
	return x.single(id, it, tree)
}

// split replaces a brace-group declaration with one node per entry, in
// declaration position, and queues the new nodes.
func (x *expander) split(id graph.NodeID, it *rust.Item) error {
	parent, ok := x.g.SynParent(id)
	if !ok {
		return errors.New(errors.ErrCodeInternal, "use statement %q has no parent", it.Label())
	}
	subs := it.Use.Split()
	repl := make([]graph.NodeID, 0, len(subs))
	for _, sub := range subs {
		child := &rust.Item{
			Kind:  rust.KindUse,
			Vis:   it.Vis,
			Attrs: slices.Clone(it.Attrs),
			Use:   sub,
		}
		child.Src = useSrc(child.Attrs, child.Vis, sub)
		repl = append(repl, x.g.AddNode(&graph.SynItem{Item: child}))
	}
	if err := x.g.SpliceChildren(parent, id, repl, graph.EdgeSyn); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "splitting use group %q", it.Label())
	}
	x.g.RemoveNode(id)
	x.queue = append(x.queue, repl...)
	return nil
}

// single canonicalizes a plain import and links it to its target.
func (x *expander) single(id graph.NodeID, it *rust.Item, tree *rust.UseTree) error {
	from, ok := x.g.OwningModule(id)
	if !ok {
		return errors.New(errors.ErrCodeInternal, "use statement %q is outside any module", it.Label())
	}

	res := graph.ResolvePath(x.g, tree.FullPath(), from)
	switch res.State {
	case graph.ResolutionResolved:
		canon := canonicalNodePath(x.g, res.Target)
		if canon.IsEmpty() {
			return errors.New(errors.ErrCodeInternal, "resolved import %q has no canonical path", it.Label())
		}
		x.rewriteSingle(it, canon, tree.VisibleName())
		if err := x.link(id, res.Target, it); err != nil {
			return err
		}
		x.final[id] = true
		return nil

	case graph.ResolutionExternal:
		canon := x.externalPath(res)
		x.rewriteSingle(it, canon, tree.VisibleName())
		if err := x.link(id, res.Target, it); err != nil {
			return err
		}
		x.final[id] = true
		return nil

	default:
		return x.blocked(id, it, tree, res, from)
	}
}

// glob resolves the glob's module prefix and expands it. Globs over enums
// and external crates cannot be enumerated and survive with their edge.
func (x *expander) glob(id graph.NodeID, it *rust.Item, tree *rust.UseTree) error {
	from, ok := x.g.OwningModule(id)
	if !ok {
		return errors.New(errors.ErrCodeInternal, "use statement %q is outside any module", it.Label())
	}

	res := graph.ResolvePath(x.g, tree.Prefix, from)
	switch res.State {
	case graph.ResolutionExternal:
		x.rewrite(it, &rust.UseTree{Prefix: x.externalPath(res), Glob: true})
		if err := x.link(id, res.Target, it); err != nil {
			return err
		}
		x.final[id] = true
		return nil

	case graph.ResolutionUnresolved:
		return x.blocked(id, it, tree, res, from)
	}

	target := res.Target
	if !x.g.IsModule(target) {
		// a glob over an enum imports its variants; those are not items,
		// so the statement survives pointing at the enum
		canon := canonicalNodePath(x.g, target)
		x.rewrite(it, &rust.UseTree{Prefix: canon, Glob: true})
		if err := x.link(id, target, it); err != nil {
			return err
		}
		x.final[id] = true
		return nil
	}

	// bindings spawned by the target's own globs are not visible yet
	if x.hasOpenUse(target, id) {
		return x.requeue(id, it, from)
	}
	return x.expandGlob(id, it, target, from)
}

// expandGlob replaces a glob over a local module with one named import per
// binding of that module that is visible at the importing module and not
// already bound there. Explicit bindings shadow glob imports.
func (x *expander) expandGlob(id graph.NodeID, it *rust.Item, target, from graph.NodeID) error {
	parent, ok := x.g.SynParent(id)
	if !ok {
		return errors.New(errors.ErrCodeInternal, "use statement %q has no parent", it.Label())
	}
	targetPath := canonicalNodePath(x.g, target)
	if targetPath.IsEmpty() {
		return errors.New(errors.ErrCodeInternal, "glob target of %q has no canonical path", it.Label())
	}

	var repl []graph.NodeID
	for _, childID := range x.g.Children(target, graph.EdgeSyn) {
		cit, ok := x.g.Item(childID)
		if !ok {
			continue
		}
		var name string
		switch cit.Kind {
		case rust.KindUse:
			if !cit.Use.IsSingle() {
				continue
			}
			name = cit.Use.VisibleName()
		case rust.KindImpl, rust.KindForeignMod:
			continue
		default:
			name = cit.Name
		}
		if name == "" || !x.g.Visible(childID, from) {
			continue
		}
		if direct, useItem := x.g.LookupName(from, name); direct != graph.InvalidNode || useItem != graph.InvalidNode {
			continue
		}
		sub := &rust.UseTree{Prefix: targetPath.Clone(), Name: name}
		child := &rust.Item{
			Kind:  rust.KindUse,
			Vis:   it.Vis,
			Attrs: slices.Clone(it.Attrs),
			Use:   sub,
		}
		child.Src = useSrc(child.Attrs, child.Vis, sub)
		repl = append(repl, x.g.AddNode(&graph.SynItem{Item: child}))
	}

	if err := x.g.SpliceChildren(parent, id, repl, graph.EdgeSyn); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "expanding glob %q", it.Label())
	}
	x.g.RemoveNode(id)
	x.queue = append(x.queue, repl...)
	x.opts.Logger.Debug("expanded glob import", "stmt", it.Label(), "bindings", len(repl))
	return nil
}

// blocked classifies an unresolved statement. A walk that died inside a
// pierce, or inside a module that may still grow bindings, is retried; a
// walk that pierced into a settled toolchain import is finished textually;
// everything else will never resolve and is kept as written.
func (x *expander) blocked(id graph.NodeID, it *rust.Item, tree *rust.UseTree, res graph.Resolution, from graph.NodeID) error {
	if block, ok := x.blockingUseItem(res); ok {
		bit, bok := x.g.Item(block)
		if !bok {
			return x.requeue(id, it, from)
		}
		if !x.final[block] {
			return x.requeue(id, it, from)
		}
		if bit.Use != nil && rust.IsStdCrate(bit.Use.FullPath().First()) {
			// the binding renames a toolchain item; splice the paths
			rest := res.Rest
			if len(rest) > 0 {
				rest = rest[1:]
			}
			canon := bit.Use.FullPath().Join(rest...)
			if tree.Glob {
				x.rewrite(it, &rust.UseTree{Prefix: canon, Glob: true})
			} else {
				x.rewriteSingle(it, canon, tree.VisibleName())
			}
			x.final[id] = true
			return nil
		}
		// the binding itself never resolved; this import cannot either
		x.keepVerbatim(id, it, "imports through an unresolvable re-export")
		return nil
	}

	if x.hasOpenUse(x.failedAt(res, from), graph.InvalidNode) {
		return x.requeue(id, it, from)
	}
	x.keepVerbatim(id, it, "target not found")
	return nil
}

// blockingUseItem reports the use binding a failed walk got stuck on. The
// walk appends the binding as its last visited node exactly when piercing
// it failed.
func (x *expander) blockingUseItem(res graph.Resolution) (graph.NodeID, bool) {
	if len(res.Visited) == 0 {
		return graph.InvalidNode, false
	}
	last := res.Visited[len(res.Visited)-1]
	if it, ok := x.g.Item(last); ok && it.Kind == rust.KindUse {
		return last, true
	}
	return graph.InvalidNode, false
}

// failedAt returns the module the walk was searching when it failed: the
// deepest module it stepped into, or the starting module.
func (x *expander) failedAt(res graph.Resolution, from graph.NodeID) graph.NodeID {
	for i := len(res.Visited) - 1; i >= 0; i-- {
		if x.g.IsModule(res.Visited[i]) {
			return res.Visited[i]
		}
	}
	return from
}

// hasOpenUse reports whether a module still contains an unsettled glob or
// group declaration, meaning its namespace may still grow bindings.
func (x *expander) hasOpenUse(module graph.NodeID, skip graph.NodeID) bool {
	for _, childID := range x.g.Children(module, graph.EdgeSyn) {
		if childID == skip || x.final[childID] {
			continue
		}
		it, ok := x.g.Item(childID)
		if !ok || it.Kind != rust.KindUse {
			continue
		}
		if it.Use == nil || it.Use.Glob || it.Use.IsGroup() {
			return true
		}
	}
	return false
}

func (x *expander) requeue(id graph.NodeID, it *rust.Item, from graph.NodeID) error {
	x.attempts[id]++
	if x.attempts[id] > x.opts.GlobExpansionMaxAttempts {
		return errors.New(errors.ErrCodeMaxAttempts,
			"gave up expanding %q in %s after %d attempts",
			it.Label(), x.g.ModulePath(from), x.opts.GlobExpansionMaxAttempts)
	}
	x.queue = append(x.queue, id)
	return nil
}

func (x *expander) keepVerbatim(id graph.NodeID, it *rust.Item, reason string) {
	x.opts.Logger.Warn("use statement kept verbatim", "stmt", it.Label(), "reason", reason)
	x.final[id] = true
}

// link records the import's target, once. Running expansion over an
// already canonical graph finds the edge in place and leaves it alone.
func (x *expander) link(id, target graph.NodeID, it *rust.Item) error {
	if x.g.HasEdge(id, target, graph.EdgeUse) {
		return nil
	}
	if err := x.g.AddEdge(id, target, graph.EdgeUse); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "linking import %q", it.Label())
	}
	return nil
}

// canonicalNodePath returns the path under which a local node is
// importable from anywhere: crate-name-rooted for library items,
// crate-keyword-rooted for items of the binary crate, which no other
// crate can name.
func canonicalNodePath(g *graph.Graph, target graph.NodeID) rust.Path {
	mp := g.ModulePath(target)
	if mp.IsEmpty() {
		return nil
	}
	root, ok := g.CrateRoot(target)
	if !ok {
		return nil
	}
	if p, ok := g.Payload(root); ok {
		if _, isBin := p.(*graph.BinaryCrate); isBin {
			return append(rust.Path{"crate"}, mp[1:]...)
		}
	}
	return mp
}

// externalPath rebuilds the full path of an import that left the graph
// through an external package. When the walk pierced a use binding on the
// way out, that binding is already canonical and its path is the base;
// otherwise the walk entered the dependency by its crate name.
func (x *expander) externalPath(res graph.Resolution) rust.Path {
	for i := len(res.Visited) - 1; i >= 0; i-- {
		if it, ok := x.g.Item(res.Visited[i]); ok && it.Kind == rust.KindUse {
			return it.Use.FullPath().Join(res.Rest...)
		}
	}
	name := ""
	if p, ok := x.g.Payload(res.Target); ok {
		switch v := p.(type) {
		case *graph.ExternalSupportedPackage:
			name = v.Name
		case *graph.ExternalUnsupportedPackage:
			name = v.Name
		}
	}
	return rust.Path{graph.CrateName(name)}.Join(res.Rest...)
}

// rewriteSingle points a single import at a canonical path, keeping the
// name it binds: when the last path segment differs from the old visible
// name, the old name becomes an alias.
func (x *expander) rewriteSingle(it *rust.Item, canon rust.Path, visible string) {
	tree := &rust.UseTree{
		Prefix: canon[:len(canon)-1].Clone(),
		Name:   canon.Last(),
	}
	if visible != "" && visible != tree.VisibleName() {
		tree.Alias = visible
	}
	x.rewrite(it, tree)
}

func (x *expander) rewrite(it *rust.Item, tree *rust.UseTree) {
	it.Use = tree
	it.Src = useSrc(it.Attrs, it.Vis, tree)
}

func useSrc(attrs []string, vis rust.Visibility, tree *rust.UseTree) string {
	stmt := rust.RenderUseItem(vis, tree)
	if len(attrs) == 0 {
		return stmt
	}
	return strings.Join(attrs, "\n") + "\n" + stmt
}

// verify asserts the phase invariants: no group survives, and no Use edge
// points at another use statement.
func (x *expander) verify() error {
	for _, id := range x.g.NodeIDs() {
		it, ok := x.g.Item(id)
		if !ok || it.Kind != rust.KindUse {
			continue
		}
		if it.Use.IsGroup() {
			return errors.New(errors.ErrCodeInternal, "use group %q survived expansion", it.Label())
		}
		for _, targetID := range x.g.Children(id, graph.EdgeUse) {
			if tit, ok := x.g.Item(targetID); ok && tit.Kind == rust.KindUse {
				return errors.New(errors.ErrCodeInternal, "import %q links to another use statement", it.Label())
			}
		}
	}
	return nil
}
