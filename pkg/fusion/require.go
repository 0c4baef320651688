package fusion

import (
	"context"
	"sort"
	"strings"

	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/graph"
	"github.com/cgfuse/cgfuse/pkg/observability"
	"github.com/cgfuse/cgfuse/pkg/rust"
)

// MarkRequirements computes the set of nodes the fused output must keep.
// The challenge binary crate is kept whole; from there a worklist follows
// imports, resolved references, self-method calls and implementation
// links into the library crates. Items of required inherent impl blocks
// that nothing references are handed to the oracle, and propagation
// re-runs after every accepted item until nothing is undecided.
func MarkRequirements(ctx context.Context, st *State, oracle Oracle, opts *Options) ([]Decision, error) {
	p := &propagator{
		g:           st.Graph,
		resolver:    st.Resolver,
		opts:        opts,
		decided:     make(map[graph.NodeID]bool),
		blockChoice: make(map[graph.NodeID]Choice),
	}

	for id := range p.g.EdgeBFS(st.BinCrate, graph.EdgeSyn) {
		p.mark(id)
	}
	if err := p.run(); err != nil {
		return nil, err
	}

	var decisions []Decision
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands := p.undecided()
		if len(cands) == 0 {
			break
		}
		for _, c := range cands {
			if p.decided[c.ID] {
				// settled by a block-wide choice earlier in this round
				continue
			}
			ds, err := p.decide(ctx, c, oracle)
			if err != nil {
				return nil, err
			}
			decisions = append(decisions, ds...)
		}
		if err := p.run(); err != nil {
			return nil, err
		}
	}
	return decisions, nil
}

type propagator struct {
	g        *graph.Graph
	resolver *graph.Resolver
	opts     *Options
	queue    []graph.NodeID

	// decided holds candidates settled either way, so excluded items are
	// not offered again.
	decided map[graph.NodeID]bool
	// blockChoice remembers block-wide dialog answers and applies them to
	// candidates the block grows later.
	blockChoice map[graph.NodeID]Choice
}

// mark puts a node into the required set and queues it for processing.
// Only crates and items are markable; package and file nodes pass through
// resolution walks but carry no source.
func (p *propagator) mark(id graph.NodeID) {
	if !p.g.Contains(id) || p.g.IsRequired(id) {
		return
	}
	payload, ok := p.g.Payload(id)
	if !ok {
		return
	}
	switch payload.(type) {
	case *graph.BinaryCrate, *graph.LibraryCrate, *graph.SynItem, *graph.SynImplItem, *graph.SynTraitItem:
	default:
		return
	}
	if err := p.g.MarkRequired(id); err != nil {
		return
	}
	p.queue = append(p.queue, id)
}

func (p *propagator) run() error {
	for len(p.queue) > 0 {
		id := p.queue[0]
		p.queue = p.queue[1:]
		if err := p.process(id); err != nil {
			return err
		}
	}
	return nil
}

func (p *propagator) process(id graph.NodeID) error {
	// a kept node needs its whole container chain
	if parent, ok := p.g.SynParent(id); ok {
		p.mark(parent)
	}
	if p.g.IsModule(id) {
		p.pinFixtures(id)
	}

	it, ok := p.g.Item(id)
	if !ok {
		return nil
	}

	switch it.Kind {
	case rust.KindUse:
		for _, target := range p.g.Children(id, graph.EdgeUse) {
			p.mark(target)
		}
	case rust.KindTrait:
		// a trait declaration is emitted with all its members
		for _, member := range p.g.Children(id, graph.EdgeSyn) {
			p.mark(member)
		}
	case rust.KindImpl:
		for _, decl := range p.g.Parents(id, graph.EdgeImplementation) {
			p.mark(decl)
		}
		if it.Impl != nil && !it.Impl.IsInherent() {
			// trait impls are all-or-nothing
			for _, member := range p.g.Children(id, graph.EdgeSyn) {
				p.mark(member)
			}
		}
	}

	if it.Kind.IsTypeDecl() {
		// keeping a type keeps its trait impls; inherent blocks wait for
		// references or the dialog
		for _, block := range p.g.Children(id, graph.EdgeImplementation) {
			if bit, ok := p.g.Item(block); ok && bit.Impl != nil && !bit.Impl.IsInherent() {
				p.mark(block)
			}
		}
	}

	from, ok := p.g.OwningModule(id)
	if !ok {
		return nil
	}
	for _, ref := range it.Refs {
		if ref.SelfMethod != "" {
			p.markSelfMethod(id, ref.SelfMethod)
			continue
		}
		p.markPath(ref.Path, from)
	}
	return nil
}

// markPath resolves one reference and keeps everything the walk stepped
// through, so pierced imports and entered modules survive with the target.
// References that do not resolve are ignored: the collector reports plenty
// of names that are locals, generics or macros from the prelude.
func (p *propagator) markPath(path rust.Path, from graph.NodeID) {
	if path.IsEmpty() || rust.IsStdCrate(path.First()) {
		return
	}
	res := p.resolver.Resolve(path, from)
	if res.State == graph.ResolutionUnresolved {
		return
	}
	for _, v := range res.Visited {
		p.mark(v)
	}
	if res.State == graph.ResolutionResolved {
		p.mark(res.Target)
	}
}

// markSelfMethod keeps the sibling impl items a self.method() call names:
// same-named members of every impl block attached to the self type of the
// calling item's block.
func (p *propagator) markSelfMethod(id graph.NodeID, name string) {
	block, ok := p.enclosingImpl(id)
	if !ok {
		return
	}
	for _, decl := range p.g.Parents(block, graph.EdgeImplementation) {
		dit, ok := p.g.Item(decl)
		if !ok || !dit.Kind.IsTypeDecl() {
			continue
		}
		for _, sibling := range p.g.Children(decl, graph.EdgeImplementation) {
			for _, member := range p.g.Children(sibling, graph.EdgeSyn) {
				if mit, ok := p.g.Item(member); ok && mit.Name == name {
					p.mark(member)
				}
			}
		}
	}
}

func (p *propagator) enclosingImpl(id graph.NodeID) (graph.NodeID, bool) {
	cur := id
	for {
		parent, ok := p.g.SynParent(cur)
		if !ok {
			return graph.InvalidNode, false
		}
		if it, ok := p.g.Item(parent); ok && it.Kind == rust.KindImpl {
			return parent, true
		}
		cur = parent
	}
}

// pinFixtures keeps the children of a required module that no resolution
// walk can reach: surviving glob and verbatim imports, toolchain imports,
// foreign mods and extern crate declarations.
func (p *propagator) pinFixtures(module graph.NodeID) {
	for _, child := range p.g.Children(module, graph.EdgeSyn) {
		it, ok := p.g.Item(child)
		if !ok {
			continue
		}
		switch it.Kind {
		case rust.KindForeignMod, rust.KindExternCrate:
			p.mark(child)
		case rust.KindUse:
			pinned := it.Use == nil ||
				it.Use.Glob ||
				rust.IsStdCrate(it.Use.FullPath().First()) ||
				len(p.g.Children(child, graph.EdgeUse)) == 0
			if pinned {
				p.mark(child)
			}
		}
	}
}

// undecided collects the impl items of required inherent blocks that are
// neither required nor settled, sorted by qualified name for a stable
// dialog order.
func (p *propagator) undecided() []Candidate {
	var out []Candidate
	for _, block := range p.g.RequiredIDs() {
		bit, ok := p.g.Item(block)
		if !ok || bit.Kind != rust.KindImpl || bit.Impl == nil || !bit.Impl.IsInherent() {
			continue
		}
		for _, member := range p.g.Children(block, graph.EdgeSyn) {
			if p.g.IsRequired(member) || p.decided[member] {
				continue
			}
			mit, ok := p.g.Item(member)
			if !ok || mit.Name == "" {
				continue
			}
			out = append(out, Candidate{
				ID:         member,
				Block:      block,
				Name:       qualifiedName(bit, mit),
				BlockLabel: bit.Label(),
				Src:        mit.Src,
				Usages:     p.usages(mit.Name, member),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func qualifiedName(block, member *rust.Item) string {
	return block.Impl.SelfType.Last() + "::" + member.Name
}

// usages returns up to a handful of required source lines mentioning the
// bare item name. Containers are skipped; their text repeats the members.
func (p *propagator) usages(name string, self graph.NodeID) []string {
	const maxUsages = 5
	var out []string
	for _, id := range p.g.RequiredIDs() {
		if id == self {
			continue
		}
		it, ok := p.g.Item(id)
		if !ok || it.Kind.IsContainer() || !strings.Contains(it.Src, name) {
			continue
		}
		for _, line := range strings.Split(it.Src, "\n") {
			if strings.Contains(line, name) {
				out = append(out, strings.TrimSpace(line))
				if len(out) >= maxUsages {
					return out
				}
			}
		}
	}
	return out
}

// decide settles one candidate: blanket flag first, then the config file,
// then a remembered block-wide answer, then the oracle.
func (p *propagator) decide(ctx context.Context, c Candidate, oracle Oracle) ([]Decision, error) {
	if p.opts.ProcessAllImplItems {
		return p.settle(ctx, c, true, DecisionFromFlag), nil
	}
	if cfg := p.opts.Config; cfg != nil {
		if cfg.IncludesImplItem(c.Name) {
			return p.settle(ctx, c, true, DecisionFromConfig), nil
		}
		if cfg.ExcludesImplItem(c.Name) {
			return p.settle(ctx, c, false, DecisionFromConfig), nil
		}
	}
	if choice, ok := p.blockChoice[c.Block]; ok {
		return p.settle(ctx, c, choice == ChoiceIncludeBlock, DecisionFromDialog), nil
	}
	if oracle == nil {
		return nil, errors.New(errors.ErrCodeDialogCanceled,
			"impl item %s needs a decision and no dialog is available; pass --process-all-impl-items or record it in %s",
			c.Name, DefaultConfigName)
	}

	choice, err := oracle.Decide(ctx, c)
	if err != nil {
		return nil, err
	}
	switch choice {
	case ChoiceIncludeBlock, ChoiceExcludeBlock:
		p.blockChoice[c.Block] = choice
		return p.settleBlock(ctx, c.Block, choice == ChoiceIncludeBlock), nil
	case ChoiceExclude:
		return p.settle(ctx, c, false, DecisionFromDialog), nil
	default:
		return p.settle(ctx, c, true, DecisionFromDialog), nil
	}
}

func (p *propagator) settle(ctx context.Context, c Candidate, include bool, origin DecisionOrigin) []Decision {
	p.decided[c.ID] = true
	if include {
		p.mark(c.ID)
	}
	if origin == DecisionFromDialog {
		observability.Phases().OnDialogDecision(ctx, c.Name, include)
	}
	p.opts.Logger.Debug("impl item settled", "item", c.Name, "include", include)
	return []Decision{{Item: c.Name, Include: include, Origin: origin}}
}

// settleBlock applies a block-wide answer to every currently undecided
// member of the block.
func (p *propagator) settleBlock(ctx context.Context, block graph.NodeID, include bool) []Decision {
	bit, ok := p.g.Item(block)
	if !ok || bit.Impl == nil {
		return nil
	}
	var out []Decision
	for _, member := range p.g.Children(block, graph.EdgeSyn) {
		if p.g.IsRequired(member) || p.decided[member] {
			continue
		}
		mit, ok := p.g.Item(member)
		if !ok || mit.Name == "" {
			continue
		}
		c := Candidate{ID: member, Block: block, Name: qualifiedName(bit, mit)}
		out = append(out, p.settle(ctx, c, include, DecisionFromDialog)...)
	}
	return out
}
