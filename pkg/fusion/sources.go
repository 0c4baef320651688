package fusion

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cgfuse/cgfuse/pkg/cargo"
	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/graph"
	"github.com/cgfuse/cgfuse/pkg/rust"
)

// LoadSources parses the challenge sources into the graph: the entry binary
// crate of the challenge package and the library crate of every local
// package that has one. Module declarations are followed into their files,
// so afterwards the graph holds every item the fusion could possibly need.
// Test scaffolding (cfg(test) items, mod tests) never enters the graph.
//
// It returns the node of the entry binary crate.
func LoadSources(ctx context.Context, g *graph.Graph, ws *cargo.Workspace, opts *Options) (graph.NodeID, error) {
	l := &sourceLoader{g: g, parse: rust.ParseOptions{StripDocComments: !opts.KeepDocComments}}

	target, err := challengeBin(ws.Root, opts.BinName)
	if err != nil {
		return graph.InvalidNode, err
	}
	bin := g.AddNode(&graph.BinaryCrate{Name: crateName(target.Name)})
	if err := g.AddEdge(g.Root(), bin, graph.EdgeSyn); err != nil {
		return graph.InvalidNode, errors.Wrap(errors.ErrCodeInternal, err, "attach binary crate")
	}
	if err := l.loadFile(ctx, bin, target.SrcPath); err != nil {
		return graph.InvalidNode, err
	}

	// Library crates afterwards, the challenge package's own included: the
	// binary may import items through the package's lib just like through a
	// path dependency.
	type localPkg struct {
		id   graph.NodeID
		name string
	}
	var packages []localPkg
	for id := range g.EdgeBFS(g.Root(), graph.EdgeDependency) {
		if p, ok := g.Payload(id); ok {
			if lp, isLocal := p.(*graph.LocalPackage); isLocal {
				packages = append(packages, localPkg{id: id, name: lp.Name})
			}
		}
	}
	for _, entry := range packages {
		id := entry.id
		pkg, ok := ws.Package(entry.name)
		if !ok {
			return graph.InvalidNode, errors.New(errors.ErrCodeMetadata, "package %q missing from metadata", entry.name)
		}
		target, ok := pkg.LibTarget()
		if !ok {
			if id != g.Root() {
				opts.Logger.Warn("local package has no library target", "package", entry.name)
			}
			continue
		}
		lib := g.AddNode(&graph.LibraryCrate{Name: crateName(target.Name)})
		if err := g.AddEdge(id, lib, graph.EdgeSyn); err != nil {
			return graph.InvalidNode, errors.Wrap(errors.ErrCodeInternal, err, "attach library crate %s", target.Name)
		}
		if err := l.loadFile(ctx, lib, target.SrcPath); err != nil {
			return graph.InvalidNode, err
		}
	}

	return bin, nil
}

// challengeBin selects the entry binary target. Fused outputs of earlier
// runs live in src/bin/ as ordinary binaries and are never candidates.
func challengeBin(root *cargo.Package, want string) (cargo.Target, error) {
	var bins []cargo.Target
	for _, t := range root.Targets {
		if !t.IsBin() || strings.HasPrefix(t.Name, FusionPrefix) {
			continue
		}
		bins = append(bins, t)
	}
	if len(bins) == 0 {
		return cargo.Target{}, errors.New(errors.ErrCodeMetadata,
			"package %q has no binary target", root.Name)
	}

	// Bare "main" means the package's default binary, which cargo names
	// after the package.
	if want == "" || want == "main" {
		for _, t := range bins {
			if t.Name == root.Name {
				return t, nil
			}
		}
		if len(bins) == 1 {
			return bins[0], nil
		}
		return cargo.Target{}, errors.New(errors.ErrCodeMetadata,
			"package %q has several binaries (%s), select one with --bin",
			root.Name, targetNames(bins))
	}

	for _, t := range bins {
		if t.Name == want || crateName(t.Name) == crateName(want) {
			return t, nil
		}
	}
	return cargo.Target{}, errors.New(errors.ErrCodeMetadata,
		"binary %q not found in package %q (have: %s)", want, root.Name, targetNames(bins))
}

func targetNames(targets []cargo.Target) string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

// crateName folds a package or target name into its crate-name form.
func crateName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

type sourceLoader struct {
	g     *graph.Graph
	parse rust.ParseOptions
}

// loadFile parses one source file and hangs its items under owner, with a
// SourceFile node recording where they came from.
func (l *sourceLoader) loadFile(ctx context.Context, owner graph.NodeID, path string) error {
	file, err := rust.ParseFile(ctx, path, l.parse)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	sf := l.g.AddNode(&graph.SourceFile{Path: abs, Shebang: file.Shebang, Attrs: file.Attrs})
	if err := l.g.AddEdge(owner, sf, graph.EdgeSyn); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "attach source file %s", path)
	}

	dir := filepath.Dir(abs)
	for _, it := range file.Items {
		if err := l.addItem(ctx, owner, it, dir); err != nil {
			return err
		}
	}
	return nil
}

// addItem inserts one item and recurses into containers. dir is where child
// module files of the current scope are searched.
func (l *sourceLoader) addItem(ctx context.Context, parent graph.NodeID, it *rust.Item, dir string) error {
	if skipItem(it) {
		return nil
	}

	id := l.g.AddNode(&graph.SynItem{Item: it})
	if err := l.g.AddEdge(parent, id, graph.EdgeSyn); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "attach item %s", it.Label())
	}

	switch it.Kind {
	case rust.KindMod:
		if it.Inline {
			sub := filepath.Join(dir, it.Name)
			for _, child := range it.Items {
				if err := l.addItem(ctx, id, child, sub); err != nil {
					return err
				}
			}
			return nil
		}
		return l.loadModuleFile(ctx, id, it.Name, dir)
	case rust.KindImpl:
		for _, child := range it.Items {
			if skipItem(child) {
				continue
			}
			cid := l.g.AddNode(&graph.SynImplItem{Item: child})
			if err := l.g.AddEdge(id, cid, graph.EdgeSyn); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "attach impl item %s", child.Label())
			}
		}
	case rust.KindTrait:
		for _, child := range it.Items {
			if skipItem(child) {
				continue
			}
			cid := l.g.AddNode(&graph.SynTraitItem{Item: child})
			if err := l.g.AddEdge(id, cid, graph.EdgeSyn); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "attach trait item %s", child.Label())
			}
		}
	}
	return nil
}

// loadModuleFile locates the file of a mod declaration (name/mod.rs, then
// name.rs) and loads it under the mod node.
func (l *sourceLoader) loadModuleFile(ctx context.Context, modNode graph.NodeID, name, dir string) error {
	modDir := filepath.Join(dir, name)
	candidates := []string{
		filepath.Join(modDir, "mod.rs"),
		filepath.Join(dir, name+".rs"),
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			file, err := rust.ParseFile(ctx, path, l.parse)
			if err != nil {
				return err
			}
			sf := l.g.AddNode(&graph.SourceFile{Path: path, Shebang: file.Shebang, Attrs: file.Attrs})
			if err := l.g.AddEdge(modNode, sf, graph.EdgeSyn); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "attach source file %s", path)
			}
			for _, it := range file.Items {
				if err := l.addItem(ctx, modNode, it, modDir); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return errors.New(errors.ErrCodeFileNotFound,
		"module %q has no file: searched %s and %s", name, candidates[0], candidates[1])
}

// skipItem drops test scaffolding before it enters the graph.
func skipItem(it *rust.Item) bool {
	if it.CfgTest {
		return true
	}
	return it.Kind == rust.KindMod && it.Name == "tests"
}
