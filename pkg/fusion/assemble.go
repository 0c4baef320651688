package fusion

import (
	"regexp"
	"strings"

	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/graph"
	"github.com/cgfuse/cgfuse/pkg/rust"
)

// Assemble renders the required subgraph into one compilable source file.
// The binary crate's items sit at the root; every required library crate
// follows as a module named after it, so crate-rooted paths inside library
// code are re-rooted under the module. Containers are emitted before their
// contents and items inside a container are grouped by kind, keeping the
// original declaration order within each group; type declarations carry
// their impl blocks with them, trait impls ahead of inherent ones.
// Indentation is left to the formatter.
func Assemble(g *graph.Graph, bin graph.NodeID) (string, error) {
	if err := MinimizePaths(g, bin); err != nil {
		return "", err
	}
	a := &assembler{g: g}
	var b strings.Builder

	if file, ok := a.sourceFileOf(bin); ok {
		if file.Shebang != "" {
			b.WriteString(file.Shebang)
			b.WriteString("\n")
		}
		for _, attr := range file.Attrs {
			b.WriteString(attr)
			b.WriteString("\n")
		}
		if file.Shebang != "" || len(file.Attrs) > 0 {
			b.WriteString("\n")
		}
	}

	parts, err := a.classRange(bin, "", classUse, classMod)
	if err != nil {
		return "", err
	}
	libs, err := a.libraryMods()
	if err != nil {
		return "", err
	}
	parts = append(parts, libs...)
	tail, err := a.classRange(bin, "", classForeignMod, classExternCrate)
	if err != nil {
		return "", err
	}
	parts = append(parts, tail...)

	b.WriteString(strings.Join(parts, "\n\n"))
	b.WriteString("\n")
	return b.String(), nil
}

type assembler struct {
	g *graph.Graph
}

// Emission classes, in output order within a container.
const (
	classUse = iota
	classTypeAlias
	classConst
	classStatic
	classMacro
	classFn
	classTrait
	classEnum
	classStruct
	classUnion
	classImpl
	classMod
	classForeignMod
	classExternCrate
)

func classOf(kind rust.ItemKind) int {
	switch kind {
	case rust.KindUse:
		return classUse
	case rust.KindTypeAlias:
		return classTypeAlias
	case rust.KindConst:
		return classConst
	case rust.KindStatic:
		return classStatic
	case rust.KindMacro:
		return classMacro
	case rust.KindFn:
		return classFn
	case rust.KindTrait:
		return classTrait
	case rust.KindEnum:
		return classEnum
	case rust.KindStruct:
		return classStruct
	case rust.KindUnion:
		return classUnion
	case rust.KindImpl:
		return classImpl
	case rust.KindMod:
		return classMod
	case rust.KindForeignMod:
		return classForeignMod
	default:
		return classExternCrate
	}
}

// libraryMods renders every required library crate as a root-level module,
// in dependency discovery order.
func (a *assembler) libraryMods() ([]string, error) {
	var out []string
	for pkgID := range a.g.EdgeBFS(a.g.Root(), graph.EdgeDependency) {
		lib, ok := a.g.LibCrate(pkgID)
		if !ok || !a.g.IsRequired(lib) {
			continue
		}
		payload, _ := a.g.Payload(lib)
		crate, ok := payload.(*graph.LibraryCrate)
		if !ok {
			continue
		}

		var body []string
		if file, ok := a.sourceFileOf(lib); ok && len(file.Attrs) > 0 {
			body = append(body, strings.Join(file.Attrs, "\n"))
		}
		parts, err := a.classRange(lib, crate.Name, classUse, classExternCrate)
		if err != nil {
			return nil, err
		}
		body = append(body, parts...)
		out = append(out, "mod "+crate.Name+" {\n"+strings.Join(body, "\n\n")+"\n}")
	}
	return out, nil
}

// classRange renders a container's required children for the given class
// range. libName is the enclosing library crate's module name, "" inside
// the binary crate.
func (a *assembler) classRange(container graph.NodeID, libName string, first, last int) ([]string, error) {
	children := a.requiredChildren(container)
	attached := a.attachImpls(container, children)

	var out []string
	seenUse := make(map[string]bool)
	for class := first; class <= last; class++ {
		for _, id := range children {
			it, _ := a.g.Item(id)
			if classOf(it.Kind) != class {
				continue
			}
			switch class {
			case classUse:
				if seenUse[it.Src] {
					continue
				}
				seenUse[it.Src] = true
				out = append(out, it.Src)
			case classEnum, classStruct, classUnion:
				out = append(out, rewriteCrateRefs(it.Src, libName))
				for _, impl := range attached[id] {
					text, err := a.renderImpl(impl, libName)
					if err != nil {
						return nil, err
					}
					out = append(out, text)
				}
			case classImpl:
				if attachedElsewhere(attached, id) {
					continue
				}
				text, err := a.renderImpl(id, libName)
				if err != nil {
					return nil, err
				}
				out = append(out, text)
			case classMod:
				text, err := a.renderModule(id, it, libName)
				if err != nil {
					return nil, err
				}
				out = append(out, text)
			default:
				out = append(out, rewriteCrateRefs(it.Src, libName))
			}
		}
	}
	return out, nil
}

func (a *assembler) requiredChildren(container graph.NodeID) []graph.NodeID {
	var out []graph.NodeID
	for _, id := range a.g.Children(container, graph.EdgeSyn) {
		if !a.g.IsRequired(id) {
			continue
		}
		if _, ok := a.g.Item(id); !ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

// attachImpls maps each type declaration among the children to its
// required impl blocks from the same container, trait impls first, both
// groups in declaration order.
func (a *assembler) attachImpls(container graph.NodeID, children []graph.NodeID) map[graph.NodeID][]graph.NodeID {
	position := make(map[graph.NodeID]int, len(children))
	for i, id := range children {
		position[id] = i
	}

	attached := make(map[graph.NodeID][]graph.NodeID)
	for _, decl := range children {
		it, _ := a.g.Item(decl)
		if !it.Kind.IsTypeDecl() {
			continue
		}
		var traits, inherents []graph.NodeID
		for _, impl := range a.g.Children(decl, graph.EdgeImplementation) {
			if !a.g.IsRequired(impl) {
				continue
			}
			if _, sibling := position[impl]; !sibling {
				continue
			}
			iit, _ := a.g.Item(impl)
			if iit.Impl != nil && !iit.Impl.IsInherent() {
				traits = append(traits, impl)
			} else {
				inherents = append(inherents, impl)
			}
		}
		sortByPosition(traits, position)
		sortByPosition(inherents, position)
		attached[decl] = append(traits, inherents...)
	}
	return attached
}

func attachedElsewhere(attached map[graph.NodeID][]graph.NodeID, impl graph.NodeID) bool {
	for _, impls := range attached {
		for _, id := range impls {
			if id == impl {
				return true
			}
		}
	}
	return false
}

func sortByPosition(ids []graph.NodeID, position map[graph.NodeID]int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && position[ids[j]] < position[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// renderImpl emits an impl block, rebuilding it from its required members
// when the dialog excluded some.
func (a *assembler) renderImpl(id graph.NodeID, libName string) (string, error) {
	it, _ := a.g.Item(id)
	members := a.g.Children(id, graph.EdgeSyn)
	complete := true
	for _, member := range members {
		if !a.g.IsRequired(member) {
			complete = false
			break
		}
	}
	if complete {
		return rewriteCrateRefs(it.Src, libName), nil
	}

	header, ok := blockHeader(it.Src)
	if !ok {
		return "", errors.New(errors.ErrCodeInternal, "impl block %q has no body", it.Label())
	}
	parts := []string{rewriteCrateRefs(header, libName)}
	for _, member := range members {
		if !a.g.IsRequired(member) {
			continue
		}
		mit, ok := a.g.Item(member)
		if !ok {
			continue
		}
		parts = append(parts, rewriteCrateRefs(mit.Src, libName))
	}
	return strings.Join(parts, "\n") + "\n}", nil
}

// renderModule re-emits a module with braces, recursing over its required
// children. File modules lose their separate file; its inner attributes
// move inside the braces.
func (a *assembler) renderModule(id graph.NodeID, it *rust.Item, libName string) (string, error) {
	var body []string
	if file, ok := a.sourceFileOf(id); ok && len(file.Attrs) > 0 {
		body = append(body, strings.Join(file.Attrs, "\n"))
	}
	parts, err := a.classRange(id, libName, classUse, classExternCrate)
	if err != nil {
		return "", err
	}
	body = append(body, parts...)

	var header strings.Builder
	for _, attr := range it.Attrs {
		header.WriteString(attr)
		header.WriteString("\n")
	}
	if it.Vis.Src != "" {
		header.WriteString(it.Vis.Src)
		header.WriteString(" ")
	}
	header.WriteString("mod ")
	header.WriteString(it.Name)
	header.WriteString(" {\n")
	return header.String() + strings.Join(body, "\n\n") + "\n}", nil
}

func (a *assembler) sourceFileOf(container graph.NodeID) (*graph.SourceFile, bool) {
	for _, child := range a.g.Children(container, graph.EdgeSyn) {
		if p, ok := a.g.Payload(child); ok {
			if file, isFile := p.(*graph.SourceFile); isFile {
				return file, true
			}
		}
	}
	return nil, false
}

// blockHeader returns the opening of a braced block up to and including
// the first brace.
func blockHeader(src string) (string, bool) {
	idx := strings.Index(src, "{")
	if idx < 0 {
		return "", false
	}
	return src[:idx+1], true
}

// crateRefRe matches the crate path keyword outside of macro $crate
// metavariables.
var crateRefRe = regexp.MustCompile(`(^|[^$\w])crate::`)

// rewriteCrateRefs re-roots crate-keyword paths of library source under
// the library's fused module. Import statements never pass through here;
// their minimized paths already account for the fused layout.
func rewriteCrateRefs(src, libName string) string {
	if libName == "" || !strings.Contains(src, "crate::") {
		return src
	}
	return crateRefRe.ReplaceAllString(src, "${1}crate::"+libName+"::")
}
