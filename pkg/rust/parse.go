package rust

import (
	"context"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	tsrust "github.com/smacker/go-tree-sitter/rust"

	"github.com/cgfuse/cgfuse/pkg/errors"
)

// File is a fully parsed source file.
type File struct {
	Path    string
	Shebang string   // leading #! line, "" if absent
	Attrs   []string // inner attribute texts (#![...])
	Items   []*Item
}

// ParseOptions controls parsing behavior.
type ParseOptions struct {
	// StripDocComments drops /// and #[doc] forms from the captured item
	// sources. Inner file docs (//!) are never carried into the structural
	// form; the fused output gets its own header instead.
	StripDocComments bool
}

// ParseFile reads and parses the source file at path.
func ParseFile(ctx context.Context, path string, opts ParseOptions) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "source file not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read %s", path)
	}
	return ParseSource(ctx, src, path, opts)
}

// ParseSource parses raw source bytes. The path is used for error reporting
// and recorded on the returned File.
func ParseSource(ctx context.Context, src []byte, path string, opts ParseOptions) (*File, error) {
	if !utf8.Valid(src) {
		return nil, errors.New(errors.ErrCodeParse, "%s: not valid UTF-8", path)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tsrust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse %s", path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, errors.New(errors.ErrCodeParse, "%s: parser returned no tree", path)
	}
	if root.HasError() {
		line, col := firstErrorPosition(root)
		return nil, errors.New(errors.ErrCodeParse, "%s:%d:%d: syntax not understood", path, line, col)
	}

	p := &fileParser{src: src, opts: opts}
	file := &File{Path: path}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "shebang":
			file.Shebang = child.Content(src)
		case "inner_attribute_item":
			text := child.Content(src)
			if opts.StripDocComments && isDocAttr(text) {
				continue
			}
			file.Attrs = append(file.Attrs, text)
		default:
			p.consume(child, &file.Items)
		}
	}
	p.flush()

	return file, nil
}

// firstErrorPosition locates the first ERROR or MISSING node for reporting.
func firstErrorPosition(root *sitter.Node) (line, col int) {
	var walk func(n *sitter.Node) *sitter.Node
	walk = func(n *sitter.Node) *sitter.Node {
		if n.Type() == "ERROR" || n.IsMissing() {
			return n
		}
		if !n.HasError() {
			return nil
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child == nil {
				continue
			}
			if found := walk(child); found != nil {
				return found
			}
		}
		return n
	}

	if n := walk(root); n != nil {
		return int(n.StartPoint().Row) + 1, int(n.StartPoint().Column) + 1
	}
	return 1, 1
}

// fileParser accumulates outer attributes and doc comments between items.
type fileParser struct {
	src  []byte
	opts ParseOptions

	pendingAttrs []string // outer attribute texts waiting for their item
	pendingDocs  []string // outer doc comment lines waiting for their item
	pendingCfg   bool     // pending attrs include #[cfg(test)]
}

// consume processes one named child of a file or container body.
func (p *fileParser) consume(n *sitter.Node, out *[]*Item) {
	switch n.Type() {
	case "attribute_item":
		text := n.Content(p.src)
		if cfgTestRe.MatchString(text) {
			p.pendingCfg = true
		}
		if p.opts.StripDocComments && isDocAttr(text) {
			return
		}
		p.pendingAttrs = append(p.pendingAttrs, text)
	case "line_comment", "block_comment":
		text := n.Content(p.src)
		if isOuterDoc(text) && !p.opts.StripDocComments {
			p.pendingDocs = append(p.pendingDocs, text)
		}
		// Inner docs (//!) belong to the container; plain comments are
		// dropped from the structural form either way.
	case "empty_statement":
		// stray semicolon
	case "macro_invocation", "expression_statement":
		// Unnamed module-level macro invocations carry no name to resolve
		// against and are dropped, matching how test scaffolding macros are
		// treated.
		p.flush()
	default:
		if item := p.buildItem(n); item != nil {
			*out = append(*out, item)
		}
		p.flush()
	}
}

// flush discards pending attributes, e.g. after a skipped node.
func (p *fileParser) flush() {
	p.pendingAttrs = nil
	p.pendingDocs = nil
	p.pendingCfg = false
}

// buildItem turns a tree-sitter item node into an Item, or nil for node
// types that have no structural meaning.
func (p *fileParser) buildItem(n *sitter.Node) *Item {
	var kind ItemKind
	switch n.Type() {
	case "use_declaration":
		kind = KindUse
	case "mod_item":
		kind = KindMod
	case "function_item", "function_signature_item":
		kind = KindFn
	case "struct_item":
		kind = KindStruct
	case "enum_item":
		kind = KindEnum
	case "union_item":
		kind = KindUnion
	case "trait_item":
		kind = KindTrait
	case "impl_item":
		kind = KindImpl
	case "const_item":
		kind = KindConst
	case "static_item":
		kind = KindStatic
	case "type_item", "associated_type":
		kind = KindTypeAlias
	case "macro_definition":
		kind = KindMacro
	case "foreign_mod_item":
		kind = KindForeignMod
	case "extern_crate_declaration":
		kind = KindExternCrate
	default:
		return nil
	}

	item := &Item{
		Kind:    kind,
		Span:    Span{Start: n.StartByte(), End: n.EndByte()},
		Attrs:   p.pendingAttrs,
		CfgTest: p.pendingCfg,
		Src:     p.itemSource(n),
	}

	if name := n.ChildByFieldName("name"); name != nil {
		item.Name = name.Content(p.src)
	}
	if vis := childOfType(n, "visibility_modifier"); vis != nil {
		item.Vis = ParseVisibility(vis.Content(p.src))
	}

	switch kind {
	case KindUse:
		item.Use = p.parseUseClause(useArgument(n))
	case KindImpl:
		item.Impl = p.parseImplHeader(n)
		p.buildChildren(n, item)
	case KindTrait:
		p.buildChildren(n, item)
		if bounds := n.ChildByFieldName("bounds"); bounds != nil {
			item.Refs = collectRefs(bounds, p.src)
		}
	case KindMod:
		if body := n.ChildByFieldName("body"); body != nil {
			item.Inline = true
			p.buildChildren(n, item)
		}
	default:
		item.Refs = collectRefs(n, p.src)
	}

	return item
}

// buildChildren parses the declaration list of a container item.
func (p *fileParser) buildChildren(n *sitter.Node, item *Item) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}

	// Container children get their own attribute accumulation scope.
	saved := fileParser{pendingAttrs: p.pendingAttrs, pendingDocs: p.pendingDocs, pendingCfg: p.pendingCfg}
	p.flush()
	for i := 0; i < int(body.NamedChildCount()); i++ {
		p.consume(body.NamedChild(i), &item.Items)
	}
	p.flush()
	p.pendingAttrs, p.pendingDocs, p.pendingCfg = saved.pendingAttrs, saved.pendingDocs, saved.pendingCfg
}

// itemSource captures the item text with its outer attributes and any kept
// doc comments prepended.
func (p *fileParser) itemSource(n *sitter.Node) string {
	body := n.Content(p.src)
	if len(p.pendingDocs) == 0 && len(p.pendingAttrs) == 0 {
		return body
	}
	var b strings.Builder
	for _, doc := range p.pendingDocs {
		b.WriteString(doc)
		b.WriteString("\n")
	}
	for _, attr := range p.pendingAttrs {
		b.WriteString(attr)
		b.WriteString("\n")
	}
	b.WriteString(body)
	return b.String()
}

// parseImplHeader extracts self-type and trait paths from an impl block.
func (p *fileParser) parseImplHeader(n *sitter.Node) *ImplHeader {
	header := &ImplHeader{}
	if ty := n.ChildByFieldName("type"); ty != nil {
		header.SelfType = p.typePath(ty)
	}
	if tr := n.ChildByFieldName("trait"); tr != nil {
		header.Trait = p.typePath(tr)
	}
	return header
}

// typePath reduces a type node to a nominal path, or nil when the type is
// not a plain named type (references, tuples, primitives).
func (p *fileParser) typePath(n *sitter.Node) Path {
	switch n.Type() {
	case "type_identifier", "identifier":
		return Path{n.Content(p.src)}
	case "scoped_type_identifier", "scoped_identifier":
		return p.flattenPath(n)
	case "generic_type":
		if inner := n.ChildByFieldName("type"); inner != nil {
			return p.typePath(inner)
		}
	}
	return nil
}

// flattenPath linearizes a (possibly scoped) path node into segments.
func (p *fileParser) flattenPath(n *sitter.Node) Path {
	return flattenRefPath(n, p.src)
}

// useArgument returns the argument clause node of a use declaration.
func useArgument(n *sitter.Node) *sitter.Node {
	if arg := n.ChildByFieldName("argument"); arg != nil {
		return arg
	}
	// Older grammar revisions expose the clause as the only named child.
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "visibility_modifier" {
			return child
		}
	}
	return nil
}

// parseUseClause builds a UseTree from a use clause node.
func (p *fileParser) parseUseClause(n *sitter.Node) *UseTree {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "crate", "super", "self", "metavariable":
		return &UseTree{Name: n.Content(p.src)}
	case "scoped_identifier":
		segs := p.flattenPath(n)
		if len(segs) == 0 {
			return nil
		}
		return &UseTree{Prefix: segs[:len(segs)-1].Clone(), Name: segs.Last()}
	case "use_as_clause":
		tree := p.parseUseClause(n.ChildByFieldName("path"))
		if tree == nil {
			return nil
		}
		if alias := n.ChildByFieldName("alias"); alias != nil {
			tree.Alias = alias.Content(p.src)
		}
		return tree
	case "use_wildcard":
		var prefix Path
		if inner := n.NamedChild(0); inner != nil {
			prefix = p.flattenPath(inner)
		}
		return &UseTree{Prefix: prefix, Glob: true}
	case "scoped_use_list":
		tree := &UseTree{}
		if prefix := n.ChildByFieldName("path"); prefix != nil {
			tree.Prefix = p.flattenPath(prefix)
		}
		if list := n.ChildByFieldName("list"); list != nil {
			tree.Group = p.parseUseList(list)
		}
		return tree
	case "use_list":
		return &UseTree{Group: p.parseUseList(n)}
	}
	return nil
}

// parseUseList parses the entries of a brace group.
func (p *fileParser) parseUseList(n *sitter.Node) []*UseTree {
	var out []*UseTree
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if entry := p.parseUseClause(n.NamedChild(i)); entry != nil {
			out = append(out, entry)
		}
	}
	return out
}

// childOfType returns the first direct child with the given type.
func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

var cfgTestRe = regexp.MustCompile(`\bcfg\s*\(\s*test\s*\)`)

// isDocAttr reports whether an attribute is a doc attribute.
func isDocAttr(text string) bool {
	return strings.HasPrefix(text, "#[doc") || strings.HasPrefix(text, "#![doc")
}

// isOuterDoc reports whether a comment is an outer doc comment.
func isOuterDoc(text string) bool {
	if strings.HasPrefix(text, "///") {
		return true
	}
	return strings.HasPrefix(text, "/**") && !strings.HasPrefix(text, "/**/")
}
