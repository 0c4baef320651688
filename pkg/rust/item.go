package rust

import "fmt"

// ItemKind classifies a parsed declaration.
type ItemKind int

// Item kinds, ordered roughly by how often they appear in challenge code.
const (
	KindUse ItemKind = iota
	KindMod
	KindFn
	KindStruct
	KindEnum
	KindUnion
	KindTrait
	KindImpl
	KindConst
	KindStatic
	KindTypeAlias
	KindMacro
	KindForeignMod
	KindExternCrate
)

var itemKindNames = map[ItemKind]string{
	KindUse:         "Use",
	KindMod:         "Mod",
	KindFn:          "Fn",
	KindStruct:      "Struct",
	KindEnum:        "Enum",
	KindUnion:       "Union",
	KindTrait:       "Trait",
	KindImpl:        "Impl",
	KindConst:       "Const",
	KindStatic:      "Static",
	KindTypeAlias:   "TypeAlias",
	KindMacro:       "Macro",
	KindForeignMod:  "ForeignMod",
	KindExternCrate: "ExternCrate",
}

// String returns the kind name.
func (k ItemKind) String() string {
	if name, ok := itemKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ItemKind(%d)", int(k))
}

// IsContainer reports whether the kind nests child items (mod, impl, trait).
func (k ItemKind) IsContainer() bool {
	return k == KindMod || k == KindImpl || k == KindTrait
}

// IsTypeDecl reports whether the kind declares a nominal type that impl
// blocks can attach to.
func (k ItemKind) IsTypeDecl() bool {
	return k == KindStruct || k == KindEnum || k == KindUnion
}

// Span is a byte range within the source file.
type Span struct {
	Start uint32
	End   uint32
}

// Ref is one name reference found inside an item.
// Exactly one of Path and SelfMethod is set: SelfMethod covers the
// self.method() form, which names a sibling impl item rather than a path.
type Ref struct {
	Path       Path
	SelfMethod string
}

// ImplHeader holds the resolved-enough parts of an impl block signature.
type ImplHeader struct {
	SelfType Path // path of the implemented type, generic arguments stripped
	Trait    Path // implemented trait path, empty for inherent impls
}

// IsInherent reports whether the impl block has no trait.
func (h *ImplHeader) IsInherent() bool { return h == nil || h.Trait.IsEmpty() }

// Item is a single parsed declaration.
//
// Container items (mod, impl, trait) carry their children in Items; the Src
// of a container still covers the whole block including the children, so
// callers emitting containers must choose between Src and re-assembling from
// children.
type Item struct {
	Kind  ItemKind
	Name  string     // identifier; empty for impl blocks and foreign mods
	Vis   Visibility // visibility modifier
	Attrs []string   // outer attribute texts, e.g. "#[derive(Debug)]"
	Src   string     // exact source text including outer attributes
	Span  Span       // byte range of the item in its file

	Use   *UseTree    // KindUse only
	Impl  *ImplHeader // KindImpl only
	Items []*Item     // children of mod/impl/trait
	Refs  []Ref       // name references inside the item

	Inline  bool // KindMod: body was present inline in the file
	CfgTest bool // carries a #[cfg(test)] attribute
}

// Label returns a short human-readable name for the item, used in logs,
// the impl-item dialog and graph rendering.
func (it *Item) Label() string {
	switch it.Kind {
	case KindImpl:
		if it.Impl == nil {
			return "impl ?"
		}
		if it.Impl.IsInherent() {
			return fmt.Sprintf("impl %s", it.Impl.SelfType)
		}
		return fmt.Sprintf("impl %s for %s", it.Impl.Trait, it.Impl.SelfType)
	case KindUse:
		if it.Use != nil {
			return fmt.Sprintf("use %s", it.Use)
		}
		return "use ?"
	default:
		if it.Name != "" {
			return it.Name
		}
		return "?"
	}
}

// Describe returns the label with the kind appended, e.g. "Go (Struct)".
func (it *Item) Describe() string {
	return fmt.Sprintf("%s (%s)", it.Label(), it.Kind)
}

// ChildNamed returns the first child item with the given name.
func (it *Item) ChildNamed(name string) (*Item, bool) {
	for _, child := range it.Items {
		if child.Name == name {
			return child, true
		}
	}
	return nil, false
}
