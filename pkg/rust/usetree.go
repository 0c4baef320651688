package rust

import (
	"fmt"
	"strings"
)

// UseTree is the parsed argument of a use declaration.
//
// The tree mirrors the syntactic nesting of the statement:
//
//	use a::b;             {Prefix: [a], Name: "b"}
//	use a::b as c;        {Prefix: [a], Name: "b", Alias: "c"}
//	use a::*;             {Prefix: [a], Glob: true}
//	use a::{b, c::*};     {Prefix: [a], Group: [{Name: "b"}, {Prefix: [c], Glob: true}]}
//
// Group entries are themselves trees, so arbitrarily nested statements
// round-trip through this form.
type UseTree struct {
	Prefix Path       // leading segments before the final element
	Name   string     // named leaf; "" for globs and groups
	Alias  string     // rename from an `as` clause
	Glob   bool       // trailing ::*
	Group  []*UseTree // brace group entries
}

// IsSingle reports whether the tree is a plain single import with no group
// and no glob (possibly renamed).
func (t *UseTree) IsSingle() bool {
	return t != nil && !t.Glob && len(t.Group) == 0 && t.Name != ""
}

// IsGroup reports whether the tree ends in a brace group.
func (t *UseTree) IsGroup() bool { return t != nil && len(t.Group) > 0 }

// FullPath returns the complete path of a single import (prefix + name).
// For globs it returns just the prefix. Group trees have no single path.
func (t *UseTree) FullPath() Path {
	if t == nil {
		return nil
	}
	if t.Name != "" {
		return t.Prefix.Join(t.Name)
	}
	return t.Prefix.Clone()
}

// VisibleName returns the name the import binds in the importing module:
// the alias if present, the final segment otherwise.
func (t *UseTree) VisibleName() string {
	if t == nil {
		return ""
	}
	if t.Alias != "" {
		return t.Alias
	}
	if t.Name != "" {
		return t.Name
	}
	return t.Prefix.Last()
}

// Split flattens one level of grouping into independent trees, each with the
// group prefix prepended. Non-group trees return themselves.
func (t *UseTree) Split() []*UseTree {
	if !t.IsGroup() {
		return []*UseTree{t}
	}
	out := make([]*UseTree, 0, len(t.Group))
	for _, entry := range t.Group {
		out = append(out, &UseTree{
			Prefix: t.Prefix.Join(entry.Prefix...),
			Name:   entry.Name,
			Alias:  entry.Alias,
			Glob:   entry.Glob,
			Group:  entry.Group,
		})
	}
	return out
}

// Rebase returns a copy of the tree with its leading path replaced.
// The new tree imports the same element under base instead of t.Prefix.
func (t *UseTree) Rebase(base Path) *UseTree {
	return &UseTree{
		Prefix: base.Clone(),
		Name:   t.Name,
		Alias:  t.Alias,
		Glob:   t.Glob,
		Group:  t.Group,
	}
}

// String renders the tree back to its statement-argument form.
func (t *UseTree) String() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	if len(t.Prefix) > 0 {
		b.WriteString(t.Prefix.String())
		b.WriteString("::")
	}
	switch {
	case t.Glob:
		b.WriteString("*")
	case len(t.Group) > 0:
		parts := make([]string, len(t.Group))
		for i, entry := range t.Group {
			parts[i] = entry.String()
		}
		b.WriteString("{" + strings.Join(parts, ", ") + "}")
	default:
		b.WriteString(t.Name)
		if t.Alias != "" {
			b.WriteString(" as " + t.Alias)
		}
	}
	return b.String()
}

// RenderUseItem renders a complete use declaration for the tree, carrying
// the visibility of the original statement.
func RenderUseItem(vis Visibility, t *UseTree) string {
	if vis.Src != "" {
		return fmt.Sprintf("%s use %s;", vis.Src, t)
	}
	return fmt.Sprintf("use %s;", t)
}
