package rust

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// collectRefs walks an item subtree and records every name reference that
// resolution can act on: scoped paths, bare type names, free function
// calls, macro calls, and method calls on self.
func collectRefs(n *sitter.Node, src []byte) []Ref {
	c := refCollector{src: src, seen: map[string]bool{}}
	c.walk(n)
	return c.refs
}

type refCollector struct {
	src  []byte
	refs []Ref
	seen map[string]bool
}

func (c *refCollector) walk(n *sitter.Node) {
	switch n.Type() {
	case "scoped_identifier", "scoped_type_identifier":
		c.addPath(flattenRefPath(n, c.src))
		return
	case "type_identifier":
		c.addPath(Path{n.Content(c.src)})
		return
	case "identifier", "field_identifier", "line_comment", "block_comment",
		"string_literal", "raw_string_literal":
		// Bare identifiers only count in callee position, handled below.
		return
	case "call_expression":
		c.collectCall(n)
	case "macro_invocation":
		if m := n.ChildByFieldName("macro"); m != nil && m.Type() == "identifier" {
			c.addPath(Path{m.Content(c.src)})
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil {
			c.walk(child)
		}
	}
}

// collectCall records the callee of a call expression: a free function
// named by a bare identifier, or a method invoked on self. Scoped callees
// are picked up by the path cases during descent.
func (c *refCollector) collectCall(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	switch fn.Type() {
	case "identifier":
		c.addPath(Path{fn.Content(c.src)})
	case "field_expression":
		if m := selfMethodName(fn, c.src); m != "" {
			c.addSelfMethod(m)
		}
	}
}

// selfMethodName returns the method name of a self.method(...) callee, or "".
func selfMethodName(fn *sitter.Node, src []byte) string {
	value := fn.ChildByFieldName("value")
	if value == nil || value.Type() != "self" {
		return ""
	}
	field := fn.ChildByFieldName("field")
	if field == nil || field.Type() != "field_identifier" {
		return ""
	}
	return field.Content(src)
}

func (c *refCollector) addPath(p Path) {
	if p.IsEmpty() {
		return
	}
	key := "p:" + p.String()
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.refs = append(c.refs, Ref{Path: p})
}

func (c *refCollector) addSelfMethod(name string) {
	key := "m:" + name
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.refs = append(c.refs, Ref{SelfMethod: name})
}

// flattenRefPath linearizes a scoped path in expression or type position.
// Turbofish and generic arguments are dropped.
func flattenRefPath(n *sitter.Node, src []byte) Path {
	switch n.Type() {
	case "identifier", "type_identifier", "crate", "super", "self", "metavariable":
		return Path{n.Content(src)}
	case "scoped_identifier", "scoped_type_identifier":
		var out Path
		if prefix := n.ChildByFieldName("path"); prefix != nil {
			out = flattenRefPath(prefix, src)
		}
		if name := n.ChildByFieldName("name"); name != nil {
			out = append(out, name.Content(src))
		}
		return out
	case "generic_type":
		if inner := n.ChildByFieldName("type"); inner != nil {
			return flattenRefPath(inner, src)
		}
	case "bracketed_type":
		if inner := n.NamedChild(0); inner != nil {
			return flattenRefPath(inner, src)
		}
	}
	return nil
}
