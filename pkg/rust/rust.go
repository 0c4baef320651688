// Package rust parses Rust source files into the structural item form the
// fusion pipeline works on.
//
// # Overview
//
// Parsing is built on tree-sitter with the Rust grammar. A parsed file is a
// flat list of items; container items (modules, impl blocks, traits) carry
// their children. Each item keeps its exact source text, so the final output
// can be assembled by rearranging item sources instead of pretty-printing a
// synthetic AST.
//
// A file that tree-sitter cannot fully understand is rejected as a hard
// error: silently dropping unparsed code would corrupt every later phase.
//
// # Name references
//
// Besides structure, the parser records the name references appearing inside
// each item (paths like my_lib::Foo, bare type names, self.method() calls).
// Reference resolution against the challenge graph happens elsewhere; this
// package only reports what a human would underline as "a name used here".
package rust

import "strings"

// Path is a Rust path, one segment per element ("a::b::c" -> ["a" "b" "c"]).
// Leading "crate", "self" and "super" keywords are kept as ordinary segments.
type Path []string

// ParsePath splits a :: separated path string into a Path.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "::")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			p = append(p, part)
		}
	}
	return p
}

// String joins the segments with "::".
func (p Path) String() string { return strings.Join(p, "::") }

// IsEmpty reports whether the path has no segments.
func (p Path) IsEmpty() bool { return len(p) == 0 }

// First returns the first segment, or "".
func (p Path) First() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Last returns the last segment, or "".
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	return append(Path(nil), p...)
}

// Join returns a new path with more segments appended.
func (p Path) Join(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	out = append(out, segments...)
	return out
}

// Equal reports whether two paths have identical segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

var stdCrates = map[string]struct{}{
	"std":        {},
	"core":       {},
	"alloc":      {},
	"proc_macro": {},
}

// IsStdCrate reports whether name is a crate shipped with the Rust
// toolchain itself. Paths rooted in one never appear in a Cargo manifest
// and are kept verbatim through every rewrite.
func IsStdCrate(name string) bool {
	_, ok := stdCrates[name]
	return ok
}
