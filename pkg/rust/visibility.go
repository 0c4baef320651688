package rust

import "strings"

// VisKind classifies a visibility modifier.
type VisKind int

const (
	// VisPrivate is the default: visible to the defining module and its
	// descendants.
	VisPrivate VisKind = iota
	// VisPub is `pub`.
	VisPub
	// VisCrate is `pub(crate)`.
	VisCrate
	// VisSuper is `pub(super)`.
	VisSuper
	// VisRestricted is `pub(in path)`.
	VisRestricted
)

// Visibility is a parsed visibility modifier.
type Visibility struct {
	Kind VisKind
	Path Path   // restriction path for VisRestricted
	Src  string // original modifier text, "" for private
}

// ParseVisibility interprets the text of a visibility_modifier node.
func ParseVisibility(src string) Visibility {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return Visibility{Kind: VisPrivate}
	case src == "pub":
		return Visibility{Kind: VisPub, Src: src}
	case src == "pub(crate)":
		return Visibility{Kind: VisCrate, Src: src}
	case src == "pub(super)":
		return Visibility{Kind: VisSuper, Src: src}
	case strings.HasPrefix(src, "pub(in ") && strings.HasSuffix(src, ")"):
		inner := strings.TrimSuffix(strings.TrimPrefix(src, "pub(in "), ")")
		return Visibility{Kind: VisRestricted, Path: ParsePath(inner), Src: src}
	case strings.HasPrefix(src, "pub(self)"):
		return Visibility{Kind: VisPrivate, Src: src}
	default:
		// Unknown form, treat as pub to avoid hiding items during expansion.
		return Visibility{Kind: VisPub, Src: src}
	}
}

// IsPub reports whether the visibility is unrestricted `pub`.
func (v Visibility) IsPub() bool { return v.Kind == VisPub }

// String returns the modifier text, "" for private.
func (v Visibility) String() string { return v.Src }
