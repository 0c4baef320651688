package graph

import (
	"fmt"

	"github.com/cgfuse/cgfuse/pkg/cargo"
	"github.com/cgfuse/cgfuse/pkg/rust"
)

// Payload is the content of a graph node. The set of implementations is
// closed; phases switch over the concrete types.
type Payload interface {
	// Label returns a short human-readable name for logs, the dialog and
	// graph rendering.
	Label() string

	isPayload()
}

// LocalPackage is a package of the challenge workspace, either the
// challenge package itself (always the root node) or a path dependency.
// The metadata snapshot resolved for the package is kept on the node so
// later phases never re-run the build tool.
type LocalPackage struct {
	Name     string
	Manifest *cargo.Manifest
	Metadata *cargo.Metadata
}

func (p *LocalPackage) Label() string { return p.Name }
func (p *LocalPackage) isPayload()    {}

// ExternalSupportedPackage is a registry dependency that is available on
// the target platform and stays an ordinary import in the fused output.
type ExternalSupportedPackage struct {
	Name string
}

func (p *ExternalSupportedPackage) Label() string { return p.Name }
func (p *ExternalSupportedPackage) isPayload()    {}

// ExternalUnsupportedPackage is a registry dependency the target platform
// does not provide. Reaching one during analysis is a policy violation.
type ExternalUnsupportedPackage struct {
	Name string
}

func (p *ExternalUnsupportedPackage) Label() string { return fmt.Sprintf("%s (unsupported)", p.Name) }
func (p *ExternalUnsupportedPackage) isPayload()    {}

// BinaryCrate marks the root module of an executable target. Its Syn
// children are the items of the crate root file plus a SourceFile node.
type BinaryCrate struct {
	Name string
}

func (p *BinaryCrate) Label() string { return fmt.Sprintf("%s (binary crate)", p.Name) }
func (p *BinaryCrate) isPayload()    {}

// LibraryCrate marks the root module of a package's library target.
type LibraryCrate struct {
	Name string
}

func (p *LibraryCrate) Label() string { return fmt.Sprintf("%s (library crate)", p.Name) }
func (p *LibraryCrate) isPayload()    {}

// SourceFile records where a module's items came from. It hangs as a Syn
// child under the crate or module node its file populates: crate roots get
// one for their root file, and a file module (mod name; loaded from
// name.rs or name/mod.rs) gets one next to the loaded items.
type SourceFile struct {
	Path    string   // absolute path of the file
	Shebang string   // leading #! line, "" if absent
	Attrs   []string // inner attributes of the file
}

func (p *SourceFile) Label() string { return p.Path }
func (p *SourceFile) isPayload()    {}

// SynItem is a parsed item outside any impl or trait block.
type SynItem struct {
	Item *rust.Item
}

func (p *SynItem) Label() string { return p.Item.Label() }
func (p *SynItem) isPayload()    {}

// SynImplItem is an item declared inside an impl block.
type SynImplItem struct {
	Item *rust.Item
}

func (p *SynImplItem) Label() string { return p.Item.Label() }
func (p *SynImplItem) isPayload()    {}

// SynTraitItem is an item declared inside a trait block.
type SynTraitItem struct {
	Item *rust.Item
}

func (p *SynTraitItem) Label() string { return p.Item.Label() }
func (p *SynTraitItem) isPayload()    {}

// ItemOf extracts the parsed item from an item payload. It returns false
// for package, crate and source-file payloads.
func ItemOf(p Payload) (*rust.Item, bool) {
	switch v := p.(type) {
	case *SynItem:
		return v.Item, true
	case *SynImplItem:
		return v.Item, true
	case *SynTraitItem:
		return v.Item, true
	default:
		return nil, false
	}
}
