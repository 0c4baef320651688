package graph

// Node kind strings used in serialized snapshots.
const (
	KindLocalPackage        = "local_package"
	KindExternalSupported   = "external_supported"
	KindExternalUnsupported = "external_unsupported"
	KindBinaryCrate         = "binary_crate"
	KindLibraryCrate        = "library_crate"
	KindSourceFile          = "source_file"
	KindItem                = "item"
	KindImplItem            = "impl_item"
	KindTraitItem           = "trait_item"
)

// Snapshot is the canonical serialization format for the challenge graph,
// used for API responses and file export. Node IDs are the graph's stable
// node indices, so a snapshot can be correlated with log output.
type Snapshot struct {
	Nodes []SnapshotNode `json:"nodes"`
	Edges []SnapshotEdge `json:"edges"`
}

// SnapshotNode is one node in serialized form.
type SnapshotNode struct {
	ID       int    `json:"id"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Required bool   `json:"required,omitempty"`
}

// SnapshotEdge is one edge in serialized form.
type SnapshotEdge struct {
	From int    `json:"from"`
	To   int    `json:"to"`
	Kind string `json:"kind"`
}

// Snapshot exports the live graph. Nodes appear in ascending ID order and
// edges grouped by source, so output is deterministic for a given graph.
func (g *Graph) Snapshot() Snapshot {
	ids := g.NodeIDs()
	snap := Snapshot{
		Nodes: make([]SnapshotNode, 0, len(ids)),
		Edges: make([]SnapshotEdge, 0, g.EdgeCount()),
	}
	for _, id := range ids {
		p, _ := g.Payload(id)
		snap.Nodes = append(snap.Nodes, SnapshotNode{
			ID:       int(id),
			Label:    p.Label(),
			Kind:     PayloadKind(p),
			Required: g.IsRequired(id),
		})
	}
	for _, e := range g.Edges() {
		snap.Edges = append(snap.Edges, SnapshotEdge{
			From: int(e.From),
			To:   int(e.To),
			Kind: e.Kind.String(),
		})
	}
	return snap
}

// PayloadKind returns the snapshot kind string for a payload.
func PayloadKind(p Payload) string {
	switch p.(type) {
	case *LocalPackage:
		return KindLocalPackage
	case *ExternalSupportedPackage:
		return KindExternalSupported
	case *ExternalUnsupportedPackage:
		return KindExternalUnsupported
	case *BinaryCrate:
		return KindBinaryCrate
	case *LibraryCrate:
		return KindLibraryCrate
	case *SourceFile:
		return KindSourceFile
	case *SynItem:
		return KindItem
	case *SynImplItem:
		return KindImplItem
	case *SynTraitItem:
		return KindTraitItem
	default:
		return "unknown"
	}
}
