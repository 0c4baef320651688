package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cgfuse/cgfuse/pkg/graph"
)

// Snapshot exports the graph in its serialized form. RequiredOnly keeps
// only nodes the reachability phase marked, the subgraph the fused file
// will contain. In the full export the synthetic required edges are
// dropped; the per-node flag already carries that information.
func Snapshot(g *graph.Graph, requiredOnly bool) graph.Snapshot {
	full := g.Snapshot()

	out := graph.Snapshot{
		Nodes: make([]graph.SnapshotNode, 0, len(full.Nodes)),
		Edges: make([]graph.SnapshotEdge, 0, len(full.Edges)),
	}
	keep := make(map[int]bool, len(full.Nodes))
	for _, n := range full.Nodes {
		if requiredOnly && !n.Required {
			continue
		}
		keep[n.ID] = true
		out.Nodes = append(out.Nodes, n)
	}

	requiredKind := graph.EdgeRequired.String()
	for _, e := range full.Edges {
		if !keep[e.From] || !keep[e.To] {
			continue
		}
		if e.Kind == requiredKind && !requiredOnly {
			continue
		}
		out.Edges = append(out.Edges, e)
	}
	return out
}

// WriteJSON encodes the full graph as indented JSON and writes it to w.
func WriteJSON(g *graph.Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Snapshot(g, false)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes the graph to a JSON file at path.
func ExportJSON(g *graph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(g, f)
}
