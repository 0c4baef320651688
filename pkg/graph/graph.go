package graph

import (
	"errors"
	"slices"

	"github.com/cgfuse/cgfuse/pkg/rust"
)

var (
	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the source
	// node does not exist or has been removed.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the target
	// node does not exist or has been removed.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrUnknownEdge is returned by [Graph.SpliceChildren] when the edge to
	// replace does not exist.
	ErrUnknownEdge = errors.New("unknown edge")
)

// NodeID identifies a node. IDs are never reused: removing a node leaves a
// hole in the arena, so IDs held by other phases stay valid.
type NodeID int

// InvalidNode is returned by lookups that find nothing.
const InvalidNode NodeID = -1

// EdgeKind classifies an edge.
type EdgeKind int

const (
	// EdgeDependency connects a package to a package it depends on.
	EdgeDependency EdgeKind = iota
	// EdgeSyn is syntactic containment: package to crate, crate or module
	// to item, impl or trait block to member.
	EdgeSyn
	// EdgeUse connects a use item to the node its path names.
	EdgeUse
	// EdgeImplementation connects a type or trait declaration to an impl
	// block implementing it.
	EdgeImplementation
	// EdgeRequired connects the root to a node the fused output must keep.
	EdgeRequired
)

var edgeKindNames = map[EdgeKind]string{
	EdgeDependency:     "dependency",
	EdgeSyn:            "syn",
	EdgeUse:            "use",
	EdgeImplementation: "implementation",
	EdgeRequired:       "required",
}

func (k EdgeKind) String() string {
	if name, ok := edgeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Edge is one directed edge, as reported by [Graph.Edges].
type Edge struct {
	From NodeID
	To   NodeID
	Kind EdgeKind
}

// halfEdge is one direction of an edge as stored in an adjacency list.
// In an out list peer is the target, in an in list it is the source.
type halfEdge struct {
	kind EdgeKind
	peer NodeID
}

type node struct {
	payload Payload
	out     []halfEdge
	in      []halfEdge
}

// Graph is a directed multigraph with stable node identity. Nodes live in
// an append-only arena indexed by NodeID; removal tombstones the slot.
//
// The zero value is not usable - use New to create a graph with its root.
// Graph is not safe for concurrent mutation without external
// synchronization.
type Graph struct {
	nodes     []*node
	edgeCount int
}

// New creates a graph containing only the root node. The root is always
// node 0 and represents the challenge package.
func New(root Payload) *Graph {
	g := &Graph{}
	g.AddNode(root)
	return g
}

// Root returns the root node ID.
func (g *Graph) Root() NodeID { return 0 }

// AddNode appends a node and returns its ID.
func (g *Graph) AddNode(p Payload) NodeID {
	g.nodes = append(g.nodes, &node{payload: p})
	return NodeID(len(g.nodes) - 1)
}

// Contains reports whether the node exists and has not been removed.
func (g *Graph) Contains(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes) && g.nodes[id] != nil
}

// Payload returns the node's payload, or false for unknown or removed
// nodes.
func (g *Graph) Payload(id NodeID) (Payload, bool) {
	if !g.Contains(id) {
		return nil, false
	}
	return g.nodes[id].payload, true
}

// Item returns the parsed item of an item node, or false for any other
// node.
func (g *Graph) Item(id NodeID) (*rust.Item, bool) {
	p, ok := g.Payload(id)
	if !ok {
		return nil, false
	}
	return ItemOf(p)
}

// AddEdge inserts a directed edge. Parallel edges of different kinds
// between the same nodes are allowed; inserting the same (from, to, kind)
// twice creates a duplicate, use [Graph.HasEdge] to avoid that where it
// matters.
func (g *Graph) AddEdge(from, to NodeID, kind EdgeKind) error {
	if !g.Contains(from) {
		return ErrUnknownSourceNode
	}
	if !g.Contains(to) {
		return ErrUnknownTargetNode
	}
	g.nodes[from].out = append(g.nodes[from].out, halfEdge{kind: kind, peer: to})
	g.nodes[to].in = append(g.nodes[to].in, halfEdge{kind: kind, peer: from})
	g.edgeCount++
	return nil
}

// RemoveEdge removes all edges matching (from, to, kind). Removing a
// missing edge is a no-op.
func (g *Graph) RemoveEdge(from, to NodeID, kind EdgeKind) {
	if !g.Contains(from) || !g.Contains(to) {
		return
	}
	before := len(g.nodes[from].out)
	g.nodes[from].out = slices.DeleteFunc(g.nodes[from].out, func(e halfEdge) bool {
		return e.kind == kind && e.peer == to
	})
	g.nodes[to].in = slices.DeleteFunc(g.nodes[to].in, func(e halfEdge) bool {
		return e.kind == kind && e.peer == from
	})
	g.edgeCount -= before - len(g.nodes[from].out)
}

// SpliceChildren replaces the (parent, old, kind) edge with edges to repl,
// in order, at the old edge's position in the parent's adjacency list, so
// the replacements inherit the replaced child's declaration position. An
// empty repl drops the edge. Other edges of old are untouched; callers
// that fully replace a node remove it afterwards.
func (g *Graph) SpliceChildren(parent, old NodeID, repl []NodeID, kind EdgeKind) error {
	if !g.Contains(parent) {
		return ErrUnknownSourceNode
	}
	for _, id := range repl {
		if !g.Contains(id) {
			return ErrUnknownTargetNode
		}
	}

	pn := g.nodes[parent]
	idx := slices.Index(pn.out, halfEdge{kind: kind, peer: old})
	if idx < 0 {
		return ErrUnknownEdge
	}

	mid := make([]halfEdge, len(repl))
	for i, id := range repl {
		mid[i] = halfEdge{kind: kind, peer: id}
	}
	pn.out = slices.Concat(pn.out[:idx], mid, pn.out[idx+1:])

	if on := g.nodes[old]; on != nil {
		if i := slices.Index(on.in, halfEdge{kind: kind, peer: parent}); i >= 0 {
			on.in = slices.Delete(on.in, i, i+1)
		}
	}
	for _, id := range repl {
		g.nodes[id].in = append(g.nodes[id].in, halfEdge{kind: kind, peer: parent})
	}
	g.edgeCount += len(repl) - 1
	return nil
}

// RemoveNode removes a node and every edge touching it. The slot is
// tombstoned, so other node IDs keep their meaning. Removing an unknown
// node is a no-op.
func (g *Graph) RemoveNode(id NodeID) {
	if !g.Contains(id) {
		return
	}
	n := g.nodes[id]
	for _, e := range n.out {
		if peer := g.nodes[e.peer]; peer != nil {
			peer.in = slices.DeleteFunc(peer.in, func(h halfEdge) bool {
				return h.peer == id
			})
		}
	}
	for _, e := range n.in {
		if peer := g.nodes[e.peer]; peer != nil {
			peer.out = slices.DeleteFunc(peer.out, func(h halfEdge) bool {
				return h.peer == id
			})
		}
	}
	g.edgeCount -= len(n.out) + len(n.in)
	g.nodes[id] = nil
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	count := 0
	for _, n := range g.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// EdgeCount returns the number of live edges.
func (g *Graph) EdgeCount() int { return g.edgeCount }

// NodeIDs returns the IDs of all live nodes in ascending (insertion)
// order.
func (g *Graph) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for i, n := range g.nodes {
		if n != nil {
			ids = append(ids, NodeID(i))
		}
	}
	return ids
}

// Edges returns all live edges grouped by source node in insertion order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edgeCount)
	for i, n := range g.nodes {
		if n == nil {
			continue
		}
		for _, e := range n.out {
			edges = append(edges, Edge{From: NodeID(i), To: e.peer, Kind: e.kind})
		}
	}
	return edges
}

// Children returns the targets of outgoing edges of the given kind, in
// insertion order. Returns nil for unknown nodes.
func (g *Graph) Children(id NodeID, kind EdgeKind) []NodeID {
	if !g.Contains(id) {
		return nil
	}
	var out []NodeID
	for _, e := range g.nodes[id].out {
		if e.kind == kind {
			out = append(out, e.peer)
		}
	}
	return out
}

// Parents returns the sources of incoming edges of the given kind, in
// insertion order. Returns nil for unknown nodes.
func (g *Graph) Parents(id NodeID, kind EdgeKind) []NodeID {
	if !g.Contains(id) {
		return nil
	}
	var out []NodeID
	for _, e := range g.nodes[id].in {
		if e.kind == kind {
			out = append(out, e.peer)
		}
	}
	return out
}

// HasEdge reports whether at least one (from, to, kind) edge exists.
func (g *Graph) HasEdge(from, to NodeID, kind EdgeKind) bool {
	if !g.Contains(from) {
		return false
	}
	for _, e := range g.nodes[from].out {
		if e.kind == kind && e.peer == to {
			return true
		}
	}
	return false
}

// SynParent returns the containment parent of a node. Every crate, item
// and source-file node has exactly one; packages have none.
func (g *Graph) SynParent(id NodeID) (NodeID, bool) {
	if !g.Contains(id) {
		return InvalidNode, false
	}
	for _, e := range g.nodes[id].in {
		if e.kind == EdgeSyn {
			return e.peer, true
		}
	}
	return InvalidNode, false
}

// MarkRequired records that the fused output must keep the node, by adding
// a required edge from the root. Marking is idempotent and never undone.
func (g *Graph) MarkRequired(id NodeID) error {
	if id == g.Root() {
		return nil
	}
	if !g.Contains(id) {
		return ErrUnknownTargetNode
	}
	if g.HasEdge(g.Root(), id, EdgeRequired) {
		return nil
	}
	return g.AddEdge(g.Root(), id, EdgeRequired)
}

// IsRequired reports whether the node has been marked required. The root
// is always required.
func (g *Graph) IsRequired(id NodeID) bool {
	if id == g.Root() {
		return true
	}
	if !g.Contains(id) {
		return false
	}
	for _, e := range g.nodes[id].in {
		if e.kind == EdgeRequired {
			return true
		}
	}
	return false
}

// RequiredIDs returns every node marked required, in marking order.
func (g *Graph) RequiredIDs() []NodeID {
	return g.Children(g.Root(), EdgeRequired)
}
