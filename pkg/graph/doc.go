// Package graph holds the typed challenge graph every fusion phase works on.
//
// The graph is a directed multigraph: nodes carry one of a fixed set of
// payloads (packages, crate files, parsed items), and parallel edges of
// different kinds can connect the same pair of nodes. Node identity is a
// stable integer index that survives removals, so phases can hold on to
// node IDs across mutations.
//
// # Node payloads
//
//   - [LocalPackage]: a package of the challenge workspace (the root node
//     is always the challenge package itself)
//   - [ExternalSupportedPackage], [ExternalUnsupportedPackage]: registry
//     dependencies, classified against the supported-crates list
//   - [BinaryCrate], [LibraryCrate]: parsed crate root files
//   - [SynItem], [SynImplItem], [SynTraitItem]: parsed items; impl and
//     trait children get their own payload kinds so phases can tell an
//     associated function from a free one without touching the parent
//
// # Edge kinds
//
//   - [EdgeDependency]: package A depends on package B
//   - [EdgeSyn]: syntactic containment (package -> crate -> item -> child)
//   - [EdgeUse]: a use item points at the node it imports
//   - [EdgeImplementation]: a type or trait declaration points at an impl
//     block for it
//   - [EdgeRequired]: the root points at a node the fused output must keep
//
// Traversals ([Graph.EdgeBFS], [Graph.NamespaceBFS]) and path resolution
// ([Resolver]) are built on top of the same adjacency data; they never
// mutate the graph.
package graph
