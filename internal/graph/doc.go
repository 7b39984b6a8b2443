// Package graph coordinates a set of per-package cascades into one
// build graph.
//
// Each package owns its own cascade and event loop; the graph wires
// dependency edges between them. When a dependency settles, the
// configured DependencyPolicy decides which of its outputs flow into
// each dependent, and the graph pushes them in as external assets. The
// push is a plain enqueue on the dependent's loop, so a settlement
// callback never blocks on another package's work.
//
// The dependency graph must be acyclic; AddPackage rejects an edge that
// would close a cycle.
package graph
