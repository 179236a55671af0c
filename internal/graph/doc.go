// Package graph computes dependency relationships between slices.
//
// Slices declare their direct dependencies. The store needs the opposite
// direction: given a slice that changed, which slices (and therefore which
// derived fields and effects) sit downstream of it. ReverseDependencies
// resolves that closure with a memoized depth-first traversal, so diamond
// shapes are visited once.
//
// The calculator assumes acyclic input. Validate checks that assumption with
// Tarjan's strongly connected components algorithm and reports missing
// dependencies; the store calls it at construction time.
package graph
