// Package graph implements the computation-graph arena.
//
// A Context owns every Graph of one compilation unit and assigns graph ids.
// A Graph is an append-only sequence of typed nodes; a node may only consume
// nodes that precede it, so node order is always a valid topological order.
// Finalizing a graph freezes its output set, after which it can be called
// from other graphs, compiled and evaluated. Finalized graphs are never
// mutated; transformations build new graphs.
//
// A Context is not safe for concurrent construction. Once its graphs are
// finalized it may be shared freely between goroutines.
package graph
