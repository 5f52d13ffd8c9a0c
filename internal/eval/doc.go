// Package eval evaluates graph contexts.
//
// Three modes share one interpreter:
//
//   - Evaluate runs a plaintext graph on plaintext inputs.
//   - Simulate runs a compiled graph for every party in one process. Each
//     node is evaluated once per party ("lane"), and a receive reads the
//     sender's lane directly.
//   - EvaluateParty runs a single party and exchanges send and receive
//     payloads with its peers through a transport.Transport. RunParties
//     drives all parties of one process concurrently over a shared
//     transport.
//
// Every node value is stored in a write-once slot of its frame; a call
// evaluates its callee in a fresh frame whose path names the call site.
// The path plus node id form the instance string that seeds PRF masks and
// identifies Beaver triples, so all parties derive matching randomness.
//
// With WithParallelism(n) independent nodes run on a worker pool. Nodes
// that use the transport stay in node order, which keeps delegated runs
// deadlock free: every party issues the same sequence of sends and
// receives, and each receive follows the send it consumes.
package eval
