// Package randomness supplies the correlated and uncorrelated randomness a
// compiled protocol consumes at run time.
//
// Three collaborators live here:
//
//   - Source hands each party its PRF keys. CryptoSource draws them from
//     crypto/rand; SeededSource derives them from a seed with SHAKE256 so
//     simulations are reproducible.
//   - PRF expands a key and a nonce into a value of any type. Input masks
//     are PRF outputs.
//   - TripleSource hands each party its share of a Beaver triple. Dealer
//     derives every triple from a seed the parties agree on, so parties
//     running in separate processes obtain consistent shares without
//     talking to each other.
//
// Every request carries an instance string naming the node and the call
// path it was evaluated under. Two evaluations of the same node in
// different calls therefore draw independent randomness.
package randomness
