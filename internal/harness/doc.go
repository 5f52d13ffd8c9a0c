// Package harness runs YAML scenarios against the compiler and evaluator.
//
// A scenario names a program, the party count and the inputs, then states
// what must hold. Every run evaluates the program in plaintext, compiles
// it, evaluates the compiled context for all parties and records both in
// an in-memory store.
//
// # Scenario Format
//
//	name: comparison
//	description: "17 < 42 with two parties"
//	program:
//	  file: ../programs/comparison.yaml
//	parties: 2
//	seed: comparison
//	inputs:
//	  alice: 17
//	  bob: 42
//	assertions:
//	  - type: equivalent
//	  - type: output
//	    index: 0
//	    value: 1
//
// A program is either a definition file (resolved relative to the scenario
// file) or an application from the built-in catalog:
//
//	program:
//	  application: sort
//	  type: u16
//	  n: 4
//
// # Assertion Types
//
//   - equivalent: reconstructed outputs equal the plaintext outputs
//   - output: output index reconstructs to value
//   - stat: a compilation statistic equals count, or is at most max
//   - error: the run fails with code
//   - deterministic: compiling twice and re-running with the same seed
//     reproduces the context hash and every share
//   - stored_runs: the store holds count runs of the compiled context
//
// # Deterministic Testing
//
// Randomness comes from the scenario seed and run ids are sequential, so
// a scenario produces the same trace on every run. RunWithGolden compares
// that trace against testdata/golden.
package harness
