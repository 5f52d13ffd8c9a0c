// Package kernel implements the plaintext semantics of every non-protocol op
// on concrete ir values. All functions are pure: inputs are never modified
// and results are freshly allocated.
//
// Arithmetic is exact modulo 2^bits of the element type. Signedness only
// matters where the operation depends on interpretation: comparisons,
// truncation, widening casts and index decoding.
package kernel
