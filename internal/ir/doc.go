// Package ir defines the typed vocabulary shared by every other package:
// value types, runtime tensors, operations and their type rules, and the
// canonical document encoding used for persistence and hashing.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Runtime values are bit patterns in uint64 words masked to their width
//   - Arithmetic wraps modulo 2^bits; BIT arithmetic is XOR/AND
//   - NO floats anywhere in serialized documents; integers are int64
//   - Object keys are emitted in RFC 8785 order so hashes are stable
package ir
