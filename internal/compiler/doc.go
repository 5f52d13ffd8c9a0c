// Package compiler lowers a plaintext graph into a protocol graph that
// computes the same function over additively shared data.
//
// # Execution model
//
// The compiled graph is the same for every party; each party evaluates
// all of it. Party-specific behavior comes from five ops: input (the owner
// binds the real value, everybody else binds the zero value), prf_key (only
// the owner draws a key), party_gate(p) (passes its input at party p and
// yields zero elsewhere), send and receive (a receive yields the message at
// its destination party and zero elsewhere) and triple (every party draws
// its own share of a Beaver triple).
//
// Every node of the source graph is classified as public, meaning every
// party holds the same plaintext value, or private, meaning the parties
// hold additive shares modulo 2^bits. Functions of public nodes are copied
// unchanged. A public value enters a private computation as
// party_gate(0, v), a valid sharing in which party 0 holds v.
//
// # Protocols
//
// Inputs are shared with PRF masks: the owner p expands a fresh key into a
// mask m_j for every other party j, sends m_j to j, and keeps x - sum m_j.
// Inputs listed in Config.SharedInputs skip this step: every party binds
// its own additive share directly.
//
// Multiplication, matrix products and AND of two private values use one
// Beaver triple (a, b, c = a*b) and one round in which d = x - a and
// e = y - b are opened to all parties; the product is
// c + d*b + a*e + party_gate(0, d*e).
//
// Comparisons switch to boolean sharing. Each party's arithmetic share is
// bit-decomposed locally, which yields a boolean sharing of each summand;
// the summands are added with Kogge-Stone parallel-prefix adders whose ANDs
// are Beaver ANDs over bits. less_than(x, y) is the complement of the carry
// out of x + not(y) + 1; signed operands are offset by 2^(bits-1) first.
// equal(x, y) AND-reduces the complemented bits of x - y. Bits return to
// arithmetic sharing by folding acc + t - 2*acc*t over the parties' bit
// shares, which also lowers widening casts, from_bits, private
// mixed_multiply and select.
//
// truncate on private data and gather, scatter or vector_get with a private
// index have no lowering and fail UNSUPPORTED_OP_FOR_MPC.
package compiler
