// Package applications builds ready-made secure computations: the
// millionaires' problem, matrix multiplication with its dot product and
// gemm variants, the minimum and sorted order of the union of two parties'
// arrays, and private set-intersection membership.
//
// Every program is an ordinary plaintext context whose inputs are owned by
// parties 0 and 1; compile it to obtain the protocol.
package applications
