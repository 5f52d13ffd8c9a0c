package randomness

import (
	"encoding/binary"

	"github.com/roach88/mpcgraph/internal/ir"
)

// PRF expands key under nonce into a pseudorandom value of type t. It is a
// pure function: the owner of an input and the evaluator replaying its
// node both derive the same masks.
func PRF(key Key, nonce string, t ir.Type) ir.Value {
	var kb [16]byte
	binary.LittleEndian.PutUint64(kb[:8], key[0])
	binary.LittleEndian.PutUint64(kb[8:], key[1])
	v, err := Fill(stream(domainPRF, kb[:], 0, nonce), t)
	if err != nil {
		// A SHAKE stream never runs dry.
		panic(err)
	}
	return v
}
