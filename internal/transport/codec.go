package transport

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/mpcgraph/internal/ir"
)

// Header identifies the send node a payload belongs to. A receiver that
// expects a different header has fallen out of step with the sender.
type Header struct {
	Instance string `msgpack:"instance"`
	Node     int    `msgpack:"node"`
}

type envelope struct {
	Header Header `msgpack:"header"`
	Leaves []leaf `msgpack:"leaves"`
}

type leaf struct {
	Shape  []int64  `msgpack:"shape"`
	Bits   int      `msgpack:"bits"`
	Signed bool     `msgpack:"signed"`
	Data   []uint64 `msgpack:"data"`
}

// EncodeValue encodes a value sent by the node named in h.
func EncodeValue(h Header, v ir.Value) ([]byte, error) {
	tensors := ir.Leaves(v)
	env := envelope{Header: h, Leaves: make([]leaf, len(tensors))}
	for i, t := range tensors {
		env.Leaves[i] = leaf{
			Shape:  t.Shape,
			Bits:   t.Elem.Bits,
			Signed: t.Elem.Signed,
			Data:   t.Data,
		}
	}
	data, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return data, nil
}

// DecodeValue decodes a payload that must carry header want and a value of
// type t. Any mismatch is a COMMUNICATION_FAILURE between from and to.
func DecodeValue(data []byte, from, to int, want Header, t ir.Type) (ir.Value, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, failure(from, to, "malformed payload: %v", err)
	}
	if env.Header != want {
		return nil, failure(from, to, "expected message for node %d in %q, got node %d in %q",
			want.Node, want.Instance, env.Header.Node, env.Header.Instance)
	}
	v := ir.Zero(t)
	slots := ir.Leaves(v)
	if len(slots) != len(env.Leaves) {
		return nil, failure(from, to, "payload has %d tensors, %s needs %d", len(env.Leaves), t, len(slots))
	}
	for i, l := range env.Leaves {
		slots[i].Shape = l.Shape
		slots[i].Elem = ir.ScalarType{Bits: l.Bits, Signed: l.Signed}
		slots[i].Data = l.Data
	}
	if err := ir.CheckValue(t, v); err != nil {
		return nil, failure(from, to, "payload does not match %s: %v", t, err)
	}
	return v, nil
}
