package eval

import (
	"context"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/kernel"
	"github.com/roach88/mpcgraph/internal/randomness"
	"github.com/roach88/mpcgraph/internal/transport"
)

// node evaluates n in every lane of the frame.
func (f *frame) node(ctx context.Context, n *graph.Node) ([]ir.Value, error) {
	ins := make([][]ir.Value, len(n.Inputs))
	types := make([]ir.Type, len(n.Inputs))
	for i, id := range n.Inputs {
		ins[i] = f.slots[id].get()
		types[i] = f.g.Nodes()[id].Type
	}

	switch n.Op.Kind {
	case ir.OpInput:
		return f.params[f.paramPos[n.ID]], nil
	case ir.OpCall:
		return f.call(ctx, n, ins)
	}

	if n.Op.Kind.IsProtocol() && f.r.mode == modePlain {
		return nil, f.fail(n, NoParty, runError(ir.ErrCodeInvalidConfiguration,
			"protocol op %s needs a simulated or delegated run", n.Op.Kind))
	}

	out := make([]ir.Value, len(f.r.lanes))
	for lane, party := range f.r.lanes {
		laneIns := make([]ir.Value, len(ins))
		for i := range ins {
			laneIns[i] = ins[i][lane]
		}
		var v ir.Value
		var err error
		if n.Op.Kind.IsProtocol() {
			v, err = f.protocol(ctx, n, party, laneIns, ins)
		} else {
			v, err = kernel.Apply(n.Op, types, laneIns)
		}
		if err != nil {
			return nil, f.fail(n, party, err)
		}
		out[lane] = v
	}
	return out, nil
}

func (f *frame) fail(n *graph.Node, party int, err error) error {
	if re, ok := err.(*RuntimeError); ok && re.Node == ir.NoNode {
		re.Graph, re.Node, re.Op, re.Party = f.g.ID(), n.ID, n.Op.Kind, party
		return re
	}
	return nodeFailure(err, f.g.ID(), n.ID, n.Op.Kind, party)
}

// protocol evaluates a protocol op for one party. all holds the inputs of
// every lane, which a simulated receive reads the sender's lane from.
func (f *frame) protocol(ctx context.Context, n *graph.Node, party int, in []ir.Value, all [][]ir.Value) (ir.Value, error) {
	op := n.Op
	switch op.Kind {
	case ir.OpPartyGate:
		if party == op.Party {
			return in[0], nil
		}
		return ir.Zero(n.Type), nil

	case ir.OpPRFKey:
		if party != op.Party {
			return randomness.Key{}.Value(), nil
		}
		key, err := f.r.ev.keys.Key(ctx, randomness.KeyRequest{Party: party, Instance: f.instance(n.ID)})
		if err != nil {
			return nil, err
		}
		return key.Value(), nil

	case ir.OpMask:
		key, err := randomness.KeyFromValue(in[0])
		if err != nil {
			return nil, err
		}
		return randomness.PRF(key, f.instance(n.ID), op.Type), nil

	case ir.OpTriple:
		if f.r.ev.triples == nil {
			return nil, runError(ir.ErrCodeMissingAuxiliaryRandomness, "no triple source configured")
		}
		return f.r.ev.triples.Triple(ctx, randomness.TripleRequest{
			Party:    party,
			Parties:  f.r.parties,
			Instance: f.instance(n.ID),
			Bilinear: op.Bilinear,
			A:        op.Types[0],
			B:        op.Types[1],
		})

	case ir.OpSend:
		if f.r.mode == modeParty && party == op.From {
			payload, err := transport.EncodeValue(f.header(n.ID), in[0])
			if err != nil {
				return nil, err
			}
			if err := f.r.net.Send(ctx, op.From, op.To, payload); err != nil {
				return nil, err
			}
		}
		return in[0], nil

	case ir.OpReceive:
		if party != op.To {
			return ir.Zero(n.Type), nil
		}
		if f.r.mode == modeSimulate {
			return ir.Clone(all[0][op.From]), nil
		}
		payload, err := f.r.net.Receive(ctx, op.From, op.To)
		if err != nil {
			return nil, err
		}
		return transport.DecodeValue(payload, op.From, op.To, f.header(n.Inputs[0]), n.Type)
	}
	return nil, runError(ir.ErrCodeInvalidConfiguration, "unknown protocol op %s", op.Kind)
}

// header names the send node whose payload travels on the wire.
func (f *frame) header(send int) transport.Header {
	return transport.Header{Instance: f.instance(send), Node: send}
}

// call evaluates the callee in a child frame whose path is the call's
// instance, so nested nodes get distinct nonces per call site.
func (f *frame) call(ctx context.Context, n *graph.Node, ins [][]ir.Value) ([]ir.Value, error) {
	callee, err := f.g.Context().Graph(n.Op.Graph)
	if err != nil {
		return nil, f.fail(n, NoParty, err)
	}
	child := newFrame(f.r, callee, f.instance(n.ID), ins)
	outs, err := child.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	res := make([]ir.Value, len(f.r.lanes))
	for lane := range res {
		elems := make([]ir.Value, len(outs))
		for i := range outs {
			elems[i] = outs[i][lane]
		}
		res[lane] = ir.NewComposite(elems...)
	}
	return res, nil
}
