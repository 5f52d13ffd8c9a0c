package eval

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/transport"
)

type mode int

const (
	modePlain mode = iota
	modeSimulate
	modeParty
)

func (m mode) String() string {
	switch m {
	case modePlain:
		return "plaintext"
	case modeSimulate:
		return "simulate"
	default:
		return "party"
	}
}

// run is the state shared by all frames of one evaluation.
type run struct {
	ev      *Evaluator
	id      string
	mode    mode
	parties int

	// lanes lists the party evaluated in each lane. Plaintext runs have one
	// lane with NoParty; simulations have one lane per party; delegated runs
	// have the single local party.
	lanes []int
	net   transport.Transport

	nodes atomic.Int64
}

// frame is one invocation of one graph. Calls create child frames with
// fresh slots.
type frame struct {
	r    *run
	g    *graph.Graph
	path string

	slots []slot

	// params[i] holds the lanes bound to the i-th input node.
	params   [][]ir.Value
	paramPos map[int]int
}

func newFrame(r *run, g *graph.Graph, path string, params [][]ir.Value) *frame {
	f := &frame{
		r:        r,
		g:        g,
		path:     path,
		slots:    make([]slot, g.Len()),
		params:   params,
		paramPos: make(map[int]int),
	}
	for i, n := range g.Inputs() {
		f.paramPos[n.ID] = i
	}
	return f
}

// instance names one evaluation of one node. It is the nonce for masks and
// the key for triples, so it must be the same at every party.
func (f *frame) instance(node int) string {
	return fmt.Sprintf("%s/%d", f.path, node)
}

// evaluate computes every node and returns the lanes of each output.
func (f *frame) evaluate(ctx context.Context) ([][]ir.Value, error) {
	var err error
	if f.r.ev.parallelism > 1 && f.g.Len() > 1 {
		err = f.evaluateParallel(ctx)
	} else {
		err = f.evaluateSequential(ctx)
	}
	if err != nil {
		return nil, err
	}
	outs := f.g.Outputs()
	res := make([][]ir.Value, len(outs))
	for i, id := range outs {
		res[i] = f.slots[id].get()
	}
	return res, nil
}

func (f *frame) evaluateSequential(ctx context.Context) error {
	for _, n := range f.g.Nodes() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.step(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// evaluateParallel runs nodes on a worker pool as soon as their inputs are
// ready. Nodes that talk to the network are additionally chained in node
// order, so every party issues its sends and receives in the same order
// and per-pair FIFO delivery matches them up.
func (f *frame) evaluateParallel(ctx context.Context) error {
	nodes := f.g.Nodes()
	pending := make([]atomic.Int32, len(nodes))
	dependents := make([][]int, len(nodes))

	lastComm := -1
	for _, n := range nodes {
		deps := make(map[int]bool, len(n.Inputs)+1)
		for _, in := range n.Inputs {
			deps[in] = true
		}
		if f.talks(n) {
			if lastComm >= 0 {
				deps[lastComm] = true
			}
			lastComm = n.ID
		}
		for d := range deps {
			dependents[d] = append(dependents[d], n.ID)
		}
		pending[n.ID].Store(int32(len(deps)))
	}

	ready := make(chan int, len(nodes))
	for _, n := range nodes {
		if pending[n.ID].Load() == 0 {
			ready <- n.ID
		}
	}

	var done atomic.Int64
	total := int64(len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < min(f.r.ev.parallelism, len(nodes)); w++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case id, ok := <-ready:
					if !ok {
						return nil
					}
					if err := f.step(gctx, nodes[id]); err != nil {
						return err
					}
					for _, d := range dependents[id] {
						if pending[d].Add(-1) == 0 {
							ready <- d
						}
					}
					if done.Add(1) == total {
						close(ready)
					}
				}
			}
		})
	}
	// errgroup keeps the first error, which is the failure that cancelled
	// the other workers.
	return g.Wait()
}

// talks reports whether evaluating n may touch the transport.
func (f *frame) talks(n *graph.Node) bool {
	if f.r.mode != modeParty {
		return false
	}
	if n.Op.Kind.IsCommunication() {
		return true
	}
	if n.Op.Kind == ir.OpCall {
		callee, err := f.g.Context().Graph(n.Op.Graph)
		return err == nil && callee.Communicates()
	}
	return false
}

// step evaluates node n for every lane and stores the result.
func (f *frame) step(ctx context.Context, n *graph.Node) error {
	out, err := f.node(ctx, n)
	if err != nil {
		return err
	}
	if !f.slots[n.ID].set(out) {
		return &RuntimeError{
			Code:    ir.ErrCodeInvalidConfiguration,
			Message: "node evaluated twice",
			Graph:   f.g.ID(),
			Node:    n.ID,
			Op:      n.Op.Kind,
			Party:   NoParty,
		}
	}
	f.r.nodes.Add(1)
	return nil
}
