package eval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/logging"
	"github.com/roach88/mpcgraph/internal/sharing"
	"github.com/roach88/mpcgraph/internal/transport"
)

// Result is the outcome of a plaintext or delegated run.
type Result struct {
	RunID string

	// Types lists the static types of the main graph's outputs.
	Types []ir.Type

	// Outputs holds one value per main graph output. In a delegated run
	// these are the local party's shares.
	Outputs []ir.Value

	// Nodes counts node evaluations, callee nodes included.
	Nodes int64
}

// SimulationResult is the outcome of a simulated run of all parties.
type SimulationResult struct {
	RunID string
	Types []ir.Type

	// Shares[p][i] is party p's share of output i.
	Shares [][]ir.Value

	Nodes int64
}

// Reconstruct sums the parties' shares of every output.
func (r *SimulationResult) Reconstruct() ([]ir.Value, error) {
	return sharing.ReconstructAll(r.Types, r.Shares)
}

// Evaluate runs the main graph of c on plaintext inputs. inputs are
// positional over the main graph's input nodes and must all be bound.
// Protocol ops fail INVALID_CONFIGURATION: a compiled context can only be
// simulated or run by its parties.
func (e *Evaluator) Evaluate(ctx context.Context, c *graph.Context, inputs []ir.Value) (*Result, error) {
	main, err := mainGraph(c)
	if err != nil {
		return nil, err
	}
	r := e.newRun(modePlain, 0, []int{NoParty}, nil)
	params, err := r.bind(main, [][]ir.Value{inputs})
	if err != nil {
		return nil, err
	}
	outs, err := e.execute(ctx, r, main, params)
	if err != nil {
		return nil, err
	}
	return &Result{RunID: r.id, Types: outputTypes(main), Outputs: column(outs, 0), Nodes: r.nodes.Load()}, nil
}

// Simulate runs a compiled context for all parties in lockstep inside one
// process. Each input is bound at the party that owns it; every other party
// binds the zero value. A receive copies the sender's value of the matching
// send, so simulation never blocks.
func (e *Evaluator) Simulate(ctx context.Context, c *graph.Context, parties int, inputs []ir.Value) (*SimulationResult, error) {
	main, err := mainGraph(c)
	if err != nil {
		return nil, err
	}
	return e.SimulateShared(ctx, c, parties, ownerBindings(main, parties, inputs))
}

// SimulateShared is Simulate with one binding list per party: party p
// binds bindings[p][i] to input i. An input compiled as shared takes every
// party's value as its share; any other input only reads its owner's.
func (e *Evaluator) SimulateShared(ctx context.Context, c *graph.Context, parties int, bindings [][]ir.Value) (*SimulationResult, error) {
	main, err := mainGraph(c)
	if err != nil {
		return nil, err
	}
	if err := checkParties(c, parties); err != nil {
		return nil, err
	}
	if len(bindings) != parties {
		return nil, runError(ir.ErrCodeInvalidConfiguration, "got bindings for %d parties, want %d", len(bindings), parties)
	}
	lanes := make([]int, parties)
	for i := range lanes {
		lanes[i] = i
	}
	r := e.newRun(modeSimulate, parties, lanes, nil)
	params, err := r.bind(main, bindings)
	if err != nil {
		return nil, err
	}
	outs, err := e.execute(ctx, r, main, params)
	if err != nil {
		return nil, err
	}
	shares := make([][]ir.Value, parties)
	for p := range shares {
		shares[p] = column(outs, p)
	}
	return &SimulationResult{RunID: r.id, Types: outputTypes(main), Shares: shares, Nodes: r.nodes.Load()}, nil
}

// EvaluateParty runs one party of a compiled context, exchanging messages
// with the other parties through net. Only the inputs owned by party need
// to be bound. A value bound to another party's input is this party's share
// when the input was compiled as shared; otherwise the protocol discards it.
// Transport failures abort the run with COMMUNICATION_FAILURE and are never
// retried.
func (e *Evaluator) EvaluateParty(ctx context.Context, c *graph.Context, party, parties int, inputs []ir.Value, net transport.Transport) (*Result, error) {
	main, err := mainGraph(c)
	if err != nil {
		return nil, err
	}
	if err := checkParties(c, parties); err != nil {
		return nil, err
	}
	if party < 0 || party >= parties {
		return nil, runError(ir.ErrCodeInvalidConfiguration, "party %d out of range for %d parties", party, parties)
	}
	if net == nil {
		return nil, runError(ir.ErrCodeInvalidConfiguration, "delegated evaluation needs a transport")
	}
	r := e.newRun(modeParty, parties, []int{party}, net)
	params, err := r.bind(main, [][]ir.Value{inputs})
	if err != nil {
		return nil, err
	}
	outs, err := e.execute(ctx, r, main, params)
	if err != nil {
		return nil, err
	}
	return &Result{RunID: r.id, Types: outputTypes(main), Outputs: column(outs, 0), Nodes: r.nodes.Load()}, nil
}

// RunParties runs every party with EvaluateParty concurrently over net and
// collects their shares. The first failure cancels the other parties.
func (e *Evaluator) RunParties(ctx context.Context, c *graph.Context, parties int, inputs []ir.Value, net transport.Transport) (*SimulationResult, error) {
	bindings := make([][]ir.Value, parties)
	for p := range bindings {
		bindings[p] = inputs
	}
	return e.RunPartiesShared(ctx, c, parties, bindings, net)
}

// RunPartiesShared is RunParties with one binding list per party, as in
// SimulateShared.
func (e *Evaluator) RunPartiesShared(ctx context.Context, c *graph.Context, parties int, bindings [][]ir.Value, net transport.Transport) (*SimulationResult, error) {
	main, err := mainGraph(c)
	if err != nil {
		return nil, err
	}
	if len(bindings) != parties {
		return nil, runError(ir.ErrCodeInvalidConfiguration, "got bindings for %d parties, want %d", len(bindings), parties)
	}
	results := make([]*Result, parties)
	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < parties; p++ {
		g.Go(func() error {
			res, err := e.EvaluateParty(gctx, c, p, parties, bindings[p], net)
			if err != nil {
				return err
			}
			results[p] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := &SimulationResult{Types: outputTypes(main), Shares: make([][]ir.Value, parties)}
	for p, res := range results {
		out.Shares[p] = res.Outputs
		out.Nodes += res.Nodes
	}
	out.RunID = results[0].RunID
	return out, nil
}

func (e *Evaluator) newRun(m mode, parties int, lanes []int, net transport.Transport) *run {
	return &run{
		ev:      e,
		id:      e.runIDs.Generate(),
		mode:    m,
		parties: parties,
		lanes:   lanes,
		net:     net,
	}
}

func (e *Evaluator) log(ctx context.Context) *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.FromContext(ctx)
}

func (e *Evaluator) execute(ctx context.Context, r *run, main *graph.Graph, params [][]ir.Value) ([][]ir.Value, error) {
	log := e.log(ctx).With("run", r.id, "mode", r.mode.String())
	if r.mode == modeParty {
		log = log.With("party", r.lanes[0])
	}
	log.Debug("evaluation started", "graph", main.ID(), "nodes", main.Len(), "parties", r.parties)
	start := time.Now()

	outs, err := newFrame(r, main, fmt.Sprintf("g%d", main.ID()), params).evaluate(ctx)
	if err != nil {
		log.Debug("evaluation failed", "error", err)
		return nil, err
	}
	log.Debug("evaluation finished", "evaluated", r.nodes.Load(), "elapsed", time.Since(start))
	for i, id := range main.Outputs() {
		log.Debug("output ready", "index", i, "type", main.Nodes()[id].Type.String(), logging.Redacted("value"))
	}
	return outs, nil
}

// bind turns per-lane positional inputs into per-lane parameters of the
// main graph: lane k reads lanes[k], or lanes[0] when only one list is
// given. An input owned by the lane's party must be bound; any other
// unbound input binds the zero value.
func (r *run) bind(main *graph.Graph, lanes [][]ir.Value) ([][]ir.Value, error) {
	nodes := main.Inputs()
	params := make([][]ir.Value, len(nodes))
	for i := range params {
		params[i] = make([]ir.Value, len(r.lanes))
	}
	for lane, party := range r.lanes {
		inputs := lanes[0]
		if len(lanes) > 1 {
			inputs = lanes[lane]
		}
		if len(inputs) > len(nodes) {
			return nil, runError(ir.ErrCodeInvalidConfiguration, "got %d input bindings, graph has %d inputs", len(inputs), len(nodes))
		}
		for i, n := range nodes {
			var v ir.Value
			if i < len(inputs) {
				v = inputs[i]
			}
			owner := r.mode == modePlain || party == n.Op.Party
			switch {
			case v == nil && owner:
				return nil, inputError(ir.ErrCodeMissingInputBinding, main, n, "input %d (%q) is not bound", i, n.Op.Name)
			case v == nil:
				v = ir.Zero(n.Type)
			default:
				if err := ir.CheckValue(n.Type, v); err != nil {
					return nil, inputError(ir.ErrCodeTypeMismatch, main, n, "input %d (%q): %v", i, n.Op.Name, err)
				}
			}
			params[i][lane] = v
		}
	}
	return params, nil
}

// ownerBindings gives each party only the inputs it owns.
func ownerBindings(main *graph.Graph, parties int, inputs []ir.Value) [][]ir.Value {
	nodes := main.Inputs()
	bindings := make([][]ir.Value, parties)
	for p := range bindings {
		bindings[p] = make([]ir.Value, len(inputs))
		for i, v := range inputs {
			if i >= len(nodes) || nodes[i].Op.Party == p {
				bindings[p][i] = v
			}
		}
	}
	return bindings
}

func inputError(code ir.ErrorCode, g *graph.Graph, n *graph.Node, format string, args ...any) *RuntimeError {
	re := runError(code, format, args...)
	re.Graph, re.Node, re.Op, re.Party = g.ID(), n.ID, n.Op.Kind, n.Op.Party
	return re
}

func mainGraph(c *graph.Context) (*graph.Graph, error) {
	main, err := c.Main()
	if err != nil {
		return nil, runError(ir.ErrCodeInvalidConfiguration, "context has no main graph")
	}
	if !main.Finalized() {
		return nil, runError(ir.ErrCodeGraphNotFinalized, "main graph %d is not finalized", main.ID())
	}
	return main, nil
}

// checkParties rejects party counts that some node of c does not fit in.
func checkParties(c *graph.Context, parties int) error {
	if parties < 2 {
		return runError(ir.ErrCodeInvalidConfiguration, "parties must be at least 2, got %d", parties)
	}
	for _, g := range c.Graphs() {
		for _, n := range g.Nodes() {
			op := n.Op
			bad := (op.Kind.UsesParty() && op.Party >= parties) ||
				(op.Kind.IsCommunication() && (op.From >= parties || op.To >= parties))
			if bad {
				return &RuntimeError{
					Code:    ir.ErrCodeInvalidConfiguration,
					Message: fmt.Sprintf("%s does not fit %d parties", op, parties),
					Graph:   g.ID(),
					Node:    n.ID,
					Op:      op.Kind,
					Party:   NoParty,
				}
			}
		}
	}
	return nil
}

func outputTypes(g *graph.Graph) []ir.Type {
	outs := g.Outputs()
	types := make([]ir.Type, len(outs))
	for i, id := range outs {
		types[i] = g.Nodes()[id].Type
	}
	return types
}

// column picks one lane out of per-output lanes.
func column(outs [][]ir.Value, lane int) []ir.Value {
	res := make([]ir.Value, len(outs))
	for i, o := range outs {
		res[i] = o[lane]
	}
	return res
}
