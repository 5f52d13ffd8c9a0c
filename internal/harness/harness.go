package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/mpcgraph/internal/applications"
	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/eval"
	"github.com/roach88/mpcgraph/internal/frontend"
	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/logging"
	"github.com/roach88/mpcgraph/internal/store"
	"github.com/roach88/mpcgraph/internal/testutil"
	"github.com/roach88/mpcgraph/internal/transport"
)

// Harness runs one scenario with a deterministic evaluator and an isolated
// store.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	eval     *eval.Evaluator
	seq      *testutil.Counter
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. The returned error is
// reserved for harness failures; a program that fails to load, compile or
// evaluate is reported through Result.Failure and checked by the
// scenario's error assertions.
//
// Execution flow:
//  1. Build the source context and bind the inputs
//  2. Evaluate in plaintext
//  3. Compile for the scenario's parties
//  4. Simulate or run the parties over an in-memory network
//  5. Reconstruct the outputs and evaluate the assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		store:    st,
		eval:     newEvaluator(scenario),
		seq:      testutil.NewCounter(),
		logger:   logging.FromContext(ctx).With("scenario", scenario.Name),
	}

	result := NewResult()
	if err := h.execute(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range h.evaluateAssertions(ctx, result) {
		result.AddError(msg)
	}
	h.logger.Debug("scenario finished", "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

// newEvaluator builds the scenario's evaluator. Scenarios log through the
// harness logger only.
func newEvaluator(s *Scenario) *eval.Evaluator {
	src, dealer := testutil.Seeded(s.Seed)
	return eval.New(
		eval.WithRandomness(src),
		eval.WithTriples(dealer),
		eval.WithRunIDs(testutil.NewSequentialRunIDs(s.Name)),
		eval.WithLogger(logging.Discard()),
	)
}

// execute runs the stages in order. A stage failure ends the run and is
// recorded on the result; only store failures are returned.
func (h *Harness) execute(ctx context.Context, result *Result) error {
	s := h.scenario

	src, name, err := h.source(ctx)
	if err != nil {
		h.fail(result, "load", err)
		return nil
	}
	srcRec, err := h.store.WriteContext(ctx, name, src, 0)
	if err != nil {
		return err
	}
	result.SourceHash = srcRec.Hash

	inputs, err := frontend.Bindings(src, s.Inputs)
	if err != nil {
		h.fail(result, "bind", err)
		return nil
	}

	plain, err := h.eval.Evaluate(ctx, src, inputs)
	if err != nil {
		h.fail(result, EventPlaintext, err)
		return nil
	}
	if err := h.record(ctx, plain.RunID, srcRec.Hash, EventPlaintext, -1, plain.Types, plain.Outputs, plain.Nodes); err != nil {
		return err
	}
	result.Types = plain.Types
	result.Plaintext = plain.Outputs
	h.trace(result, TraceEvent{Type: EventPlaintext, RunID: plain.RunID, Outputs: literals(plain.Types, plain.Outputs)})

	compiled, stats, err := compiler.CompileWithStats(ctx, src, h.compilerConfig())
	if err != nil {
		h.fail(result, EventCompile, err)
		return nil
	}
	rec, err := h.store.WriteContext(ctx, name, compiled, s.Parties)
	if err != nil {
		return err
	}
	result.ContextHash = rec.Hash
	result.Stats = stats
	h.trace(result, TraceEvent{Type: EventCompile, Hash: rec.Hash})

	sim, err := runMode(ctx, h.eval, s, compiled, inputs)
	if err != nil {
		h.fail(result, s.mode(), err)
		return nil
	}
	got, err := sim.Reconstruct()
	if err != nil {
		h.fail(result, s.mode(), err)
		return nil
	}
	if err := h.record(ctx, sim.RunID, rec.Hash, s.mode(), -1, sim.Types, got, sim.Nodes); err != nil {
		return err
	}
	result.Shares = sim.Shares
	result.Reconstructed = got

	ev := TraceEvent{Type: EventSimulate, RunID: sim.RunID, Outputs: literals(sim.Types, got)}
	if s.mode() == ModeDelegated {
		// Parties draw run ids concurrently, so the id is not reproducible.
		ev = TraceEvent{Type: EventDelegated, Outputs: ev.Outputs}
	}
	h.trace(result, ev)
	return nil
}

// source builds the scenario's program.
func (h *Harness) source(ctx context.Context) (*graph.Context, string, error) {
	p := h.scenario.Program
	if p.File != "" {
		src, err := frontend.Open(ctx, h.scenario.ProgramPath())
		if err != nil {
			return nil, "", err
		}
		return src.Context, src.Name, nil
	}

	params := applications.Params{N: p.N, M: p.M, K: p.K, TransposeA: p.TransposeA, TransposeB: p.TransposeB}
	if p.Type != "" {
		t, err := ir.ParseType(p.Type)
		if err != nil {
			return nil, "", err
		}
		params.Elem = t.(ir.ScalarType)
	}
	c, err := applications.Build(p.Application, params)
	if err != nil {
		return nil, "", err
	}
	return c, p.Application, nil
}

func (h *Harness) compilerConfig() compiler.Config {
	return compiler.Config{Parties: h.scenario.Parties, TripleSource: h.scenario.tripleSource()}
}

// runMode evaluates the compiled context for every party in the
// scenario's mode.
func runMode(ctx context.Context, ev *eval.Evaluator, s *Scenario, c *graph.Context, inputs []ir.Value) (*eval.SimulationResult, error) {
	if s.mode() == ModeDelegated {
		net := transport.NewMockNetwork(s.Parties)
		defer net.Close()
		return ev.RunParties(ctx, c, s.Parties, inputs, net)
	}
	return ev.Simulate(ctx, c, s.Parties, inputs)
}

// record stores a successful run. Outputs are stored by hash only.
func (h *Harness) record(ctx context.Context, id, contextHash, mode string, party int, types []ir.Type, outputs []ir.Value, nodes int64) error {
	hashes, err := store.OutputHashes(types, outputs)
	if err != nil {
		return err
	}
	return h.store.WriteRun(ctx, store.Run{
		ID:           id,
		ContextHash:  contextHash,
		Mode:         mode,
		Parties:      h.scenario.Parties,
		Party:        party,
		Status:       store.StatusOK,
		OutputHashes: hashes,
		Nodes:        nodes,
	})
}

func (h *Harness) trace(result *Result, ev TraceEvent) {
	ev.Seq = h.seq.Next()
	result.Trace = append(result.Trace, ev)
}

func (h *Harness) fail(result *Result, stage string, err error) {
	result.Failure = err
	h.trace(result, TraceEvent{Type: EventError, Stage: stage, Code: string(ir.CodeOf(err))})
	h.logger.Debug("scenario stage failed", "stage", stage, "error", err)
}

// literals renders values for the trace. Values that do not match their
// type render as nil; the equivalence assertions report those.
func literals(types []ir.Type, values []ir.Value) []any {
	out := make([]any, len(values))
	for i, v := range values {
		lit, err := ir.ValueToLiteral(types[i], v)
		if err == nil {
			out[i] = lit
		}
	}
	return out
}
