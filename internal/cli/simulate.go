package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/eval"
	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/store"
	"github.com/roach88/mpcgraph/internal/transport"
)

// ErrCodeMismatch reports reconstructed outputs that differ from the
// plaintext evaluation.
const ErrCodeMismatch = "RECONSTRUCTION_MISMATCH"

// Run modes recorded in the store.
const (
	modePlaintext = "plaintext"
	modeSimulate  = "simulate"
	modeDelegated = "delegated"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	runFlags
	Delegated bool
}

// SimulateResult is the outcome of a simulation checked against plaintext.
type SimulateResult struct {
	Name        string         `json:"name"`
	Mode        string         `json:"mode"`
	Parties     int            `json:"parties"`
	ContextHash string         `json:"context_hash"`
	RunID       string         `json:"run_id"`
	Stats       compiler.Stats `json:"stats"`
	Outputs     []OutputValue  `json:"outputs"`
	Plaintext   []OutputValue  `json:"plaintext"`
	Match       bool           `json:"match"`
}

func (r SimulateResult) writeText(w io.Writer) {
	mark := "✓"
	if !r.Match {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s Simulated %s with %d parties (%s, run %s)\n", mark, r.Name, r.Parties, r.Mode, r.RunID)
	fmt.Fprintf(w, "  sends: %d, triples: %d, rounds: %d\n", r.Stats.Sends, r.Stats.Triples, r.Stats.Rounds)
	writeOutputs(w, r.Outputs)
	if !r.Match {
		fmt.Fprintln(w, "  plaintext:")
		writeOutputs(w, r.Plaintext)
	}
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Compile and run all parties, checking against plaintext",
		Long: `Evaluate a definition in plaintext, compile it for N parties, run
every party and reconstruct the outputs from their shares.

By default the parties run in lockstep in one process. With --delegated
each party runs separately and exchanges messages over an in-memory
network. Inputs named with --shared are dealt to every party as additive
shares before the run instead of being shared by their owner.

Exit codes:
  0 - Reconstructed outputs equal the plaintext outputs
  1 - Reconstructed outputs differ
  2 - Command error (load, compile or evaluation failure)

Examples:
  mpcgraph simulate millionaires.cue --inputs bindings.yaml
  mpcgraph simulate millionaires.cue --inputs bindings.yaml --parties 3 --delegated
  mpcgraph simulate dot.yaml --inputs dot-inputs.yaml --seed fixture --format json
  mpcgraph simulate millionaires.cue --inputs bindings.yaml --shared alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Delegated, "delegated", false, "run parties separately over an in-memory network")
	opts.runFlags.bind(cmd, flagInputs, flagParties, flagTriples, flagShared, flagSeed, flagParallelism, flagStore)

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *SimulateOptions, path string) error {
	e, ctx, err := newEnv(cmd, opts.RootOptions, &opts.runFlags)
	if err != nil {
		return err
	}

	src, err := e.load(ctx, path)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	inputs, err := e.bindings(src.Context)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	ev, err := e.evaluator()
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	st, err := e.openStore()
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	if st != nil {
		defer st.Close()
	}

	srcHash, err := e.writeContext(ctx, st, src.Name, src.Context, 0)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	plainRun := store.Run{ContextHash: srcHash, Mode: modePlaintext, Party: -1}
	plain, err := ev.Evaluate(ctx, src.Context, inputs)
	if err != nil {
		plainRun.ID = eval.UUIDv7Generator{}.Generate()
		e.recordFailure(ctx, st, plainRun, err)
		return e.out.Fail(ExitCommandError, err)
	}
	plainRun.ID, plainRun.Nodes = plain.RunID, plain.Nodes
	e.recordRun(ctx, st, plainRun, plain.Types, plain.Outputs)
	e.out.VerboseLog("Plaintext run %s evaluated %d nodes", plain.RunID, plain.Nodes)

	compiled, stats, err := compiler.CompileWithStats(ctx, src.Context, e.cfg.Compiler())
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	hash, err := e.writeContext(ctx, st, src.Name, compiled, e.cfg.Parties)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	e.out.VerboseLog("Compiled %s: %d -> %d nodes", hash, stats.NodesIn, stats.NodesOut)

	mode := modeSimulate
	if opts.Delegated {
		mode = modeDelegated
	}
	run := store.Run{ContextHash: hash, Mode: mode, Parties: e.cfg.Parties, Party: -1}
	bindings, err := e.partyBindings(compiled, inputs)
	var sim *eval.SimulationResult
	if err == nil {
		sim, err = runParties(ctx, ev, compiled, e.cfg.Parties, bindings, opts.Delegated)
	}
	if err == nil {
		var got []ir.Value
		if got, err = sim.Reconstruct(); err == nil {
			run.ID, run.Nodes = sim.RunID, sim.Nodes
			e.recordRun(ctx, st, run, sim.Types, got)
			return e.report(src.Name, mode, hash, stats, sim, got, plain)
		}
	}
	run.ID = eval.UUIDv7Generator{}.Generate()
	e.recordFailure(ctx, st, run, err)
	return e.out.Fail(ExitCommandError, err)
}

// report compares reconstructed outputs with plaintext and prints the
// result. A mismatch exits with ExitFailure.
func (e *env) report(name, mode, hash string, stats compiler.Stats, sim *eval.SimulationResult, got []ir.Value, plain *eval.Result) error {
	match := len(got) == len(plain.Outputs)
	for i := 0; match && i < len(got); i++ {
		match = ir.EqualValues(got[i], plain.Outputs[i])
	}

	outputs, err := outputLiterals(sim.Types, got)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	expected, err := outputLiterals(plain.Types, plain.Outputs)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	result := SimulateResult{
		Name:        name,
		Mode:        mode,
		Parties:     e.cfg.Parties,
		ContextHash: hash,
		RunID:       sim.RunID,
		Stats:       stats,
		Outputs:     outputs,
		Plaintext:   expected,
		Match:       match,
	}
	if err := e.out.Success(result); err != nil {
		return err
	}
	if !match {
		return NewExitError(ExitFailure, ErrCodeMismatch)
	}
	return nil
}

// runParties evaluates every party, in lockstep or over a mock network.
func runParties(ctx context.Context, ev *eval.Evaluator, c *graph.Context, parties int, bindings [][]ir.Value, delegated bool) (*eval.SimulationResult, error) {
	if !delegated {
		return ev.SimulateShared(ctx, c, parties, bindings)
	}
	net := transport.NewMockNetwork(parties)
	defer net.Close()
	return ev.RunPartiesShared(ctx, c, parties, bindings, net)
}

// writeContext records c when a store is open and returns its hash.
func (e *env) writeContext(ctx context.Context, st *store.Store, name string, c *graph.Context, parties int) (string, error) {
	if st == nil {
		return c.Hash()
	}
	rec, err := st.WriteContext(ctx, name, c, parties)
	if err != nil {
		return "", err
	}
	return rec.Hash, nil
}
