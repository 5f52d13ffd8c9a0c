package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcgraph/internal/eval"
	"github.com/roach88/mpcgraph/internal/store"
)

// EvaluateOptions holds flags for the evaluate command.
type EvaluateOptions struct {
	*RootOptions
	runFlags
}

// EvaluateResult is the outcome of a plaintext evaluation.
type EvaluateResult struct {
	Name        string        `json:"name"`
	ContextHash string        `json:"context_hash"`
	RunID       string        `json:"run_id"`
	Outputs     []OutputValue `json:"outputs"`
	Nodes       int64         `json:"nodes"`
}

func (r EvaluateResult) writeText(w io.Writer) {
	fmt.Fprintf(w, "✓ Evaluated %s (run %s, %d nodes)\n", r.Name, r.RunID, r.Nodes)
	writeOutputs(w, r.Outputs)
}

func writeOutputs(w io.Writer, outputs []OutputValue) {
	for _, o := range outputs {
		fmt.Fprintf(w, "  out[%d] : %s = %v\n", o.Index, o.Type, o.Value)
	}
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvaluateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "evaluate <file>",
		Short: "Evaluate a definition in plaintext",
		Long: `Evaluate the main graph of a definition on plaintext inputs.

Inputs are bound by name from a YAML file. Every input of the main graph
must be bound.

Examples:
  mpcgraph evaluate millionaires.cue --inputs bindings.yaml
  mpcgraph evaluate dot.yaml --inputs dot-inputs.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, opts, args[0])
		},
	}

	opts.runFlags.bind(cmd, flagInputs, flagParallelism, flagStore)

	return cmd
}

func runEvaluate(cmd *cobra.Command, opts *EvaluateOptions, path string) error {
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
	contextHash, err := e.writeContext(ctx, st, src.Name, src.Context, 0)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	run := store.Run{ContextHash: contextHash, Mode: modePlaintext, Party: -1}

	res, err := ev.Evaluate(ctx, src.Context, inputs)
	if err != nil {
		run.ID = eval.UUIDv7Generator{}.Generate()
		e.recordFailure(ctx, st, run, err)
		return e.out.Fail(ExitCommandError, err)
	}
	run.ID = res.RunID
	run.Nodes = res.Nodes
	e.recordRun(ctx, st, run, res.Types, res.Outputs)

	outputs, err := outputLiterals(res.Types, res.Outputs)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	return e.out.Success(EvaluateResult{
		Name:        src.Name,
		ContextHash: contextHash,
		RunID:       res.RunID,
		Outputs:     outputs,
		Nodes:       res.Nodes,
	})
}
