package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcgraph/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	runFlags
	Output string
}

// CompileResult summarizes a compilation.
type CompileResult struct {
	Name         string         `json:"name"`
	SourceHash   string         `json:"source_hash"`
	Hash         string         `json:"hash"`
	Parties      int            `json:"parties"`
	TripleSource string         `json:"triple_source"`
	Stats        compiler.Stats `json:"stats"`
	Output       string         `json:"output,omitempty"`
}

func (r CompileResult) writeText(w io.Writer) {
	fmt.Fprintf(w, "✓ Compiled %s for %d parties\n", r.Name, r.Parties)
	fmt.Fprintf(w, "  source:  %s\n", r.SourceHash)
	fmt.Fprintf(w, "  context: %s\n", r.Hash)
	fmt.Fprintf(w, "  nodes:   %d -> %d in %d graph(s)\n", r.Stats.NodesIn, r.Stats.NodesOut, r.Stats.Graphs)
	fmt.Fprintf(w, "  sends:   %d, triples: %d, rounds: %d\n", r.Stats.Sends, r.Stats.Triples, r.Stats.Rounds)
	if r.Output != "" {
		fmt.Fprintf(w, "  written to %s\n", r.Output)
	}
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a definition into an MPC protocol",
		Long: `Compile a definition (CUE, HCL or YAML) or a serialized context into
a context that N parties evaluate on additive shares.

The compiled context is written as canonical JSON. When a store is
configured, both the source and the compiled context are recorded.

Examples:
  mpcgraph compile millionaires.cue
  mpcgraph compile millionaires.cue --parties 3 -o compiled.json
  mpcgraph compile dot.yaml --triples none --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file for the compiled context")
	opts.runFlags.bind(cmd, flagParties, flagTriples, flagShared, flagStore)

	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions, path string) error {
	e, ctx, err := newEnv(cmd, opts.RootOptions, &opts.runFlags)
	if err != nil {
		return err
	}

	src, err := e.load(ctx, path)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	sourceHash, err := src.Context.Hash()
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}

	compiled, stats, err := compiler.CompileWithStats(ctx, src.Context, e.cfg.Compiler())
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	body, err := compiled.Serialize()
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	hash, err := compiled.Hash()
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, body, 0o644); err != nil {
			return e.out.Fail(ExitCommandError, fmt.Errorf("write %s: %w", opts.Output, err))
		}
		e.out.VerboseLog("Wrote %d bytes to %s", len(body), opts.Output)
	}

	st, err := e.openStore()
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	if st != nil {
		defer st.Close()
		if _, err := st.WriteContext(ctx, src.Name, src.Context, 0); err != nil {
			return e.out.Fail(ExitCommandError, err)
		}
		if _, err := st.WriteContext(ctx, src.Name, compiled, e.cfg.Parties); err != nil {
			return e.out.Fail(ExitCommandError, err)
		}
	}

	result := CompileResult{
		Name:         src.Name,
		SourceHash:   sourceHash,
		Hash:         hash,
		Parties:      e.cfg.Parties,
		TripleSource: e.cfg.TripleSource,
		Stats:        stats,
		Output:       opts.Output,
	}
	return e.out.Success(result)
}
