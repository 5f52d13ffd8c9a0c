package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/graph"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	runFlags
	Compiled bool
}

// InputInfo describes one input of the main graph.
type InputInfo struct {
	Name  string `json:"name"`
	Party int    `json:"party"`
	Type  string `json:"type"`
}

// InspectResult describes a context.
type InspectResult struct {
	Name    string      `json:"name"`
	Format  string      `json:"format"`
	Hash    string      `json:"hash"`
	Graphs  int         `json:"graphs"`
	Nodes   int         `json:"nodes"`
	Inputs  []InputInfo `json:"inputs"`
	Outputs []string    `json:"outputs"`
	Listing string      `json:"listing"`
}

func (r InspectResult) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s (%s)\n", r.Name, r.Format)
	fmt.Fprintf(w, "hash: %s\n", r.Hash)
	fmt.Fprintf(w, "graphs: %d, nodes: %d\n", r.Graphs, r.Nodes)
	for _, in := range r.Inputs {
		fmt.Fprintf(w, "input %s : %s (party %d)\n", in.Name, in.Type, in.Party)
	}
	for i, t := range r.Outputs {
		fmt.Fprintf(w, "output %d : %s\n", i, t)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, r.Listing)
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the listing of a definition or context",
		Long: `Print the hash, the main graph's inputs and outputs, and the listing
of every graph of a definition or serialized context.

With --compiled the context is compiled first and the protocol is shown.

Examples:
  mpcgraph inspect millionaires.cue
  mpcgraph inspect millionaires.cue --compiled --parties 3
  mpcgraph inspect compiled.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Compiled, "compiled", false, "compile before inspecting")
	opts.runFlags.bind(cmd, flagParties, flagTriples)

	return cmd
}

func runInspect(cmd *cobra.Command, opts *InspectOptions, path string) error {
	e, ctx, err := newEnv(cmd, opts.RootOptions, &opts.runFlags)
	if err != nil {
		return err
	}

	src, err := e.load(ctx, path)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	c := src.Context
	if opts.Compiled {
		if c, err = compiler.Compile(ctx, c, e.cfg.Compiler()); err != nil {
			return e.out.Fail(ExitCommandError, err)
		}
	}

	result, err := describe(c)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	result.Name = src.Name
	result.Format = string(src.Format)
	return e.out.Success(result)
}

// describe summarizes a context.
func describe(c *graph.Context) (InspectResult, error) {
	hash, err := c.Hash()
	if err != nil {
		return InspectResult{}, err
	}
	main, err := c.Main()
	if err != nil {
		return InspectResult{}, err
	}

	r := InspectResult{
		Hash:    hash,
		Graphs:  len(c.Graphs()),
		Inputs:  []InputInfo{},
		Outputs: []string{},
		Listing: c.Listing(),
	}
	for _, g := range c.Graphs() {
		r.Nodes += g.Len()
	}
	for _, n := range main.Inputs() {
		r.Inputs = append(r.Inputs, InputInfo{Name: n.Op.Name, Party: n.Op.Party, Type: n.Type.String()})
	}
	for _, id := range main.Outputs() {
		n, err := main.Node(id)
		if err != nil {
			return InspectResult{}, err
		}
		r.Outputs = append(r.Outputs, n.Type.String())
	}
	return r, nil
}
