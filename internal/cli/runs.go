package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcgraph/internal/config"
	"github.com/roach88/mpcgraph/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	runFlags
	Context  string
	Contexts bool
}

// RunsResult lists recorded runs and, on request, contexts.
type RunsResult struct {
	Summary  store.Summary         `json:"summary"`
	Runs     []store.Run           `json:"runs"`
	Contexts []store.ContextRecord `json:"contexts,omitempty"`
}

func (r RunsResult) writeText(w io.Writer) {
	for _, c := range r.Contexts {
		kind := "source"
		if c.Compiled {
			kind = fmt.Sprintf("compiled for %d", c.Parties)
		}
		fmt.Fprintf(w, "context %s  %s (%s, %d graphs, %d nodes)\n", shortHash(c.Hash), c.Name, kind, c.Graphs, c.Nodes)
	}
	if len(r.Contexts) > 0 {
		fmt.Fprintln(w)
	}
	if len(r.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, run := range r.Runs {
		status := run.Status
		if run.ErrorCode != "" {
			status += " " + run.ErrorCode
		}
		fmt.Fprintf(w, "%4d  %s  %-9s  %s  parties=%d  nodes=%d  %s\n",
			run.Seq, run.ID, run.Mode, shortHash(run.ContextHash), run.Parties, run.Nodes, status)
	}

	sum := r.Summary
	fmt.Fprintf(w, "\n%d runs over %d contexts (%d compiled), schema v%d\n",
		sum.Runs, sum.Contexts, sum.Compiled, sum.SchemaVersion)
	codes := make([]string, 0, len(sum.Failures))
	for code := range sum.Failures {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %s x%d\n", code, sum.Failures[code])
	}
}

// shortHash abbreviates a hash for tables.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded evaluation runs",
		Long: `List the evaluation runs recorded in a store, oldest first.

Runs are recorded by evaluate and simulate when a store is configured,
either with --store or the store key of the config file.

Examples:
  mpcgraph runs --store runs.db
  mpcgraph runs --store runs.db --context <hash>
  mpcgraph runs --store runs.db --contexts --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "only runs of this context hash")
	cmd.Flags().BoolVar(&opts.Contexts, "contexts", false, "also list stored contexts")
	opts.runFlags.bind(cmd, flagStore)

	return cmd
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	e, ctx, err := newEnv(cmd, opts.RootOptions, &opts.runFlags)
	if err != nil {
		return err
	}
	if e.cfg.Store == "" {
		return e.out.Fail(ExitCommandError, &config.Error{Message: "no store configured: use --store or the store key of the config file"})
	}

	st, err := e.openStore()
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx, opts.Context)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	summary, err := st.Summarize(ctx)
	if err != nil {
		return e.out.Fail(ExitCommandError, err)
	}
	result := RunsResult{Summary: summary, Runs: runs}
	if opts.Contexts {
		if result.Contexts, err = st.ListContexts(ctx); err != nil {
			return e.out.Fail(ExitCommandError, err)
		}
	}
	return e.out.Success(result)
}
