package cli

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/config"
	"github.com/roach88/mpcgraph/internal/eval"
	"github.com/roach88/mpcgraph/internal/frontend"
	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/logging"
	"github.com/roach88/mpcgraph/internal/randomness"
	"github.com/roach88/mpcgraph/internal/store"
)

// runFlags are the per-command overrides of config file values.
type runFlags struct {
	Parties     int
	Triples     string
	Seed        string
	Parallelism int
	Store       string
	Inputs      string
	Shared      []string
}

// Flag names shared by several commands.
const (
	flagParties     = "parties"
	flagTriples     = "triples"
	flagSeed        = "seed"
	flagParallelism = "parallelism"
	flagStore       = "store"
	flagInputs      = "inputs"
	flagShared      = "shared"
)

// bind registers the named flags on cmd.
func (f *runFlags) bind(cmd *cobra.Command, names ...string) {
	def := config.Default()
	for _, name := range names {
		switch name {
		case flagParties:
			cmd.Flags().IntVar(&f.Parties, flagParties, def.Parties, "number of parties")
		case flagTriples:
			cmd.Flags().StringVar(&f.Triples, flagTriples, def.TripleSource, "triple source (dealer|none)")
		case flagSeed:
			cmd.Flags().StringVar(&f.Seed, flagSeed, "", "seed for deterministic randomness")
		case flagParallelism:
			cmd.Flags().IntVar(&f.Parallelism, flagParallelism, def.Parallelism, "evaluator workers")
		case flagStore:
			cmd.Flags().StringVar(&f.Store, flagStore, "", "SQLite database recording contexts and runs")
		case flagInputs:
			cmd.Flags().StringVar(&f.Inputs, flagInputs, "", "YAML file binding input names to literals")
		case flagShared:
			cmd.Flags().StringSliceVar(&f.Shared, flagShared, nil, "inputs dealt to the parties as additive shares")
		}
	}
}

// env is the resolved environment of one command invocation.
type env struct {
	cfg    config.Config
	flags  *runFlags
	out    *OutputFormatter
	logger *slog.Logger
}

// newEnv loads the config file, applies flag overrides and installs the
// logger on the returned context.
func newEnv(cmd *cobra.Command, opts *RootOptions, flags *runFlags) (*env, context.Context, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, out.Fail(ExitCommandError, err)
	}
	if flags == nil {
		flags = &runFlags{}
	}
	changed := cmd.Flags().Changed
	if changed(flagParties) {
		cfg.Parties = flags.Parties
	}
	if changed(flagTriples) {
		cfg.TripleSource = flags.Triples
	}
	if changed(flagSeed) {
		cfg.Seed = flags.Seed
	}
	if changed(flagParallelism) {
		cfg.Parallelism = flags.Parallelism
	}
	if changed(flagStore) {
		cfg.Store = flags.Store
	}
	if changed(flagShared) {
		cfg.SharedInputs = flags.Shared
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, out.Fail(ExitCommandError, err)
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(cmd.ErrOrStderr(), level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithLogger(ctx, logger)

	return &env{cfg: cfg, flags: flags, out: out, logger: logger}, ctx, nil
}

// evaluator builds an evaluator from the configuration. A seed makes every
// key and triple reproducible; otherwise masks come from crypto/rand and the
// dealer is keyed with a fresh random seed.
func (e *env) evaluator() (*eval.Evaluator, error) {
	opts := []eval.Option{
		eval.WithLogger(e.logger),
		eval.WithParallelism(e.cfg.Parallelism),
	}

	seed := []byte(e.cfg.Seed)
	if e.cfg.Seed != "" {
		opts = append(opts, eval.WithRandomness(randomness.NewSeededSource(seed)))
	} else {
		seed = make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("generate dealer seed: %w", err)
		}
	}
	if e.cfg.TripleSource == compiler.TriplesDealer {
		opts = append(opts, eval.WithTriples(randomness.NewDealer(seed)))
	}
	return eval.New(opts...), nil
}

// partyBindings deals the inputs to the parties of a compiled context. With
// a seed the shares of shared inputs are reproducible.
func (e *env) partyBindings(c *graph.Context, inputs []ir.Value) ([][]ir.Value, error) {
	var r io.Reader = rand.Reader
	if e.cfg.Seed != "" {
		r = randomness.NewStream([]byte(e.cfg.Seed), "inputs")
	}
	return eval.ShareInputs(c, e.cfg.Parties, inputs, e.cfg.SharedInputs, r)
}

// openStore opens the configured store. It returns nil when recording is
// disabled.
func (e *env) openStore() (*store.Store, error) {
	if e.cfg.Store == "" {
		return nil, nil
	}
	st, err := store.Open(e.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", e.cfg.Store, err)
	}
	return st, nil
}

// load opens a definition or serialized context.
func (e *env) load(ctx context.Context, path string) (*frontend.Source, error) {
	e.out.VerboseLog("Loading %s", path)
	return frontend.Open(ctx, path)
}

// bindings reads the --inputs file and binds it to the main graph of c.
// Without a file every input stays unbound.
func (e *env) bindings(c *graph.Context) ([]ir.Value, error) {
	literals := map[string]any{}
	if e.flags.Inputs != "" {
		var err error
		literals, err = frontend.ReadBindings(e.flags.Inputs)
		if err != nil {
			return nil, err
		}
	}
	return frontend.Bindings(c, literals)
}

// recordRun stores a finished run. Failures to record are logged rather
// than reported, since the run itself succeeded.
func (e *env) recordRun(ctx context.Context, st *store.Store, run store.Run, types []ir.Type, outputs []ir.Value) {
	if st == nil {
		return
	}
	hashes, err := store.OutputHashes(types, outputs)
	if err != nil {
		e.logger.Warn("cannot hash outputs", "run_id", run.ID, "error", err)
		return
	}
	run.Status = store.StatusOK
	run.OutputHashes = hashes
	if err := st.WriteRun(ctx, run); err != nil {
		e.logger.Warn("cannot record run", "run_id", run.ID, "error", err)
	}
}

// recordFailure stores a run that ended with err.
func (e *env) recordFailure(ctx context.Context, st *store.Store, run store.Run, err error) {
	if st == nil {
		return
	}
	run.Status = store.StatusFailed
	run.ErrorCode = string(ir.CodeOf(err))
	if werr := st.WriteRun(ctx, run); werr != nil {
		e.logger.Warn("cannot record run", "run_id", run.ID, "error", werr)
	}
}

// outputLiterals renders output values as literals keyed by position.
func outputLiterals(types []ir.Type, values []ir.Value) ([]OutputValue, error) {
	out := make([]OutputValue, len(values))
	for i, v := range values {
		lit, err := ir.ValueToLiteral(types[i], v)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		out[i] = OutputValue{Index: i, Type: types[i].String(), Value: lit}
	}
	return out, nil
}

// OutputValue is one rendered graph output.
type OutputValue struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}
