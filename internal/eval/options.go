package eval

import (
	"log/slog"

	"github.com/roach88/mpcgraph/internal/randomness"
)

// Evaluator runs graphs. It holds no per-run state and is safe for
// concurrent use; every Evaluate, Simulate or EvaluateParty call gets its
// own slot caches.
type Evaluator struct {
	logger      *slog.Logger
	parallelism int
	keys        randomness.Source
	triples     randomness.TripleSource
	runIDs      RunIDGenerator
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger for run lifecycle records. Without it the
// logger carried by the context is used.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithParallelism evaluates independent nodes on up to n goroutines.
// n <= 1 evaluates nodes one at a time in node order.
func WithParallelism(n int) Option {
	return func(e *Evaluator) {
		e.parallelism = n
	}
}

// WithRandomness sets the source of PRF keys.
//
// Default: randomness.CryptoSource, fresh keys on every run.
// Use randomness.NewSeededSource for reproducible simulations.
func WithRandomness(src randomness.Source) Option {
	return func(e *Evaluator) {
		e.keys = src
	}
}

// WithTriples sets the source of Beaver triples. Without one every triple
// node fails MISSING_AUXILIARY_RANDOMNESS.
func WithTriples(src randomness.TripleSource) Option {
	return func(e *Evaluator) {
		e.triples = src
	}
}

// WithRunIDs sets the generator naming runs.
func WithRunIDs(g RunIDGenerator) Option {
	return func(e *Evaluator) {
		e.runIDs = g
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		parallelism: 1,
		keys:        randomness.CryptoSource{},
		runIDs:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
