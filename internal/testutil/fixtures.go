package testutil

import (
	"fmt"

	"github.com/roach88/mpcgraph/internal/eval"
	"github.com/roach88/mpcgraph/internal/randomness"
)

// SequentialRunIDs generates run ids "<prefix>-0001", "<prefix>-0002", ...
//
// Unlike eval.FixedGenerator it never runs out, which suits scenarios whose
// number of runs depends on their assertions.
//
// Thread-safety: SequentialRunIDs is safe for concurrent use.
type SequentialRunIDs struct {
	prefix  string
	counter *Counter
}

var _ eval.RunIDGenerator = (*SequentialRunIDs)(nil)

// NewSequentialRunIDs creates a generator. An empty prefix becomes "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix, counter: NewCounter()}
}

// Generate returns the next run id.
func (g *SequentialRunIDs) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.counter.Next())
}

// Reset restarts the sequence.
func (g *SequentialRunIDs) Reset() {
	g.counter.Reset()
}

// Seeded returns a deterministic mask source and triple dealer derived from
// seed. Two calls with the same seed produce identical randomness.
func Seeded(seed string) (*randomness.SeededSource, *randomness.Dealer) {
	return randomness.NewSeededSource([]byte(seed)), randomness.NewDealer([]byte(seed))
}

// Evaluator returns an evaluator wired with Seeded(seed) and sequential run
// ids, so repeated runs produce identical shares and ids.
func Evaluator(seed string, opts ...eval.Option) *eval.Evaluator {
	src, dealer := Seeded(seed)
	base := []eval.Option{
		eval.WithRandomness(src),
		eval.WithTriples(dealer),
		eval.WithRunIDs(NewSequentialRunIDs(seed)),
	}
	return eval.New(append(base, opts...)...)
}
