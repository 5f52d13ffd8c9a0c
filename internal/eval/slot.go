package eval

import (
	"sync/atomic"

	"github.com/roach88/mpcgraph/internal/ir"
)

// slot holds the value of one node for every lane of a frame. It accepts
// exactly one write; readers only look at a slot after its node finished,
// which the scheduler guarantees through the dependency order.
type slot struct {
	v atomic.Pointer[[]ir.Value]
}

func (s *slot) set(vs []ir.Value) bool {
	return s.v.CompareAndSwap(nil, &vs)
}

func (s *slot) get() []ir.Value {
	p := s.v.Load()
	if p == nil {
		return nil
	}
	return *p
}
