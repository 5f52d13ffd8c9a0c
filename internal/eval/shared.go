package eval

import (
	"io"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/sharing"
)

// ShareInputs builds per-party bindings for SimulateShared and
// RunPartiesShared from plaintext inputs. Inputs whose name is in shared are
// split into additive shares drawn from r, in input order; every other
// input is given to its owner only. shared must match the list the context
// was compiled with.
func ShareInputs(c *graph.Context, parties int, inputs []ir.Value, shared []string, r io.Reader) ([][]ir.Value, error) {
	main, err := mainGraph(c)
	if err != nil {
		return nil, err
	}
	if parties < 2 {
		return nil, runError(ir.ErrCodeInvalidConfiguration, "parties must be at least 2, got %d", parties)
	}
	names := make(map[string]bool, len(shared))
	for _, name := range shared {
		names[name] = true
	}

	bindings := ownerBindings(main, parties, inputs)
	for i, n := range main.Inputs() {
		if !names[n.Op.Name] {
			continue
		}
		if i >= len(inputs) || inputs[i] == nil {
			return nil, inputError(ir.ErrCodeMissingInputBinding, main, n, "shared input %d (%q) is not bound", i, n.Op.Name)
		}
		if err := ir.CheckValue(n.Type, inputs[i]); err != nil {
			return nil, inputError(ir.ErrCodeTypeMismatch, main, n, "shared input %d (%q): %v", i, n.Op.Name, err)
		}
		shares, err := sharing.Share(inputs[i], n.Type, parties, r)
		if err != nil {
			return nil, inputError(ir.ErrCodeMissingAuxiliaryRandomness, main, n, "sharing input %d (%q): %v", i, n.Op.Name, err)
		}
		for p := range bindings {
			bindings[p][i] = shares[p]
		}
	}
	return bindings, nil
}
