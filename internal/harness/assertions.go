package harness

import (
	"context"
	"fmt"

	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/frontend"
	"github.com/roach88/mpcgraph/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// evaluateAssertions checks every assertion and returns the failure
// messages. A run failure that no error assertion expects is itself a
// failure.
func (h *Harness) evaluateAssertions(ctx context.Context, result *Result) []string {
	var errs []string
	expectsError := false
	for i, a := range h.scenario.Assertions {
		if a.Type == AssertError {
			expectsError = true
		}
		if err := h.check(ctx, result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	if result.Failure != nil && !expectsError {
		errs = append(errs, fmt.Sprintf("run failed: %v", result.Failure))
	}
	return errs
}

func (h *Harness) check(ctx context.Context, result *Result, a Assertion) error {
	if a.Type == AssertError {
		return assertError(result, a)
	}
	if result.Failure != nil {
		// Already reported by evaluateAssertions, or expected.
		return nil
	}
	switch a.Type {
	case AssertEquivalent:
		return assertEquivalent(result)
	case AssertOutput:
		return assertOutput(result, a)
	case AssertStat:
		return assertStat(result.Stats, a)
	case AssertDeterministic:
		return h.assertDeterministic(ctx, result)
	case AssertStoredRuns:
		return h.assertStoredRuns(ctx, result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEquivalent checks that reconstruction yields the plaintext outputs.
func assertEquivalent(result *Result) error {
	if len(result.Reconstructed) != len(result.Plaintext) {
		return &AssertionError{
			Type:     AssertEquivalent,
			Expected: fmt.Sprintf("%d outputs", len(result.Plaintext)),
			Actual:   fmt.Sprintf("%d outputs", len(result.Reconstructed)),
		}
	}
	for i := range result.Plaintext {
		if !ir.EqualValues(result.Plaintext[i], result.Reconstructed[i]) {
			return &AssertionError{
				Type:     AssertEquivalent,
				Expected: fmt.Sprintf("output %d = %s", i, render(result.Types[i], result.Plaintext[i])),
				Actual:   render(result.Types[i], result.Reconstructed[i]),
			}
		}
	}
	return nil
}

// assertOutput checks one reconstructed output against a literal.
func assertOutput(result *Result, a Assertion) error {
	if a.Index >= len(result.Reconstructed) {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("output %d", a.Index),
			Actual:   fmt.Sprintf("%d outputs", len(result.Reconstructed)),
		}
	}
	t := result.Types[a.Index]
	want, err := ir.ValueFromLiteral(t, a.Value)
	if err != nil {
		return fmt.Errorf("output %d: expected value does not fit %s: %w", a.Index, t, err)
	}
	got := result.Reconstructed[a.Index]
	if !ir.EqualValues(want, got) {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("output %d = %s", a.Index, render(t, want)),
			Actual:   render(t, got),
		}
	}
	return nil
}

func statValue(s compiler.Stats, name string) int {
	switch name {
	case "nodes_in":
		return s.NodesIn
	case "nodes_out":
		return s.NodesOut
	case "graphs":
		return s.Graphs
	case "sends":
		return s.Sends
	case "triples":
		return s.Triples
	default:
		return s.Rounds
	}
}

// assertStat checks a compilation statistic.
func assertStat(s compiler.Stats, a Assertion) error {
	got := statValue(s, a.Stat)
	switch {
	case a.Count != nil && got != *a.Count:
		return &AssertionError{Type: AssertStat, Expected: fmt.Sprintf("%s = %d", a.Stat, *a.Count), Actual: fmt.Sprint(got)}
	case a.Max != nil && got > *a.Max:
		return &AssertionError{Type: AssertStat, Expected: fmt.Sprintf("%s <= %d", a.Stat, *a.Max), Actual: fmt.Sprint(got)}
	}
	return nil
}

// assertError checks that the run failed with the expected code.
func assertError(result *Result, a Assertion) error {
	if result.Failure == nil {
		return &AssertionError{Type: AssertError, Expected: a.Code, Actual: "success"}
	}
	if got := result.FailureCode(); string(got) != a.Code {
		return &AssertionError{Type: AssertError, Expected: a.Code, Actual: fmt.Sprintf("%s (%v)", got, result.Failure)}
	}
	return nil
}

// assertDeterministic recompiles the program and reruns it with a fresh
// evaluator on the same seed; the context hash and every share must match.
func (h *Harness) assertDeterministic(ctx context.Context, result *Result) error {
	src, _, err := h.source(ctx)
	if err != nil {
		return err
	}
	compiled, err := compiler.Compile(ctx, src, h.compilerConfig())
	if err != nil {
		return err
	}
	hash, err := compiled.Hash()
	if err != nil {
		return err
	}
	if hash != result.ContextHash {
		return &AssertionError{Type: AssertDeterministic, Expected: "context " + result.ContextHash, Actual: hash}
	}

	inputs, err := frontend.Bindings(src, h.scenario.Inputs)
	if err != nil {
		return err
	}
	sim, err := runMode(ctx, newEvaluator(h.scenario), h.scenario, compiled, inputs)
	if err != nil {
		return err
	}
	for p := range result.Shares {
		for i := range result.Shares[p] {
			if !ir.EqualValues(result.Shares[p][i], sim.Shares[p][i]) {
				return &AssertionError{
					Type:     AssertDeterministic,
					Expected: fmt.Sprintf("party %d share of output %d to repeat", p, i),
					Actual:   "a different share",
				}
			}
		}
	}
	return nil
}

// assertStoredRuns counts the runs recorded against the compiled context.
func (h *Harness) assertStoredRuns(ctx context.Context, result *Result, a Assertion) error {
	runs, err := h.store.ListRuns(ctx, result.ContextHash)
	if err != nil {
		return err
	}
	if len(runs) != *a.Count {
		return &AssertionError{Type: AssertStoredRuns, Expected: fmt.Sprint(*a.Count), Actual: fmt.Sprint(len(runs))}
	}
	return nil
}

// render formats a value for assertion messages. Share values never reach
// it; only plaintext and reconstructed outputs do.
func render(t ir.Type, v ir.Value) string {
	lit, err := ir.ValueToLiteral(t, v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return fmt.Sprint(lit)
}
