package harness

import (
	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/ir"
)

// Trace event types.
const (
	EventPlaintext = "plaintext"
	EventCompile   = "compile"
	EventSimulate  = "simulate"
	EventDelegated = "delegated"
	EventError     = "error"
)

// TraceEvent records one stage of a scenario run.
type TraceEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`

	// RunID is set for evaluation stages whose id is deterministic.
	RunID string `json:"run_id,omitempty"`

	// Hash is the content address of the context a stage produced.
	Hash string `json:"hash,omitempty"`

	// Outputs holds output literals of evaluation stages.
	Outputs []any `json:"outputs,omitempty"`

	// Stage and Code describe a failure.
	Stage string `json:"stage,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists the stages of the run in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	SourceHash  string         `json:"source_hash,omitempty"`
	ContextHash string         `json:"context_hash,omitempty"`
	Stats       compiler.Stats `json:"stats"`

	// Types, Plaintext and Reconstructed describe the outputs of a
	// successful run.
	Types         []ir.Type    `json:"-"`
	Plaintext     []ir.Value   `json:"-"`
	Reconstructed []ir.Value   `json:"-"`
	Shares        [][]ir.Value `json:"-"`

	// Failure is the error that stopped the run, if any.
	Failure error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FailureCode returns the error code of the failure, or "".
func (r *Result) FailureCode() ir.ErrorCode {
	if r.Failure == nil {
		return ""
	}
	return ir.CodeOf(r.Failure)
}
