package eval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/mpcgraph/internal/ir"
)

// NoParty marks errors that are not tied to one party.
const NoParty = -1

// RuntimeError represents a failure detected while evaluating a graph.
//
// Runtime errors include:
//   - Missing or mistyped input bindings
//   - Protocol ops reached in plaintext evaluation
//   - Exhausted randomness or triple sources
//   - Transport failures in delegated evaluation
//   - Data-dependent kernel failures such as out-of-range indices
//
// The first failure aborts the run; no partial results are returned.
type RuntimeError struct {
	// Code identifies the error category.
	Code ir.ErrorCode

	// Message is a human-readable description.
	Message string

	// Graph and Node locate the failing node. Node is ir.NoNode for
	// failures before evaluation starts.
	Graph int
	Node  int

	// Op is the kind of the failing node.
	Op ir.OpKind

	// Party is the party whose evaluation failed, or NoParty.
	Party int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	loc := ""
	if e.Node != ir.NoNode {
		loc = fmt.Sprintf("graph=%d, node=%d, op=%s", e.Graph, e.Node, e.Op)
	}
	if e.Party != NoParty {
		if loc != "" {
			loc += ", "
		}
		loc += fmt.Sprintf("party=%d", e.Party)
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, loc)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// ErrorCode implements ir.Coded.
func (e *RuntimeError) ErrorCode() ir.ErrorCode { return e.Code }

// IsMissingInput reports whether err is a MISSING_INPUT_BINDING failure.
// Uses errors.As to handle wrapped errors.
func IsMissingInput(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ir.ErrCodeMissingInputBinding
	}
	return false
}

// IsCommunicationFailure reports whether err is a COMMUNICATION_FAILURE.
// Uses errors.As to handle wrapped errors.
func IsCommunicationFailure(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ir.ErrCodeCommunicationFailure
	}
	return false
}

func runError(code ir.ErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Graph:   -1,
		Node:    ir.NoNode,
		Party:   NoParty,
	}
}

// nodeFailure wraps err with the location of the node that produced it.
// Errors that already carry a location pass through unchanged.
func nodeFailure(err error, g, node int, op ir.OpKind, party int) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	code := ir.CodeOf(err)
	if code == "" {
		code = ir.ErrCodeInvalidConfiguration
	} else {
		msg = strings.TrimPrefix(msg, string(code)+": ")
	}
	return &RuntimeError{
		Code:    code,
		Message: msg,
		Graph:   g,
		Node:    node,
		Op:      op,
		Party:   party,
		Err:     err,
	}
}
