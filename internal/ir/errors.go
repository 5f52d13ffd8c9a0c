package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes every structured error produced by mpcgraph.
// Construction, compilation and evaluation errors share one vocabulary so
// callers can branch on the code regardless of which component failed.
type ErrorCode string

const (
	// Graph construction errors.
	ErrCodeTypeMismatch          ErrorCode = "TYPE_MISMATCH"
	ErrCodeShapeMismatch         ErrorCode = "SHAPE_MISMATCH"
	ErrCodeUnknownField          ErrorCode = "UNKNOWN_FIELD"
	ErrCodeInvalidInputReference ErrorCode = "INVALID_INPUT_REFERENCE"
	ErrCodeCyclicGraphCall       ErrorCode = "CYCLIC_GRAPH_CALL"
	ErrCodeEmptyOutputSet        ErrorCode = "EMPTY_OUTPUT_SET"
	ErrCodeUnknownNode           ErrorCode = "UNKNOWN_NODE"
	ErrCodeUnknownGraph          ErrorCode = "UNKNOWN_GRAPH"
	ErrCodeGraphFinalized        ErrorCode = "GRAPH_FINALIZED"
	ErrCodeGraphNotFinalized     ErrorCode = "GRAPH_NOT_FINALIZED"
	ErrCodeInvalidAttribute      ErrorCode = "INVALID_ATTRIBUTE"

	// Compilation errors.
	ErrCodeUnsupportedOpForMPC        ErrorCode = "UNSUPPORTED_OP_FOR_MPC"
	ErrCodeMissingAuxiliaryRandomness ErrorCode = "MISSING_AUXILIARY_RANDOMNESS"

	// Evaluation errors.
	ErrCodeMissingInputBinding  ErrorCode = "MISSING_INPUT_BINDING"
	ErrCodeCommunicationFailure ErrorCode = "COMMUNICATION_FAILURE"

	// Configuration and decoding errors.
	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrCodeMalformedDocument    ErrorCode = "MALFORMED_DOCUMENT"
)

// Coded is implemented by every structured error in mpcgraph.
type Coded interface {
	error
	ErrorCode() ErrorCode
}

// CodeOf returns the code of the first structured error in err's chain,
// or the empty code if there is none.
func CodeOf(err error) ErrorCode {
	var c Coded
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// NoNode marks an error that is not attached to a particular node.
const NoNode = -1

// TypeError is a type-inference failure. It is returned by InferType and
// wrapped into a GraphError by the graph builder, which knows the node id.
type TypeError struct {
	Code    ErrorCode
	Op      OpKind
	Message string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

// ErrorCode implements Coded.
func (e *TypeError) ErrorCode() ErrorCode { return e.Code }

func typeErrorf(code ErrorCode, op OpKind, format string, args ...any) *TypeError {
	return &TypeError{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// GraphError is a graph construction or validation error.
type GraphError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Graph is the id of the graph being built.
	Graph int

	// Node is the id the offending node has or would have had, or NoNode.
	Node int

	// Op is the op kind involved, if any.
	Op OpKind
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	switch {
	case e.Node != NoNode && e.Op != "":
		return fmt.Sprintf("%s: %s (graph=%d, node=%d, op=%s)", e.Code, e.Message, e.Graph, e.Node, e.Op)
	case e.Node != NoNode:
		return fmt.Sprintf("%s: %s (graph=%d, node=%d)", e.Code, e.Message, e.Graph, e.Node)
	default:
		return fmt.Sprintf("%s: %s (graph=%d)", e.Code, e.Message, e.Graph)
	}
}

// ErrorCode implements Coded.
func (e *GraphError) ErrorCode() ErrorCode { return e.Code }

// NewGraphError creates a GraphError.
func NewGraphError(code ErrorCode, graph, node int, op OpKind, format string, args ...any) *GraphError {
	return &GraphError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Graph:   graph,
		Node:    node,
		Op:      op,
	}
}

// DocumentError reports a malformed serialized document.
type DocumentError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", ErrCodeMalformedDocument, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrCodeMalformedDocument, e.Message)
}

// ErrorCode implements Coded.
func (e *DocumentError) ErrorCode() ErrorCode { return ErrCodeMalformedDocument }

func docErrorf(path, format string, args ...any) *DocumentError {
	return &DocumentError{Path: path, Message: fmt.Sprintf(format, args...)}
}
