package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/mpcgraph/internal/ir"
)

// CompileError reports why a graph could not be lowered.
type CompileError struct {
	// Code is UNSUPPORTED_OP_FOR_MPC, MISSING_AUXILIARY_RANDOMNESS,
	// INVALID_CONFIGURATION, or the code of an underlying graph error.
	Code ir.ErrorCode

	// Message is a human-readable description.
	Message string

	// Graph and Node locate the offending source node. Node is ir.NoNode
	// for errors about the whole compilation.
	Graph int
	Node  int

	// Op is the kind of the offending source node.
	Op ir.OpKind
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Node != ir.NoNode {
		return fmt.Sprintf("%s: %s (graph=%d, node=%d, op=%s)", e.Code, e.Message, e.Graph, e.Node, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode implements ir.Coded.
func (e *CompileError) ErrorCode() ir.ErrorCode { return e.Code }

// IsUnsupported reports whether err is an UNSUPPORTED_OP_FOR_MPC failure.
// Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ir.ErrCodeUnsupportedOpForMPC
	}
	return false
}

// IsMissingRandomness reports whether err is a MISSING_AUXILIARY_RANDOMNESS
// failure.
func IsMissingRandomness(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ir.ErrCodeMissingAuxiliaryRandomness
	}
	return false
}

func configError(format string, args ...any) *CompileError {
	return &CompileError{
		Code:    ir.ErrCodeInvalidConfiguration,
		Message: fmt.Sprintf(format, args...),
		Graph:   -1,
		Node:    ir.NoNode,
	}
}

func nodeError(code ir.ErrorCode, n nodeRef, format string, args ...any) *CompileError {
	return &CompileError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Graph:   n.graph,
		Node:    n.node,
		Op:      n.op,
	}
}

// nodeRef locates the source node being lowered.
type nodeRef struct {
	graph int
	node  int
	op    ir.OpKind
}
