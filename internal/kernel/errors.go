package kernel

import (
	"fmt"

	"github.com/roach88/mpcgraph/internal/ir"
)

// Error is a runtime failure of a kernel, such as an out-of-range index.
// Type-level mistakes are caught by ir.InferType before a kernel runs, so
// only data-dependent failures surface here.
type Error struct {
	Code    ir.ErrorCode
	Op      ir.OpKind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

// ErrorCode implements ir.Coded.
func (e *Error) ErrorCode() ir.ErrorCode { return e.Code }

func errorf(code ir.ErrorCode, op ir.OpKind, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}
