package frontend

import (
	"errors"
	"fmt"

	"github.com/roach88/mpcgraph/internal/ir"
)

// LoadError is a failure to read or build a definition. Code is
// MALFORMED_DOCUMENT for syntax and schema problems, or the code of the
// graph construction error that rejected a node.
type LoadError struct {
	Code    ir.ErrorCode
	Pos     Pos
	Graph   string
	Node    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	loc := ""
	switch {
	case e.Pos.valid():
		loc = fmt.Sprintf("%s:%d:%d: ", e.Pos.File, e.Pos.Line, e.Pos.Column)
	case e.Pos.File != "":
		loc = e.Pos.File + ": "
	}
	if e.Node != "" {
		loc += fmt.Sprintf("graph %q node %q: ", e.Graph, e.Node)
	} else if e.Graph != "" {
		loc += fmt.Sprintf("graph %q: ", e.Graph)
	}
	return fmt.Sprintf("%s%s: %s", loc, e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ErrorCode implements ir.Coded.
func (e *LoadError) ErrorCode() ir.ErrorCode { return e.Code }

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

func malformed(pos Pos, format string, args ...any) *LoadError {
	return &LoadError{Code: ir.ErrCodeMalformedDocument, Pos: pos, Message: fmt.Sprintf(format, args...)}
}
