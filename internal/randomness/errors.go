package randomness

import (
	"errors"
	"fmt"

	"github.com/roach88/mpcgraph/internal/ir"
)

// Error reports that a randomness collaborator could not serve a request.
type Error struct {
	// Code is MISSING_AUXILIARY_RANDOMNESS for every failure of this package.
	Code ir.ErrorCode

	// Message is a human-readable description.
	Message string

	// Party is the requesting party.
	Party int

	// Instance names the node evaluation the request was made for.
	Instance string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Instance != "" {
		return fmt.Sprintf("%s: %s (party=%d, instance=%s)", e.Code, e.Message, e.Party, e.Instance)
	}
	return fmt.Sprintf("%s: %s (party=%d)", e.Code, e.Message, e.Party)
}

// ErrorCode implements ir.Coded.
func (e *Error) ErrorCode() ir.ErrorCode { return e.Code }

// IsExhausted reports whether err is a randomness failure.
// Uses errors.As to handle wrapped errors.
func IsExhausted(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

func missing(party int, instance, format string, args ...any) *Error {
	return &Error{
		Code:     ir.ErrCodeMissingAuxiliaryRandomness,
		Message:  fmt.Sprintf(format, args...),
		Party:    party,
		Instance: instance,
	}
}
