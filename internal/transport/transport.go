// Package transport carries protocol messages between parties.
//
// The evaluator only needs an ordered byte pipe per (sender, receiver)
// pair. Transport is that contract; MockNetwork implements it in memory for
// tests and single-process simulations; Faulty wraps any transport and
// fails after a number of messages. Payloads are msgpack envelopes built by
// EncodeValue, which tag each message with the node that sent it.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/mpcgraph/internal/ir"
)

// Transport moves opaque payloads between parties. Messages from one party
// to another are delivered in the order they were sent. Receive blocks
// until a message arrives or ctx is done. Implementations must be safe for
// concurrent use by all parties.
type Transport interface {
	Send(ctx context.Context, from, to int, payload []byte) error
	Receive(ctx context.Context, from, to int) ([]byte, error)
}

// Error is a transport failure. Its code is always COMMUNICATION_FAILURE.
type Error struct {
	Message string
	From    int
	To      int
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (from=%d, to=%d)", ir.ErrCodeCommunicationFailure, e.Message, e.From, e.To)
}

// ErrorCode implements ir.Coded.
func (e *Error) ErrorCode() ir.ErrorCode { return ir.ErrCodeCommunicationFailure }

// IsCommunicationError reports whether err is a transport failure.
// Uses errors.As to handle wrapped errors.
func IsCommunicationError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

func failure(from, to int, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), From: from, To: to}
}
