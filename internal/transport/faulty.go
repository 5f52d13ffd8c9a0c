package transport

import (
	"context"
	"sync"
)

// Faulty wraps a transport and fails every send after the first k.
// Receives pass through, so a receiver waiting on a dropped message blocks
// until its context ends.
type Faulty struct {
	inner Transport
	k     int

	mu    sync.Mutex
	sends int
}

// NewFaulty lets k sends through inner and fails the rest.
func NewFaulty(inner Transport, k int) *Faulty {
	return &Faulty{inner: inner, k: k}
}

// Send implements Transport.
func (f *Faulty) Send(ctx context.Context, from, to int, payload []byte) error {
	f.mu.Lock()
	f.sends++
	n := f.sends
	f.mu.Unlock()
	if n > f.k {
		return failure(from, to, "injected failure on message %d", n)
	}
	return f.inner.Send(ctx, from, to, payload)
}

// Receive implements Transport.
func (f *Faulty) Receive(ctx context.Context, from, to int) ([]byte, error) {
	return f.inner.Receive(ctx, from, to)
}
