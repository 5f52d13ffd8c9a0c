package transport

import (
	"context"
	"sync"
)

// MockNetwork connects n parties in memory. Every ordered pair of parties
// has an unbounded FIFO queue, so Send never blocks.
type MockNetwork struct {
	n      int
	queues []*messageQueue

	mu   sync.Mutex
	sent int
}

// NewMockNetwork creates an in-memory network for n parties.
func NewMockNetwork(n int) *MockNetwork {
	queues := make([]*messageQueue, n*n)
	for i := range queues {
		queues[i] = newMessageQueue()
	}
	return &MockNetwork{n: n, queues: queues}
}

func (m *MockNetwork) queue(from, to int) (*messageQueue, error) {
	if from < 0 || from >= m.n || to < 0 || to >= m.n || from == to {
		return nil, failure(from, to, "no link between parties %d and %d in a %d-party network", from, to, m.n)
	}
	return m.queues[from*m.n+to], nil
}

// Send implements Transport.
func (m *MockNetwork) Send(ctx context.Context, from, to int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return failure(from, to, "send cancelled: %v", err)
	}
	q, err := m.queue(from, to)
	if err != nil {
		return err
	}
	if !q.Enqueue(append([]byte(nil), payload...)) {
		return failure(from, to, "network closed")
	}
	m.mu.Lock()
	m.sent++
	m.mu.Unlock()
	return nil
}

// Receive implements Transport.
func (m *MockNetwork) Receive(ctx context.Context, from, to int) ([]byte, error) {
	q, err := m.queue(from, to)
	if err != nil {
		return nil, err
	}
	for {
		if msg, ok := q.TryDequeue(); ok {
			return msg, nil
		}
		if q.Closed() {
			return nil, failure(from, to, "network closed")
		}
		select {
		case <-ctx.Done():
			return nil, failure(from, to, "receive cancelled: %v", ctx.Err())
		case <-q.Wait():
		}
	}
}

// Sent returns the number of messages delivered to the network.
func (m *MockNetwork) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// Pending returns the number of messages queued and not yet received.
func (m *MockNetwork) Pending() int {
	total := 0
	for _, q := range m.queues {
		total += q.Len()
	}
	return total
}

// Close fails every pending and future receive.
func (m *MockNetwork) Close() {
	for _, q := range m.queues {
		q.Close()
	}
}

// messageQueue is a thread-safe FIFO of payloads.
//
// The signal channel lets receivers wait with select alongside ctx.Done()
// instead of blocking on a condition variable.
type messageQueue struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
	signal chan struct{} // buffered, size 1
}

func newMessageQueue() *messageQueue {
	return &messageQueue{signal: make(chan struct{}, 1)}
}

// Enqueue appends a payload. Returns false if the queue is closed.
func (q *messageQueue) Enqueue(msg []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.msgs = append(q.msgs, msg)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front payload without blocking.
func (q *messageQueue) TryDequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.msgs) == 0 {
		return nil, false
	}
	msg := q.msgs[0]
	q.msgs[0] = nil
	if len(q.msgs) == 1 {
		q.msgs = q.msgs[:0]
	} else {
		q.msgs = q.msgs[1:]
	}
	return msg, true
}

// Wait returns a channel that signals when payloads may be available.
func (q *messageQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued payloads.
func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Closed reports whether Close was called.
func (q *messageQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close wakes all waiters by closing the signal channel.
func (q *messageQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
