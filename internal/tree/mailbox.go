package tree

import (
	"context"
	"sync"
)

// mailbox is an unbounded FIFO inbox. Senders never block, so a node and
// the supervisor can always deliver to each other regardless of backlog.
type mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	signal chan struct{}
	closed bool
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{signal: make(chan struct{}, 1)}
}

// send enqueues msg and reports false when the mailbox is closed.
func (m *mailbox[T]) send(msg T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// receive blocks until a message is available, the mailbox is closed or
// ctx is done.
func (m *mailbox[T]) receive(ctx context.Context) (T, bool) {
	var zero T
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return zero, false
		}
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue[0] = zero
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, true
		}
		m.mu.Unlock()

		select {
		case <-m.signal:
		case <-ctx.Done():
			return zero, false
		}
	}
}

func (m *mailbox[T]) close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
