package core

import "sync"

// Sink accepts deliveries. Deliver reports whether the value was queued; it
// returns false once the sink is closed and never blocks.
type Sink[T any] interface {
	Deliver(v T) bool
}

// Mailbox is an unbounded FIFO queue safe for concurrent use. Every
// successful Deliver signals the wake channel, which may be shared between
// several mailboxes so a single goroutine can wait on all of them.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	wake   chan struct{}

	// onDepth, when set, is called outside the lock with the depth after a
	// delivery.
	onDepth func(int)
}

// NewMailbox returns an open mailbox with its own wake channel.
func NewMailbox[T any]() *Mailbox[T] {
	return newMailbox[T](make(chan struct{}, 1))
}

func newMailbox[T any](wake chan struct{}) *Mailbox[T] {
	return &Mailbox[T]{wake: wake}
}

// Deliver appends v. It is a no-op returning false after Close.
func (m *Mailbox[T]) Deliver(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, v)
	depth := len(m.items)
	m.mu.Unlock()

	if m.onDepth != nil {
		m.onDepth(depth)
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Pop removes and returns the oldest value.
func (m *Mailbox[T]) Pop() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if len(m.items) == 0 {
		return zero, false
	}
	v := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	if len(m.items) == 0 {
		m.items = nil
	}
	return v, true
}

// Drain removes and returns everything queued, oldest first.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.items
	m.items = nil
	return out
}

// Len returns the current depth.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close rejects further deliveries and discards anything still queued,
// returning how many values were dropped. Closing twice is harmless.
func (m *Mailbox[T]) Close() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := len(m.items)
	m.items = nil
	m.closed = true
	return dropped
}

// Closed reports whether Close has been called.
func (m *Mailbox[T]) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Wake returns the channel signalled after each delivery.
func (m *Mailbox[T]) Wake() <-chan struct{} { return m.wake }
