package engine

import "sync"

// mailbox is a single-slot buffer with overwrite semantics. put never
// blocks; a value not yet taken is replaced by the next put. take blocks
// until a value arrives or the mailbox is closed.
//
// Thread-safety: any number of producers, exactly one consumer.
type mailbox[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	item    T
	full    bool
	closed  bool
	dropped uint64
}

func newMailbox[T any]() *mailbox[T] {
	m := &mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// put stores v, replacing any unconsumed value. Returns false once closed.
func (m *mailbox[T]) put(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	if m.full {
		m.dropped++
	}
	m.item = v
	m.full = true
	m.cond.Signal()
	return true
}

// take waits for a value. It returns false once the mailbox is closed, even
// if a value was pending.
func (m *mailbox[T]) take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.full && !m.closed {
		m.cond.Wait()
	}

	var zero T
	if m.closed {
		return zero, false
	}
	v := m.item
	m.item = zero
	m.full = false
	return v, true
}

// close wakes the consumer and discards any pending value.
func (m *mailbox[T]) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	var zero T
	m.closed = true
	m.item = zero
	m.full = false
	m.cond.Broadcast()
}

// droppedCount returns how many values were overwritten before being taken.
func (m *mailbox[T]) droppedCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
