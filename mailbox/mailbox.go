// Package mailbox implements the cross-goroutine handoff between network
// readers and the tick goroutine.
//
// The mailbox holds identities, not messages: a reader enqueues the connection
// that just received data, and the tick drains the whole set at once. Enqueue
// is idempotent until the next drain, so a connection that received several
// messages is processed once per tick.
package mailbox

import "sync"

// Mailbox is a set of pending items with an atomic swap-and-clear.
// Many producers may call Enqueue; only one consumer may call DrainAll.
type Mailbox[T comparable] struct {
	mu      sync.Mutex
	order   []T
	present map[T]struct{}
}

func New[T comparable]() *Mailbox[T] {
	return &Mailbox[T]{present: make(map[T]struct{})}
}

// Enqueue marks item as pending. It never blocks beyond the swap window.
func (m *Mailbox[T]) Enqueue(item T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.present[item]; ok {
		return
	}
	m.present[item] = struct{}{}
	m.order = append(m.order, item)
}

// DrainAll detaches the current pending set and returns it.
// Items enqueued after the swap show up in the next drain.
func (m *Mailbox[T]) DrainAll() []T {
	m.mu.Lock()
	drained := m.order
	m.order = nil
	m.present = make(map[T]struct{}, len(drained))
	m.mu.Unlock()
	return drained
}

// Len is a snapshot of the number of pending items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
