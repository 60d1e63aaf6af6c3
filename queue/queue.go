// Package queue implements the mutex-guarded intrusive FIFO spec.md §4.7
// describes: used by the event loop's command channel (many producers,
// one consumer) and by each Connection's send-buffer freelist.
//
// The design is grounded on the preallocated, cycled block lists
// (toSend/sendFree) in the example pack's jchv-curvecp/conn.go, adapted
// from container/list to a hand-rolled intrusive singly-linked list per
// spec.md's explicit description: the tail field holds the address of
// the last node's next pointer, so Put never has to special-case an
// empty queue.
package queue

import "sync"

// Elem is embedded by any type that wants to be linked into a Queue.
// Embedding keeps Put/Get allocation-free: the link lives inside the
// caller's own struct rather than in a wrapper node.
type Elem struct {
	next *Elem
}

// Queue is a FIFO of *Elem-embedding values, guarded by a mutex.
type Queue struct {
	mu   sync.Mutex
	head *Elem
	tail **Elem // address of the last node's next field, or &head if empty
}

// New returns an empty queue ready for use.
func New() *Queue {
	q := &Queue{}
	q.tail = &q.head
	return q
}

// Put appends e to the tail of the queue.
func (q *Queue) Put(e *Elem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e.next = nil
	*q.tail = e
	q.tail = &e.next
}

// Get removes and returns the head of the queue, or nil if the queue is
// empty.
func (q *Queue) Get() *Elem {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.head
	if e == nil {
		return nil
	}
	q.head = e.next
	if q.head == nil {
		q.tail = &q.head
	}
	e.next = nil
	return e
}

// Empty reports whether the queue currently has no elements. Racy with
// concurrent Put/Get by design: it is meant for best-effort metrics, not
// synchronization.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head == nil
}
