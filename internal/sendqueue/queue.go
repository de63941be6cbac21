// Package sendqueue implements the Send Queue (C4): a bounded, ordered FIFO
// of outgoing messages split into two admission classes — data and command.
// Entries are ordinary heap allocations, not drawn from pool arenas; the
// data class is bounded by a count of outstanding data entries.
package sendqueue

import "errors"

// ErrResourceExhausted is returned by PushBackData when the data pool is in
// steady mode and already at capacity.
var ErrResourceExhausted = errors.New("sendqueue: resource exhausted")

// Entry is one queued outgoing message: the serialized IPC header block
// plus the user payload, linked into the FIFO.
type Entry struct {
	Header  []byte
	Payload []byte
	class   admissionClass
	next    *Entry
}

type admissionClass int

const (
	classData admissionClass = iota
	classCommand
)

// Queue is a singly-linked FIFO fed by two admission classes that share one
// logical ordering. Not safe for concurrent use — the façade serializes
// access with its client-wide mutex.
type Queue struct {
	head, tail *Entry

	dataCount   int
	dataCap     int // 0 = unlimited
	steadyMode  bool
}

// New creates an empty Queue. dataCap bounds the number of outstanding data
// entries when SetSteadyMode(true) is in effect; 0 means unbounded.
func New(dataCap int) *Queue {
	return &Queue{dataCap: dataCap}
}

// SetSteadyMode toggles whether the data pool refuses further allocation
// beyond its capacity (true) or may grow from an upstream allocator
// (false). Matches spec.md §4.4's explicit-method steady-mode toggle.
func (q *Queue) SetSteadyMode(on bool) { q.steadyMode = on }

// PushBackData enqueues a data-class entry. Fails with
// ErrResourceExhausted if steady mode is on and the data pool is full.
func (q *Queue) PushBackData(header, payload []byte) error {
	if q.steadyMode && q.dataCap > 0 && q.dataCount >= q.dataCap {
		return ErrResourceExhausted
	}
	q.pushBack(&Entry{Header: header, Payload: payload, class: classData})
	q.dataCount++
	return nil
}

// PushBackCommand enqueues a command-class entry. The command pool is
// unbounded in steady-state operation, per spec.md §4.4.
func (q *Queue) PushBackCommand(header, payload []byte) error {
	q.pushBack(&Entry{Header: header, Payload: payload, class: classCommand})
	return nil
}

func (q *Queue) pushBack(e *Entry) {
	if q.tail == nil {
		q.head, q.tail = e, e
		return
	}
	q.tail.next = e
	q.tail = e
}

// Front returns the head entry. The result is undefined if the queue is
// empty — callers must check IsEmpty first, per spec.md §4.4.
func (q *Queue) Front() *Entry { return q.head }

// PopFront removes the head entry; a no-op if the queue is empty.
func (q *Queue) PopFront() {
	if q.head == nil {
		return
	}
	if q.head.class == classData {
		q.dataCount--
	}
	q.head = q.head.next
	if q.head == nil {
		q.tail = nil
	}
}

// IsEmpty reports whether the queue has no entries.
func (q *Queue) IsEmpty() bool { return q.head == nil }
