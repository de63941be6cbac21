package ring

import (
	"sync"
	"sync/atomic"
)

// MemRing is an in-process Ring backed by a plain byte slice instead of a
// shared-memory mapping, mirroring the teacher's NewStubRunner/stubLoop
// simulation mode (internal/queue/runner.go) that exercises the same state
// machine without real kernel resources. Used by unit tests and by the
// root package's MockDialer.
type MemRing struct {
	mu   sync.Mutex
	data []byte
	cap  int

	producer atomic.Uint64
	consumer atomic.Uint64
	lastOp   opDirection

	readableArmed atomic.Bool
	writableArmed atomic.Bool
	closed        atomic.Bool

	onReadableNotify func()
	onWritableNotify func()
}

// NewMemRing creates an in-memory ring of the given byte capacity.
func NewMemRing(capacity int) *MemRing {
	return &MemRing{data: make([]byte, capacity), cap: capacity}
}

// OnReadableNotify registers a callback invoked when an armed readable
// notification fires. Optional; nil disables delivery.
func (r *MemRing) OnReadableNotify(f func()) { r.onReadableNotify = f }

// OnWritableNotify registers a callback invoked when an armed writable
// notification fires.
func (r *MemRing) OnWritableNotify(f func()) { r.onWritableNotify = f }

func (r *MemRing) AvailableRead() int  { return int(r.producer.Load() - r.consumer.Load()) }
func (r *MemRing) AvailableWrite() int { return r.cap - r.AvailableRead() }

func (r *MemRing) Read(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrDisconnected
	}
	n := r.AvailableRead()
	if n > len(p) {
		n = len(p)
	}
	r.mu.Lock()
	r.lastOp = opRead
	r.mu.Unlock()
	if n == 0 {
		return 0, nil
	}
	off := int(r.consumer.Load()) % r.cap
	copied := copy(p[:n], r.data[off:])
	if copied < n {
		copied += copy(p[copied:n], r.data[:n-copied])
	}
	return n, nil
}

func (r *MemRing) Write(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrDisconnected
	}
	if len(p) > r.AvailableWrite() {
		return 0, ErrRingFull
	}
	r.mu.Lock()
	r.lastOp = opWrite
	r.mu.Unlock()
	off := int(r.producer.Load()) % r.cap
	n := copy(r.data[off:], p)
	if n < len(p) {
		n += copy(r.data[:len(p)-n], p[n:])
	}
	return n, nil
}

func (r *MemRing) Commit(n int) error {
	if n < 0 {
		return ErrProtocolViolation
	}
	if r.closed.Load() {
		return ErrDisconnected
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.lastOp {
	case opRead:
		if n > r.AvailableRead() {
			return ErrProtocolViolation
		}
		r.consumer.Add(uint64(n))
		r.lastOp = opNone
		if r.AvailableWrite() > 0 && r.writableArmed.CompareAndSwap(true, false) && r.onWritableNotify != nil {
			r.onWritableNotify()
		}
		return nil
	case opWrite:
		if n > r.AvailableWrite() {
			return ErrProtocolViolation
		}
		r.producer.Add(uint64(n))
		r.lastOp = opNone
		if r.AvailableRead() > 0 && r.readableArmed.CompareAndSwap(true, false) && r.onReadableNotify != nil {
			r.onReadableNotify()
		}
		return nil
	default:
		if n == 0 {
			return nil
		}
		return ErrProtocolViolation
	}
}

func (r *MemRing) RequestReadableNotification() error {
	if r.closed.Load() {
		return ErrDisconnected
	}
	if r.AvailableRead() > 0 {
		return nil
	}
	r.readableArmed.Store(true)
	return nil
}

func (r *MemRing) RequestWritableNotification() error {
	if r.closed.Load() {
		return ErrDisconnected
	}
	if r.AvailableWrite() > 0 {
		return nil
	}
	r.writableArmed.Store(true)
	return nil
}

func (r *MemRing) Close() error {
	r.closed.Store(true)
	return nil
}

var _ Ring = (*MemRing)(nil)
