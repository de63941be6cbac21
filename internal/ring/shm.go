package ring

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/someipc/go-someipc/internal/wire"
)

// shmRing is the production Ring: a single mmap'd region holding a
// wire.RingHeader control block (producer/consumer cursors, notification-
// armed flags) followed by the byte buffer, paired with an eventfd used to
// wake the peer when a requested notification condition becomes true.
// Cursor arithmetic follows internal/uring/minimal.go's head/tail handling,
// generalized from SQE/CQE slot indices to raw byte offsets. Cursors live
// in the mapped header rather than in either peer's process memory, so the
// client and the co-located daemon observe the same cursor state.
type shmRing struct {
	mu sync.Mutex

	mapped []byte // full mmap'd region: header + data
	header wire.RingHeader
	data   []byte // data region only, data = mapped[wire.RingHeaderSize:]
	cap    int

	lastOp opDirection // which of Read/Write the pending Commit applies to

	readableEventFD int
	writableEventFD int

	closed atomic.Bool
	fd     int
}

// NewSHMRing maps wire.RingHeaderSize+cfg.Capacity bytes from cfg.FD and
// creates the pair of eventfds used for notification delivery.
func NewSHMRing(cfg Config) (Ring, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("ring: capacity must be positive, got %d", cfg.Capacity)
	}
	mapped, err := unix.Mmap(cfg.FD, 0, wire.RingHeaderSize+cfg.Capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("ring: mmap: %w", err)
	}
	rfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Munmap(mapped)
		return nil, fmt.Errorf("ring: eventfd(readable): %w", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Munmap(mapped)
		unix.Close(rfd)
		return nil, fmt.Errorf("ring: eventfd(writable): %w", err)
	}
	return &shmRing{
		mapped:          mapped,
		header:          wire.NewRingHeader(mapped),
		data:            mapped[wire.RingHeaderSize:],
		cap:             cfg.Capacity,
		readableEventFD: rfd,
		writableEventFD: wfd,
		fd:              cfg.FD,
	}, nil
}

func (r *shmRing) AvailableRead() int {
	return int(r.header.Producer() - r.header.Consumer())
}

func (r *shmRing) AvailableWrite() int {
	return r.cap - r.AvailableRead()
}

func (r *shmRing) Read(p []byte) (int, error) {
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
	off := int(r.header.Consumer()) % r.cap
	copied := copy(p[:n], r.data[off:])
	if copied < n {
		copied += copy(p[copied:n], r.data[:n-copied])
	}
	return n, nil
}

func (r *shmRing) Write(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrDisconnected
	}
	if len(p) > r.AvailableWrite() {
		return 0, ErrRingFull
	}
	r.mu.Lock()
	r.lastOp = opWrite
	r.mu.Unlock()
	off := int(r.header.Producer()) % r.cap
	n := copy(r.data[off:], p)
	if n < len(p) {
		n += copy(r.data[:len(p)-n], p[n:])
	}
	return n, nil
}

// Commit advances whichever cursor corresponds to the operation that most
// recently ran on this Ring (tracked explicitly via lastOp, set by Read and
// Write) rather than inferring direction from how n compares to the
// available-read/available-write spans: a write-commit whose size happens
// to be <= the ring's existing readable backlog is indistinguishable from a
// read-commit of that same size by byte-count alone.
func (r *shmRing) Commit(n int) error {
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
		r.header.AddConsumer(uint64(n))
		r.lastOp = opNone
		if r.AvailableWrite() > 0 && r.header.CompareAndSwapWritableArmed(true, false) {
			r.notify(r.writableEventFD)
		}
		return nil
	case opWrite:
		if n > r.AvailableWrite() {
			return ErrProtocolViolation
		}
		r.header.AddProducer(uint64(n))
		r.lastOp = opNone
		if r.AvailableRead() > 0 && r.header.CompareAndSwapReadableArmed(true, false) {
			r.notify(r.readableEventFD)
		}
		return nil
	default:
		if n == 0 {
			return nil
		}
		return ErrProtocolViolation
	}
}

func (r *shmRing) notify(fd int) {
	var buf [8]byte
	buf[0] = 1
	unix.Write(fd, buf[:])
}

func (r *shmRing) RequestReadableNotification() error {
	if r.closed.Load() {
		return ErrDisconnected
	}
	if r.AvailableRead() > 0 {
		// Already satisfiable: don't arm, fire is the caller's job to
		// notice via AvailableRead directly (spec.md's dedup rule — we
		// never arm when already true, so no spurious notification can
		// ever be queued for an already-true condition).
		return nil
	}
	r.header.StoreReadableArmed(true)
	return nil
}

func (r *shmRing) RequestWritableNotification() error {
	if r.closed.Load() {
		return ErrDisconnected
	}
	if r.AvailableWrite() > 0 {
		return nil
	}
	r.header.StoreWritableArmed(true)
	return nil
}

func (r *shmRing) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	unix.Close(r.readableEventFD)
	unix.Close(r.writableEventFD)
	return unix.Munmap(r.mapped)
}
