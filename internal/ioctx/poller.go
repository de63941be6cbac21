// Package ioctx abstracts the reactor/event loop spec.md §1 places out of
// scope as an external collaborator. The core only needs to be told when
// each direction's Framed Channel becomes readable or writable; how that
// notification is delivered (epoll, io_uring, a dedicated OS thread) is a
// deployment choice, not a core concern — mirroring how internal/uring's
// Ring interface in the teacher keeps the concrete completion mechanism
// swappable behind a narrow contract.
package ioctx

import "context"

// Poller delivers readable/writable wake-ups for one Framed Channel
// direction to the core. A concrete Poller implementation is the one piece
// of the production deployment this client does not fully own; the
// goroutine-based GoroutinePoller in this package ships a
// working default, per the Open Question decision recorded in DESIGN.md.
type Poller interface {
	// Run blocks, invoking onReadable/onWritable as the underlying
	// transport signals them, until ctx is cancelled or a fatal transport
	// error occurs.
	Run(ctx context.Context, onReadable, onWritable func()) error
}
