package ioctx

import "context"

// GoroutinePoller is the default Poller: it waits on two signal channels
// fed by whatever wires up the real notification primitive (an eventfd
// reader goroutine for the production shared-memory ring, or a direct
// callback for the in-memory test ring), and forwards each signal to the
// corresponding callback on the caller's goroutine. This is the "working
// default" referenced in DESIGN.md's Open Question decision — production
// deployments may swap in an epoll- or io_uring-backed Poller without
// touching the core.
type GoroutinePoller struct {
	Readable <-chan struct{}
	Writable <-chan struct{}
}

// NewGoroutinePoller creates a Poller driven by the two given signal
// channels.
func NewGoroutinePoller(readable, writable <-chan struct{}) *GoroutinePoller {
	return &GoroutinePoller{Readable: readable, Writable: writable}
}

func (p *GoroutinePoller) Run(ctx context.Context, onReadable, onWritable func()) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-p.Readable:
			if !ok {
				p.Readable = nil
				continue
			}
			if onReadable != nil {
				onReadable()
			}
		case _, ok := <-p.Writable:
			if !ok {
				p.Writable = nil
				continue
			}
			if onWritable != nil {
				onWritable()
			}
		}
	}
}

var _ Poller = (*GoroutinePoller)(nil)
