// Package correlator implements the Control Correlator (C5): a registry of
// per-message-type controllers, each holding at most one pending
// single-shot promise, with disconnect-aware failure semantics.
package correlator

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/someipc/go-someipc/internal/fatal"
	"github.com/someipc/go-someipc/internal/logging"
)

// ErrorCode is the Control Correlator's error taxonomy, per spec.md §7.
type ErrorCode string

const (
	ErrAccessDenied            ErrorCode = "access-denied"
	ErrClientIDsOverflow       ErrorCode = "client-ids-overflow"
	ErrConfigurationError      ErrorCode = "configuration-error"
	ErrIncorrectResponseLength ErrorCode = "incorrect-response-length"
	ErrDisconnected            ErrorCode = "disconnected"
	ErrNotConnected            ErrorCode = "not-connected"
)

// Error wraps an ErrorCode as an error.
type Error struct{ Code ErrorCode }

func (e *Error) Error() string { return string(e.Code) }

// Return codes carried in a control-response's specific header. Only the
// success code (0) is fixed by the wire protocol itself; the remaining
// values are this client's own assignment for the daemon-reported failure
// reasons spec.md §4.5 names (the spec gives a concrete value only for
// access-denied, via scenario S2).
const (
	ReturnCodeOK                            uint32 = 0x00000000
	ReturnCodeAccessDenied                  uint32 = 0x80000002
	ReturnCodeClientIDsOverflow              uint32 = 0x80000003
	ReturnCodeRemoteServerNotFound           uint32 = 0x80000004
	ReturnCodeRequiredServiceInstanceMissing uint32 = 0x80000005
)

// expectedResponseLen is the protocol-defined fixed size of a successful
// RequestService/RequestLocalServer response body: a 16-bit client id.
const expectedResponseLen = 2

type slotState int32

const (
	slotEmpty slotState = iota
	slotAwaiting
)

// Result is the value or error a Controller's promise resolves with.
type Result struct {
	ClientID uint16
	Err      error
}

// Future is returned by Controller.Invoke; call Wait to block for the
// result. Waiting does not cancel the underlying call — only disconnect
// can do that, per spec.md §5 — so a context passed to Wait only abandons
// this particular wait, matching the teacher's AsyncStartHandle.Wait
// timeout semantics rather than introducing true cancellation.
type Future struct {
	ch <-chan Result
}

// Wait blocks until the promise resolves or ctx is done, whichever comes
// first.
func (f *Future) Wait(ctx context.Context) (uint16, error) {
	select {
	case res := <-f.ch:
		return res.ClientID, res.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Sender hands a serialized control request to the Send Queue. The header
// and payload buffers are already fully formed by the controller.
type Sender func(header, payload []byte) error

// Controller owns one promise slot for one control-request type, per
// spec.md §4.5. Not copyable; construct with NewController.
type Controller struct {
	mu          sync.Mutex
	state       slotState
	resultCh    chan Result
	requestType uint32
	send        Sender
	corrID      uuid.UUID
}

// NewController creates a Controller for requestType that hands serialized
// requests to send.
func NewController(requestType uint32, send Sender) *Controller {
	return &Controller{requestType: requestType, send: send}
}

// Invoke is the user-facing call: it hands header+payload to the Send
// Queue via Sender and returns a Future that resolves with the response.
// Exactly one call may be in flight; invoking again before the first
// resolves is a fatal programming error, per spec.md §4.5.
func (c *Controller) Invoke(header, payload []byte) *Future {
	c.mu.Lock()
	if c.state != slotEmpty {
		c.mu.Unlock()
		fatal.Abort("correlator.Invoke", "second concurrent invoke before first resolved")
	}
	ch := make(chan Result, 1)
	c.resultCh = ch
	c.state = slotAwaiting
	c.corrID = uuid.New()
	corrID := c.corrID
	c.mu.Unlock()

	if err := c.send(header, payload); err != nil {
		c.mu.Lock()
		if c.corrID == corrID {
			c.state = slotEmpty
			c.resultCh = nil
		}
		c.mu.Unlock()
		ch <- Result{Err: err}
		return &Future{ch: ch}
	}

	logging.Default().Debug("control request sent", "request_type", c.requestType, "correlation_id", corrID.String())
	return &Future{ch: ch}
}

// Fulfil is invoked by the Message Receiver when a control response for
// this controller's request type arrives.
func (c *Controller) Fulfil(returnCode uint32, payload []byte) {
	c.mu.Lock()
	if c.state != slotAwaiting {
		c.mu.Unlock()
		logging.Default().Warn("fulfil on idle controller, dropping stray response", "request_type", c.requestType)
		return
	}
	ch := c.resultCh
	c.state = slotEmpty
	c.resultCh = nil
	c.mu.Unlock()

	switch returnCode {
	case ReturnCodeOK:
		if len(payload) != expectedResponseLen {
			ch <- Result{Err: &Error{Code: ErrIncorrectResponseLength}}
			fatal.Abort("correlator.Fulfil", "response body length mismatch, peers disagree on protocol")
			return
		}
		clientID := binary.LittleEndian.Uint16(payload)
		ch <- Result{ClientID: clientID}
	case ReturnCodeAccessDenied:
		ch <- Result{Err: &Error{Code: ErrAccessDenied}}
	case ReturnCodeClientIDsOverflow:
		ch <- Result{Err: &Error{Code: ErrClientIDsOverflow}}
	case ReturnCodeRemoteServerNotFound, ReturnCodeRequiredServiceInstanceMissing:
		ch <- Result{Err: &Error{Code: ErrConfigurationError}}
	default:
		ch <- Result{Err: &Error{Code: ErrNotConnected}}
	}
}

// Disconnect fails any outstanding promise with ErrDisconnected. Calling it
// when the slot is already empty is a no-op, making repeated Disconnect
// calls (via the registry) idempotent.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	if c.state != slotAwaiting {
		c.mu.Unlock()
		return
	}
	ch := c.resultCh
	c.state = slotEmpty
	c.resultCh = nil
	c.mu.Unlock()
	ch <- Result{Err: &Error{Code: ErrDisconnected}}
}
