// Package receiver implements the Message Receiver (C3): a chunked state
// machine that reads headers from a Framed Channel, allocates payload from
// an arena, and dispatches completed messages to routing or control sinks.
package receiver

import (
	"encoding/binary"

	"github.com/someipc/go-someipc/internal/fatal"
	"github.com/someipc/go-someipc/internal/logging"
	"github.com/someipc/go-someipc/internal/ring"
	"github.com/someipc/go-someipc/internal/wire"
)

// ControlSink receives completed control-response messages.
type ControlSink interface {
	Fulfil(requestType uint32, returnCode uint32, payload []byte)
}

// RoutingSink receives completed routing and notification messages.
type RoutingSink interface {
	DeliverSomeIP(instance uint16, timestamp *uint64, body []byte)
	DeliverPDU(instance uint16, timestamp *uint64, body []byte)
	DeliverInitialField(instance, client uint16, body []byte)
	DeliverNonSomeIP(msgType uint32, specific wire.SpecificHeader, body []byte)
}

type state int

const (
	stateIPCHeader state = iota
	stateBody
)

type msgKind int

const (
	kindControlResponse msgKind = iota
	kindRoutingSomeIP
	kindRoutingSomeIPMeta
	kindRoutingPDU
	kindRoutingPDUMeta
	kindInitialField
	kindOther
	kindUnknown
)

const (
	someipHeaderLen     = 16
	someipHeaderMetaLen = 24
	pduHeaderLen         = 8
	pduHeaderMetaLen     = 16
	timestampLen         = 8
)

// Receiver drives the chunked receive state machine for one direction of a
// Framed Channel.
type Receiver struct {
	control ControlSink
	routing RoutingSink

	st state

	ipcHeaderBuf [wire.CommonHeaderSize + wire.SpecificHeaderSize]byte
	ipcFilled    int

	common      wire.CommonHeader
	specific    wire.SpecificHeader
	kind        msgKind
	requestType uint32

	bodyLen    int
	bodyBuf    []byte
	bodyFilled int
}

// New creates a Receiver dispatching to the given sinks. Either sink may be
// nil if that traffic class is not expected (e.g. before the façade binds a
// client-manager).
func New(control ControlSink, routing RoutingSink) *Receiver {
	return &Receiver{control: control, routing: routing, st: stateIPCHeader}
}

// BindSinks late-binds the routing sinks, mirroring the façade's
// bind-manager operation for client-manager/server-manager back-references.
func (r *Receiver) BindSinks(control ControlSink, routing RoutingSink) {
	r.control = control
	r.routing = routing
}

// Pump drains as much of ch's available bytes as form complete state
// transitions, dispatching every message it completes, and arms a readable
// notification once the channel runs dry. It is safe to call repeatedly
// (e.g. once per on-chunk-available callback) regardless of how the
// underlying bytes were chunked by the peer.
func (r *Receiver) Pump(ch ring.Ring) error {
	for {
		need := r.remaining()
		if need == 0 {
			if err := r.completeState(); err != nil {
				return err
			}
			continue
		}
		avail := ch.AvailableRead()
		if avail == 0 {
			return ch.RequestReadableNotification()
		}
		toRead := need
		if avail < toRead {
			toRead = avail
		}
		buf := make([]byte, toRead)
		n, err := ch.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return ch.RequestReadableNotification()
		}
		if err := ch.Commit(n); err != nil {
			return err
		}
		r.consume(buf[:n])
	}
}

// remaining returns how many more bytes the current state needs.
func (r *Receiver) remaining() int {
	switch r.st {
	case stateIPCHeader:
		return len(r.ipcHeaderBuf) - r.ipcFilled
	case stateBody:
		return r.bodyLen - r.bodyFilled
	default:
		return 0
	}
}

// consume appends p into the current state's scratch/body buffer.
func (r *Receiver) consume(p []byte) {
	switch r.st {
	case stateIPCHeader:
		r.ipcFilled += copy(r.ipcHeaderBuf[r.ipcFilled:], p)
	case stateBody:
		r.bodyFilled += copy(r.bodyBuf[r.bodyFilled:], p)
	}
}

// completeState runs when the current state's byte requirement has been
// fully satisfied, transitioning to the next state or dispatching and
// resetting back to stateIPCHeader.
func (r *Receiver) completeState() error {
	switch r.st {
	case stateIPCHeader:
		return r.onIPCHeaderComplete()
	case stateBody:
		r.dispatch()
		r.reset()
		return nil
	}
	return nil
}

func (r *Receiver) onIPCHeaderComplete() error {
	common, err := wire.UnmarshalCommonHeader(r.ipcHeaderBuf[:wire.CommonHeaderSize])
	if err != nil {
		r.dropMalformed("unmarshal common header: %v", err)
		return nil
	}
	var specific wire.SpecificHeader
	copy(specific[:], r.ipcHeaderBuf[wire.CommonHeaderSize:])

	if common.ProtocolVersion != wire.ProtocolVersion {
		r.dropMalformed("protocol version mismatch: got %d want %d", common.ProtocolVersion, wire.ProtocolVersion)
		return nil
	}
	if common.MessageLength < wire.SpecificHeaderSize {
		r.dropMalformed("message length %d below minimum %d", common.MessageLength, wire.SpecificHeaderSize)
		return nil
	}

	kind, requestType := classify(common.MessageType)
	if kind == kindUnknown {
		// The body is still read off the channel (dispatch ignores
		// kindUnknown) so the next message starts on a header boundary.
		logging.Default().Errorf("receiver: dropping message of unrecognized type %#x", common.MessageType)
	}

	bodyLen := int(common.MessageLength) - wire.SpecificHeaderSize
	if err := r.validateMinBodyLen(kind, bodyLen); err != nil {
		r.dropMalformed("%v", err)
		return nil
	}

	r.common = common
	r.specific = specific
	r.kind = kind
	r.requestType = requestType
	r.bodyLen = bodyLen
	r.bodyFilled = 0

	if bodyLen == 0 {
		r.bodyBuf = nil
		r.dispatch()
		r.reset()
		return nil
	}

	buf, ok := getBuffer(bodyLen)
	if !ok {
		fatal.Abort("receiver.onIPCHeaderComplete", "allocation-failure: body size exceeds arena capacity")
	}
	r.bodyBuf = buf
	r.st = stateBody
	return nil
}

func (r *Receiver) validateMinBodyLen(kind msgKind, bodyLen int) error {
	var min int
	switch kind {
	case kindRoutingSomeIP:
		min = someipHeaderLen
	case kindRoutingSomeIPMeta:
		min = someipHeaderMetaLen
	case kindRoutingPDU:
		min = pduHeaderLen
	case kindRoutingPDUMeta:
		min = pduHeaderMetaLen
	default:
		return nil
	}
	if bodyLen < min {
		return errTooShort(kind, bodyLen, min)
	}
	return nil
}

type shortBodyError struct {
	kind    msgKind
	bodyLen int
	min     int
}

func (e shortBodyError) Error() string {
	return "body shorter than required header"
}

func errTooShort(kind msgKind, bodyLen, min int) error {
	return shortBodyError{kind: kind, bodyLen: bodyLen, min: min}
}

// dropMalformed logs at error level and resets the reception buffer,
// per spec: any deserialization failure or protocol mismatch is non-fatal.
func (r *Receiver) dropMalformed(format string, args ...any) {
	logging.Default().Errorf("receiver: dropping malformed message: "+format, args...)
	r.reset()
}

func (r *Receiver) reset() {
	if r.bodyBuf != nil {
		putBuffer(r.bodyBuf)
	}
	r.bodyBuf = nil
	r.bodyFilled = 0
	r.bodyLen = 0
	r.ipcFilled = 0
	r.st = stateIPCHeader
}

// dispatch routes a fully received message to its sink per spec.md §4.3.
func (r *Receiver) dispatch() {
	switch r.kind {
	case kindControlResponse:
		returnCode := r.specific.ReturnCode()
		if r.control != nil {
			r.control.Fulfil(r.requestType, returnCode, r.bodyBuf)
		}
	case kindRoutingSomeIP, kindRoutingSomeIPMeta:
		instance, _ := r.specific.InstanceReserved()
		body := r.bodyBuf
		var ts *uint64
		if r.kind == kindRoutingSomeIPMeta {
			v := binary.LittleEndian.Uint64(body[:timestampLen])
			ts = &v
			body = body[timestampLen:]
		}
		if r.routing != nil {
			r.routing.DeliverSomeIP(instance, ts, body)
		}
	case kindRoutingPDU, kindRoutingPDUMeta:
		instance, _ := r.specific.InstanceReserved()
		body := r.bodyBuf
		var ts *uint64
		if r.kind == kindRoutingPDUMeta {
			v := binary.LittleEndian.Uint64(body[:timestampLen])
			ts = &v
			body = body[timestampLen:]
		}
		if r.routing != nil {
			r.routing.DeliverPDU(instance, ts, body)
		}
	case kindInitialField:
		instance, client := r.specific.InstanceClient()
		if r.routing != nil {
			r.routing.DeliverInitialField(instance, client, r.bodyBuf)
		}
	case kindOther:
		if r.routing != nil {
			r.routing.DeliverNonSomeIP(r.common.MessageType, r.specific, r.bodyBuf)
		}
	}
}

// classify determines the semantic kind of a message type and, for control
// responses, recovers the originating request type.
func classify(t uint32) (msgKind, uint32) {
	switch t {
	case wire.MsgRoutingSomeIP:
		return kindRoutingSomeIP, 0
	case wire.MsgRoutingSomeIPWithMeta:
		return kindRoutingSomeIPMeta, 0
	case wire.MsgRoutingPDU:
		return kindRoutingPDU, 0
	case wire.MsgRoutingPDUWithMeta:
		return kindRoutingPDUMeta, 0
	case wire.MsgInitialFieldNotif:
		return kindInitialField, 0
	case wire.MsgEventSubscriptionState, wire.MsgServiceInstanceUp, wire.MsgServiceInstanceDown:
		return kindOther, 0
	}
	// Only the message types enumerated above are recognized routing
	// traffic; any other value in the routing numeric range is treated the
	// same as any other unrecognized value below (dropped, per S6) — the
	// receiver only ever sees daemon->app traffic, so a bare, unlisted
	// control-request-range value reaching here is never valid either.
	positiveCandidate := t ^ wire.ControlResponsePositiveMask
	if wire.IsControlRequest(positiveCandidate) {
		return kindControlResponse, positiveCandidate
	}
	negativeCandidate := t ^ wire.ControlResponseNegativeMask
	if wire.IsControlRequest(negativeCandidate) {
		return kindControlResponse, negativeCandidate
	}
	return kindUnknown, 0
}
