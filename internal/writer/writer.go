// Package writer implements the Message Writer (C2): it serializes one
// message — common header, optional specific header, and a payload scatter
// buffer — into a Framed Channel, in stream mode (may suspend across calls)
// or datagram mode (all-or-nothing).
package writer

import (
	"errors"
	"sync/atomic"

	"github.com/someipc/go-someipc/internal/ring"
	"github.com/someipc/go-someipc/internal/wire"
)

// MaxMessageSize bounds a single IPC message; prepare-stream fails with
// ErrTooLarge above this.
const MaxMessageSize = 1 << 20

var (
	// ErrTooLarge is returned by PrepareStream and DatagramWrite when the
	// message exceeds MaxMessageSize. The ring's capacity is not checked: a
	// stream write larger than the ring completes over several
	// StreamWriteMessage calls as the peer drains it.
	ErrTooLarge = errors.New("writer: message too large")
	// ErrBusy is returned by DatagramWrite when the message does not fit
	// in the channel's current free space.
	ErrBusy = errors.New("writer: busy")
	// ErrProtocolError mirrors the channel's protocol-violation failure;
	// once returned the writer (and its channel) is poisoned.
	ErrProtocolError = errors.New("writer: protocol error")
	// ErrNoActiveStream is returned when StartAsyncStream or
	// StreamWriteMessage is called without a prior PrepareStream.
	ErrNoActiveStream = errors.New("writer: no active stream")
)

// state is the stream-write state machine's state, following the strict
// order writing-common-header -> writing-format-b-header -> writing-data ->
// finished. The format-b stage is skipped when no specific header was
// supplied to PrepareStream.
type state int

const (
	stateIdle state = iota
	stateWritingCommonHeader
	stateWritingFormatBHeader
	stateWritingData
	stateFinished
)

// StartResult is returned by StartAsyncStream.
type StartResult int

const (
	SpaceAlreadyAvailable StartResult = iota
	NoFreeSpace
)

// WriteResult is returned by StreamWriteMessage.
type WriteResult int

const (
	WriteOngoingNoSpace WriteResult = iota
	WriteOngoingMoreSpaceAvailable
	WriteCompleted
)

// Writer drives one direction's Message Writer state machine against a
// ring.Ring. Not safe for concurrent use; callers serialize access.
type Writer struct {
	ch ring.Ring

	seq atomic.Uint32 // monotonic per-direction sequence number

	state state

	commonBuf   [wire.CommonHeaderSize]byte
	specificBuf [wire.SpecificHeaderSize]byte
	hasSpecific bool
	payload     []byte

	offset int // bytes written within the current state's region

	poisoned bool
}

// New creates a Writer bound to ch.
func New(ch ring.Ring) *Writer {
	return &Writer{ch: ch, state: stateIdle}
}

// PrepareStream initializes a stream write. common.MessageLength is
// recomputed from the supplied specific header and payload so callers only
// need to set ProtocolVersion and MessageType.
func (w *Writer) PrepareStream(common wire.CommonHeader, specific *wire.SpecificHeader, payload []byte) error {
	if w.poisoned {
		return ErrProtocolError
	}
	total := wire.SpecificHeaderSize + len(payload)
	if specific == nil {
		total = len(payload)
	}
	msgSize := wire.CommonHeaderSize + total
	if msgSize > MaxMessageSize {
		return ErrTooLarge
	}

	common.MessageLength = uint32(total)
	common.ProtocolVersion = wire.ProtocolVersion
	if err := wire.MarshalCommonHeader(common, w.commonBuf[:]); err != nil {
		return err
	}
	w.hasSpecific = specific != nil
	if specific != nil {
		w.specificBuf = *specific
	}
	w.payload = payload
	w.offset = 0
	w.state = stateWritingCommonHeader
	w.seq.Add(1)
	return nil
}

// StartAsyncStream checks whether the ring currently has room to make
// progress; if not, it atomically arms a writable-notification so the
// caller is woken by the reactor once room appears.
func (w *Writer) StartAsyncStream() (StartResult, error) {
	if w.state == stateIdle {
		return 0, ErrNoActiveStream
	}
	if w.ch.AvailableWrite() > 0 {
		return SpaceAlreadyAvailable, nil
	}
	if err := w.ch.RequestWritableNotification(); err != nil {
		return 0, err
	}
	return NoFreeSpace, nil
}

// StreamWriteMessage advances the current stream write by as much as the
// channel's free space currently allows. readableNotificationNeeded
// indicates whether the ring went from empty to non-empty during this call;
// whether the peer has an outstanding readable request is not consulted.
func (w *Writer) StreamWriteMessage() (result WriteResult, readableNotificationNeeded bool, err error) {
	if w.state == stateIdle {
		return 0, false, ErrNoActiveStream
	}
	if w.poisoned {
		return 0, false, ErrProtocolError
	}

	wasEmpty := w.ch.AvailableRead() == 0
	progressed := false

	for {
		region, done := w.currentRegion()
		if done {
			break
		}
		remaining := region[w.offset:]
		if len(remaining) == 0 {
			if err := w.advanceState(); err != nil {
				w.poisoned = true
				return 0, false, err
			}
			continue
		}
		if avail := w.ch.AvailableWrite(); avail < len(remaining) {
			remaining = remaining[:avail]
		}
		if len(remaining) == 0 {
			break
		}
		n, werr := w.ch.Write(remaining)
		if werr == ring.ErrRingFull && n == 0 {
			break
		}
		if werr != nil && werr != ring.ErrRingFull {
			w.poisoned = true
			return 0, false, ErrProtocolError
		}
		if n == 0 {
			break
		}
		if err := w.ch.Commit(n); err != nil {
			w.poisoned = true
			return 0, false, ErrProtocolError
		}
		w.offset += n
		progressed = true
		if w.offset < len(region) {
			break // free space exhausted mid-region
		}
	}

	if w.state == stateFinished {
		w.state = stateIdle
		becameNonEmpty := wasEmpty && w.ch.AvailableRead() > 0
		return WriteCompleted, becameNonEmpty, nil
	}
	if !progressed {
		if err := w.ch.RequestWritableNotification(); err != nil {
			return 0, false, err
		}
		return WriteOngoingNoSpace, false, nil
	}
	becameNonEmpty := wasEmpty && w.ch.AvailableRead() > 0
	return WriteOngoingMoreSpaceAvailable, becameNonEmpty, nil
}

// currentRegion returns the byte slice for the writer's current state, or
// done=true once the state machine has reached stateFinished.
func (w *Writer) currentRegion() (region []byte, done bool) {
	switch w.state {
	case stateWritingCommonHeader:
		return w.commonBuf[:], false
	case stateWritingFormatBHeader:
		return w.specificBuf[:], false
	case stateWritingData:
		return w.payload, false
	default:
		return nil, true
	}
}

// advanceState moves to the next state once the current region is fully
// written, skipping the format-B stage when no specific header was given.
func (w *Writer) advanceState() error {
	switch w.state {
	case stateWritingCommonHeader:
		if w.hasSpecific {
			w.state = stateWritingFormatBHeader
		} else {
			w.state = stateWritingData
		}
	case stateWritingFormatBHeader:
		w.state = stateWritingData
	case stateWritingData:
		w.state = stateFinished
	default:
		return ErrProtocolError
	}
	w.offset = 0
	return nil
}

// DatagramWrite writes an entire message only if it fits in the channel's
// current free space; otherwise it fails with ErrBusy without partially
// writing anything.
func (w *Writer) DatagramWrite(common wire.CommonHeader, specific *wire.SpecificHeader, payload []byte) (readableNotificationNeeded bool, err error) {
	if w.poisoned {
		return false, ErrProtocolError
	}
	specificLen := 0
	if specific != nil {
		specificLen = wire.SpecificHeaderSize
	}
	total := wire.CommonHeaderSize + specificLen + len(payload)
	if total > MaxMessageSize {
		return false, ErrTooLarge
	}
	if w.ch.AvailableWrite() < total {
		return false, ErrBusy
	}

	var commonBuf [wire.CommonHeaderSize]byte
	common.MessageLength = uint32(specificLen + len(payload))
	common.ProtocolVersion = wire.ProtocolVersion
	if err := wire.MarshalCommonHeader(common, commonBuf[:]); err != nil {
		return false, err
	}

	wasEmpty := w.ch.AvailableRead() == 0

	if err := w.writeAll(commonBuf[:]); err != nil {
		w.poisoned = true
		return false, ErrProtocolError
	}
	if specific != nil {
		if err := w.writeAll(specific[:]); err != nil {
			w.poisoned = true
			return false, ErrProtocolError
		}
	}
	if len(payload) > 0 {
		if err := w.writeAll(payload); err != nil {
			w.poisoned = true
			return false, ErrProtocolError
		}
	}
	w.seq.Add(1)

	return wasEmpty && w.ch.AvailableRead() > 0, nil
}

func (w *Writer) writeAll(p []byte) error {
	n, err := w.ch.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return ErrProtocolError
	}
	return w.ch.Commit(n)
}

// Sequence returns the current per-direction sequence number.
func (w *Writer) Sequence() uint32 { return w.seq.Load() }

// Poisoned reports whether a protocol error has disabled this writer.
func (w *Writer) Poisoned() bool { return w.poisoned }
