package writer

import (
	"testing"

	"github.com/someipc/go-someipc/internal/ring"
	"github.com/someipc/go-someipc/internal/wire"
)

func TestDatagramWriteRoundTrip(t *testing.T) {
	r := ring.NewMemRing(256)
	w := New(r)

	specific := wire.NewInstanceClientHeader(0x0005, 0x00AB)
	payload := []byte("hello world")

	_, err := w.DatagramWrite(wire.CommonHeader{MessageType: wire.MsgRoutingSomeIP}, &specific, payload)
	if err != nil {
		t.Fatalf("DatagramWrite: %v", err)
	}

	var hdrBuf [wire.CommonHeaderSize]byte
	n, err := r.Read(hdrBuf[:])
	if err != nil || n != wire.CommonHeaderSize {
		t.Fatalf("Read header: n=%d err=%v", n, err)
	}
	r.Commit(n)
	hdr, err := wire.UnmarshalCommonHeader(hdrBuf[:])
	if err != nil {
		t.Fatal(err)
	}
	if hdr.ProtocolVersion != wire.ProtocolVersion {
		t.Errorf("ProtocolVersion = %d, want %d", hdr.ProtocolVersion, wire.ProtocolVersion)
	}
	if hdr.MessageType != wire.MsgRoutingSomeIP {
		t.Errorf("MessageType = %#x, want %#x", hdr.MessageType, wire.MsgRoutingSomeIP)
	}
	wantLen := uint32(wire.SpecificHeaderSize + len(payload))
	if hdr.MessageLength != wantLen {
		t.Errorf("MessageLength = %d, want %d", hdr.MessageLength, wantLen)
	}
}

func TestDatagramWriteBusyWhenInsufficientSpace(t *testing.T) {
	r := ring.NewMemRing(8)
	w := New(r)
	payload := make([]byte, 64)
	if _, err := w.DatagramWrite(wire.CommonHeader{MessageType: wire.MsgRoutingSomeIP}, nil, payload); err != ErrBusy {
		t.Errorf("DatagramWrite err = %v, want ErrBusy", err)
	}
}

func TestPrepareStreamTooLarge(t *testing.T) {
	r := ring.NewMemRing(16)
	w := New(r)
	payload := make([]byte, MaxMessageSize+1)
	if err := w.PrepareStream(wire.CommonHeader{MessageType: wire.MsgRoutingSomeIP}, nil, payload); err != ErrTooLarge {
		t.Errorf("PrepareStream err = %v, want ErrTooLarge", err)
	}
}

func TestStreamWriteSpansMultipleCalls(t *testing.T) {
	// A small ring forces the stream write to suspend across several
	// StreamWriteMessage calls as the (simulated) peer drains it.
	r := ring.NewMemRing(16)
	w := New(r)

	payload := []byte("this payload is longer than the ring capacity alone")
	if err := w.PrepareStream(wire.CommonHeader{MessageType: wire.MsgRoutingSomeIP}, nil, payload); err != nil {
		t.Fatalf("PrepareStream: %v", err)
	}

	var out []byte
	drain := func() {
		buf := make([]byte, r.AvailableRead())
		n, _ := r.Read(buf)
		r.Commit(n)
		out = append(out, buf[:n]...)
	}

	for i := 0; i < 100; i++ {
		result, _, err := w.StreamWriteMessage()
		if err != nil {
			t.Fatalf("StreamWriteMessage: %v", err)
		}
		drain()
		if result == WriteCompleted {
			break
		}
		if i == 99 {
			t.Fatal("stream write did not complete within iteration budget")
		}
	}

	wantTotal := wire.CommonHeaderSize + len(payload)
	if len(out) != wantTotal {
		t.Fatalf("total written = %d, want %d", len(out), wantTotal)
	}
	if string(out[wire.CommonHeaderSize:]) != string(payload) {
		t.Errorf("payload round-trip mismatch")
	}
}
