package correlator

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/someipc/go-someipc/internal/wire"
)

func noopSender(header, payload []byte) error { return nil }

func TestRequestServiceSuccess(t *testing.T) {
	// S1. RequestService success.
	ctrl := NewController(wire.MsgRequestService, noopSender)
	future := ctrl.Invoke([]byte("hdr"), []byte("payload"))

	resp := make([]byte, 2)
	binary.LittleEndian.PutUint16(resp, 0x00AB)
	ctrl.Fulfil(ReturnCodeOK, resp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	clientID, err := future.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if clientID != 0x00AB {
		t.Errorf("clientID = %#x, want 0xAB", clientID)
	}
}

func TestRequestServiceAccessDenied(t *testing.T) {
	// S2. RequestService access denied.
	ctrl := NewController(wire.MsgRequestService, noopSender)
	future := ctrl.Invoke(nil, nil)
	ctrl.Fulfil(ReturnCodeAccessDenied, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := future.Wait(ctx)
	cerr, ok := err.(*Error)
	if !ok || cerr.Code != ErrAccessDenied {
		t.Errorf("err = %v, want access-denied", err)
	}
}

func TestDisconnectWithPendingRequest(t *testing.T) {
	// S5. Disconnect with pending RequestService; subsequent invocation
	// permitted afterward.
	reg := NewRegistry()
	ctrl := NewController(wire.MsgRequestService, noopSender)
	reg.Register(wire.MsgRequestService, ctrl)

	future := ctrl.Invoke(nil, nil)
	reg.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := future.Wait(ctx)
	cerr, ok := err.(*Error)
	if !ok || cerr.Code != ErrDisconnected {
		t.Fatalf("err = %v, want disconnected", err)
	}

	// Idempotent: a second disconnect must not panic or double-resolve.
	reg.Disconnect()

	// Slot is reset: a new invoke is permitted.
	future2 := ctrl.Invoke(nil, nil)
	respBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(respBuf, 7)
	ctrl.Fulfil(ReturnCodeOK, respBuf)
	id, err := future2.Wait(ctx)
	if err != nil {
		t.Fatalf("second invoke failed: %v", err)
	}
	if id != 7 {
		t.Errorf("clientID = %d, want 7", id)
	}
}

func TestDoubleInvokeIsFatal(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on double invoke")
		}
	}()
	ctrl := NewController(wire.MsgRequestService, noopSender)
	ctrl.Invoke(nil, nil)
	ctrl.Invoke(nil, nil) // must abort: first call hasn't resolved
}

func TestRegisterRejectsUnrelatedType(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic registering a non-request-service type")
		}
	}()
	reg := NewRegistry()
	reg.Register(wire.MsgRoutingSomeIP, NewController(wire.MsgRoutingSomeIP, noopSender))
}

func TestRegisterRejectsReregistration(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on re-registration")
		}
	}()
	reg := NewRegistry()
	reg.Register(wire.MsgRequestService, NewController(wire.MsgRequestService, noopSender))
	reg.Register(wire.MsgRequestService, NewController(wire.MsgRequestService, noopSender))
}

func TestIncorrectResponseLengthAborts(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on incorrect response length")
		}
	}()
	ctrl := NewController(wire.MsgRequestService, noopSender)
	ctrl.Invoke(nil, nil)
	ctrl.Fulfil(ReturnCodeOK, []byte{1, 2, 3}) // wrong length
}
