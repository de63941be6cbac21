package someipc

import (
	"context"
	"testing"
	"time"

	"github.com/someipc/go-someipc/internal/config"
	"github.com/someipc/go-someipc/internal/ioctx"
	"github.com/someipc/go-someipc/internal/wire"
)

func newTestClient(t *testing.T) (*Client, *MockDialer) {
	t.Helper()
	dialer := NewMockDialer(1 << 16)
	cfg := config.Default()
	cfg.SomeipdIPCDomain = "test-bus"
	cfg.SomeipdIPCPort = 1

	client := New(cfg, dialer, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return client, dialer
}

func startWithGoroutinePoller(t *testing.T, client *Client, dialer *MockDialer) context.CancelFunc {
	t.Helper()
	readable := make(chan struct{}, 1)
	writable := make(chan struct{}, 1)
	dialer.RecvRing.OnReadableNotify(func() { nonBlockingSignal(readable) })
	dialer.SendRing.OnWritableNotify(func() { nonBlockingSignal(writable) })

	ctx, cancel := context.WithCancel(context.Background())
	poller := ioctx.NewGoroutinePoller(readable, writable)
	if err := client.Start(ctx, poller); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return cancel
}

func nonBlockingSignal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func TestClientLifecycle(t *testing.T) {
	client, dialer := newTestClient(t)
	if client.State() != StateConnecting {
		t.Fatalf("State() = %s, want %s", client.State(), StateConnecting)
	}

	cancel := startWithGoroutinePoller(t, client, dialer)
	defer cancel()

	if client.State() != StateRunning {
		t.Fatalf("State() = %s, want %s", client.State(), StateRunning)
	}

	if err := client.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if client.State() != StateDisconnected {
		t.Fatalf("State() = %s, want %s", client.State(), StateDisconnected)
	}
}

func TestClientRequestServiceRoundTrip(t *testing.T) {
	client, dialer := newTestClient(t)
	cancel := startWithGoroutinePoller(t, client, dialer)
	defer cancel()

	stopSim := make(chan struct{})
	go runTestDaemon(dialer, stopSim)
	defer close(stopSim)

	ctrl := client.RegisterController(MsgRequestService)
	frame := requestServiceFrameForTest()

	ctx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()

	clientID, err := ctrl.Invoke(frame, nil).Wait(ctx)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if clientID != 1 {
		t.Errorf("clientID = %d, want 1", clientID)
	}

	snap := client.Stats()
	if snap.MessagesSent == 0 {
		t.Error("expected at least one message sent")
	}
}

func TestClientStopFailsPendingInvoke(t *testing.T) {
	client, dialer := newTestClient(t)
	cancel := startWithGoroutinePoller(t, client, dialer)
	defer cancel()

	ctrl := client.RegisterController(MsgRequestService)
	frame := requestServiceFrameForTest()

	resultCh := make(chan error, 1)
	go func() {
		_, err := ctrl.Invoke(frame, nil).Wait(context.Background())
		resultCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := client.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case err := <-resultCh:
		if err == nil {
			t.Error("expected disconnect error, got nil")
		}
	case <-time.After(time.Second):
		t.Fatal("Invoke did not resolve after Stop")
	}
}

func TestClientStopIsIdempotent(t *testing.T) {
	client, dialer := newTestClient(t)
	cancel := startWithGoroutinePoller(t, client, dialer)
	defer cancel()

	if err := client.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestClientBindRoutingSinks(t *testing.T) {
	client, _ := newTestClient(t)

	sink := &MockRoutingSink{}
	client.BindClientManager(sink)
	client.BindServerManager(sink)

	if client.clientManager != sink {
		t.Error("expected client manager to be bound")
	}
	if client.serverManager != sink {
		t.Error("expected server manager to be bound")
	}
}

// requestServiceFrameForTest builds a fully marshaled RequestService
// control request (common header + specific header, no payload).
func requestServiceFrameForTest() []byte {
	common := wire.CommonHeader{
		ProtocolVersion: wire.ProtocolVersion,
		MessageType:     wire.MsgRequestService,
		MessageLength:   wire.SpecificHeaderSize,
	}
	frame := make([]byte, wire.CommonHeaderSize+wire.SpecificHeaderSize)
	wire.MarshalCommonHeader(common, frame[:wire.CommonHeaderSize])
	specific := wire.NewInstanceReservedHeader(0)
	copy(frame[wire.CommonHeaderSize:], specific[:])
	return frame
}

// runTestDaemon answers every RequestService request on dialer's send ring
// with a synthetic success response carrying client id 1, until stop fires.
func runTestDaemon(dialer *MockDialer, stop chan struct{}) {
	const frameSize = wire.CommonHeaderSize + wire.SpecificHeaderSize
	buf := make([]byte, frameSize)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if dialer.SendRing.AvailableRead() < frameSize {
			time.Sleep(time.Millisecond)
			continue
		}
		n, err := dialer.SendRing.Read(buf)
		if err != nil || n < frameSize {
			time.Sleep(time.Millisecond)
			continue
		}
		dialer.SendRing.Commit(n)

		common, err := wire.UnmarshalCommonHeader(buf[:wire.CommonHeaderSize])
		if err != nil || common.MessageType != wire.MsgRequestService {
			continue
		}

		respCommon := wire.CommonHeader{
			ProtocolVersion: wire.ProtocolVersion,
			MessageType:     wire.ControlResponseOf(wire.MsgRequestService, true),
			MessageLength:   wire.SpecificHeaderSize + 2,
		}
		resp := make([]byte, wire.CommonHeaderSize+wire.SpecificHeaderSize+2)
		wire.MarshalCommonHeader(respCommon, resp[:wire.CommonHeaderSize])
		returnCode := wire.NewReturnCodeHeader(0)
		copy(resp[wire.CommonHeaderSize:], returnCode[:])
		resp[len(resp)-2] = 0x01
		resp[len(resp)-1] = 0x00

		if dialer.RecvRing.AvailableWrite() < len(resp) {
			continue
		}
		wn, werr := dialer.RecvRing.Write(resp)
		if werr != nil {
			continue
		}
		dialer.RecvRing.Commit(wn)
	}
}
