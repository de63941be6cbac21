package someipc

import (
	"context"
	"sync"

	"github.com/someipc/go-someipc/internal/config"
	"github.com/someipc/go-someipc/internal/ring"
	"github.com/someipc/go-someipc/internal/wire"
)

// MockDialer provides a mock Dialer for testing. It hands out a fixed pair
// of in-memory rings and tracks call counts for verification, mirroring the
// teacher's MockBackend call-count-tracking pattern.
type MockDialer struct {
	SendRing *ring.MemRing
	RecvRing *ring.MemRing
	DialErr  error

	mu        sync.RWMutex
	dialCalls int
}

// NewMockDialer creates a MockDialer whose two directions are backed by
// in-memory rings of the given capacity.
func NewMockDialer(capacity int) *MockDialer {
	return &MockDialer{
		SendRing: ring.NewMemRing(capacity),
		RecvRing: ring.NewMemRing(capacity),
	}
}

// Dial implements Dialer.
func (d *MockDialer) Dial(ctx context.Context, cfg config.Config) (ring.Ring, ring.Ring, error) {
	d.mu.Lock()
	d.dialCalls++
	d.mu.Unlock()

	if d.DialErr != nil {
		return nil, nil, d.DialErr
	}
	return d.SendRing, d.RecvRing, nil
}

// DialCalls returns the number of times Dial has been called.
func (d *MockDialer) DialCalls() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dialCalls
}

var _ Dialer = (*MockDialer)(nil)

// MockRoutingSink records every routed message delivered to it, for
// assertions in round-trip tests.
type MockRoutingSink struct {
	mu sync.Mutex

	SomeIP        []MockSomeIPDelivery
	PDU           []MockSomeIPDelivery
	InitialFields []MockInitialFieldDelivery
	NonSomeIP     int
}

// MockSomeIPDelivery is one recorded DeliverSomeIP/DeliverPDU call.
type MockSomeIPDelivery struct {
	Instance  uint16
	Timestamp *uint64
	Body      []byte
}

// MockInitialFieldDelivery is one recorded DeliverInitialField call.
type MockInitialFieldDelivery struct {
	Instance uint16
	Client   uint16
	Body     []byte
}

func (m *MockRoutingSink) DeliverSomeIP(instance uint16, timestamp *uint64, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SomeIP = append(m.SomeIP, MockSomeIPDelivery{Instance: instance, Timestamp: timestamp, Body: append([]byte(nil), body...)})
}

func (m *MockRoutingSink) DeliverPDU(instance uint16, timestamp *uint64, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PDU = append(m.PDU, MockSomeIPDelivery{Instance: instance, Timestamp: timestamp, Body: append([]byte(nil), body...)})
}

func (m *MockRoutingSink) DeliverInitialField(instance, client uint16, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitialFields = append(m.InitialFields, MockInitialFieldDelivery{Instance: instance, Client: client, Body: append([]byte(nil), body...)})
}

func (m *MockRoutingSink) DeliverNonSomeIP(msgType uint32, specific wire.SpecificHeader, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NonSomeIP++
}

var _ RoutingSink = (*MockRoutingSink)(nil)
