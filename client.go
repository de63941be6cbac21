// Package someipc is the client-side library an AUTOSAR-style application
// uses to talk to a co-located SOME/IP daemon over a local IPC channel: it
// issues control commands (register/release services, subscribe/
// unsubscribe events, request/release client identifiers) and carries
// routed payload traffic (SOME/IP requests/responses, PDUs, field
// notifications) in both directions.
package someipc

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/someipc/go-someipc/internal/config"
	"github.com/someipc/go-someipc/internal/correlator"
	"github.com/someipc/go-someipc/internal/ioctx"
	"github.com/someipc/go-someipc/internal/logging"
	"github.com/someipc/go-someipc/internal/receiver"
	"github.com/someipc/go-someipc/internal/ring"
	"github.com/someipc/go-someipc/internal/sendqueue"
	"github.com/someipc/go-someipc/internal/wire"
	"github.com/someipc/go-someipc/internal/writer"
)

// Dialer establishes the Unix-domain-socket connection to the daemon and
// hands back the two shared-memory rings backing each direction. The
// handshake itself (path resolution from domain/port, socket connect) is
// an external collaborator per spec.md §1; Dialer is the seam that lets a
// production implementation and a test double both satisfy the façade.
type Dialer interface {
	Dial(ctx context.Context, cfg config.Config) (send, recv ring.Ring, err error)
}

// RoutingSink receives inbound routed messages. The façade holds two
// pointer-valued back-references — client-manager and server-manager —
// either of which may be absent during startup and bound later via
// BindClientManager/BindServerManager, per spec.md §4.6.
type RoutingSink = receiver.RoutingSink

// State is the client's lifecycle state.
type State string

const (
	StateCreated      State = "created"
	StateConnecting   State = "connecting"
	StateRunning      State = "running"
	StateDisconnected State = "disconnected"
)

// Options configures a Client beyond the bare connection record.
type Options struct {
	Logger *logging.Logger
}

// Client is the Client Façade (C6): it owns the channel, the send/receive
// engines, the controller registry, and the routing sinks, and exposes the
// connect/start/stop lifecycle.
type Client struct {
	mu sync.Mutex

	cfg    config.Config
	dialer Dialer
	logger *logging.Logger

	sendRing ring.Ring
	recvRing ring.Ring

	writer   *writer.Writer
	receiver *receiver.Receiver
	queue    *sendqueue.Queue
	registry *correlator.Registry
	metrics  *Metrics

	clientManager RoutingSink
	serverManager RoutingSink

	state State

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a Client in state StateCreated. Connect must be called
// before Start.
func New(cfg config.Config, dialer Dialer, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	c := &Client{
		cfg:      cfg,
		dialer:   dialer,
		logger:   logger,
		queue:    sendqueue.New(cfg.IPCMaxQueueSize),
		registry: correlator.NewRegistry(),
		metrics:  NewMetrics(),
		state:    StateCreated,
	}
	if cfg.IPCMaxQueueSize > 0 {
		c.queue.SetSteadyMode(true)
	}
	return c
}

// BindClientManager late-binds the client-manager routing sink.
func (c *Client) BindClientManager(sink RoutingSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientManager = sink
	c.rebindSinks()
}

// BindServerManager late-binds the server-manager routing sink.
func (c *Client) BindServerManager(sink RoutingSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverManager = sink
	c.rebindSinks()
}

// rebindSinks re-installs the composite routing sink on the receiver.
// Caller must hold c.mu.
func (c *Client) rebindSinks() {
	if c.receiver == nil {
		return
	}
	c.receiver.BindSinks(c.registry, compositeSink{client: c.clientManager, server: c.serverManager})
}

// Connect establishes the IPC connection: dials the daemon, wires the
// writer/receiver/queue to the resulting rings. Connect must complete
// before Start.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateCreated {
		c.mu.Unlock()
		return fmt.Errorf("someipc: connect called in state %s", c.state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	sendRing, recvRing, err := c.dialer.Dial(ctx, c.cfg)
	if err != nil {
		c.mu.Lock()
		c.state = StateCreated
		c.mu.Unlock()
		return fmt.Errorf("someipc: connect: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendRing = sendRing
	c.recvRing = recvRing
	c.writer = writer.New(sendRing)
	c.receiver = receiver.New(c.registry, compositeSink{client: c.clientManager, server: c.serverManager})
	c.logger.Info("connected", "domain", c.cfg.SomeipdIPCDomain, "port", c.cfg.SomeipdIPCPort)
	return nil
}

// Start arms the receive path, running the reactor loop until ctx is
// cancelled or Stop is called. Calling Start twice is a fatal programming
// error, per spec.md §4.6.
func (c *Client) Start(ctx context.Context, poller ioctx.Poller) error {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		fatalStartMisuse(c.state)
	}
	c.state = StateRunning
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	group, gctx := errgroup.WithContext(runCtx)
	c.group = group
	c.mu.Unlock()

	// An initial Pump consumes anything already received and arms the
	// readable notification that wakes the poller from then on.
	if err := c.receiver.Pump(c.recvRing); err != nil {
		c.logger.Error("receive pump failed", "error", err)
	}

	group.Go(func() error {
		return poller.Run(gctx, func() {
			if err := c.receiver.Pump(c.recvRing); err != nil {
				c.logger.Error("receive pump failed", "error", err)
			}
		}, func() {
			c.drainSendQueue()
		})
	})

	c.logger.Info("started")
	return nil
}

// drainSendQueue flushes queued entries into the channel after each enqueue
// and when it signals writable, per spec.md §2's control-flow description.
// Each entry's header
// was already fully marshaled by the correlator or by whatever built the
// routing request, so entries are admitted as raw datagrams rather than
// re-marshaled through the Writer's structured-header path.
func (c *Client) drainSendQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !c.queue.IsEmpty() {
		entry := c.queue.Front()
		total := len(entry.Header) + len(entry.Payload)
		if c.sendRing.AvailableWrite() < total {
			return
		}
		if err := writeAllRaw(c.sendRing, entry.Header); err != nil {
			c.logger.Error("send queue drain failed", "error", err)
			return
		}
		if err := writeAllRaw(c.sendRing, entry.Payload); err != nil {
			c.logger.Error("send queue drain failed", "error", err)
			return
		}
		c.queue.PopFront()
	}
}

// writeAllRaw writes and commits p in full, or returns an error; it assumes
// the caller already verified enough free space for the whole entry.
func writeAllRaw(ch ring.Ring, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := ch.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return writer.ErrProtocolError
	}
	return ch.Commit(n)
}

// Stop tears down the connection and fails every pending controller
// promise with disconnected. Idempotent, per spec.md §8 property 2.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnected
	cancel := c.cancel
	sendRing, recvRing := c.sendRing, c.recvRing
	c.mu.Unlock()

	c.registry.Disconnect()

	if cancel != nil {
		cancel()
	}
	if c.group != nil {
		c.group.Wait() //nolint:errcheck // shutdown errors are expected from ctx cancellation
	}
	if sendRing != nil {
		sendRing.Close()
	}
	if recvRing != nil {
		recvRing.Close()
	}
	c.logger.Info("disconnected")
	return nil
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a point-in-time snapshot of client metrics.
func (c *Client) Stats() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// RegisterController installs a controller for requestType (only
// RequestService and RequestLocalServer are valid, per spec.md §4.5) and
// returns it so callers can Invoke requests through it.
func (c *Client) RegisterController(requestType uint32) *correlator.Controller {
	ctrl := correlator.NewController(requestType, c.enqueueCommand)
	c.registry.Register(requestType, ctrl)
	return ctrl
}

// enqueueCommand serializes header+payload into the command admission
// class of the send queue; it is the correlator.Sender passed to every
// controller this façade registers.
func (c *Client) enqueueCommand(header, payload []byte) error {
	c.mu.Lock()
	if err := c.queue.PushBackCommand(header, payload); err != nil {
		c.mu.Unlock()
		return err
	}
	c.metrics.RecordMessageSent(uint64(len(header) + len(payload)))
	connected := c.sendRing != nil
	c.mu.Unlock()
	if connected {
		c.drainSendQueue()
	}
	return nil
}

// compositeSink fans inbound routing traffic out to the client-manager and
// server-manager back-references, matching spec.md §4.6's two-sink wiring.
type compositeSink struct {
	client RoutingSink
	server RoutingSink
}

func (s compositeSink) DeliverSomeIP(instance uint16, ts *uint64, body []byte) {
	if s.client != nil {
		s.client.DeliverSomeIP(instance, ts, body)
	}
	if s.server != nil {
		s.server.DeliverSomeIP(instance, ts, body)
	}
}

func (s compositeSink) DeliverPDU(instance uint16, ts *uint64, body []byte) {
	if s.client != nil {
		s.client.DeliverPDU(instance, ts, body)
	}
	if s.server != nil {
		s.server.DeliverPDU(instance, ts, body)
	}
}

func (s compositeSink) DeliverInitialField(instance, client uint16, body []byte) {
	if s.client != nil {
		s.client.DeliverInitialField(instance, client, body)
	}
}

func (s compositeSink) DeliverNonSomeIP(msgType uint32, specific wire.SpecificHeader, body []byte) {
	if s.client != nil {
		s.client.DeliverNonSomeIP(msgType, specific, body)
	}
	if s.server != nil {
		s.server.DeliverNonSomeIP(msgType, specific, body)
	}
}

func fatalStartMisuse(current State) {
	panic(fmt.Sprintf("someipc: Start called in state %s; connect must complete exactly once before start", current))
}
