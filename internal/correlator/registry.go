package correlator

import (
	"sync"

	"github.com/someipc/go-someipc/internal/fatal"
	"github.com/someipc/go-someipc/internal/wire"
)

// Registry maps request types to their Controller and implements
// receiver.ControlSink so the Message Receiver can dispatch control
// responses straight to the right promise. Only RequestService and
// RequestLocalServer may register a controller, per spec.md §4.5; any
// other type, or a second registration of the same type, is a fatal abort.
type Registry struct {
	mu          sync.RWMutex
	controllers map[uint32]*Controller
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[uint32]*Controller)}
}

// Register installs ctrl for requestType.
func (r *Registry) Register(requestType uint32, ctrl *Controller) {
	if !wire.RequestServiceRequiresRegistry[requestType] {
		fatal.Abort("correlator.Register", "only RequestService/RequestLocalServer may register a controller")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.controllers[requestType]; exists {
		fatal.Abort("correlator.Register", "re-registration of the same request type")
	}
	r.controllers[requestType] = ctrl
}

// Fulfil implements receiver.ControlSink: it looks up the controller
// registered for requestType and invokes its Fulfil hook.
func (r *Registry) Fulfil(requestType uint32, returnCode uint32, payload []byte) {
	r.mu.RLock()
	ctrl, ok := r.controllers[requestType]
	r.mu.RUnlock()
	if !ok {
		return
	}
	ctrl.Fulfil(returnCode, payload)
}

// Disconnect walks every registered controller and fails its outstanding
// promise with ErrDisconnected. Idempotent: calling it a second time with
// no controllers awaiting a response is a no-op for each of them.
func (r *Registry) Disconnect() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ctrl := range r.controllers {
		ctrl.Disconnect()
	}
}
