package mirage

import (
	"github.com/bft-labs/mirage/internal/ports"
	"github.com/bft-labs/mirage/pkg/lifecycle"
)

// State is the endpoint lifecycle state.
type State = lifecycle.State

// Lifecycle states.
const (
	StateIdle     = lifecycle.StateIdle
	StateStarting = lifecycle.StateStarting
	StateRunning  = lifecycle.StateRunning
	StateStopping = lifecycle.StateStopping
	StateStopped  = lifecycle.StateStopped
	StateErrored  = lifecycle.StateErrored
)

// EventHandler observes endpoint lifecycle and traffic events. All methods
// may be called from internal goroutines and must return quickly.
type EventHandler interface {
	// OnStateChange fires after every lifecycle transition.
	OnStateChange(previous, current State, reason string)

	// OnMessageSent fires after the async transport accepts an outbound
	// message.
	OnMessageSent(bytes int)

	// OnMessageReceived fires after an inbound async message has been
	// dispatched to the handler.
	OnMessageReceived(bytes int)

	// OnMessageDropped fires when the drop-on-full policy discards an
	// outbound message at the high-water-mark.
	OnMessageDropped()

	// OnTransportFault fires when the async worker hits a fatal transport
	// fault. The fault is otherwise observable only through State.
	OnTransportFault(err error)
}

// eventEmitterWrapper adapts the public EventHandler to the internal emitter
// interfaces so call sites never check for a nil handler.
type eventEmitterWrapper struct {
	handler EventHandler
}

var (
	_ lifecycle.EventEmitter = (*eventEmitterWrapper)(nil)
	_ ports.TrafficEmitter   = (*eventEmitterWrapper)(nil)
)

func (w *eventEmitterWrapper) OnStateChange(previous, current State, reason string) {
	if w.handler != nil {
		w.handler.OnStateChange(previous, current, reason)
	}
}

func (w *eventEmitterWrapper) OnMessageSent(bytes int) {
	if w.handler != nil {
		w.handler.OnMessageSent(bytes)
	}
}

func (w *eventEmitterWrapper) OnMessageReceived(bytes int) {
	if w.handler != nil {
		w.handler.OnMessageReceived(bytes)
	}
}

func (w *eventEmitterWrapper) OnMessageDropped() {
	if w.handler != nil {
		w.handler.OnMessageDropped()
	}
}

func (w *eventEmitterWrapper) OnTransportFault(err error) {
	if w.handler != nil {
		w.handler.OnTransportFault(err)
	}
}
