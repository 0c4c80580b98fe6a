package lifecycle

// State represents the lifecycle state of an endpoint.
//
// Transitions are monotonic within one lifecycle:
// Idle -> Starting -> Running -> Stopping -> Stopped, with Starting -> Stopped
// on failed start and Running/Starting/Stopping -> Errored on a fatal transport
// fault. Errored is terminal; Stopped can be rearmed to Idle with Reset.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateErrored
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when the lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}
