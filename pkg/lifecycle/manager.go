package lifecycle

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/mirage/pkg/log"
)

// Common lifecycle errors.
var (
	// ErrInvalidTransition is returned when a state transition is not
	// permitted from the current state.
	ErrInvalidTransition = errors.New("lifecycle: invalid state transition")

	// ErrShutdownTimeout is returned when workers do not finish within the
	// shutdown deadline.
	ErrShutdownTimeout = errors.New("lifecycle: shutdown timeout")
)

// ShutdownTimeout is the default maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Manager implements the endpoint state machine.
//
// Structural transitions are serialized on an internal mutex. The running
// flag is an atomic read by worker loops and IsRunning without locking; it is
// true exactly while the state is Starting or Running.
type Manager struct {
	mu      sync.Mutex
	state   State
	running atomic.Bool
	wg      sync.WaitGroup
	logger  log.Logger
	emitter EventEmitter
}

// NewManager creates a manager in the Idle state.
func NewManager(logger log.Logger, emitter EventEmitter) *Manager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Manager{
		state:   StateIdle,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRunning is a lock-free read of the atomic running flag. Safe to call
// from any goroutine at any time, including during shutdown.
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// TransitionTo attempts to move to a new state.
// Returns ErrInvalidTransition if the transition is not permitted.
func (m *Manager) TransitionTo(newState State, reason string) error {
	m.mu.Lock()
	oldState := m.state

	if !validTransition(oldState, newState) {
		m.mu.Unlock()
		return ErrInvalidTransition
	}

	m.state = newState
	m.running.Store(newState == StateStarting || newState == StateRunning)
	m.mu.Unlock()

	// Emit event outside of lock
	if m.emitter != nil {
		m.emitter.OnStateChange(oldState, newState, reason)
	}

	m.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

// Reset rearms a stopped endpoint for a fresh start.
// Permitted only from Stopped; Errored is terminal for the instance.
func (m *Manager) Reset(reason string) error {
	return m.TransitionTo(StateIdle, reason)
}

// validTransition encodes the monotonic state machine.
func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateStarting
	case StateStarting:
		return to == StateRunning || to == StateStopped || to == StateErrored
	case StateRunning:
		return to == StateStopping || to == StateErrored
	case StateStopping:
		return to == StateStopped || to == StateErrored
	case StateStopped:
		return to == StateIdle
	case StateErrored:
		return false
	default:
		return false
	}
}

// AddWorker increments the worker count.
func (m *Manager) AddWorker() {
	m.wg.Add(1)
}

// WorkerDone decrements the worker count.
func (m *Manager) WorkerDone() {
	m.wg.Done()
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires first.
func (m *Manager) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		m.logger.Warn("shutdown timeout, workers still active",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}
