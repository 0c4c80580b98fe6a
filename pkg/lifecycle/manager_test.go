package lifecycle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/mirage/pkg/log"
)

// mockEmitter tracks state change events for testing.
type mockEmitter struct {
	mu     sync.Mutex
	events []stateChangeEvent
}

type stateChangeEvent struct {
	previous State
	current  State
	reason   string
}

func (m *mockEmitter) OnStateChange(previous, current State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, stateChangeEvent{previous, current, reason})
}

func (m *mockEmitter) Events() []stateChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]stateChangeEvent{}, m.events...)
}

func TestNewManager(t *testing.T) {
	m := NewManager(log.NewNoopLogger(), nil)

	if m.State() != StateIdle {
		t.Errorf("initial state = %v, want StateIdle", m.State())
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true for a fresh manager")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "Idle"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateStopped, "Stopped"},
		{StateErrored, "Errored"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestTransitionTo_ValidPaths(t *testing.T) {
	tests := []struct {
		name string
		path []State
	}{
		{"graceful lifecycle", []State{StateStarting, StateRunning, StateStopping, StateStopped}},
		{"failed start", []State{StateStarting, StateStopped}},
		{"fault while running", []State{StateStarting, StateRunning, StateErrored}},
		{"fault while starting", []State{StateStarting, StateErrored}},
		{"restart after reset", []State{StateStarting, StateRunning, StateStopping, StateStopped, StateIdle, StateStarting}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(log.NewNoopLogger(), nil)
			for _, s := range tt.path {
				if err := m.TransitionTo(s, "test"); err != nil {
					t.Fatalf("TransitionTo(%v) returned error: %v", s, err)
				}
			}
			want := tt.path[len(tt.path)-1]
			if m.State() != want {
				t.Errorf("final state = %v, want %v", m.State(), want)
			}
		})
	}
}

func TestTransitionTo_InvalidPaths(t *testing.T) {
	tests := []struct {
		name  string
		setup []State
		to    State
	}{
		{"idle to running", nil, StateRunning},
		{"idle to stopping", nil, StateStopping},
		{"concurrent start rejected", []State{StateStarting}, StateStarting},
		{"running to running", []State{StateStarting, StateRunning}, StateRunning},
		{"stopped to running", []State{StateStarting, StateStopped}, StateRunning},
		{"errored is terminal", []State{StateStarting, StateErrored}, StateIdle},
		{"errored cannot restart", []State{StateStarting, StateErrored}, StateStarting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(log.NewNoopLogger(), nil)
			for _, s := range tt.setup {
				if err := m.TransitionTo(s, "setup"); err != nil {
					t.Fatalf("setup transition to %v failed: %v", s, err)
				}
			}
			if err := m.TransitionTo(tt.to, "test"); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("TransitionTo(%v) = %v, want ErrInvalidTransition", tt.to, err)
			}
		})
	}
}

func TestIsRunning_FollowsState(t *testing.T) {
	m := NewManager(log.NewNoopLogger(), nil)

	steps := []struct {
		to   State
		want bool
	}{
		{StateStarting, true},
		{StateRunning, true},
		{StateStopping, false},
		{StateStopped, false},
	}

	for _, step := range steps {
		if err := m.TransitionTo(step.to, "test"); err != nil {
			t.Fatalf("TransitionTo(%v): %v", step.to, err)
		}
		if got := m.IsRunning(); got != step.want {
			t.Errorf("IsRunning() in %v = %v, want %v", step.to, got, step.want)
		}
	}
}

func TestTransitionTo_EmitsEvents(t *testing.T) {
	emitter := &mockEmitter{}
	m := NewManager(log.NewNoopLogger(), emitter)

	if err := m.TransitionTo(StateStarting, "Start() called"); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}
	if err := m.TransitionTo(StateRunning, "transports ready"); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}

	events := emitter.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].previous != StateIdle || events[0].current != StateStarting {
		t.Errorf("event[0] = %v -> %v, want Idle -> Starting", events[0].previous, events[0].current)
	}
	if events[1].reason != "transports ready" {
		t.Errorf("event[1].reason = %q, want %q", events[1].reason, "transports ready")
	}
}

func TestReset(t *testing.T) {
	m := NewManager(log.NewNoopLogger(), nil)

	if err := m.Reset("too early"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Reset from Idle = %v, want ErrInvalidTransition", err)
	}

	for _, s := range []State{StateStarting, StateRunning, StateStopping, StateStopped} {
		if err := m.TransitionTo(s, "setup"); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	if err := m.Reset("rearm"); err != nil {
		t.Fatalf("Reset from Stopped: %v", err)
	}
	if m.State() != StateIdle {
		t.Errorf("state after Reset = %v, want StateIdle", m.State())
	}
}

func TestWaitWithTimeout(t *testing.T) {
	m := NewManager(log.NewNoopLogger(), nil)

	m.AddWorker()
	go func() {
		time.Sleep(10 * time.Millisecond)
		m.WorkerDone()
	}()

	if err := m.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout returned error: %v", err)
	}
}

func TestWaitWithTimeout_Expires(t *testing.T) {
	m := NewManager(log.NewNoopLogger(), nil)

	m.AddWorker()
	defer m.WorkerDone()

	if err := m.WaitWithTimeout(20 * time.Millisecond); !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("WaitWithTimeout = %v, want ErrShutdownTimeout", err)
	}
}
