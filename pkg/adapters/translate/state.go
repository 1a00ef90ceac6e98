package translate

import (
	"sync"
	"time"
)

// State is the lifecycle state of a provider session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateReady
	StateDetectingSpeech
	StateProcessing
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateReady:
		return "READY"
	case StateDetectingSpeech:
		return "DETECTING_SPEECH"
	case StateProcessing:
		return "PROCESSING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CanSendAudio reports whether audio may be appended in this state.
func (s State) CanSendAudio() bool {
	return s == StateReady || s == StateDetectingSpeech || s == StateProcessing
}

// validTransitions is the session transition table. Every path to READY goes
// through CONNECTING; IDLE is reachable from anywhere via Disconnect.
var validTransitions = map[State][]State{
	StateIdle:            {StateConnecting},
	StateConnecting:      {StateReady, StateError, StateIdle},
	StateReady:           {StateDetectingSpeech, StateProcessing, StateError, StateIdle},
	StateDetectingSpeech: {StateProcessing, StateReady, StateError, StateIdle},
	StateProcessing:      {StateReady, StateError, StateIdle},
	StateError:           {StateIdle},
}

// InvalidTransitionError reports a rejected state transition.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid session transition from " + e.From.String() + " to " + e.To.String()
}

// StateMachine guards the session state field, the only mutable value shared
// between the capture path (reads) and the network callback path (writes).
type StateMachine struct {
	mu      sync.Mutex
	current State
	events  chan StateChange
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		events:  make(chan StateChange, 32),
	}
}

func (m *StateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves to a new state if the table allows it, emitting a change
// event. Emission is non-blocking; a slow listener loses events, never
// stalls the session.
func (m *StateMachine) Transition(to State, reason string) error {
	m.mu.Lock()
	from := m.current
	if from == to {
		m.mu.Unlock()
		return nil
	}
	if !transitionAllowed(from, to) {
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	m.current = to
	m.mu.Unlock()

	select {
	case m.events <- StateChange{From: from, To: to, Reason: reason, At: time.Now()}:
	default:
	}
	return nil
}

// ForceIdle is the Disconnect path: any state collapses to IDLE.
func (m *StateMachine) ForceIdle(reason string) {
	m.mu.Lock()
	from := m.current
	m.current = StateIdle
	m.mu.Unlock()
	if from == StateIdle {
		return
	}
	select {
	case m.events <- StateChange{From: from, To: StateIdle, Reason: reason, At: time.Now()}:
	default:
	}
}

// Events exposes the transition stream.
func (m *StateMachine) Events() <-chan StateChange { return m.events }

func transitionAllowed(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
