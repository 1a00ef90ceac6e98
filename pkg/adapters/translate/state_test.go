package translate

import (
	"testing"
)

func TestHappyPathLoop(t *testing.T) {
	m := NewStateMachine()
	steps := []State{StateConnecting, StateReady, StateDetectingSpeech, StateProcessing, StateReady}
	for _, s := range steps {
		if err := m.Transition(s, "test"); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if m.Current() != StateReady {
		t.Fatalf("expected READY after loop, got %s", m.Current())
	}
}

func TestCannotSkipConnecting(t *testing.T) {
	m := NewStateMachine()
	if err := m.Transition(StateReady, "skip"); err == nil {
		t.Fatalf("IDLE -> READY must be rejected")
	}
	if err := m.Transition(StateProcessing, "skip"); err == nil {
		t.Fatalf("IDLE -> PROCESSING must be rejected")
	}
}

func TestErrorReachableFromActiveStates(t *testing.T) {
	for _, start := range []State{StateConnecting, StateReady, StateDetectingSpeech, StateProcessing} {
		m := NewStateMachine()
		walkTo(t, m, start)
		if err := m.Transition(StateError, "fault"); err != nil {
			t.Fatalf("%s -> ERROR rejected: %v", start, err)
		}
	}
}

func TestDisconnectFromEveryStateThenReconnect(t *testing.T) {
	for _, start := range []State{StateIdle, StateConnecting, StateReady, StateDetectingSpeech, StateProcessing, StateError} {
		m := NewStateMachine()
		walkTo(t, m, start)
		m.ForceIdle("disconnect")
		if m.Current() != StateIdle {
			t.Fatalf("disconnect from %s did not reach IDLE", start)
		}
		// connect() must be able to run again immediately.
		if err := m.Transition(StateConnecting, "reconnect"); err != nil {
			t.Fatalf("reconnect after disconnect from %s: %v", start, err)
		}
		if err := m.Transition(StateReady, "session.created"); err != nil {
			t.Fatalf("ready after reconnect from %s: %v", start, err)
		}
	}
}

func TestSelfTransitionIsNoop(t *testing.T) {
	m := NewStateMachine()
	walkTo(t, m, StateReady)
	if err := m.Transition(StateReady, "dup"); err != nil {
		t.Fatalf("self transition should be a no-op: %v", err)
	}
}

func TestStateChangeEventsEmitted(t *testing.T) {
	m := NewStateMachine()
	walkTo(t, m, StateReady)
	seen := 0
	for {
		select {
		case ev := <-m.Events():
			seen++
			if ev.From == ev.To {
				t.Fatalf("no-op transition emitted: %+v", ev)
			}
		default:
			if seen != 2 { // IDLE->CONNECTING, CONNECTING->READY
				t.Fatalf("expected 2 events, got %d", seen)
			}
			return
		}
	}
}

func walkTo(t *testing.T, m *StateMachine, target State) {
	t.Helper()
	var path []State
	switch target {
	case StateIdle:
		return
	case StateConnecting:
		path = []State{StateConnecting}
	case StateReady:
		path = []State{StateConnecting, StateReady}
	case StateDetectingSpeech:
		path = []State{StateConnecting, StateReady, StateDetectingSpeech}
	case StateProcessing:
		path = []State{StateConnecting, StateReady, StateProcessing}
	case StateError:
		path = []State{StateConnecting, StateError}
	}
	for _, s := range path {
		if err := m.Transition(s, "walk"); err != nil {
			t.Fatalf("walk to %s via %s: %v", target, s, err)
		}
	}
}
