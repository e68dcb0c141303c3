// Package session holds the voice session state machine.
//
// A session is always in exactly one State. Transition is the pure transition
// table; Machine wraps it with locking and change notifications so that a UI or
// websocket layer can observe the session without touching it.
package session

import (
	"errors"
	"fmt"
)

// State is the current phase of a voice session.
type State string

const (
	Idle       State = "idle"
	Listening  State = "listening"
	Processing State = "processing"
	Speaking   State = "speaking"
)

// Event drives a transition.
type Event string

const (
	// EventStart begins capturing speech.
	EventStart Event = "start"
	// EventTranscribed hands a finished transcript to processing.
	EventTranscribed Event = "transcribed"
	// EventRespond begins speaking a response.
	EventRespond Event = "respond"
	// EventComplete ends the session normally.
	EventComplete Event = "complete"
	// EventCancel ends the session at the caller's request.
	EventCancel Event = "cancel"
	// EventFail ends the session after an error.
	EventFail Event = "fail"
)

// ErrInvalidTransition is matched by every TransitionError.
var ErrInvalidTransition = errors.New("session: invalid transition")

// TransitionError reports an event that is not legal in a state.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session: invalid transition: %s --(%s)--> ?", e.From, e.Event)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Transition returns the state reached from current on event.
// Illegal combinations return current unchanged and a *TransitionError.
func Transition(current State, event Event) (State, error) {
	switch current {
	case Idle:
		switch event {
		case EventStart:
			return Listening, nil
		}
	case Listening:
		switch event {
		case EventTranscribed:
			return Processing, nil
		case EventCancel, EventFail:
			return Idle, nil
		}
	case Processing:
		switch event {
		case EventRespond:
			return Speaking, nil
		case EventComplete, EventFail:
			return Idle, nil
		}
	case Speaking:
		switch event {
		case EventComplete, EventCancel, EventFail:
			return Idle, nil
		}
	default:
		return current, fmt.Errorf("session: unknown state %q", current)
	}
	return current, &TransitionError{From: current, Event: event}
}

// Cancellable reports whether a session in s can be cancelled.
func (s State) Cancellable() bool {
	return s == Listening || s == Speaking
}
