package ingest

import "time"

// State is the loop's connectivity state.
//
//	Disconnected -> Connecting
//	Connecting   -> Connected | Disconnected
//	Connected    -> Disconnected | Connecting (next poll cycle)
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Transition describes one state change. Err is set when the change was
// caused by a failure.
type Transition struct {
	From   State
	To     State
	Source string
	Err    error
	At     time.Time
}

// Observer is notified synchronously, on the loop goroutine, after the
// snapshot's connected flag has been updated for the transition.
// Implementations must not block.
type Observer interface {
	OnTransition(t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }
