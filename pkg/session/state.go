package session

import "fmt"

// State of one call session.
type State string

const (
	StateConnecting State = "connecting"
	StateGreeting   State = "greeting"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateEnded      State = "ended"
)

// validTransitions is the full lifecycle: Connecting → Greeting →
// Listening ⇄ Processing → Ended. Ended is terminal and reachable
// from every live state.
var validTransitions = map[State][]State{
	StateConnecting: {StateGreeting, StateListening, StateEnded},
	StateGreeting:   {StateListening, StateEnded},
	StateListening:  {StateProcessing, StateEnded},
	StateProcessing: {StateListening, StateEnded},
	StateEnded:      {},
}

func (s State) canTransition(to State) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) transition(to State) (State, error) {
	if !s.canTransition(to) {
		return s, fmt.Errorf("invalid session transition %s -> %s", s, to)
	}
	return to, nil
}
