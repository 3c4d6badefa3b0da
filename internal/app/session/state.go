// Package session provides the connection lifecycle state machine that gates
// all calls into the tracking and reconstruction collaborators.
package session

// State represents the session lifecycle state.
type State int

const (
	StateDisconnected State = iota // No connection (initial and terminal)
	StateConnecting                // Connect in progress
	StateConnected                 // Connection open, reconstruction running
	StatePaused                    // Connection open, reconstruction suspended
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Connected reports whether the state implies an open connection to the
// collaborators.
func (s State) Connected() bool {
	return s == StateConnected || s == StatePaused
}
