package session

// State is the lifecycle state of a Manager.
type State int

const (
	// StateIdle means Connect has never been called.
	StateIdle State = iota

	// StateConnecting means a transport is being dialed.
	StateConnecting

	// StateOpen means the transport is open and Send is allowed.
	StateOpen

	// StateReconnecting means the transport was lost and a retry is scheduled.
	StateReconnecting

	// StateDisconnected means the transport was lost and no retry is pending,
	// either because the reconnect budget is used up or the connection could
	// not be attempted at all. Connect may be called again.
	StateDisconnected

	// StateClosed means Close was called. It is terminal.
	StateClosed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// active reports whether the manager holds a transport or a pending retry.
func (s State) active() bool {
	return s == StateConnecting || s == StateOpen || s == StateReconnecting
}
