package domain

// ConnectionID is opaque and unique per transport instance. A reconnect is a
// brand-new connection; there is no session resumption.
type ConnectionID string

// ConnectionState models the lifecycle of a single transport session.
// Transitions only move forward, except that every state may jump to Closed.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateAuthenticating
	StateAuthenticated
	StateSubscribed
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection belongs to exactly one user; a user may own several concurrent
// connections (multi-device).
type Connection struct {
	ID     ConnectionID
	UserID string
	State  ConnectionState
}
