package channel

import "fmt"

type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is a snapshot of a Manager.
type State struct {
	Phase Phase
	// Key is the channel key, empty when no channel exists.
	Key string
	// ReconnectAttempts counts consecutive failed connection attempts.
	ReconnectAttempts int
	// MaxReconnectAttempts is the cap on ReconnectAttempts; zero means the
	// manager never reconnects on its own.
	MaxReconnectAttempts int
	// RetryScheduled reports whether a reconnection timer is pending.
	RetryScheduled bool
}
