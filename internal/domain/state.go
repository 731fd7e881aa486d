package domain

// ConnectionState tracks the broker connection lifecycle.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	RetryBackoff
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case RetryBackoff:
		return "retry_backoff"
	default:
		return "unknown"
	}
}
