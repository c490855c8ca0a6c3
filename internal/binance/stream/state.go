package stream

// ConnectionState is the lifecycle state of a StreamClient.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Closing
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// transitions lists the allowed edges of the lifecycle.
var transitions = map[ConnectionState][]ConnectionState{
	Disconnected: {Connecting},
	Connecting:   {Connected, Disconnected},
	Connected:    {Disconnected, Closing},
	Closing:      {Disconnected},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}
