package bridge

import "time"

// State is the lifecycle state of a bridge session.
type State int32

// bridge states
const (
	FetchingSettings State = iota
	Connecting
	Listening
	Errored
	Closed
)

func (s State) String() string {
	switch s {
	case FetchingSettings:
		return "fetching_settings"
	case Connecting:
		return "connecting"
	case Listening:
		return "listening"
	case Errored:
		return "errored"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Delays are the fixed waits before the bridge starts over from
// FetchingSettings.
type Delays struct {
	Settings time.Duration // settings missing or unreadable
	Open     time.Duration // port could not be opened
	Error    time.Duration // port reported an error
	Close    time.Duration // port closed
}

// DefaultDelays returns the standard retry delays.
func DefaultDelays() Delays {
	return Delays{
		Settings: 10 * time.Second,
		Open:     10 * time.Second,
		Error:    5 * time.Second,
		Close:    5 * time.Second,
	}
}
