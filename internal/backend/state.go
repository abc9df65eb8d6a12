package backend

import "fmt"

type State int32

const (
	StateNotStarted State = iota
	StateLaunching
	StateStarting
	StatePollingReady
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateLaunching:
		return "launching"
	case StateStarting:
		return "starting"
	case StatePollingReady:
		return "polling_ready"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
