package pipeline

import "fmt"

// State is the lifecycle position of a pipeline run.
type State int

const (
	StateIdle State = iota
	StateComposing
	StateBuilding
	StateServing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateBuilding:
		return "building"
	case StateServing:
		return "serving"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateServing || s == StateFailed
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var transitions = map[State][]State{
	StateIdle:      {StateComposing},
	StateComposing: {StateBuilding, StateFailed},
	StateBuilding:  {StateServing, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
