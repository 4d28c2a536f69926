package session

// State is the lifecycle state of a stream session.
type State int

const (
	Idle State = iota
	Streaming
	Completed
	Cancelled
	Errored
)

var stateNames = [...]string{"idle", "streaming", "completed", "cancelled", "errored"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Errored
}

// allowed lists the legal transitions. Terminal states have none.
var allowed = map[State][]State{
	Idle:      {Streaming, Cancelled, Errored},
	Streaming: {Completed, Cancelled, Errored},
}

func canTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
