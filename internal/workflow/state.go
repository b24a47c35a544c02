package workflow

// State is a position in the lookup-and-edit lifecycle
type State int

const (
	Idle State = iota
	Searching
	Found
	NotFound
	Errored
	Submitting
	SubmitSucceeded
	SubmitFailed
)

var stateNames = [...]string{
	Idle:            "idle",
	Searching:       "searching",
	Found:           "found",
	NotFound:        "not_found",
	Errored:         "errored",
	Submitting:      "submitting",
	SubmitSucceeded: "submit_succeeded",
	SubmitFailed:    "submit_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText lets snapshots carry the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// showsRecord reports whether a record is on display in this state
func (s State) showsRecord() bool {
	switch s {
	case Found, Submitting, SubmitSucceeded, SubmitFailed:
		return true
	}
	return false
}
