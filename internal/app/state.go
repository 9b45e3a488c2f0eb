package app

// State is a step of a run.
type State int

// Run states, in the order a successful run visits them.
const (
	StateStart State = iota
	StateFetched
	StateDiffed
	StateNoChange
	StateNotified
	StatePersisted
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetched:
		return "fetched"
	case StateDiffed:
		return "diffed"
	case StateNoChange:
		return "no_change"
	case StateNotified:
		return "notified"
	case StatePersisted:
		return "persisted"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
