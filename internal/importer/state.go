package importer

// State is the lifecycle position of one game in a run.
type State int

const (
	StatePending State = iota
	StateSubmitting
	StateRecorded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSubmitting:
		return "submitting"
	case StateRecorded:
		return "recorded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
