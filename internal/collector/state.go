package collector

// State is the lifecycle state of a Collector.
//
// A Collector leaves StateUnstarted during construction, either for StatePortConflict (terminal, nothing
// was started) or for StateRunning. The only way out of StateRunning is StateStopped.
type State int

const (
	StateUnstarted State = iota
	StatePortConflict
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StatePortConflict:
		return "port_conflict"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
