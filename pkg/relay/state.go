package relay

// State is the lifecycle state of a Sink. Transitions only move forward:
// Active, then Closing once shutdown starts, then Stopped once the worker
// has exited and the consumer has been released. A sink whose worker dies
// moves from Active to Faulted and stays there until it is shut down.
type State int32

const (
	// StateActive means the sink accepts submissions and its worker is running.
	StateActive State = iota
	// StateClosing means admission has stopped and the worker drains the backlog.
	StateClosing
	// StateStopped means the worker has exited and resources were released.
	StateStopped
	// StateFaulted means the worker stopped unexpectedly. Every submission is
	// rejected; Close still releases the consumer.
	StateFaulted
)

// String returns the string representation of a state.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateStopped:
		return "stopped"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}
