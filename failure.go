package hyperrelay

// FailureKind classifies a failure reported by a relay.
type FailureKind uint8

const (
	// FailurePermanent means specific records could not be processed; the relay continues.
	FailurePermanent FailureKind = iota
	// FailureFinal means the relay has stopped, or will stop, accepting work.
	FailureFinal
)

// String returns the string representation of a failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailurePermanent:
		return "PERMANENT"
	case FailureFinal:
		return "FINAL"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the given FailureKind is known, and false otherwise.
func (k FailureKind) IsValid() bool {
	return k == FailurePermanent || k == FailureFinal
}

// Failure describes records a relay gave up on.
type Failure[T any] struct {
	// Source identifies the relay reporting the failure (name/id).
	Source string
	// Kind tells whether the relay keeps running.
	Kind FailureKind
	// Message is a short human readable reason.
	Message string
	// Records holds the affected records, if any.
	Records []T
	// Err is the underlying cause, if any.
	Err error
}

// FailureListener receives failures instead of the relay silently swallowing them.
// Implementations must be safe for concurrent use: producers and the worker
// report from their own goroutines.
type FailureListener[T any] interface {
	OnFailure(failure Failure[T])
}

// FailureListenerFunc adapts a function to the FailureListener interface.
type FailureListenerFunc[T any] func(failure Failure[T])

// OnFailure calls f(failure).
func (f FailureListenerFunc[T]) OnFailure(failure Failure[T]) {
	f(failure)
}

// DiscardFailures is a FailureListener that ignores every report.
type DiscardFailures[T any] struct{}

// OnFailure implements FailureListener.
func (DiscardFailures[T]) OnFailure(Failure[T]) {}

var _ FailureListener[any] = DiscardFailures[any]{}
